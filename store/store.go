// Package store keeps snapshots of each map's record set on disk, one
// directory per map, in either a zstd compressed or a memory mapped layout.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	FormatZstd = "zst"
	FormatMMap = "nmap"
)

const timestampLayout = "20060102-150405"

var (
	ErrNotFound      = errors.New("snapshot not found")
	ErrBadFormat     = errors.New("malformed snapshot")
	ErrInvalidSlug   = errors.New("invalid map slug")
	ErrUnknownFormat = errors.New("unknown snapshot format")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidSlug reports whether s can name a map directory.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Snapshot describes one saved record set.
type Snapshot struct {
	ID         string    `json:"id"`
	MapSlug    string    `json:"mapSlug"`
	NumRecords int       `json:"numRecords"`
	Timestamp  time.Time `json:"timestamp"`
	FileSize   int64     `json:"fileSize"`
	Format     string    `json:"format"`
	Path       string    `json:"-"`
}

type Store struct {
	dir     string
	format  string
	logger  *zap.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

type Option func(*Store)

// WithFormat selects the layout new snapshots are written in.
func WithFormat(format string) Option {
	return func(s *Store) { s.format = format }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens a store rooted at dir, creating it when missing.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:    dir,
		format: FormatZstd,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.format != FormatZstd && s.format != FormatMMap {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, s.format)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) mapDir(slug string) (string, error) {
	if !ValidSlug(slug) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}
	return filepath.Join(s.dir, slug), nil
}

func (s *Store) snapshotFilename(slug string, n int) (string, string, error) {
	dir, err := s.mapDir(slug)
	if err != nil {
		return "", "", err
	}
	timestamp := s.now().UTC().Format(timestampLayout)
	id := uuid.New().String()[:8]
	name := fmt.Sprintf("nades-%dn-%s-%s.%s", n, timestamp, id, s.format)
	return filepath.Join(dir, name), id, nil
}

// parseSnapshotName reads nades-{n}n-{yyyymmdd}-{hhmmss}-{id}.{ext}.
func parseSnapshotName(name string) (Snapshot, bool) {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext != FormatZstd && ext != FormatMMap {
		return Snapshot{}, false
	}
	parts := strings.Split(strings.TrimSuffix(name, "."+ext), "-")
	if len(parts) != 5 || parts[0] != "nades" {
		return Snapshot{}, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(parts[1], "n"))
	if err != nil {
		return Snapshot{}, false
	}
	ts, err := time.Parse(timestampLayout, parts[2]+"-"+parts[3])
	if err != nil {
		return Snapshot{}, false
	}
	return Snapshot{ID: parts[4], NumRecords: n, Timestamp: ts, Format: ext}, true
}

// Save writes records as a new snapshot of slug. The file is written under a
// hidden temporary name and renamed into place, so readers never see a
// partial snapshot.
func (s *Store) Save(slug string, records []cluster.Record) (Snapshot, error) {
	path, id, err := s.snapshotFilename(slug, len(records))
	if err != nil {
		return Snapshot{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create map directory: %w", err)
	}

	snap, ok := parseSnapshotName(filepath.Base(path))
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: unexpected snapshot name %s", ErrBadFormat, filepath.Base(path))
	}
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")

	start := time.Now()
	switch s.format {
	case FormatMMap:
		err = saveMMap(tmp, slug, records)
	default:
		err = saveCompressed(tmp, slug, records)
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return Snapshot{}, fmt.Errorf("save snapshot of %s: %w", slug, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat snapshot: %w", err)
	}
	snap.MapSlug = slug
	snap.FileSize = info.Size()
	snap.Path = path

	s.logger.Info("saved snapshot",
		zap.String("map", slug),
		zap.String("id", id),
		zap.Int("records", len(records)),
		zap.Int64("bytes", snap.FileSize),
		zap.Duration("took", time.Since(start)))
	return snap, nil
}

// List returns the snapshots of slug, newest first. A map without any
// snapshot yields an empty list.
func (s *Store) List(slug string) ([]Snapshot, error) {
	dir, err := s.mapDir(slug)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list snapshots of %s: %w", slug, err)
	}

	snaps := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		snap, ok := parseSnapshotName(entry.Name())
		if !ok {
			s.logger.Debug("skipping unrecognized file", zap.String("map", slug), zap.String("file", entry.Name()))
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("stat failed", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		snap.MapSlug = slug
		snap.FileSize = info.Size()
		snap.Path = filepath.Join(dir, entry.Name())
		snaps = append(snaps, snap)
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].Timestamp.Equal(snaps[j].Timestamp) {
			return snaps[i].Timestamp.After(snaps[j].Timestamp)
		}
		return snaps[i].ID > snaps[j].ID
	})
	return snaps, nil
}

// Maps returns the slugs that have a snapshot directory, sorted.
func (s *Store) Maps() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	var slugs []string
	for _, entry := range entries {
		if entry.IsDir() && ValidSlug(entry.Name()) {
			slugs = append(slugs, entry.Name())
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Latest returns the newest snapshot of slug.
func (s *Store) Latest(slug string) (Snapshot, error) {
	snaps, err := s.List(slug)
	if err != nil {
		return Snapshot{}, err
	}
	if len(snaps) == 0 {
		return Snapshot{}, fmt.Errorf("%w: no snapshots for %s", ErrNotFound, slug)
	}
	return snaps[0], nil
}

// Find returns the snapshot of slug with the given id.
func (s *Store) Find(slug, id string) (Snapshot, error) {
	snaps, err := s.List(slug)
	if err != nil {
		return Snapshot{}, err
	}
	for _, snap := range snaps {
		if snap.ID == id {
			return snap, nil
		}
	}
	return Snapshot{}, fmt.Errorf("%w: %s/%s", ErrNotFound, slug, id)
}

// Load reads a snapshot file, picking the layout from its extension. It
// returns the map slug stored in the file with the records.
func (s *Store) Load(path string) (string, []cluster.Record, error) {
	format := strings.TrimPrefix(filepath.Ext(path), ".")

	var (
		slug    string
		records []cluster.Record
		err     error
	)
	start := time.Now()
	switch format {
	case FormatZstd:
		slug, records, err = loadCompressed(path)
	case FormatMMap:
		slug, records, err = loadMMap(path)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	s.metrics.RecordSnapshotLoad(format, err)
	if err != nil {
		return "", nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}

	s.logger.Debug("loaded snapshot",
		zap.String("file", filepath.Base(path)),
		zap.Int("records", len(records)),
		zap.Duration("took", time.Since(start)))
	return slug, records, nil
}

// LoadSnapshot loads snap and checks it belongs to the map it is filed under.
func (s *Store) LoadSnapshot(snap Snapshot) ([]cluster.Record, error) {
	slug, records, err := s.Load(snap.Path)
	if err != nil {
		return nil, err
	}
	if slug != snap.MapSlug {
		return nil, fmt.Errorf("%w: %s is filed under %s but holds %s", ErrBadFormat, snap.ID, snap.MapSlug, slug)
	}
	return records, nil
}

// Records returns the newest record set of slug, or none when the map has
// no snapshot yet.
func (s *Store) Records(_ context.Context, slug string) ([]cluster.Record, error) {
	snap, err := s.Latest(slug)
	if errors.Is(err, ErrNotFound) {
		return []cluster.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.LoadSnapshot(snap)
}
