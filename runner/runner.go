package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/metrics"
	"github.com/AbelMP17/OnlyNadesV2/store"
	"github.com/AbelMP17/OnlyNadesV2/view"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordSource yields the current record set of a map.
type RecordSource interface {
	Records(ctx context.Context, slug string) ([]cluster.Record, error)
}

// SnapshotStore is the persistence the runner needs. *store.Store
// satisfies it.
type SnapshotStore interface {
	RecordSource
	List(slug string) ([]store.Snapshot, error)
	Save(slug string, records []cluster.Record) (store.Snapshot, error)
}

type Config struct {
	MaxSessions    int
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	BucketSize     float64
	FocusThreshold float64
}

func DefaultConfig() Config {
	return Config{
		MaxSessions:    64,
		SessionTTL:     30 * time.Minute,
		SweepInterval:  5 * time.Minute,
		BucketSize:     cluster.DefaultBucketSize,
		FocusThreshold: cluster.DefaultNearThreshold,
	}
}

// SessionRunner hosts view sessions in memory. It keeps at most
// MaxSessions of them, evicting the least recently used, and a background
// sweeper drops sessions idle for longer than SessionTTL.
type SessionRunner struct {
	src     SnapshotStore
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Registry
	now     func() time.Time

	mu           sync.RWMutex
	sessions     map[string]*session
	lastAccessed map[string]time.Time
	records      map[string][]cluster.Record

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var _ Service = (*SessionRunner)(nil)

type Option func(*SessionRunner)

func WithLogger(l *zap.Logger) Option {
	return func(r *SessionRunner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(r *SessionRunner) { r.metrics = m }
}

// WithClock replaces time.Now for access times and idle checks.
func WithClock(now func() time.Time) Option {
	return func(r *SessionRunner) { r.now = now }
}

// NewSessionRunner starts a runner over src. Call Close to stop its
// sweeper.
func NewSessionRunner(src SnapshotStore, cfg Config, opts ...Option) *SessionRunner {
	def := DefaultConfig()
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.BucketSize <= 0 {
		cfg.BucketSize = def.BucketSize
	}
	if cfg.FocusThreshold < 0 {
		cfg.FocusThreshold = def.FocusThreshold
	}

	r := &SessionRunner{
		src:          src,
		cfg:          cfg,
		logger:       zap.NewNop(),
		now:          time.Now,
		sessions:     make(map[string]*session),
		lastAccessed: make(map[string]time.Time),
		records:      make(map[string][]cluster.Record),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.sweepInactiveSessions()
	return r
}

// Close stops the sweeper and unmounts every session.
func (r *SessionRunner) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
		<-r.done

		r.mu.Lock()
		sessions := r.sessions
		r.sessions = make(map[string]*session)
		r.lastAccessed = make(map[string]time.Time)
		r.mu.Unlock()

		for _, s := range sessions {
			s.close()
		}
		r.metrics.SetActiveSessions(0)
	})
}

func (r *SessionRunner) sweepInactiveSessions() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep evicts sessions idle for longer than SessionTTL.
func (r *SessionRunner) sweep() int {
	r.mu.Lock()
	now := r.now()
	var evicted []*session
	for id, lastAccess := range r.lastAccessed {
		if now.Sub(lastAccess) > r.cfg.SessionTTL {
			evicted = append(evicted, r.sessions[id])
			delete(r.sessions, id)
			delete(r.lastAccessed, id)
		}
	}
	active := len(r.sessions)
	r.mu.Unlock()

	for _, s := range evicted {
		s.close()
		r.metrics.RecordEviction("idle")
		r.logger.Info("evicted idle session", zap.String("session", s.id), zap.String("map", s.slug))
	}
	r.metrics.SetActiveSessions(active)
	return len(evicted)
}

// evictOldestLocked drops the least recently used session. r.mu must be
// held for writing.
func (r *SessionRunner) evictOldestLocked() *session {
	var oldestID string
	var oldestTime time.Time
	first := true
	for id, accessTime := range r.lastAccessed {
		if first || accessTime.Before(oldestTime) {
			oldestID = id
			oldestTime = accessTime
			first = false
		}
	}
	if oldestID == "" {
		return nil
	}
	s := r.sessions[oldestID]
	delete(r.sessions, oldestID)
	delete(r.lastAccessed, oldestID)
	return s
}

// Len returns the number of live sessions.
func (r *SessionRunner) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func validateSlug(slug string) error {
	if !store.ValidSlug(slug) {
		return fmt.Errorf("%w: map slug %q", ErrInvalidArgument, slug)
	}
	return nil
}

// loadRecords returns the records of slug, reading the source once per map
// until the cache is invalidated.
func (r *SessionRunner) loadRecords(ctx context.Context, slug string, fresh bool) ([]cluster.Record, error) {
	if err := validateSlug(slug); err != nil {
		return nil, err
	}
	if !fresh {
		r.mu.RLock()
		records, ok := r.records[slug]
		r.mu.RUnlock()
		if ok {
			return records, nil
		}
	}

	records, err := r.src.Records(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load records of %s: %w", slug, err)
	}
	r.mu.Lock()
	r.records[slug] = records
	r.mu.Unlock()
	r.logger.Debug("loaded records", zap.String("map", slug), zap.Int("records", len(records)))
	return records, nil
}

// touch looks up a session and marks it used.
func (r *SessionRunner) touch(id string) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	r.lastAccessed[id] = r.now()
	return s, nil
}

// withSession runs fn on session id under its lock and returns the state
// it leaves behind.
func (r *SessionRunner) withSession(id string, fn func(s *session) error) (*SessionState, error) {
	s, err := r.touch(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		if err := fn(s); err != nil {
			return nil, err
		}
	}
	return s.state(r.metrics), nil
}

func (r *SessionRunner) CreateSession(ctx context.Context, req *CreateSessionRequest) (*SessionState, error) {
	if req.BucketSize < 0 || req.BucketSize > 100 {
		return nil, fmt.Errorf("%w: bucket size %v", ErrInvalidArgument, req.BucketSize)
	}
	records, err := r.loadRecords(ctx, req.MapSlug, false)
	if err != nil {
		return nil, err
	}

	opts := view.DefaultOptions()
	opts.BucketSize = r.cfg.BucketSize
	if req.BucketSize > 0 {
		opts.BucketSize = req.BucketSize
	}
	opts.FocusThreshold = r.cfg.FocusThreshold
	opts.ReadOnly = req.ReadOnly

	s, err := newSession(uuid.NewString(), req, records, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	var evicted *session
	if len(r.sessions) >= r.cfg.MaxSessions {
		evicted = r.evictOldestLocked()
	}
	r.sessions[s.id] = s
	r.lastAccessed[s.id] = r.now()
	active := len(r.sessions)
	r.mu.Unlock()

	if evicted != nil {
		evicted.close()
		r.metrics.RecordEviction("lru")
		r.logger.Info("evicted least recently used session", zap.String("session", evicted.id))
	}
	r.metrics.SetActiveSessions(active)
	r.logger.Info("created session",
		zap.String("session", s.id),
		zap.String("map", s.slug),
		zap.Bool("authoring", req.Authoring),
		zap.Int("records", len(records)))

	return r.withSession(s.id, nil)
}

func (r *SessionRunner) CloseSession(ctx context.Context, req *SessionRequest) (*Empty, error) {
	r.mu.Lock()
	s, ok := r.sessions[req.SessionID]
	if ok {
		delete(r.sessions, req.SessionID)
		delete(r.lastAccessed, req.SessionID)
	}
	active := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}

	s.close()
	r.metrics.SetActiveSessions(active)
	r.logger.Info("closed session", zap.String("session", s.id))
	return &Empty{}, nil
}

func (r *SessionRunner) GetState(ctx context.Context, req *SessionRequest) (*SessionState, error) {
	return r.withSession(req.SessionID, nil)
}

func (r *SessionRunner) PointerDown(ctx context.Context, req *PointerRequest) (*SessionState, error) {
	target, err := parseTarget(req.Target)
	if err != nil {
		return nil, err
	}
	return r.withSession(req.SessionID, func(s *session) error {
		s.pointerDown(req.Event, target)
		return nil
	})
}

func (r *SessionRunner) ClickCluster(ctx context.Context, req *ClickClusterRequest) (*SessionState, error) {
	if _, _, err := cluster.ParseKey(req.Key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return r.withSession(req.SessionID, func(s *session) error {
		s.clickCluster(req.Key)
		return nil
	})
}

func (r *SessionRunner) ClickOrigin(ctx context.Context, req *ClickOriginRequest) (*SessionState, error) {
	return r.withSession(req.SessionID, func(s *session) error {
		s.engine.ClickOrigin(req.RecordID)
		return nil
	})
}

func (r *SessionRunner) Hover(ctx context.Context, req *HoverRequest) (*SessionState, error) {
	return r.withSession(req.SessionID, func(s *session) error {
		return s.hover(req)
	})
}

func (r *SessionRunner) ResizeContainer(ctx context.Context, req *ResizeRequest) (*SessionState, error) {
	return r.withSession(req.SessionID, func(s *session) error {
		s.rect = req.Container
		return nil
	})
}

func (r *SessionRunner) SetStep(ctx context.Context, req *StepRequest) (*SessionState, error) {
	return r.withSession(req.SessionID, func(s *session) error {
		return s.setStep(req.Step)
	})
}

func (r *SessionRunner) SetFilter(ctx context.Context, req *FilterRequest) (*SessionState, error) {
	return r.withSession(req.SessionID, func(s *session) error {
		s.filter = req.Filter
		s.sync()
		return nil
	})
}

// Reload re-reads the session's map from the source and refreshes the
// cached copy other sessions are created from.
func (r *SessionRunner) Reload(ctx context.Context, req *SessionRequest) (*SessionState, error) {
	s, err := r.touch(req.SessionID)
	if err != nil {
		return nil, err
	}
	records, err := r.loadRecords(ctx, s.slug, true)
	if err != nil {
		return nil, err
	}
	return r.withSession(req.SessionID, func(s *session) error {
		s.records = records
		s.sync()
		return nil
	})
}

func (r *SessionRunner) GetClusters(ctx context.Context, req *ClustersRequest) (*ClustersResponse, error) {
	if req.BucketSize < 0 || req.BucketSize > 100 {
		return nil, fmt.Errorf("%w: bucket size %v", ErrInvalidArgument, req.BucketSize)
	}
	records, err := r.loadRecords(ctx, req.MapSlug, false)
	if err != nil {
		return nil, err
	}
	size := r.cfg.BucketSize
	if req.BucketSize > 0 {
		size = req.BucketSize
	}

	visible := req.Filter.Apply(records)
	start := time.Now()
	clusters := cluster.Build(visible, size)
	r.metrics.ObserveClusterPass(time.Since(start))

	return &ClustersResponse{
		MapSlug:    req.MapSlug,
		BucketSize: size,
		Clusters:   clusters,
		Summary:    cluster.Summarize(visible, clusters),
	}, nil
}

func (r *SessionRunner) FindNear(ctx context.Context, req *NearRequest) (*NearResponse, error) {
	threshold := r.cfg.FocusThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold %v", ErrInvalidArgument, threshold)
	}
	records, err := r.loadRecords(ctx, req.MapSlug, false)
	if err != nil {
		return nil, err
	}
	near := cluster.FindNear(records, req.Point, threshold)
	if near == nil {
		near = []cluster.Record{}
	}
	return &NearResponse{Records: near}, nil
}

func (r *SessionRunner) ListSnapshots(ctx context.Context, req *ListSnapshotsRequest) (*ListSnapshotsResponse, error) {
	if err := validateSlug(req.MapSlug); err != nil {
		return nil, err
	}
	snaps, err := r.src.List(req.MapSlug)
	if err != nil {
		return nil, err
	}
	return &ListSnapshotsResponse{Snapshots: snaps}, nil
}

// SaveSnapshot stores records as the newest snapshot of the map. Records
// without an id or filed under another map are rejected; sessions opened
// afterwards see the new set, open ones after a Reload.
func (r *SessionRunner) SaveSnapshot(ctx context.Context, req *SaveSnapshotRequest) (*SaveSnapshotResponse, error) {
	if err := validateSlug(req.MapSlug); err != nil {
		return nil, err
	}
	records := make([]cluster.Record, len(req.Records))
	for i, rec := range req.Records {
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: record %d has no id", ErrInvalidArgument, i)
		}
		if rec.MapSlug == "" {
			rec.MapSlug = req.MapSlug
		}
		if rec.MapSlug != req.MapSlug {
			return nil, fmt.Errorf("%w: record %s belongs to %s", ErrInvalidArgument, rec.ID, rec.MapSlug)
		}
		records[i] = rec
	}

	snap, err := r.src.Save(req.MapSlug, records)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.records[req.MapSlug] = records
	r.mu.Unlock()
	return &SaveSnapshotResponse{Snapshot: snap}, nil
}
