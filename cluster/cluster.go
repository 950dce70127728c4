package cluster

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultBucketSize groups points that round to the same whole-percent cell.
const DefaultBucketSize = 1.0

// ErrInvalidKey is returned by ParseKey for strings not shaped like "<kx>_<ky>".
var ErrInvalidKey = errors.New("invalid cluster key")

// Point is a normalized position, both axes in [0,100].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Record is a nade lineup anchored to a map image. Only ID and the two
// points matter to the engine; the other fields ride along for filters,
// previews and snapshots.
type Record struct {
	ID          string `json:"id"`
	MapSlug     string `json:"mapSlug,omitempty"`
	Title       string `json:"title,omitempty"`
	Type        string `json:"type,omitempty"`
	Side        string `json:"side,omitempty"`
	VideoURL    string `json:"videoUrl,omitempty"`
	Origin      *Point `json:"fromPos,omitempty"`
	Destination *Point `json:"toPos,omitempty"`
}

// Cluster is one occupied bucket of the grid for a single clustering pass.
type Cluster struct {
	Key     string   `json:"key"`
	KX      int      `json:"kx"`
	KY      int      `json:"ky"`
	Center  Point    `json:"center"`
	Members []Record `json:"members"`
}

// Count returns the number of member records.
func (c Cluster) Count() int {
	return len(c.Members)
}

// IsSingleton reports whether the cluster holds exactly one record.
func (c Cluster) IsSingleton() bool {
	return len(c.Members) == 1
}

// Anchor returns the point a record is clustered by: destination when
// present, origin otherwise. ok is false for records with neither.
func Anchor(r Record) (Point, bool) {
	if r.Destination != nil {
		return *r.Destination, true
	}
	if r.Origin != nil {
		return *r.Origin, true
	}
	return Point{}, false
}

// KeyFor renders bucket indices as a cluster key.
func KeyFor(kx, ky int) string {
	return strconv.Itoa(kx) + "_" + strconv.Itoa(ky)
}

// ParseKey is the inverse of KeyFor.
func ParseKey(key string) (kx, ky int, err error) {
	xs, ys, ok := strings.Cut(key, "_")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if kx, err = strconv.Atoi(xs); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if ky, err = strconv.Atoi(ys); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return kx, ky, nil
}

// roundHalfUp rounds .5 towards positive infinity so negative cells are
// bucketed the same way as positive ones.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// BucketOf returns the bucket indices for p.
func BucketOf(p Point, bucketSize float64) (kx, ky int) {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	return int(roundHalfUp(p.X / bucketSize)), int(roundHalfUp(p.Y / bucketSize))
}

// Build groups records into grid buckets of bucketSize normalized units.
// Records without any anchor point are skipped. Clusters come out in order
// of first appearance and members keep input order, so a fixed input
// always yields the same output. Input records are never modified.
func Build(records []Record, bucketSize float64) []Cluster {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}

	index := make(map[string]int)
	var clusters []Cluster

	for _, r := range records {
		p, ok := Anchor(r)
		if !ok {
			continue
		}
		kx, ky := BucketOf(p, bucketSize)
		key := KeyFor(kx, ky)

		if i, exists := index[key]; exists {
			clusters[i].Members = append(clusters[i].Members, r)
			continue
		}
		index[key] = len(clusters)
		clusters = append(clusters, Cluster{
			Key: key,
			KX:  kx,
			KY:  ky,
			Center: Point{
				X: float64(kx) * bucketSize,
				Y: float64(ky) * bucketSize,
			},
			Members: []Record{r},
		})
	}

	return clusters
}

// Find returns the cluster with the given key.
func Find(clusters []Cluster, key string) (Cluster, bool) {
	for _, c := range clusters {
		if c.Key == key {
			return c, true
		}
	}
	return Cluster{}, false
}
