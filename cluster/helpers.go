package cluster

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Grenade types in the order the map page lists them.
var TypeOrder = []string{"smoke", "flash", "molotov", "he", "decoy"}

// Sides a record can belong to.
var Sides = []string{"T", "CT"}

// Filter narrows a record set by grenade type and side. Empty fields match
// anything; comparisons ignore case.
type Filter struct {
	Type string `json:"type,omitempty"`
	Side string `json:"side,omitempty"`
}

// IsZero reports whether the filter matches every record.
func (f Filter) IsZero() bool {
	return f.Type == "" && f.Side == ""
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	if f.Type != "" && !strings.EqualFold(r.Type, f.Type) {
		return false
	}
	if f.Side != "" && !strings.EqualFold(r.Side, f.Side) {
		return false
	}
	return true
}

// Apply returns the matching records in input order.
func (f Filter) Apply(records []Record) []Record {
	if f.IsZero() {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

type Summary struct {
	TotalRecords   int            `json:"totalRecords"`
	Unanchored     int            `json:"unanchored"`
	NumClusters    int            `json:"numClusters"`
	NumSingletons  int            `json:"numSingletons"`
	LargestCluster int            `json:"largestCluster"`
	TypeCounts     map[string]int `json:"typeCounts"`
	SideCounts     map[string]int `json:"sideCounts"`
}

// Summarize counts records per type and side and describes the clusters
// built from them. Every known type and side is present in the counts,
// zero or not; unknown types are counted under "unknown".
func Summarize(records []Record, clusters []Cluster) Summary {
	summary := Summary{
		TotalRecords: len(records),
		TypeCounts:   make(map[string]int, len(TypeOrder)),
		SideCounts:   make(map[string]int, len(Sides)),
	}
	for _, t := range TypeOrder {
		summary.TypeCounts[t] = 0
	}
	for _, s := range Sides {
		summary.SideCounts[s] = 0
	}

	for _, r := range records {
		if _, ok := Anchor(r); !ok {
			summary.Unanchored++
		}

		t := strings.ToLower(r.Type)
		if t == "" {
			t = "unknown"
		}
		summary.TypeCounts[t]++

		s := strings.ToUpper(r.Side)
		if s == "T" || s == "CT" {
			summary.SideCounts[s]++
		}
	}

	for _, c := range clusters {
		if c.Count() > 1 {
			summary.NumClusters++
		} else {
			summary.NumSingletons++
		}
		if c.Count() > summary.LargestCluster {
			summary.LargestCluster = c.Count()
		}
	}

	return summary
}

// Fingerprint hashes every field of every record in order. Two sets with the
// same fingerprint produce the same clusters holding the same record values.
func Fingerprint(records []Record) uint64 {
	d := xxhash.New()
	var buf [8]byte

	writePoint := func(p *Point) {
		if p == nil {
			d.Write([]byte{0})
			return
		}
		d.Write([]byte{1})
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.X))
		d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Y))
		d.Write(buf[:])
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(len(records)))
	d.Write(buf[:])
	for _, r := range records {
		for _, f := range []string{r.ID, r.MapSlug, r.Title, r.Type, r.Side, r.VideoURL} {
			binary.LittleEndian.PutUint64(buf[:], uint64(len(f)))
			d.Write(buf[:])
			d.WriteString(f)
		}
		writePoint(r.Origin)
		writePoint(r.Destination)
	}
	return d.Sum64()
}

// GenerateTestRecords creates n records scattered over the map. Roughly one
// in ten has no origin and one in twenty has no destination.
func GenerateTestRecords(n int, seed int64) []Record {
	r := rand.New(rand.NewSource(seed))
	records := make([]Record, n)

	for i := 0; i < n; i++ {
		rec := Record{
			ID:      fmt.Sprintf("nade-%d", i+1),
			MapSlug: "mirage",
			Title:   fmt.Sprintf("Lineup %d", i+1),
			Type:    TypeOrder[r.Intn(len(TypeOrder))],
			Side:    Sides[r.Intn(len(Sides))],
		}
		if r.Intn(20) != 0 {
			rec.Destination = &Point{X: r.Float64() * 100, Y: r.Float64() * 100}
		}
		if r.Intn(10) != 0 {
			rec.Origin = &Point{X: r.Float64() * 100, Y: r.Float64() * 100}
		}
		records[i] = rec
	}

	return records
}
