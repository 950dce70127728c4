package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
)

// ImportJSON reads an exported array of records. Entries without an id are
// dropped; positions are kept as exported, absent ones stay nil.
func ImportJSON(r io.Reader) ([]cluster.Record, error) {
	var raw []cluster.Record
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	records := make([]cluster.Record, 0, len(raw))
	for _, rec := range raw {
		if rec.ID == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ImportFile saves the records of an exported JSON array as a new snapshot
// of slug. Records naming a different map are skipped.
func (s *Store) ImportFile(slug string, r io.Reader) (Snapshot, int, error) {
	records, err := ImportJSON(r)
	if err != nil {
		return Snapshot{}, 0, err
	}
	kept := records[:0]
	skipped := 0
	for _, rec := range records {
		if rec.MapSlug != "" && rec.MapSlug != slug {
			skipped++
			continue
		}
		kept = append(kept, rec)
	}
	snap, err := s.Save(slug, kept)
	return snap, skipped, err
}
