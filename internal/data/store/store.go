// Package store persists the project index between runs.
package store

import (
	"path/filepath"
	"sort"
	"strings"

	"ftree/internal/engine/parser"
)

// Snapshot is the whole persisted state: where the paths are relative to
// and one record per file.
type Snapshot struct {
	Cwd     string
	Records []*parser.Record
}

// Store saves and loads snapshots. Load on a store that was never saved
// returns an empty snapshot. Save replaces everything previously stored.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Path() string
	Close() error
}

// Open picks the backend from the file extension: SQLite for .db, .sqlite
// and .sqlite3, JSON for anything else.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path)
	default:
		return OpenJSON(path)
	}
}

// sortRecords orders records by path and their units by name so that two
// saves of the same index are byte-identical.
func sortRecords(records []*parser.Record) []*parser.Record {
	out := make([]*parser.Record, 0, len(records))
	for _, rec := range records {
		rec = rec.Clone()
		rec.Normalize()
		sort.Slice(rec.Units, func(i, j int) bool { return rec.Units[i].String() < rec.Units[j].String() })
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
