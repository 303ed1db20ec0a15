// Package index holds the per-file records of a Fortran project.
package index

import (
	"sort"

	"ftree/internal/engine/parser"
	"ftree/internal/engine/unit"
	"ftree/internal/shared/observability"
	"ftree/internal/shared/util"
)

// Extractor turns one file on disk into a record.
type Extractor interface {
	ParsePath(path string) (*parser.Record, error)
}

// Index maps normalized file paths to their records. Every mutation bumps
// Version so derived graphs know when they are stale. It is not safe for
// concurrent use.
type Index struct {
	extractor Extractor
	cwd       string
	records   map[string]*parser.Record
	version   uint64
	signaled  map[string]bool
}

func New(extractor Extractor) *Index {
	return &Index{
		extractor: extractor,
		records:   make(map[string]*parser.Record),
		signaled:  make(map[string]bool),
	}
}

// Normalize strips the leading "./" and cleans separators so a file has
// the same key whichever way it was named.
func Normalize(path string) string {
	return util.NormalizePath(path)
}

// Version changes whenever a record is added, replaced or removed.
func (ix *Index) Version() uint64 {
	return ix.version
}

// Cwd is the working directory the paths are relative to.
func (ix *Index) Cwd() string {
	return ix.cwd
}

func (ix *Index) SetCwd(cwd string) {
	ix.cwd = cwd
}

// AnalyzeFile parses path and replaces its record. On failure the previous
// record is dropped too: a file that no longer parses is not indexed.
func (ix *Index) AnalyzeFile(path string) error {
	key := Normalize(path)
	rec, err := ix.extractor.ParsePath(path)
	if err != nil {
		if _, ok := ix.records[key]; ok {
			delete(ix.records, key)
			ix.touch()
		}
		return err
	}
	rec.Path = key
	ix.records[key] = rec
	ix.touch()
	return nil
}

// AnalyzeRecord stores a record produced elsewhere, replacing any previous
// one for the same path.
func (ix *Index) AnalyzeRecord(rec *parser.Record) {
	rec = rec.Clone()
	rec.Path = Normalize(rec.Path)
	ix.records[rec.Path] = rec
	ix.touch()
}

// Forget removes the given files. Unknown paths are ignored.
func (ix *Index) Forget(paths ...string) {
	changed := false
	for _, path := range paths {
		key := Normalize(path)
		if _, ok := ix.records[key]; ok {
			delete(ix.records, key)
			changed = true
		}
	}
	if changed {
		ix.touch()
	}
}

// Replace swaps the whole content of the index, as done when loading from
// a store.
func (ix *Index) Replace(cwd string, records []*parser.Record) {
	ix.cwd = cwd
	ix.records = make(map[string]*parser.Record, len(records))
	for _, rec := range records {
		rec = rec.Clone()
		rec.Path = Normalize(rec.Path)
		ix.records[rec.Path] = rec
	}
	ix.touch()
}

func (ix *Index) touch() {
	ix.version++
	observability.IndexedFiles.Set(float64(len(ix.records)))
}

// Has reports whether path is indexed.
func (ix *Index) Has(path string) bool {
	_, ok := ix.records[Normalize(path)]
	return ok
}

// Record returns the stored record for path. Callers must not modify it.
func (ix *Index) Record(path string) (*parser.Record, bool) {
	rec, ok := ix.records[Normalize(path)]
	return rec, ok
}

// KnownFiles lists indexed paths in sorted order.
func (ix *Index) KnownFiles() []string {
	files := make([]string, 0, len(ix.records))
	for path := range ix.records {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Len is the number of indexed files.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Records returns deep copies of every record, sorted by path.
func (ix *Index) Records() []*parser.Record {
	out := make([]*parser.Record, 0, len(ix.records))
	for _, path := range ix.KnownFiles() {
		out = append(out, ix.records[path].Clone())
	}
	return out
}

// FilesDefining lists the files that define u, sorted.
func (ix *Index) FilesDefining(u unit.Path) []string {
	var files []string
	for _, path := range ix.KnownFiles() {
		if ix.records[path].HasUnit(u) {
			files = append(files, path)
		}
	}
	return files
}

// Signal marks files modified outside the index, typically by a rewrite
// pass, so they can be re-analysed together later.
func (ix *Index) Signal(paths ...string) {
	for _, path := range paths {
		ix.signaled[Normalize(path)] = true
	}
}

// PopSignaled returns and clears the signaled files.
func (ix *Index) PopSignaled() []string {
	out := util.SortedStringKeys(ix.signaled)
	ix.signaled = make(map[string]bool)
	return out
}
