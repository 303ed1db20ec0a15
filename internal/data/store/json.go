package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"ftree/internal/core/errors"
	"ftree/internal/engine/parser"
	"ftree/internal/engine/unit"
	"ftree/internal/shared/util"
)

// document is the on-disk JSON layout. Every table is keyed by file, then
// by unit path; encoding/json writes map keys sorted.
type document struct {
	Cwd         string                             `json:"cwd"`
	Scopes      map[string][]string                `json:"scopes"`
	UseList     map[string]map[string][]parser.Use `json:"useList"`
	IncludeList map[string]map[string][]string     `json:"includeList"`
	CallList    map[string]map[string][]string     `json:"callList"`
	FuncList    map[string]map[string][]string     `json:"funcList"`
}

type JSONStore struct {
	path string
}

func OpenJSON(path string) (*JSONStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeValidationError, "store path is a directory"), errors.CtxPath, cleanPath)
	}
	return &JSONStore{path: cleanPath}, nil
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) Save(snap Snapshot) error {
	doc := document{
		Cwd:         snap.Cwd,
		Scopes:      make(map[string][]string),
		UseList:     make(map[string]map[string][]parser.Use),
		IncludeList: make(map[string]map[string][]string),
		CallList:    make(map[string]map[string][]string),
		FuncList:    make(map[string]map[string][]string),
	}
	for _, rec := range sortRecords(snap.Records) {
		units := make([]string, len(rec.Units))
		for i, u := range rec.Units {
			units[i] = u.String()
		}
		doc.Scopes[rec.Path] = units
		doc.UseList[rec.Path] = useTable(rec.Uses)
		doc.IncludeList[rec.Path] = stringTable(rec.Includes)
		doc.CallList[rec.Path] = stringTable(rec.Calls)
		doc.FuncList[rec.Path] = stringTable(rec.Funcs)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeStore, "encode index")
	}
	if err := util.WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeStore, "write index"), errors.CtxPath, s.path)
	}
	return nil
}

func (s *JSONStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, errors.AddContext(errors.Wrap(err, errors.CodeStore, "read index"), errors.CtxPath, s.path)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, errors.AddContext(errors.Wrap(err, errors.CodeStore, "decode index"), errors.CtxPath, s.path)
	}

	snap := Snapshot{Cwd: doc.Cwd}
	for _, file := range util.SortedStringKeys(doc.Scopes) {
		rec := parser.NewRecord(file)
		for _, raw := range doc.Scopes[file] {
			u, err := unit.Parse(raw)
			if err != nil {
				return Snapshot{}, errors.AddContext(errors.Wrap(err, errors.CodeStore, "decode index"), errors.CtxPath, s.path)
			}
			rec.AddUnit(u)
		}
		if err := fillStrings(rec.Includes, doc.IncludeList[file]); err != nil {
			return Snapshot{}, s.decodeErr(file, err)
		}
		if err := fillStrings(rec.Calls, doc.CallList[file]); err != nil {
			return Snapshot{}, s.decodeErr(file, err)
		}
		if err := fillStrings(rec.Funcs, doc.FuncList[file]); err != nil {
			return Snapshot{}, s.decodeErr(file, err)
		}
		for raw, uses := range doc.UseList[file] {
			u, err := unit.Parse(raw)
			if err != nil {
				return Snapshot{}, s.decodeErr(file, err)
			}
			rec.Uses[u] = uses
		}
		rec.Normalize()
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

func (s *JSONStore) decodeErr(file string, err error) error {
	return errors.AddContext(
		errors.Wrap(fmt.Errorf("%s: %w", file, err), errors.CodeStore, "decode index"),
		errors.CtxPath, s.path)
}

func stringTable(in map[unit.Path][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for u, list := range in {
		if len(list) > 0 {
			out[u.String()] = list
		}
	}
	return out
}

func useTable(in map[unit.Path][]parser.Use) map[string][]parser.Use {
	out := make(map[string][]parser.Use, len(in))
	for u, uses := range in {
		if len(uses) == 0 {
			continue
		}
		list := make([]parser.Use, len(uses))
		for i, use := range uses {
			list[i] = use
			if list[i].Only == nil {
				list[i].Only = []string{}
			}
		}
		out[u.String()] = list
	}
	return out
}

func fillStrings(dst map[unit.Path][]string, src map[string][]string) error {
	for raw, list := range src {
		u, err := unit.Parse(raw)
		if err != nil {
			return err
		}
		dst[u] = append([]string(nil), list...)
	}
	return nil
}
