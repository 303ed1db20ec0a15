package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ftree/internal/core/errors"
	"ftree/internal/engine/parser"
	"ftree/internal/engine/unit"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5

	refInclude = "include"
	refCall    = "call"
	refFunc    = "func"
)

// SQLiteStore keeps the index in a SQLite database. Every Save replaces
// the previous content in one transaction.
type SQLiteStore struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.AddContext(errors.New(errors.CodeValidationError, "store path is a directory"), errors.CtxPath, cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeStore, "create store directory"), errors.CtxPath, dir)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeStore, "open sqlite store"), errors.CtxPath, cleanPath)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeStore, "ping sqlite store"), errors.CtxPath, cleanPath)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeStore, "initialize sqlite schema"), errors.CtxPath, cleanPath)
	}
	return &SQLiteStore{path: cleanPath, db: db}, nil
}

func (s *SQLiteStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := sortRecords(snap.Records)
	err := s.withRetry("save index", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if err := writeSnapshot(tx, snap.Cwd, records); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeStore, "save index"), errors.CtxPath, s.path)
	}
	return nil
}

func writeSnapshot(tx *sql.Tx, cwd string, records []*parser.Record) error {
	for _, table := range []string{"uses", "refs", "units", "files", "meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES ('cwd', ?)`, cwd); err != nil {
		return fmt.Errorf("write cwd: %w", err)
	}

	for _, rec := range records {
		if _, err := tx.Exec(`INSERT INTO files(path) VALUES (?)`, rec.Path); err != nil {
			return fmt.Errorf("insert file %q: %w", rec.Path, err)
		}
		for i, u := range rec.Units {
			if _, err := tx.Exec(`INSERT INTO units(file, position, unit) VALUES (?, ?, ?)`, rec.Path, i, u.String()); err != nil {
				return fmt.Errorf("insert unit %s: %w", u, err)
			}
		}
		for kind, table := range map[string]map[unit.Path][]string{
			refInclude: rec.Includes,
			refCall:    rec.Calls,
			refFunc:    rec.Funcs,
		} {
			for u, names := range table {
				for i, name := range names {
					if _, err := tx.Exec(
						`INSERT INTO refs(file, unit, kind, position, name) VALUES (?, ?, ?, ?, ?)`,
						rec.Path, u.String(), kind, i, name,
					); err != nil {
						return fmt.Errorf("insert %s reference in %s: %w", kind, u, err)
					}
				}
			}
		}
		for u, uses := range rec.Uses {
			for i, use := range uses {
				only, err := json.Marshal(nonNil(use.Only))
				if err != nil {
					return err
				}
				renames, err := json.Marshal(use.Renames)
				if err != nil {
					return err
				}
				if _, err := tx.Exec(
					`INSERT INTO uses(file, unit, position, module, only_json, renames_json) VALUES (?, ?, ?, ?, ?, ?)`,
					rec.Path, u.String(), i, use.Module, string(only), string(renames),
				); err != nil {
					return fmt.Errorf("insert use of %s in %s: %w", use.Module, u, err)
				}
			}
		}
	}
	return nil
}

func (s *SQLiteStore) Load() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	err := s.withRetry("load index", func() error {
		var loadErr error
		snap, loadErr = s.readSnapshot()
		return loadErr
	})
	if err != nil {
		return Snapshot{}, errors.AddContext(errors.Wrap(err, errors.CodeStore, "load index"), errors.CtxPath, s.path)
	}
	return snap, nil
}

func (s *SQLiteStore) readSnapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'cwd'`).Scan(&snap.Cwd)
	if err != nil && err != sql.ErrNoRows {
		return Snapshot{}, fmt.Errorf("read cwd: %w", err)
	}

	byPath := make(map[string]*parser.Record)
	fileRows, err := s.db.Query(`SELECT path FROM files ORDER BY path`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query files: %w", err)
	}
	for fileRows.Next() {
		var path string
		if err := fileRows.Scan(&path); err != nil {
			fileRows.Close()
			return Snapshot{}, fmt.Errorf("scan file row: %w", err)
		}
		rec := parser.NewRecord(path)
		byPath[path] = rec
		snap.Records = append(snap.Records, rec)
	}
	if err := fileRows.Err(); err != nil {
		fileRows.Close()
		return Snapshot{}, fmt.Errorf("iterate file rows: %w", err)
	}
	fileRows.Close()

	if err := scanRows(s.db, `SELECT file, unit FROM units ORDER BY file, position`, func(rows *sql.Rows) error {
		var file, raw string
		if err := rows.Scan(&file, &raw); err != nil {
			return err
		}
		rec, u, err := lookup(byPath, file, raw)
		if err != nil {
			return err
		}
		rec.AddUnit(u)
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("read units: %w", err)
	}

	if err := scanRows(s.db, `SELECT file, unit, kind, name FROM refs ORDER BY file, unit, kind, position`, func(rows *sql.Rows) error {
		var file, raw, kind, name string
		if err := rows.Scan(&file, &raw, &kind, &name); err != nil {
			return err
		}
		rec, u, err := lookup(byPath, file, raw)
		if err != nil {
			return err
		}
		switch kind {
		case refInclude:
			rec.Includes[u] = append(rec.Includes[u], name)
		case refCall:
			rec.Calls[u] = append(rec.Calls[u], name)
		case refFunc:
			rec.Funcs[u] = append(rec.Funcs[u], name)
		default:
			return fmt.Errorf("unknown reference kind %q", kind)
		}
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("read references: %w", err)
	}

	if err := scanRows(s.db, `SELECT file, unit, module, only_json, renames_json FROM uses ORDER BY file, unit, position`, func(rows *sql.Rows) error {
		var file, raw, module, onlyRaw, renamesRaw string
		if err := rows.Scan(&file, &raw, &module, &onlyRaw, &renamesRaw); err != nil {
			return err
		}
		rec, u, err := lookup(byPath, file, raw)
		if err != nil {
			return err
		}
		use := parser.Use{Module: module}
		if err := json.Unmarshal([]byte(onlyRaw), &use.Only); err != nil {
			return fmt.Errorf("decode only list: %w", err)
		}
		if err := json.Unmarshal([]byte(renamesRaw), &use.Renames); err != nil {
			return fmt.Errorf("decode renames: %w", err)
		}
		rec.Uses[u] = append(rec.Uses[u], use)
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("read uses: %w", err)
	}

	for _, rec := range snap.Records {
		rec.Normalize()
	}
	return snap, nil
}

func scanRows(db *sql.DB, query string, fn func(*sql.Rows) error) error {
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func lookup(byPath map[string]*parser.Record, file, raw string) (*parser.Record, unit.Path, error) {
	rec, ok := byPath[file]
	if !ok {
		return nil, unit.Path{}, fmt.Errorf("row references unknown file %q", file)
	}
	u, err := unit.Parse(raw)
	if err != nil {
		return nil, unit.Path{}, err
	}
	return rec, u, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func (s *SQLiteStore) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
