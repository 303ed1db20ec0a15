package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the newest migration this build knows how to apply.
const SchemaVersion = 1

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS files (
  path TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS units (
  file TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  unit TEXT NOT NULL,
  PRIMARY KEY (file, unit)
);
CREATE TABLE IF NOT EXISTS refs (
  file TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
  unit TEXT NOT NULL,
  kind TEXT NOT NULL,
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  PRIMARY KEY (file, unit, kind, position)
);
CREATE TABLE IF NOT EXISTS uses (
  file TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
  unit TEXT NOT NULL,
  position INTEGER NOT NULL,
  module TEXT NOT NULL,
  only_json TEXT NOT NULL DEFAULT '[]',
  renames_json TEXT NOT NULL DEFAULT 'null',
  PRIMARY KEY (file, unit, position)
);
CREATE INDEX IF NOT EXISTS idx_units_unit ON units(unit);
CREATE INDEX IF NOT EXISTS idx_refs_name ON refs(name);
`,
	},
}

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
