package store

import (
	"database/sql"
	"fmt"

	"switchfacts/internal/logging"
)

// Schema versions:
// v1: source_files (path, hash, updated_at) and facts tables
// v2: source_files.fact_count, backfilled from facts
const CurrentSchemaVersion = 2

// Migration adds a column to an existing table. Backfill, if set, runs once
// right after the column is added.
type Migration struct {
	Version  int
	Table    string
	Column   string
	Def      string
	Backfill string
}

var pendingMigrations = []Migration{
	{
		Version:  2,
		Table:    "source_files",
		Column:   "fact_count",
		Def:      "INTEGER NOT NULL DEFAULT 0",
		Backfill: `UPDATE source_files SET fact_count = (SELECT COUNT(*) FROM facts WHERE facts.path = source_files.path)`,
	},
}

// RunMigrations upgrades db to CurrentSchemaVersion. The version is kept in
// the schema_versions table.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create schema_versions: %w", err)
	}

	from := GetSchemaVersion(db)
	if from >= CurrentSchemaVersion {
		logging.StoreDebug("schema at v%d, nothing to migrate", from)
		return nil
	}

	applied := 0
	for _, m := range pendingMigrations {
		if m.Version <= from {
			continue
		}
		if !tableExists(db, m.Table) {
			return fmt.Errorf("migration v%d: table %s missing", m.Version, m.Table)
		}
		if !columnExists(db, m.Table, m.Column) {
			query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
			logging.StoreDebug("executing migration: %s", query)
			if _, err := db.Exec(query); err != nil {
				return fmt.Errorf("migration v%d: %w", m.Version, err)
			}
			if m.Backfill != "" {
				if _, err := db.Exec(m.Backfill); err != nil {
					return fmt.Errorf("migration v%d backfill: %w", m.Version, err)
				}
			}
			applied++
		}
	}

	if _, err := db.Exec("INSERT OR REPLACE INTO schema_versions (version) VALUES (?)", CurrentSchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	logging.Store("schema migrated v%d -> v%d (%d applied)", from, CurrentSchemaVersion, applied)
	return nil
}

// GetSchemaVersion returns the recorded schema version, or infers it from
// the table layout for databases that predate schema_versions.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_versions") {
		var version int
		if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version); err == nil && version > 0 {
			return version
		}
	}
	return inferSchemaVersion(db)
}

func inferSchemaVersion(db *sql.DB) int {
	if !tableExists(db, "source_files") {
		return 0
	}
	if columnExists(db, "source_files", "fact_count") {
		return 2
	}
	return 1
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
		return false
	}
	return count > 0
}
