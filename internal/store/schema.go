package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the results database.
const schemaV1 = `
-- One row per run; summary columns are filled in when the run finishes
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    seed INTEGER NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    days INTEGER,
    restarts INTEGER,
    extinct INTEGER,
    total_cases INTEGER,
    incidence REAL,
    tips INTEGER
);

-- Resolved configuration, one row per key
CREATE TABLE IF NOT EXISTS params (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (run_id, key)
);

CREATE TABLE IF NOT EXISTS timeseries (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    day INTEGER NOT NULL,
    date REAL NOT NULL,
    diversity REAL NOT NULL,
    n INTEGER NOT NULL,
    s INTEGER NOT NULL,
    i INTEGER NOT NULL,
    r INTEGER NOT NULL,
    cases INTEGER NOT NULL,
    PRIMARY KEY (run_id, day)
);

CREATE TABLE IF NOT EXISTS infected_samples (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    date REAL NOT NULL,
    host_id INTEGER NOT NULL,
    genome_id INTEGER NOT NULL,
    segment_id INTEGER NOT NULL,
    host_age REAL NOT NULL,
    num_infections INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_infected_run ON infected_samples(run_id);

CREATE TABLE IF NOT EXISTS immunity_samples (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    date REAL NOT NULL,
    host_id INTEGER NOT NULL,
    host_age REAL NOT NULL,
    num_infections INTEGER NOT NULL,
    num_exposures INTEGER NOT NULL,
    alleles TEXT NOT NULL  -- JSON array
);
CREATE INDEX IF NOT EXISTS idx_immunity_run ON immunity_samples(run_id);

-- Finished ancestry tree
CREATE TABLE IF NOT EXISTS tips (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    id INTEGER NOT NULL,
    genome_id INTEGER NOT NULL,
    birth REAL NOT NULL,
    trunk INTEGER NOT NULL,
    tip INTEGER NOT NULL,
    marked INTEGER NOT NULL,
    host_age REAL NOT NULL,
    layout REAL NOT NULL,
    allele INTEGER NOT NULL,
    locus INTEGER NOT NULL,
    PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS branches (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    child_id INTEGER NOT NULL,
    parent_id INTEGER NOT NULL,
    coverage INTEGER NOT NULL,
    PRIMARY KEY (run_id, child_id)
);

CREATE TABLE IF NOT EXISTS selection (
    run_id TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
    side_branch_mutations INTEGER NOT NULL,
    side_branch_opportunity REAL NOT NULL,
    side_branch_rate REAL NOT NULL,
    trunk_mutations INTEGER NOT NULL,
    trunk_opportunity REAL NOT NULL,
    trunk_rate REAL NOT NULL,
    ratio REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS vaccine (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    rank INTEGER NOT NULL,
    tally INTEGER NOT NULL,
    alleles TEXT NOT NULL,  -- JSON array
    PRIMARY KEY (run_id, rank)
);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// attemptTables hold output that is discarded when a run restarts.
var attemptTables = []string{"timeseries", "infected_samples", "immunity_samples"}

// InitSchema initializes the database schema.
// It creates all tables and applies migrations as needed.
// Runs integrity validation before migrations on existing databases.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion < SchemaVersion {
		if err := migrateSchema(ctx, db, currentVersion); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns 0 and an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// migrateSchema applies migrations from currentVersion to SchemaVersion.
func migrateSchema(ctx context.Context, db *sql.DB, currentVersion int) error {
	// Only one version so far.
	_ = currentVersion
	return nil
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA
// foreign_key_check and returns an error if either reports a problem.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid string
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}
	return nil
}

// ResetSchema drops all tables and recreates the schema.
// Only use for testing.
func ResetSchema(ctx context.Context, db *sql.DB) error {
	tables := []string{
		"vaccine",
		"selection",
		"branches",
		"tips",
		"immunity_samples",
		"infected_samples",
		"timeseries",
		"params",
		"runs",
		"schema_version",
	}
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return InitSchema(ctx, db)
}
