package store

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_FreshDB(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("get schema version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"runs", "params", "timeseries", "infected_samples",
		"immunity_samples", "tips", "branches", "selection", "vaccine"} {
		if cols := getColumns(t, db, table); len(cols) == 0 {
			t.Errorf("table %s was not created", table)
		}
	}

	cols := getColumns(t, db, "immunity_samples")
	if !cols["alleles"] {
		t.Error("immunity_samples is missing the alleles column")
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := InitSchema(ctx, db); err != nil {
			t.Fatalf("InitSchema call %d failed: %v", i+1, err)
		}
	}

	var rows int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&rows); err != nil {
		t.Fatalf("count schema_version: %v", err)
	}
	if rows != 1 {
		t.Errorf("schema_version rows = %d, want 1", rows)
	}
}

func TestValidateIntegrity_ForeignKeyViolation(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	if err := ValidateIntegrity(ctx, db); err != nil {
		t.Fatalf("fresh database should validate: %v", err)
	}

	// Insert an orphaned param with enforcement off.
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatalf("disable foreign keys: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO params (run_id, key, value) VALUES ('missing', 'n', '10')`); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}

	if err := ValidateIntegrity(ctx, db); err == nil {
		t.Error("expected foreign_key_check failure")
	}
}

func TestResetSchema(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO runs (id, seed, started_at) VALUES ('r1', 1, '2024-01-01')`); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	if err := ResetSchema(ctx, db); err != nil {
		t.Fatalf("ResetSchema failed: %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if n != 0 {
		t.Errorf("runs after reset = %d, want 0", n)
	}
}

func getColumns(t *testing.T, db *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("PRAGMA table_info(%s): %v", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("scan: %v", err)
		}
		cols[name] = true
	}
	return cols
}
