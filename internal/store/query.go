package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nvandessel/reassort/internal/models"
)

// ErrNoRuns is returned when the results database holds no finished run.
var ErrNoRuns = errors.New("no finished runs")

// RunReport is a finished run read back from the results database.
type RunReport struct {
	Summary    models.RunSummary      `json:"summary"`
	StartedAt  time.Time              `json:"started_at"`
	Params     []models.Param         `json:"params"`
	Timeseries []models.TimeseriesRow `json:"timeseries,omitempty"`
	Vaccine    []models.VaccineRecord `json:"vaccine,omitempty"`
}

// Reader queries a results database written by SQLiteRecorder.
type Reader struct {
	db *sql.DB
}

// OpenReader opens an existing results database for queries.
func OpenReader(ctx context.Context, path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := getSchemaVersion(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("not a results database: %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

// RunIDs lists finished runs, newest first.
func (r *Reader) RunIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE finished_at IS NOT NULL ORDER BY finished_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Latest reads the most recently finished run.
func (r *Reader) Latest(ctx context.Context, timeseries bool) (*RunReport, error) {
	ids, err := r.RunIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoRuns
	}
	return r.Run(ctx, ids[0], timeseries)
}

// Run reads one finished run. The timeseries is included only when asked
// for.
func (r *Reader) Run(ctx context.Context, runID string, timeseries bool) (*RunReport, error) {
	rep := &RunReport{}
	s := &rep.Summary

	var seed int64
	var started, finished string
	var extinct int
	err := r.db.QueryRowContext(ctx, `
		SELECT id, seed, started_at, finished_at, days, restarts, extinct, total_cases, incidence, tips
		FROM runs WHERE id = ? AND finished_at IS NOT NULL`, runID).
		Scan(&s.RunID, &seed, &started, &finished, &s.Days, &s.Restarts, &extinct,
			&s.TotalCases, &s.Incidence, &s.Tips)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	s.Seed = uint64(seed)
	s.Extinct = extinct != 0
	rep.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	s.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)

	err = r.db.QueryRowContext(ctx, `
		SELECT side_branch_mutations, side_branch_opportunity, side_branch_rate,
			trunk_mutations, trunk_opportunity, trunk_rate, ratio
		FROM selection WHERE run_id = ?`, runID).
		Scan(&s.Selection.SideBranchMutations, &s.Selection.SideBranchOpportunity,
			&s.Selection.SideBranchRate, &s.Selection.TrunkMutations,
			&s.Selection.TrunkOpportunity, &s.Selection.TrunkRate, &s.Selection.Ratio)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query selection: %w", err)
	}

	if rep.Params, err = r.params(ctx, runID); err != nil {
		return nil, err
	}
	if rep.Vaccine, err = r.vaccine(ctx, runID); err != nil {
		return nil, err
	}
	if timeseries {
		if rep.Timeseries, err = r.Timeseries(ctx, runID); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

func (r *Reader) params(ctx context.Context, runID string) ([]models.Param, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value FROM params WHERE run_id = ? ORDER BY key`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query params: %w", err)
	}
	defer rows.Close()

	var params []models.Param
	for rows.Next() {
		var p models.Param
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan param: %w", err)
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

func (r *Reader) vaccine(ctx context.Context, runID string) ([]models.VaccineRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rank, tally, alleles FROM vaccine WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vaccine: %w", err)
	}
	defer rows.Close()

	var records []models.VaccineRecord
	for rows.Next() {
		var v models.VaccineRecord
		var alleles string
		if err := rows.Scan(&v.Rank, &v.Tally, &alleles); err != nil {
			return nil, fmt.Errorf("failed to scan vaccine: %w", err)
		}
		if err := json.Unmarshal([]byte(alleles), &v.Alleles); err != nil {
			return nil, fmt.Errorf("failed to parse vaccine alleles: %w", err)
		}
		records = append(records, v)
	}
	return records, rows.Err()
}

// Timeseries reads a run's timeseries rows ordered by day.
func (r *Reader) Timeseries(ctx context.Context, runID string) ([]models.TimeseriesRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day, date, diversity, n, s, i, r, cases
		FROM timeseries WHERE run_id = ? ORDER BY day`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeseries: %w", err)
	}
	defer rows.Close()

	var series []models.TimeseriesRow
	for rows.Next() {
		var row models.TimeseriesRow
		if err := rows.Scan(&row.Day, &row.Date, &row.Diversity, &row.N,
			&row.S, &row.I, &row.R, &row.Cases); err != nil {
			return nil, fmt.Errorf("failed to scan timeseries: %w", err)
		}
		series = append(series, row)
	}
	return series, rows.Err()
}

// CountRows returns the number of rows a run has in table. It accepts only
// the tables of the results schema.
func (r *Reader) CountRows(ctx context.Context, table, runID string) (int, error) {
	if !isResultTable(table) {
		return 0, fmt.Errorf("unknown table: %s", table)
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE run_id = ?`, table), runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func isResultTable(table string) bool {
	switch table {
	case "params", "timeseries", "infected_samples", "immunity_samples",
		"tips", "branches", "selection", "vaccine":
		return true
	}
	return false
}

// Branches reads a run's finished ancestry tree, each branch joined with
// its child and parent tip rows, ordered by child birth.
func (r *Reader) Branches(ctx context.Context, runID string) ([]models.BranchRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.coverage,
			c.id, c.genome_id, c.birth, c.trunk, c.tip, c.marked, c.host_age, c.layout, c.allele, c.locus,
			p.id, p.genome_id, p.birth, p.trunk, p.tip, p.marked, p.host_age, p.layout, p.allele, p.locus
		FROM branches b
		JOIN tips c ON c.run_id = b.run_id AND c.id = b.child_id
		JOIN tips p ON p.run_id = b.run_id AND p.id = b.parent_id
		WHERE b.run_id = ?
		ORDER BY c.birth, c.id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query branches: %w", err)
	}
	defer rows.Close()

	var branches []models.BranchRecord
	for rows.Next() {
		var b models.BranchRecord
		c, p := &b.Child, &b.Parent
		if err := rows.Scan(&b.Coverage,
			&c.ID, &c.GenomeID, &c.Birth, &c.Trunk, &c.Tip, &c.Marked, &c.HostAge, &c.Layout, &c.Allele, &c.Locus,
			&p.ID, &p.GenomeID, &p.Birth, &p.Trunk, &p.Tip, &p.Marked, &p.HostAge, &p.Layout, &p.Allele, &p.Locus,
		); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}
