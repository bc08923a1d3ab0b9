package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nvandessel/reassort/internal/models"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeseriesBatch is the number of timeseries rows buffered before they are
// written in one transaction.
const timeseriesBatch = 256

// SQLiteRecorder implements models.Recorder on a SQLite results database.
// Every run is a row in runs; all other tables are keyed by run id, so one
// database can hold many runs.
type SQLiteRecorder struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	runID  string
	series []models.TimeseriesRow
}

// NewSQLiteRecorder opens (or creates) the results database at path.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRecorder{db: db, path: path}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer
	return db, nil
}

// Path returns the database file path.
func (s *SQLiteRecorder) Path() string { return s.path }

// Begin implements models.Recorder.
func (s *SQLiteRecorder) Begin(ctx context.Context, run models.RunInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, seed, started_at) VALUES (?, ?, ?)`,
			run.RunID, int64(run.Seed), run.StartedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO params (run_id, key, value) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare params insert: %w", err)
		}
		defer stmt.Close()
		for _, p := range run.Params {
			if _, err := stmt.ExecContext(ctx, run.RunID, p.Key, p.Value); err != nil {
				return fmt.Errorf("failed to insert param %s: %w", p.Key, err)
			}
		}
		s.runID = run.RunID
		return nil
	})
}

// Reset implements models.Recorder. It deletes the run's timeseries and
// samples.
func (s *SQLiteRecorder) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = s.series[:0]
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range attemptTables {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_id = ?`, table), s.runID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Timeseries implements models.Recorder. Rows are buffered and written in
// batches.
func (s *SQLiteRecorder) Timeseries(ctx context.Context, row models.TimeseriesRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.series = append(s.series, row)
	if len(s.series) < timeseriesBatch {
		return nil
	}
	return s.flushLocked(ctx)
}

func (s *SQLiteRecorder) flushLocked(ctx context.Context) error {
	if len(s.series) == 0 {
		return nil
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO timeseries (run_id, day, date, diversity, n, s, i, r, cases) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare timeseries insert: %w", err)
		}
		defer stmt.Close()
		for _, row := range s.series {
			if _, err := stmt.ExecContext(ctx, s.runID, row.Day, row.Date, row.Diversity,
				row.N, row.S, row.I, row.R, row.Cases); err != nil {
				return fmt.Errorf("failed to insert timeseries day %d: %w", row.Day, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.series = s.series[:0]
	return nil
}

// InfectedSamples implements models.Recorder.
func (s *SQLiteRecorder) InfectedSamples(ctx context.Context, samples []models.InfectedSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO infected_samples (run_id, date, host_id, genome_id, segment_id, host_age, num_infections) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare infected insert: %w", err)
		}
		defer stmt.Close()
		for _, x := range samples {
			if _, err := stmt.ExecContext(ctx, s.runID, x.Date, x.HostID, x.GenomeID,
				x.SegmentID, x.HostAge, x.NumInfections); err != nil {
				return fmt.Errorf("failed to insert infected sample: %w", err)
			}
		}
		return nil
	})
}

// ImmunitySamples implements models.Recorder.
func (s *SQLiteRecorder) ImmunitySamples(ctx context.Context, samples []models.ImmunitySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO immunity_samples (run_id, date, host_id, host_age, num_infections, num_exposures, alleles) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare immunity insert: %w", err)
		}
		defer stmt.Close()
		for _, x := range samples {
			alleles, err := marshalAlleles(x.Alleles)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, s.runID, x.Date, x.HostID, x.HostAge,
				x.NumInfections, x.NumExposures, alleles); err != nil {
				return fmt.Errorf("failed to insert immunity sample: %w", err)
			}
		}
		return nil
	})
}

// Tips implements models.Recorder.
func (s *SQLiteRecorder) Tips(ctx context.Context, tips []models.TipRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO tips (run_id, id, genome_id, birth, trunk, tip, marked, host_age, layout, allele, locus) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare tips insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range tips {
			if _, err := stmt.ExecContext(ctx, s.runID, t.ID, t.GenomeID, t.Birth,
				boolToInt(t.Trunk), boolToInt(t.Tip), boolToInt(t.Marked),
				t.HostAge, t.Layout, t.Allele, t.Locus); err != nil {
				return fmt.Errorf("failed to insert tip %d: %w", t.ID, err)
			}
		}
		return nil
	})
}

// Branches implements models.Recorder.
func (s *SQLiteRecorder) Branches(ctx context.Context, branches []models.BranchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO branches (run_id, child_id, parent_id, coverage) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare branches insert: %w", err)
		}
		defer stmt.Close()
		for _, b := range branches {
			if _, err := stmt.ExecContext(ctx, s.runID, b.Child.ID, b.Parent.ID, b.Coverage); err != nil {
				return fmt.Errorf("failed to insert branch %d: %w", b.Child.ID, err)
			}
		}
		return nil
	})
}

// Selection implements models.Recorder.
func (s *SQLiteRecorder) Selection(ctx context.Context, x models.SelectionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO selection (run_id, side_branch_mutations, side_branch_opportunity,
			side_branch_rate, trunk_mutations, trunk_opportunity, trunk_rate, ratio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, x.SideBranchMutations, x.SideBranchOpportunity, x.SideBranchRate,
		x.TrunkMutations, x.TrunkOpportunity, x.TrunkRate, x.Ratio)
	if err != nil {
		return fmt.Errorf("failed to insert selection: %w", err)
	}
	return nil
}

// Vaccine implements models.Recorder.
func (s *SQLiteRecorder) Vaccine(ctx context.Context, composition []models.VaccineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, v := range composition {
			alleles, err := marshalAlleles(v.Alleles)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vaccine (run_id, rank, tally, alleles) VALUES (?, ?, ?, ?)`,
				s.runID, v.Rank, v.Tally, alleles); err != nil {
				return fmt.Errorf("failed to insert vaccine component %d: %w", v.Rank, err)
			}
		}
		return nil
	})
}

// Finish implements models.Recorder. It flushes buffered rows and stores
// the run summary.
func (s *SQLiteRecorder) Finish(ctx context.Context, summary models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, days = ?, restarts = ?, extinct = ?,
			total_cases = ?, incidence = ?, tips = ?
		WHERE id = ?`,
		summary.FinishedAt.Format(time.RFC3339Nano), summary.Days, summary.Restarts,
		boolToInt(summary.Extinct), summary.TotalCases, summary.Incidence, summary.Tips,
		s.runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// Close flushes buffered rows and closes the database connection.
func (s *SQLiteRecorder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	var errs []error
	if s.runID != "" {
		errs = append(errs, s.flushLocked(context.Background()))
	}
	errs = append(errs, s.db.Close())
	s.db = nil
	return errors.Join(errs...)
}

func (s *SQLiteRecorder) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func marshalAlleles(alleles []int64) (string, error) {
	if alleles == nil {
		alleles = []int64{}
	}
	data, err := json.Marshal(alleles)
	if err != nil {
		return "", fmt.Errorf("failed to marshal alleles: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
