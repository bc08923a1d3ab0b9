package simulation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/reassort/internal/ancestry"
	"github.com/nvandessel/reassort/internal/config"
	"github.com/nvandessel/reassort/internal/genome"
	"github.com/nvandessel/reassort/internal/logging"
	"github.com/nvandessel/reassort/internal/models"
	"github.com/nvandessel/reassort/internal/population"
	"github.com/nvandessel/reassort/internal/random"
	"github.com/shirou/gopsutil/v3/mem"
)

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Seed     uint64
	Days     int
	Restarts int

	// Extinct is set when the last infection cleared and restarts were
	// disabled.
	Extinct bool

	TotalCases int

	// Incidence is the yearly incidence in percent of hosts.
	Incidence float64

	N, S, I, R int

	Tips        int
	Compactions int
	Selection   models.SelectionSummary
	Vaccine     []models.VaccineRecord
}

// Summary converts the result into the record handed to recorders.
func (r *Result) Summary() models.RunSummary {
	return models.RunSummary{
		RunID:      r.RunID,
		Seed:       r.Seed,
		Days:       r.Days,
		Restarts:   r.Restarts,
		Extinct:    r.Extinct,
		TotalCases: r.TotalCases,
		Incidence:  r.Incidence,
		Tips:       r.Tips,
		Selection:  r.Selection,
		FinishedAt: time.Now().UTC(),
	}
}

// Runner drives one simulation run from a validated configuration.
type Runner struct {
	cfg      *config.Config
	recorder models.Recorder
	runID    string
	seed     uint64

	logger *slog.Logger
	events *logging.EventLogger
}

// NewRunner creates a runner that writes its outputs to recorder. The seed
// is taken from the configuration, or from the wall clock when unset.
func NewRunner(cfg *config.Config, recorder models.Recorder) *Runner {
	seed := uint64(time.Now().UnixNano())
	if cfg.Simulation.Seed != nil {
		seed = *cfg.Simulation.Seed
	}
	if recorder == nil {
		recorder = models.NewMultiRecorder()
	}
	return &Runner{
		cfg:      cfg,
		recorder: recorder,
		runID:    uuid.NewString(),
		seed:     seed,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the structured logger and event logger for observability.
func (r *Runner) SetLogger(logger *slog.Logger, events *logging.EventLogger) {
	if logger != nil {
		r.logger = logger
	}
	r.events = events
}

// RunID returns the identifier minted for this run.
func (r *Runner) RunID() string { return r.runID }

// Seed returns the seed of the run's random stream.
func (r *Runner) Seed() uint64 { return r.seed }

// attempt is the state of one run attempt. A restart after extinction
// builds a fresh attempt; the random stream carries on.
type attempt struct {
	clock   *models.Clock
	tree    *ancestry.Tree
	factory *genome.Factory
	pop     *population.Population

	totalCases int
}

func (r *Runner) newAttempt(rng *random.Source) *attempt {
	clock := models.NewClock(r.cfg.Simulation.Burnin)
	tree := ancestry.New(clock.Date())
	f := genome.NewFactory(tree, rng, clock, FactoryOptions(r.cfg))
	pop := population.New(PopulationOptions(r.cfg), f, rng, clock)
	pop.SetLogger(r.logger, r.events)
	return &attempt{clock: clock, tree: tree, factory: f, pop: pop}
}

// Run simulates up to the configured end day, restarting on extinction when
// configured, then finalizes the ancestry tree and writes every output.
// Recorder failures abort the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.cfg
	rng := random.New(r.seed)
	res := &Result{RunID: r.runID, Seed: r.seed}

	if err := r.recorder.Begin(ctx, models.RunInfo{
		RunID:     r.runID,
		Seed:      r.seed,
		StartedAt: time.Now().UTC(),
		Params:    cfg.Resolved(),
	}); err != nil {
		return nil, fmt.Errorf("beginning run: %w", err)
	}
	r.logger.Info("run started", "run_id", r.runID, "seed", r.seed, "n", cfg.Demography.N, "end_day", cfg.Simulation.EndDay)
	r.events.Log("run_start", 0, map[string]any{"seed": r.seed})

	var a *attempt
	for {
		a = r.newAttempt(rng)
		restart, err := r.simulate(ctx, a, res)
		if err != nil {
			return nil, err
		}
		if !restart {
			break
		}
		res.Restarts++
		r.logger.Info("extinction, restarting", "day", a.clock.Day, "restarts", res.Restarts)
		r.events.Log("restart", a.clock.Day, map[string]any{"restarts": res.Restarts})
		if err := r.recorder.Reset(ctx); err != nil {
			return nil, fmt.Errorf("resetting outputs: %w", err)
		}
	}

	if err := r.finish(ctx, rng, a, res); err != nil {
		return nil, err
	}
	return res, nil
}

// simulate steps one attempt until the end day or extinction. It reports
// whether the attempt went extinct and should be restarted.
func (r *Runner) simulate(ctx context.Context, a *attempt, res *Result) (bool, error) {
	cfg := r.cfg
	pop := a.pop

	for a.clock.Day < cfg.Simulation.EndDay {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		pop.Step()
		a.clock.Advance()
		day := a.clock.Day

		if err := r.drain(ctx, pop); err != nil {
			return false, err
		}

		if day%cfg.Sampling.TimeseriesStep == 0 {
			row := models.TimeseriesRow{
				Day:       day,
				Date:      a.clock.Date(),
				Diversity: pop.Diversity(),
				N:         pop.N(),
				S:         pop.S(),
				I:         pop.I(),
				R:         pop.R(),
				Cases:     pop.Cases(),
			}
			if day > cfg.Simulation.Burnin {
				if err := r.recorder.Timeseries(ctx, row); err != nil {
					return false, fmt.Errorf("writing timeseries: %w", err)
				}
				a.totalCases += row.Cases
			}
			r.logger.Log(ctx, logging.LevelTrace, "timeseries", "day", day, "s", row.S, "i", row.I, "r", row.R, "cases", row.Cases)
			pop.ResetCases()
		}

		if r.vaccineDay(day) {
			c := pop.SelectVaccine()
			if c != nil {
				r.logger.Info("vaccine composition selected", "day", day, "components", len(c.Records))
				r.events.Log("vaccine_composition", day, map[string]any{"components": c.Records})
			}
		}

		if n := cfg.Simulation.StreamlineInterval; n > 0 && day%n == 0 {
			r.compact(a)
			res.Compactions++
		}

		if pop.I() == 0 {
			if cfg.Simulation.RepeatSim {
				return true, nil
			}
			res.Extinct = true
			r.logger.Info("extinction", "day", day)
			r.events.Log("extinction", day, nil)
			break
		}
	}
	return false, nil
}

// vaccineDay reports whether the composition is selected on day.
func (r *Runner) vaccineDay(day int) bool {
	v := r.cfg.Vaccine
	if !r.cfg.VaccinationEnabled() || day < v.StartDay {
		return false
	}
	if day == v.StartDay {
		return true
	}
	return v.UpdateInterval > 0 && (day-v.StartDay)%v.UpdateInterval == 0
}

func (r *Runner) drain(ctx context.Context, pop *population.Population) error {
	s := pop.Drain()
	if len(s.Infected) > 0 {
		if err := r.recorder.InfectedSamples(ctx, s.Infected); err != nil {
			return fmt.Errorf("writing infected samples: %w", err)
		}
	}
	if len(s.Immunity) > 0 {
		if err := r.recorder.ImmunitySamples(ctx, s.Immunity); err != nil {
			return fmt.Errorf("writing immunity samples: %w", err)
		}
	}
	return nil
}

// compact streamlines the ancestry graph against the live infections.
func (r *Runner) compact(a *attempt) {
	start := time.Now()
	stats := a.tree.Compact(a.pop.Live(), a.pop.Held())

	attrs := []any{
		"day", a.clock.Day,
		"before", stats.Before,
		"after", stats.After,
		"freed", stats.Freed,
		"spliced", stats.Spliced,
		"tips", len(a.tree.Tips()),
		"elapsed", time.Since(start),
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	attrs = append(attrs, "heap_bytes", ms.HeapAlloc)
	if vm, err := mem.VirtualMemory(); err == nil {
		attrs = append(attrs, "mem_used_pct", vm.UsedPercent)
	}
	r.logger.Debug("ancestry compacted", attrs...)
	r.events.Log("compaction", a.clock.Day, map[string]any{
		"before":  stats.Before,
		"after":   stats.After,
		"freed":   stats.Freed,
		"spliced": stats.Spliced,
	})
}

// finish finalizes the tree and writes the end-of-run outputs.
func (r *Runner) finish(ctx context.Context, rng *random.Source, a *attempt, res *Result) error {
	cfg := r.cfg
	pop := a.pop

	group := 1
	if cfg.Sampling.SampleWholeGenomes {
		group = cfg.Segments.Count
	}
	now := a.clock.Date()
	a.tree.Finalize(rng, pop.Circulating(), ancestry.FinalizeOptions{
		Group:        group,
		Keep:         cfg.Sampling.TreeProportion,
		Now:          now,
		MarkInterval: cfg.Sampling.MarkTipsInterval,
	})

	tips := a.tree.TipRecords()
	if err := r.recorder.Tips(ctx, tips); err != nil {
		return fmt.Errorf("writing tips: %w", err)
	}
	if err := r.recorder.Branches(ctx, a.tree.BranchRecords()); err != nil {
		return fmt.Errorf("writing branches: %w", err)
	}
	res.Selection = a.tree.Selection(now, cfg.Sampling.YearsToTrunk)
	if err := r.recorder.Selection(ctx, res.Selection); err != nil {
		return fmt.Errorf("writing selection: %w", err)
	}
	if c := pop.Composition(); c != nil {
		res.Vaccine = c.Records
	}
	if err := r.recorder.Vaccine(ctx, res.Vaccine); err != nil {
		return fmt.Errorf("writing vaccine: %w", err)
	}

	res.Days = a.clock.Day
	res.TotalCases = a.totalCases
	res.N, res.S, res.I, res.R = pop.N(), pop.S(), pop.I(), pop.R()
	res.Tips = len(tips)
	res.Incidence = Incidence(a.totalCases, cfg.Simulation.EndDay-cfg.Simulation.Burnin, pop.N())

	if err := r.recorder.Finish(ctx, res.Summary()); err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	r.logger.Info("run finished",
		"days", res.Days,
		"restarts", res.Restarts,
		"cases", res.TotalCases,
		"incidence", res.Incidence,
		"tips", res.Tips,
		"selection_ratio", res.Selection.Ratio)
	r.events.Log("run_finish", res.Days, map[string]any{
		"restarts":  res.Restarts,
		"cases":     res.TotalCases,
		"incidence": res.Incidence,
	})
	return nil
}

// Incidence is the yearly incidence in percent: cases per host per year
// over the recorded days.
func Incidence(cases, days, n int) float64 {
	if days <= 0 || n <= 0 {
		return 0
	}
	return float64(cases) * models.DaysPerYear / float64(days) / float64(n) * 100
}
