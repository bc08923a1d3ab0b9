package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/reassort/internal/config"
	"github.com/nvandessel/reassort/internal/store"
)

// Scenario defines a complete, reproducible simulation experiment as a set
// of key=value overrides on top of the defaults.
type Scenario struct {
	Name string
	Seed uint64

	// Args are applied in order, exactly like command-line arguments.
	Args []string

	// Configure, when non-nil, is called on the parsed configuration before
	// validation. Use it for settings without a key=value form, such as
	// disruptions.
	Configure func(cfg *config.Config)
}

// SmallScenarioArgs is a small, fast parameter set: a thousand hosts, no
// burn-in and a one-year horizon.
var SmallScenarioArgs = []string{
	"N=1000",
	"initialI=5",
	"initialPrR=0",
	"beta=0.5",
	"nu=0.2",
	"burnin=0",
	"endDay=365",
	"printStep=7",
	"streamlineInterval=100",
	"tipSamplingRate=0.001",
	"treeProportion=1",
	"diversitySamplingCount=10",
	"database=",
	"tables=false",
}

// Config resolves the scenario into a validated configuration.
func (s Scenario) Config() (*config.Config, error) {
	cfg := config.Default()
	if _, err := cfg.ApplyArgs(s.Args); err != nil {
		return nil, err
	}
	seed := s.Seed
	cfg.Simulation.Seed = &seed
	if s.Configure != nil {
		s.Configure(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ScenarioResult captures a finished scenario run and everything it
// recorded.
type ScenarioResult struct {
	Config   *config.Config
	Result   *Result
	Recorder *store.MemoryRecorder
}

// RunScenario runs s to completion against an in-memory recorder, failing
// the test on any configuration or run error.
func RunScenario(t testing.TB, s Scenario) ScenarioResult {
	t.Helper()
	cfg, err := s.Config()
	if err != nil {
		t.Fatalf("scenario %q: config: %v", s.Name, err)
	}
	rec := store.NewMemoryRecorder()
	res, err := NewRunner(cfg, rec).Run(context.Background())
	if err != nil {
		t.Fatalf("scenario %q: run: %v", s.Name, err)
	}
	return ScenarioResult{Config: cfg, Result: res, Recorder: rec}
}
