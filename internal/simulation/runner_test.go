package simulation

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/nvandessel/reassort/internal/config"
	"github.com/nvandessel/reassort/internal/store"
)

func smallScenario(name string, seed uint64, extra ...string) Scenario {
	return Scenario{
		Name: name,
		Seed: seed,
		Args: append(slices.Clone(SmallScenarioArgs), extra...),
	}
}

func TestRun_Small(t *testing.T) {
	sr := RunScenario(t, smallScenario("small", 7))
	res, rec := sr.Result, sr.Recorder

	if res.Extinct {
		t.Fatal("keep-alive run should not go extinct")
	}
	if res.Restarts != 0 {
		t.Errorf("Restarts = %d, want 0", res.Restarts)
	}
	if res.Days != 365 {
		t.Errorf("Days = %d, want 365", res.Days)
	}

	rows := rec.TimeseriesRows()
	if len(rows) != 365/7 {
		t.Errorf("timeseries rows = %d, want %d", len(rows), 365/7)
	}
	AssertPopulationConserved(t, rows, 1000)
	AssertTimeseriesCadence(t, rows, 7, 0)

	total := 0
	for _, r := range rows {
		total += r.Cases
	}
	if total != res.TotalCases {
		t.Errorf("sum of recorded cases = %d, TotalCases = %d", total, res.TotalCases)
	}
	if want := Incidence(res.TotalCases, 365, res.N); math.Abs(res.Incidence-want) > 1e-9 {
		t.Errorf("Incidence = %v, want %v", res.Incidence, want)
	}

	if res.Compactions != 3 {
		t.Errorf("Compactions = %d, want 3", res.Compactions)
	}

	tips := rec.TipRecords()
	if res.Tips != len(tips) {
		t.Errorf("Result.Tips = %d, recorded %d", res.Tips, len(tips))
	}
	if len(tips) == 0 {
		t.Error("expected sampled tips")
	}
	AssertTreeConnected(t, rec.BranchRecords())

	if rec.SelectionSummary() == nil {
		t.Error("selection summary not recorded")
	}
	sum := rec.Summary()
	if sum == nil {
		t.Fatal("run summary not recorded")
	}
	if sum.RunID != res.RunID || sum.Seed != 7 {
		t.Errorf("summary identity = (%s, %d), want (%s, 7)", sum.RunID, sum.Seed, res.RunID)
	}
	if got := rec.Run().Params; len(got) == 0 {
		t.Error("resolved parameters not recorded")
	}
}

func TestRun_Deterministic(t *testing.T) {
	a := RunScenario(t, smallScenario("replay-a", 42))
	b := RunScenario(t, smallScenario("replay-b", 42))

	AssertSameTimeseries(t, b.Recorder.TimeseriesRows(), a.Recorder.TimeseriesRows())
	if a.Result.TotalCases != b.Result.TotalCases {
		t.Errorf("TotalCases differ: %d vs %d", a.Result.TotalCases, b.Result.TotalCases)
	}
	if a.Result.Tips != b.Result.Tips {
		t.Errorf("Tips differ: %d vs %d", a.Result.Tips, b.Result.Tips)
	}
	if a.Result.RunID == b.Result.RunID {
		t.Error("each run should mint its own run ID")
	}
	if len(a.Recorder.Infected()) != len(b.Recorder.Infected()) {
		t.Errorf("infected samples differ: %d vs %d", len(a.Recorder.Infected()), len(b.Recorder.Infected()))
	}
}

func TestRun_Burnin(t *testing.T) {
	sr := RunScenario(t, smallScenario("burnin", 3, "burnin=28", "endDay=140"))
	rows := sr.Recorder.TimeseriesRows()

	AssertTimeseriesCadence(t, rows, 7, 28)
	if want := (140 - 28) / 7; len(rows) != want {
		t.Errorf("timeseries rows = %d, want %d", len(rows), want)
	}
	for _, s := range sr.Recorder.Infected() {
		if s.Date < 0 {
			t.Errorf("infected sample dated %v, inside burn-in", s.Date)
		}
	}
}

func TestRun_ExtinctWithoutRestart(t *testing.T) {
	sr := RunScenario(t, smallScenario("extinct", 11,
		"beta=0",
		"nu=1",
		"keepAlive=false",
		"keepAliveDuringBurnin=false",
		"repeatSim=false",
	))
	res := sr.Result

	if !res.Extinct {
		t.Fatal("expected extinction")
	}
	if res.Restarts != 0 {
		t.Errorf("Restarts = %d, want 0", res.Restarts)
	}
	if res.Days >= 365 {
		t.Errorf("Days = %d, expected the run to stop early", res.Days)
	}
	if res.I != 0 {
		t.Errorf("I = %d, want 0", res.I)
	}
	if s := sr.Recorder.Summary(); s == nil || !s.Extinct {
		t.Errorf("summary = %+v, want extinct", s)
	}
}

func TestRun_RestartsOnExtinction(t *testing.T) {
	restarts := 0
	for seed := uint64(1); seed <= 10; seed++ {
		sr := RunScenario(t, smallScenario("restart", seed,
			"initialI=1",
			"beta=0.3",
			"nu=0.2",
			"endDay=60",
			"keepAlive=false",
			"keepAliveDuringBurnin=false",
			"repeatSim=true",
		))
		res := sr.Result
		if res.Extinct {
			t.Errorf("seed %d: restarting run reported extinction", seed)
		}
		if res.Days != 60 {
			t.Errorf("seed %d: Days = %d, want 60", seed, res.Days)
		}
		if got := sr.Recorder.Resets(); got != res.Restarts {
			t.Errorf("seed %d: recorder resets = %d, restarts = %d", seed, got, res.Restarts)
		}
		restarts += res.Restarts
	}
	if restarts == 0 {
		t.Error("expected at least one extinction restart across seeds")
	}
}

func TestRun_Vaccine(t *testing.T) {
	sr := RunScenario(t, smallScenario("vaccine", 5,
		"vaccineMakeup=prevalent_strains",
		"vaccinationProgramStartTime=100",
		"vaccineValency=1",
		"vaccinationAges=30",
	))
	res := sr.Result

	if len(res.Vaccine) != 1 {
		t.Fatalf("vaccine components = %d, want 1", len(res.Vaccine))
	}
	if res.Vaccine[0].Tally <= 0 {
		t.Errorf("top component tally = %d, want > 0", res.Vaccine[0].Tally)
	}
	if got := sr.Recorder.VaccineRecords(); len(got) != 1 {
		t.Errorf("recorded vaccine components = %d, want 1", len(got))
	}
}

func TestRun_NoVaccine(t *testing.T) {
	sr := RunScenario(t, smallScenario("no-vaccine", 5))
	if len(sr.Result.Vaccine) != 0 {
		t.Errorf("vaccine components = %d, want 0", len(sr.Result.Vaccine))
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg, err := smallScenario("cancel", 1).Config()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewRunner(cfg, store.NewMemoryRecorder()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunner_VaccineDay(t *testing.T) {
	cfg := config.Default()
	cfg.Vaccine.Makeup = "prevalent_segments"
	cfg.Vaccine.StartDay = 100
	cfg.Vaccine.UpdateInterval = 50
	r := NewRunner(cfg, nil)

	tests := []struct {
		day  int
		want bool
	}{
		{99, false},
		{100, true},
		{125, false},
		{150, true},
		{200, true},
		{201, false},
	}
	for _, tt := range tests {
		if got := r.vaccineDay(tt.day); got != tt.want {
			t.Errorf("vaccineDay(%d) = %v, want %v", tt.day, got, tt.want)
		}
	}

	cfg.Vaccine.UpdateInterval = 0
	if r.vaccineDay(150) {
		t.Error("vaccineDay(150) with no update interval should be false")
	}
	cfg.Vaccine.Makeup = "none"
	if r.vaccineDay(100) {
		t.Error("vaccineDay(100) without a program should be false")
	}
}

func TestNewRunner_Seed(t *testing.T) {
	cfg := config.Default()
	seed := uint64(1234)
	cfg.Simulation.Seed = &seed

	r := NewRunner(cfg, nil)
	if r.Seed() != 1234 {
		t.Errorf("Seed() = %d, want 1234", r.Seed())
	}
	if r.RunID() == "" {
		t.Error("RunID() is empty")
	}
}

func TestIncidence(t *testing.T) {
	tests := []struct {
		name  string
		cases int
		days  int
		n     int
		want  float64
	}{
		{"one year", 100, 365, 1000, 10},
		{"two years", 100, 730, 1000, 5},
		{"no days", 100, 0, 1000, 0},
		{"no hosts", 100, 365, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Incidence(tt.cases, tt.days, tt.n); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Incidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPopulationOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Disruptions = []config.DisruptionConfig{{Day: 10, Type: "mass_extinction", Magnitude: 0.5}}

	opts := PopulationOptions(cfg)
	if opts.N != cfg.Demography.N || opts.Beta != cfg.Epidemiology.Beta || opts.AgeShape != cfg.Demography.AgeShape {
		t.Errorf("population options not mapped: %+v", opts)
	}
	if len(opts.Disruptions) != 1 || opts.Disruptions[0].Day != 10 {
		t.Errorf("disruptions = %+v", opts.Disruptions)
	}
	if opts.Immune.Params.ImmunogenicLoci != cfg.Segments.Count {
		t.Errorf("immunogenic loci = %d, want %d", opts.Immune.Params.ImmunogenicLoci, cfg.Segments.Count)
	}

	f := FactoryOptions(cfg)
	if f.Loci != cfg.Segments.Count || len(f.InitialAlleles) != cfg.Segments.Count {
		t.Errorf("factory options = %+v", f)
	}
}
