package simulation

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

var update = flag.Bool("update", false, "rewrite golden trajectories in testdata/")

// trajectory renders the recorded timeseries, the finished tree's tips and
// the run totals as text.
func trajectory(sr ScenarioResult) []byte {
	var b bytes.Buffer
	for _, r := range sr.Recorder.TimeseriesRows() {
		fmt.Fprintf(&b, "%d\t%.6f\t%d\t%d\t%d\t%d\t%d\t%.6f\n",
			r.Day, r.Date, r.N, r.S, r.I, r.R, r.Cases, r.Diversity)
	}
	for _, tip := range sr.Recorder.TipRecords() {
		fmt.Fprintf(&b, "tip\t%d\t%d\t%.6f\t%d\t%d\t%t\t%t\t%t\n",
			tip.ID, tip.GenomeID, tip.Birth, tip.Locus, tip.Allele, tip.Trunk, tip.Tip, tip.Marked)
	}
	res := sr.Result
	fmt.Fprintf(&b, "cases=%d tips=%d compactions=%d restarts=%d\n",
		res.TotalCases, res.Tips, res.Compactions, res.Restarts)
	return b.Bytes()
}

// goldenScenario is a single-locus outbreak without mutation or
// reassortment, sampled every day.
var goldenScenario = Scenario{
	Name: "golden",
	Seed: 42,
	Args: []string{
		"N=1000",
		"initialI=1",
		"initialPrR=0",
		"beta=3.5",
		"nu=1.0",
		"nSegments=1",
		"mu=0",
		"rho=0",
		"burnin=0",
		"endDay=200",
		"printStep=1",
		"database=",
		"tables=false",
	},
}

// TestGolden_Replay runs the golden scenario twice from scratch and requires
// byte-identical incidence and tip output.
func TestGolden_Replay(t *testing.T) {
	first := trajectory(RunScenario(t, goldenScenario))
	second := trajectory(RunScenario(t, goldenScenario))

	if len(first) == 0 {
		t.Fatal("golden scenario produced no output")
	}
	if !bytes.Equal(first, second) {
		t.Errorf("same seed and configuration gave different output\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

// TestGolden_Trajectory pins the day-by-day trajectory for a fixed seed
// against testdata/, so changes to the random stream or event ordering
// across versions show up here.
// Refresh with: go test ./internal/simulation -run Golden -update
func TestGolden_Trajectory(t *testing.T) {
	path := filepath.Join("testdata", "outbreak_seed42.golden")
	got := trajectory(RunScenario(t, goldenScenario))

	if *update {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, got, 0644); err != nil {
			t.Fatalf("failed to write golden file: %v", err)
		}
		return
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Skipf("no golden file at %s; run with -update to create it", path)
	}
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("trajectory differs from %s\ngot:\n%s\nwant:\n%s", path, got, want)
	}
}
