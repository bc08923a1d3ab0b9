package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/reassort/internal/config"
	"github.com/nvandessel/reassort/internal/report"
	"gopkg.in/yaml.v3"
)

// isolateEnv clears the REASSORT_* overrides so the host environment cannot
// change what a command resolves.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REASSORT_SEED", "")
	t.Setenv("REASSORT_LOG_LEVEL", "")
	t.Setenv("REASSORT_OUT_DIR", "")
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func tinyRunArgs(dir string) []string {
	return []string{
		"run",
		"N=500",
		"initialI=5",
		"initialPrR=0",
		"beta=0.5",
		"nu=0.2",
		"burnin=0",
		"endDay=60",
		"printStep=7",
		"streamlineInterval=30",
		"tipSamplingRate=0.01",
		"seed=7",
		"outDir=" + dir,
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	rootCmd := newRootCmd()
	want := []string{"version", "run", "params", "stats"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("missing %q subcommand", name)
		}
	}
	for _, flag := range []string{"json", "config", "log-level"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing --%s flag", flag)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "reassort version "+version) {
		t.Errorf("version output = %q", out)
	}

	out, err = execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json failed: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("version --json is not JSON: %v", err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}
}

func TestParamsCmd(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "params", "beta=0.75")
	if err != nil {
		t.Fatalf("params failed: %v", err)
	}
	if !strings.Contains(out, "epidemiology.beta") {
		t.Error("params output missing epidemiology.beta")
	}
	if !strings.Contains(out, "0.75") {
		t.Error("params output does not reflect beta=0.75")
	}
	lines := strings.Count(out, "\n")
	if lines != len(config.Params())+1 {
		t.Errorf("params printed %d lines, want %d", lines, len(config.Params())+1)
	}
}

func TestParamsCmd_YAMLRoundTrip(t *testing.T) {
	isolateEnv(t)

	out, err := execute(t, "params", "--yaml", "N=1234", "vaccineMakeup=prevalent_strains")
	if err != nil {
		t.Fatalf("params --yaml failed: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("params --yaml output is not YAML: %v", err)
	}
	if cfg.Demography.N != 1234 {
		t.Errorf("N = %d, want 1234", cfg.Demography.N)
	}

	// The dump loads back through --config.
	path := filepath.Join(t.TempDir(), "dump.yaml")
	if err := os.WriteFile(path, []byte(out), 0600); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "params", "--config", path, "--json")
	if err != nil {
		t.Fatalf("params --config failed: %v", err)
	}
	var params []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(out), &params); err != nil {
		t.Fatalf("params --json is not JSON: %v", err)
	}
	found := false
	for _, p := range params {
		if p.Key == "vaccine.makeup" {
			found = true
			if p.Value != "prevalent_strains" {
				t.Errorf("vaccine.makeup = %q, want prevalent_strains", p.Value)
			}
		}
	}
	if !found {
		t.Error("vaccine.makeup missing from params --json")
	}
}

func TestRunCmd_InvalidArgs(t *testing.T) {
	isolateEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"malformed", []string{"run", "beta"}},
		{"bad number", []string{"run", "N=lots"}},
		{"bad compression", []string{"run", "compression=lzma"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append(tt.args, "outDir="+t.TempDir())...)
			if err == nil {
				t.Fatal("expected error")
			}
			var cfgErr *config.Error
			if !errors.As(err, &cfgErr) {
				t.Errorf("error %v is not a config.Error", err)
			}
		})
	}
}

func TestRunCmd_ThenStats(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	out, err := execute(t, append(tinyRunArgs(dir), "compression=zstd")...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "after 60 days") {
		t.Errorf("run output missing day count:\n%s", out)
	}

	db := filepath.Join(dir, "reassort.db")
	if _, err := os.Stat(db); err != nil {
		t.Fatalf("results database not written: %v", err)
	}
	series := filepath.Join(dir, "out.timeseries"+report.Suffix("zstd"))
	rc, err := report.Open(series)
	if err != nil {
		t.Fatalf("timeseries table not readable: %v", err)
	}
	rc.Close()

	out, err = execute(t, "stats", db, "--json", "--timeseries")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var rep struct {
		Summary struct {
			Seed uint64 `json:"seed"`
			Days int    `json:"days"`
		} `json:"summary"`
		Timeseries []json.RawMessage `json:"timeseries"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("stats --json is not JSON: %v", err)
	}
	if rep.Summary.Seed != 7 {
		t.Errorf("seed = %d, want 7", rep.Summary.Seed)
	}
	if rep.Summary.Days != 60 {
		t.Errorf("days = %d, want 60", rep.Summary.Days)
	}
	if len(rep.Timeseries) == 0 {
		t.Error("stats --timeseries returned no rows")
	}

	out, err = execute(t, "stats", db, "--runs")
	if err != nil {
		t.Fatalf("stats --runs failed: %v", err)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("stats --runs listed %q, want one run", out)
	}

	out, err = execute(t, "tree", db)
	if err != nil {
		t.Fatalf("tree failed: %v", err)
	}
	if !strings.HasPrefix(out, "digraph ancestry {") {
		t.Errorf("tree output is not DOT:\n%s", out)
	}

	out, err = execute(t, "tree", db, "--json")
	if err != nil {
		t.Fatalf("tree --json failed: %v", err)
	}
	var tree struct {
		NodeCount int `json:"node_count"`
		EdgeCount int `json:"edge_count"`
	}
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("tree --json is not JSON: %v", err)
	}
	if tree.EdgeCount > 0 && tree.NodeCount <= tree.EdgeCount {
		t.Errorf("tree has %d nodes and %d edges, want more nodes than edges", tree.NodeCount, tree.EdgeCount)
	}
}

func TestRunCmd_DebugWritesEvents(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	out, err := execute(t, append(tinyRunArgs(dir), "--log-level", "debug", "--json", "tables=false")...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var res struct {
		Files []string `json:"files"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("run --json is not JSON: %v", err)
	}
	if len(res.Files) != 2 {
		t.Errorf("files = %v, want database and event log", res.Files)
	}

	data, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("event log not written: %v", err)
	}
	if !strings.Contains(string(data), `"event":"run_start"`) {
		t.Error("event log missing run_start")
	}
}

func TestStatsCmd_MissingDatabase(t *testing.T) {
	_, err := execute(t, "stats", filepath.Join(t.TempDir(), "missing.db"))
	if err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestTreeCmd_UnknownRun(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	if _, err := execute(t, append(tinyRunArgs(dir), "tables=false")...); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := execute(t, "tree", filepath.Join(dir, "reassort.db"), "--run", "no-such-run")
	if err != nil {
		t.Fatalf("tree failed: %v", err)
	}
	if strings.Contains(out, "->") {
		t.Errorf("unknown run should export an empty tree:\n%s", out)
	}
}
