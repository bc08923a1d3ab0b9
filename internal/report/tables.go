// Package report writes the tabular output files of a run and ships the
// finished output directory to object storage.
//
// Each table is a plain-text file in the output directory, optionally
// compressed with block gzip (readable by gzip and tabix tooling) or zstd.
package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/nvandessel/reassort/internal/constants"
	"github.com/nvandessel/reassort/internal/models"
	"github.com/nvandessel/reassort/internal/visualization"
)

// Output file names, before the compression suffix.
const (
	TimeseriesFile = "out.timeseries"
	InfectedFile   = "out.infected"
	ImmunityFile   = "out.immunity"
	TipsFile       = "out.tips"
	BranchesFile   = "out.branches"
	MKFile         = "out.mk"
	VaccineFile    = "out.vaccine"
	ParamsFile     = "out.params"
	TreeFile       = "out.tree.dot"
)

// TableRecorder implements models.Recorder by writing one text table per
// output into a directory.
type TableRecorder struct {
	mu    sync.Mutex
	dir   string
	codec constants.Compression

	timeseries *table
	infected   *table
	immunity   *table

	files []string
}

// NewTableRecorder creates a recorder writing into dir, which must exist.
func NewTableRecorder(dir string, codec constants.Compression) *TableRecorder {
	if codec == "" {
		codec = constants.CompressionNone
	}
	return &TableRecorder{dir: dir, codec: codec}
}

// Files lists the paths written so far, in creation order.
func (r *TableRecorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

func (r *TableRecorder) create(name string) (*table, error) {
	t, err := createTable(r.dir, name, r.codec)
	if err != nil {
		return nil, err
	}
	for _, f := range r.files {
		if f == t.path {
			return t, nil
		}
	}
	r.files = append(r.files, t.path)
	return t, nil
}

// writeOnce creates name, runs fn on it and closes it.
func (r *TableRecorder) writeOnce(name string, fn func(t *table)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.create(name)
	if err != nil {
		return err
	}
	fn(t)
	return t.close()
}

// Begin implements models.Recorder. It writes the parameter dump and opens
// the streaming tables.
func (r *TableRecorder) Begin(ctx context.Context, run models.RunInfo) error {
	err := r.writeOnce(ParamsFile, func(t *table) {
		t.printf("# run_id = %s\n# seed = %d\n", run.RunID, run.Seed)
		for _, p := range run.Params {
			t.printf("%s = %s\n", p.Key, p.Value)
		}
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openStreams()
}

func (r *TableRecorder) openStreams() error {
	var err error
	if r.timeseries, err = r.create(TimeseriesFile); err != nil {
		return err
	}
	r.timeseries.printf("date\tdiversity\ttotalN\ttotalS\ttotalI\ttotalR\ttotalCases\n")

	if r.infected, err = r.create(InfectedFile); err != nil {
		return err
	}
	r.infected.printf("year,hostID,genomeID,segmentID,hostAge,numInfections\n")

	if r.immunity, err = r.create(ImmunityFile); err != nil {
		return err
	}
	r.immunity.printf("year,hostID,hostAge,numInfections,numExposures,alleles\n")
	return nil
}

func (r *TableRecorder) closeStreams() error {
	err := errors.Join(r.timeseries.close(), r.infected.close(), r.immunity.close())
	r.timeseries, r.infected, r.immunity = nil, nil, nil
	return err
}

// Reset implements models.Recorder. The streaming tables are truncated.
func (r *TableRecorder) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.closeStreams(); err != nil {
		return err
	}
	return r.openStreams()
}

// Timeseries implements models.Recorder.
func (r *TableRecorder) Timeseries(ctx context.Context, row models.TimeseriesRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timeseries == nil {
		return errNotStarted
	}
	r.timeseries.printf("%.4f\t%.4f\t%d\t%d\t%d\t%d\t%d\n",
		row.Date, row.Diversity, row.N, row.S, row.I, row.R, row.Cases)
	return nil
}

// InfectedSamples implements models.Recorder.
func (r *TableRecorder) InfectedSamples(ctx context.Context, samples []models.InfectedSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.infected == nil {
		return errNotStarted
	}
	for _, s := range samples {
		r.infected.printf("%f,%d,%d,%d,%f,%d\n",
			s.Date, s.HostID, s.GenomeID, s.SegmentID, s.HostAge, s.NumInfections)
	}
	return nil
}

// ImmunitySamples implements models.Recorder.
func (r *TableRecorder) ImmunitySamples(ctx context.Context, samples []models.ImmunitySample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.immunity == nil {
		return errNotStarted
	}
	for _, s := range samples {
		r.immunity.printf("%f,%d,%f,%d,%d,%s\n",
			s.Date, s.HostID, s.HostAge, s.NumInfections, s.NumExposures, joinAlleles(s.Alleles))
	}
	return nil
}

// Tips implements models.Recorder.
func (r *TableRecorder) Tips(ctx context.Context, tips []models.TipRecord) error {
	return r.writeOnce(TipsFile, func(t *table) {
		t.printf("{\"name\",\"wholegenome\",\"year\",\"trunk\",\"tip\",\"mark\",\"hostAge\",\"layout\",\"segmentID\",\"loci\"}\n")
		for _, tip := range tips {
			t.printf("%s\n", formatNode(tip, "%.4f", "%.4f"))
		}
	})
}

// Branches implements models.Recorder. Each line holds the child, the
// parent and the parent's coverage, tab separated. The same tree is also
// written as a Graphviz graph.
func (r *TableRecorder) Branches(ctx context.Context, branches []models.BranchRecord) error {
	err := r.writeOnce(BranchesFile, func(t *table) {
		for _, b := range branches {
			t.printf("%s\t%s\t%d\n",
				formatNode(b.Child, "%.3f", "%.3f"),
				formatNode(b.Parent, "%.3f", "%.3f"),
				b.Coverage)
		}
	})
	if err != nil {
		return err
	}

	var dotErr error
	err = r.writeOnce(TreeFile, func(t *table) {
		dotErr = visualization.RenderDOT(t.w, branches)
	})
	return errors.Join(dotErr, err)
}

// Selection implements models.Recorder.
func (r *TableRecorder) Selection(ctx context.Context, s models.SelectionSummary) error {
	return r.writeOnce(MKFile, func(t *table) {
		t.printf("sideBranchMut,sideBranchOpp,sideBranchRate,trunkMut,trunkOpp,trunkRate,mk\n")
		t.printf("%d,%.4f,%.4f,%d,%.4f,%.4f,%.4f\n",
			s.SideBranchMutations, s.SideBranchOpportunity, s.SideBranchRate,
			s.TrunkMutations, s.TrunkOpportunity, s.TrunkRate, s.Ratio)
	})
}

// Vaccine implements models.Recorder. Nothing is written when no
// composition was selected.
func (r *TableRecorder) Vaccine(ctx context.Context, composition []models.VaccineRecord) error {
	if len(composition) == 0 {
		return nil
	}
	return r.writeOnce(VaccineFile, func(t *table) {
		t.printf("rank,tally,alleles\n")
		for _, v := range composition {
			t.printf("%d,%d,%s\n", v.Rank, v.Tally, joinAlleles(v.Alleles))
		}
	})
}

// Finish implements models.Recorder. It closes the streaming tables.
func (r *TableRecorder) Finish(ctx context.Context, summary models.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeStreams()
}

// Close implements models.Recorder.
func (r *TableRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeStreams()
}

var errNotStarted = errors.New("table recorder: Begin not called")

func formatNode(n models.TipRecord, birthFmt, layoutFmt string) string {
	return fmt.Sprintf("{\"%d\",%d,"+birthFmt+",%d,%d,%d,%.4f,"+layoutFmt+",%d,%d}",
		n.ID, n.GenomeID, n.Birth, btoi(n.Trunk), btoi(n.Tip), btoi(n.Marked),
		n.HostAge, n.Layout, n.Allele, n.Locus)
}

func joinAlleles(alleles []int64) string {
	parts := make([]string, len(alleles))
	for i, a := range alleles {
		parts[i] = strconv.FormatInt(a, 10)
	}
	return strings.Join(parts, ";")
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
