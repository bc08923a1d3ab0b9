package ancestry

import (
	"math"
	"testing"

	"github.com/nvandessel/reassort/internal/random"
)

// small builds root -> lineage -> a -> {b, c -> d} with births 0..4.
// a and d are mutations; b is a side-branch mutation.
func small() (tree *Tree, a, b, c, d ID) {
	tree = New(0)
	l := tree.NewLineage(0, 1, 0)
	a = tree.Mutate(l, 1, 1, 0, 1)
	b = tree.Mutate(a, 1, 2, 0, 2)
	c = tree.Copy(a, 3, 0, 3)
	d = tree.Mutate(c, 1, 4, 0, 4)
	tree.AddTip(b)
	tree.AddTip(d)
	return tree, a, b, c, d
}

func TestMakeTrunk(t *testing.T) {
	tree, a, b, c, d := small()
	tree.MakeTrunk([]ID{d})

	for _, id := range []ID{d, c, a, tree.Root()} {
		if !tree.Trunk(id) {
			t.Errorf("node %d should be trunk", id)
		}
	}
	if tree.Trunk(b) {
		t.Error("side branch flagged as trunk")
	}
}

func TestSelection(t *testing.T) {
	tree, _, _, _, d := small()
	tree.MakeTrunk([]ID{d})
	tree.FillTips()

	got := tree.Selection(10, 5)

	// Trunk edges: lineage->a (mutation, 1y), a->c (copy, 2y), c->d (mutation, 1y).
	if got.TrunkMutations != 2 || math.Abs(got.TrunkOpportunity-4) > 1e-12 {
		t.Errorf("trunk = %d over %f, want 2 over 4", got.TrunkMutations, got.TrunkOpportunity)
	}
	// Side edge: a->b (mutation, 1y).
	if got.SideBranchMutations != 1 || math.Abs(got.SideBranchOpportunity-1) > 1e-12 {
		t.Errorf("side = %d over %f, want 1 over 1", got.SideBranchMutations, got.SideBranchOpportunity)
	}
	if math.Abs(got.Ratio-0.5) > 1e-12 {
		t.Errorf("ratio = %f, want 0.5", got.Ratio)
	}
}

func TestSelection_ExcludesRecentAndBurnin(t *testing.T) {
	tree, _, _, _, d := small()
	tree.MakeTrunk([]ID{d})
	tree.FillTips()

	// Cutoff at 2.5 years drops c and d; the lineage root at 0 never counts.
	got := tree.Selection(7.5, 5)
	if got.TrunkMutations != 1 || got.SideBranchMutations != 1 {
		t.Errorf("got %+v", got)
	}

	empty := tree.Selection(1, 5)
	if empty.Ratio != 0 || empty.TrunkRate != 0 || empty.SideBranchRate != 0 {
		t.Errorf("expected zero rates with no edges, got %+v", empty)
	}
}

func TestSortChildrenAndLayout(t *testing.T) {
	tree, a, b, c, d := small()
	tree.FillTips()

	if got := tree.Descendants(a); got != 3 {
		t.Errorf("Descendants(a) = %d, want 3", got)
	}

	tree.SortChildren()
	if kids := tree.Children(a); len(kids) != 2 || kids[0] != c {
		t.Errorf("children of a = %v, want c first", kids)
	}

	tree.AssignLayout()
	tests := []struct {
		name string
		id   ID
		want float64
	}{
		{"d", d, 0},
		{"b", b, 1},
		{"c", c, 0},
		{"a", a, 0.5},
		{"root", tree.Root(), 0.5},
	}
	for _, tt := range tests {
		if got := tree.Layout(tt.id); got != tt.want {
			t.Errorf("layout(%s) = %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestPruneTips(t *testing.T) {
	tree := New(0)
	l0 := tree.NewLineage(0, 1, 0)
	l1 := tree.NewLineage(1, 1, 0)
	for i := 0; i < 50; i++ {
		tree.AddTip(tree.Copy(l0, 1, 0, int64(i)))
		tree.AddTip(tree.Copy(l1, 1, 0, int64(i)))
	}

	rng := random.New(1)
	tree.PruneTips(rng, 0.5, 2)

	tips := tree.Tips()
	if len(tips) == 0 || len(tips) == 100 {
		t.Fatalf("expected partial pruning, kept %d", len(tips))
	}
	if len(tips)%2 != 0 {
		t.Fatalf("whole-genome pruning split a genome: %d tips", len(tips))
	}
	for i := 0; i < len(tips); i += 2 {
		if tree.Genome(tips[i]) != tree.Genome(tips[i+1]) {
			t.Errorf("unit %d mixes genomes %d and %d", i/2, tree.Genome(tips[i]), tree.Genome(tips[i+1]))
		}
		if tree.Locus(tips[i]) != 0 || tree.Locus(tips[i+1]) != 1 {
			t.Errorf("unit %d out of locus order", i/2)
		}
	}

	tree.PruneTips(rng, 1, 2)
	if got := len(tree.Tips()); got != len(tips) {
		t.Errorf("keep=1 dropped tips: %d -> %d", len(tips), got)
	}
	tree.PruneTips(rng, 0, 2)
	if got := len(tree.Tips()); got != 0 {
		t.Errorf("keep=0 kept %d tips", got)
	}
}

func TestMarkTips(t *testing.T) {
	tree := New(0)
	l := tree.NewLineage(0, 1, 0)
	early := tree.Copy(l, 0.05, 0, 1)
	late := tree.Copy(l, 5, 0, 2)
	tree.AddTip(early)
	tree.AddTip(late)

	tree.MarkTips(random.New(1), 1, 0.5, 1)

	if !tree.Marked(early) || !tree.Marked(l) {
		t.Error("sample inside a window should mark its ancestry")
	}
	if tree.Marked(late) {
		t.Error("sample after now should not be marked")
	}
	if tree.Marked(tree.Root()) {
		t.Error("root should never be marked")
	}
}

func TestFinalize(t *testing.T) {
	tree, live := trace(t, 9, 4000)
	rng := random.New(2)

	tree.Finalize(rng, live, FinalizeOptions{Keep: 0.5, Now: 40, MarkInterval: 0.5})

	tips := tree.TipRecords()
	if len(tips) != len(tree.Tips()) {
		t.Fatalf("got %d tip records for %d tips", len(tips), len(tree.Tips()))
	}
	branches := tree.BranchRecords()
	if len(branches) == 0 {
		t.Fatal("expected branch records")
	}
	for _, br := range branches {
		if br.Parent.Birth > br.Child.Birth {
			t.Errorf("branch %d -> %d runs backward in time", br.Parent.ID, br.Child.ID)
		}
		if br.Coverage < 1 {
			t.Errorf("branch %d -> %d has coverage %d", br.Parent.ID, br.Child.ID, br.Coverage)
		}
	}
	checkValid(t, tree, tree.Tips())
}
