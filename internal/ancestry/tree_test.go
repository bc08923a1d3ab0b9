package ancestry

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/nvandessel/reassort/internal/random"
)

// trace builds a random genealogy of copies and mutations the way the
// population engine does, returning the segments still live at the end.
func trace(t *testing.T, seed uint64, steps int) (*Tree, []ID) {
	t.Helper()
	rng := random.New(seed)
	tree := New(0)

	var live []ID
	for locus := 0; locus < 2; locus++ {
		live = append(live, tree.NewLineage(locus, 1, 0))
	}

	genome := int64(0)
	for step := 1; step <= steps; step++ {
		date := float64(step) / 100
		i := rng.IntN(len(live))
		switch r := rng.Float64(); {
		case r < 0.45:
			genome++
			live = append(live, tree.Copy(live[i], date, 1, genome))
		case r < 0.55:
			genome++
			live[i] = tree.Mutate(live[i], 1, date, 1, genome)
		case r < 0.9:
			if len(live) > 4 {
				live[i] = live[len(live)-1]
				live = live[:len(live)-1]
			}
		default:
			tree.AddTip(live[i])
		}
	}
	return tree, live
}

func checkValid(t *testing.T, tree *Tree, ids []ID) {
	t.Helper()
	for _, id := range ids {
		for c := id; c != tree.Root(); {
			if !tree.Allocated(c) {
				t.Fatalf("segment %d reaches unallocated record %d", id, c)
			}
			p := tree.Parent(c)
			if p == Nil {
				t.Fatalf("segment %d has no parent", c)
			}
			if !tree.Allocated(p) {
				t.Fatalf("parent %d of %d is not allocated", p, c)
			}
			if tree.Birth(p) > tree.Birth(c) {
				t.Fatalf("parent %d born after child %d: %f > %f", p, c, tree.Birth(p), tree.Birth(c))
			}
			c = p
		}
	}
}

// alleleHistory is the sequence of distinct alleles from the root to id.
func alleleHistory(tree *Tree, id ID) []int64 {
	var path []int64
	for ; id != Nil; id = tree.Parent(id) {
		a := tree.Allele(id)
		if len(path) == 0 || path[len(path)-1] != a {
			path = append(path, a)
		}
	}
	slices.Reverse(path)
	return path
}

// partitions lists, for every branching node of the filled sample view, the
// sample indices beneath it.
func partitions(tree *Tree) []string {
	below := make(map[ID][]int)
	for i, tip := range tree.Tips() {
		for id := tip; id != Nil; id = tree.Parent(id) {
			below[id] = append(below[id], i)
		}
	}
	var out []string
	for id, tips := range below {
		if tree.NumChildren(id) < 2 {
			continue
		}
		tips = slices.Compact(slices.Sorted(slices.Values(tips)))
		var b strings.Builder
		for _, i := range tips {
			b.WriteString(strconv.Itoa(i))
			b.WriteByte('.')
		}
		out = append(out, b.String())
	}
	slices.Sort(out)
	return out
}

func TestCopyAndMutate(t *testing.T) {
	tree := New(-1)
	root := tree.NewLineage(0, 0.5, -1)

	c := tree.Copy(root, 0, 2, 7)
	if tree.Allele(c) != tree.Allele(root) {
		t.Error("copy should inherit allele")
	}
	if tree.Fitness(c) != 0.5 {
		t.Errorf("copy fitness = %f, want 0.5", tree.Fitness(c))
	}
	if tree.Genome(c) != 7 || tree.HostAge(c) != 2 {
		t.Errorf("copy genome/hostAge = %d/%f", tree.Genome(c), tree.HostAge(c))
	}

	m := tree.Mutate(c, 0.9, 1, 2, 8)
	if tree.Allele(m) == tree.Allele(c) {
		t.Error("mutation should mint a new allele")
	}
	if tree.Locus(m) != 0 || tree.Parent(m) != c {
		t.Errorf("mutation locus/parent = %d/%d", tree.Locus(m), tree.Parent(m))
	}
	if tree.Serial(m) <= tree.Serial(c) {
		t.Error("serials should increase")
	}
	if tree.Alleles() != 2 {
		t.Errorf("Alleles() = %d, want 2", tree.Alleles())
	}

	checkValid(t, tree, []ID{c, m})
}

func TestUnallocatedPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for unallocated id")
		}
	}()
	New(0).Birth(42)
}

func TestFillTips_Idempotent(t *testing.T) {
	tree, _ := trace(t, 1, 2000)
	if len(tree.Tips()) == 0 {
		t.Fatal("trace produced no tips")
	}

	tree.FillTips()
	first := partitions(tree)
	counts := make(map[ID]int)
	for _, tip := range tree.Tips() {
		for id := tip; id != Nil; id = tree.Parent(id) {
			counts[id] = tree.NumChildren(id)
		}
	}

	tree.FillTips()
	if got := partitions(tree); !slices.Equal(got, first) {
		t.Error("second fill changed the branching structure")
	}
	for id, n := range counts {
		if got := tree.NumChildren(id); got != n {
			t.Errorf("node %d: %d children after refill, want %d", id, got, n)
		}
	}
}

func TestFillRemove_RestoresEmpty(t *testing.T) {
	tree, live := trace(t, 2, 2000)

	tree.FillTips()
	tree.FillLive(live)
	for _, id := range live {
		if !tree.Active(id) {
			t.Fatalf("live segment %d not active after fill", id)
		}
	}
	tree.RemoveTips()
	tree.RemoveLive(live)

	if len(tree.children) != 0 {
		t.Errorf("children index has %d entries after remove", len(tree.children))
	}
	for i := range tree.nodes {
		n := &tree.nodes[i]
		if n.linked || n.coverage != 0 || n.active {
			t.Fatalf("node %d not reset: linked=%v coverage=%d active=%v", i, n.linked, n.coverage, n.active)
		}
	}
}

func TestCoverage(t *testing.T) {
	tree := New(0)
	l := tree.NewLineage(0, 1, 0)
	a := tree.Copy(l, 1, 0, 1)
	b := tree.Copy(a, 2, 0, 2)
	c := tree.Copy(a, 2, 0, 3)
	tree.AddTip(b)
	tree.AddTip(c)

	tree.FillTips()
	if got := tree.Coverage(a); got != 2 {
		t.Errorf("coverage(a) = %d, want 2", got)
	}
	if got := tree.Coverage(l); got != 2 {
		t.Errorf("coverage(lineage) = %d, want 2", got)
	}
	tree.RemoveTips()
	if got := tree.Coverage(a); got != 0 {
		t.Errorf("coverage(a) after remove = %d, want 0", got)
	}
}

func TestStreamline_PreservesTopology(t *testing.T) {
	for _, seed := range []uint64{3, 4, 5} {
		tree, _ := trace(t, seed, 3000)

		var histories [][]int64
		for _, tip := range tree.Tips() {
			histories = append(histories, alleleHistory(tree, tip))
		}
		tree.FillTips()
		before := partitions(tree)

		for round := 0; round < 2; round++ {
			spliced := tree.StreamlineTips()
			if round == 1 && spliced != 0 {
				t.Errorf("seed %d: second streamline spliced %d nodes", seed, spliced)
			}
			tree.RemoveTips()
			tree.FillTips()

			if got := partitions(tree); !slices.Equal(got, before) {
				t.Fatalf("seed %d round %d: branching structure changed", seed, round)
			}
			for i, tip := range tree.Tips() {
				if got := alleleHistory(tree, tip); !slices.Equal(got, histories[i]) {
					t.Fatalf("seed %d round %d: tip %d allele history %v, want %v", seed, round, i, got, histories[i])
				}
			}
		}
		checkValid(t, tree, tree.Tips())
	}
}

func TestStreamline_CollapsesChains(t *testing.T) {
	tree := New(0)
	l := tree.NewLineage(0, 1, 0)
	a := tree.Copy(l, 1, 0, 1)
	b := tree.Copy(a, 2, 0, 2)
	c := tree.Copy(b, 3, 0, 3)
	tree.AddTip(c)

	tree.FillTips()
	// The lineage root carries the same allele, so it goes too.
	if n := tree.StreamlineTips(); n != 3 {
		t.Errorf("spliced %d nodes, want 3", n)
	}
	if tree.Parent(c) != tree.Root() {
		t.Errorf("tip parent = %d, want root %d", tree.Parent(c), tree.Root())
	}
	if !tree.Allocated(l) {
		t.Error("splicing must not free records")
	}
	tree.RemoveTips()
}

func TestStreamline_KeepsMutationsAndActive(t *testing.T) {
	tree := New(0)
	l := tree.NewLineage(0, 1, 0)
	a := tree.Copy(l, 1, 0, 1)
	m := tree.Mutate(a, 1, 2, 0, 2)
	live := tree.Copy(m, 3, 0, 3)
	c := tree.Copy(live, 4, 0, 4)
	tree.AddTip(c)

	tree.FillTips()
	tree.FillLive([]ID{live})
	tree.StreamlineTips()
	tree.StreamlineLive([]ID{live})

	if tree.Parent(c) != live {
		t.Error("active segment was spliced out")
	}
	if tree.Allele(tree.Parent(live)) == tree.Allele(live) {
		t.Error("mutation edge above the live segment was lost")
	}
	tree.RemoveTips()
	tree.RemoveLive([]ID{live})
}

func TestStreamline_KeepsSamples(t *testing.T) {
	tree := New(0)
	l := tree.NewLineage(0, 1, 0)
	a := tree.Copy(l, 1, 0, 1)
	b := tree.Copy(a, 2, 0, 2)
	tree.AddTip(a)
	tree.AddTip(b)

	tree.FillTips()
	tree.StreamlineTips()
	if tree.Parent(b) != a {
		t.Error("sampled segment was spliced out")
	}
}

func TestCompact(t *testing.T) {
	tree, live := trace(t, 6, 5000)
	held := []ID{live[0]}

	var histories [][]int64
	for _, id := range live {
		histories = append(histories, alleleHistory(tree, id))
	}
	lastSerial := tree.lastSerial

	stats := tree.Compact(live, held)
	if stats.Freed == 0 || stats.After >= stats.Before {
		t.Errorf("compaction freed nothing: %+v", stats)
	}
	if stats.Before-stats.Freed != stats.After {
		t.Errorf("inconsistent stats: %+v", stats)
	}
	if len(tree.children) != 0 {
		t.Error("children index not empty after compaction")
	}

	checkValid(t, tree, live)
	checkValid(t, tree, tree.Tips())
	for i, id := range live {
		if got := alleleHistory(tree, id); !slices.Equal(got, histories[i]) {
			t.Fatalf("live %d allele history changed: %v -> %v", i, histories[i], got)
		}
	}

	// Freed slots are reused; serials keep increasing.
	size := len(tree.nodes)
	reused := tree.Copy(live[0], 100, 0, 1)
	if len(tree.nodes) != size {
		t.Errorf("arena grew from %d to %d with free slots available", size, len(tree.nodes))
	}
	if tree.Serial(reused) <= lastSerial {
		t.Errorf("serial %d not above %d", tree.Serial(reused), lastSerial)
	}

	again := tree.Compact(append(live, reused), held)
	if again.Spliced != 0 {
		t.Errorf("second compaction spliced %d nodes", again.Spliced)
	}
}

func TestDistance(t *testing.T) {
	tree := New(0)
	l := tree.NewLineage(0, 1, 0)
	a := tree.Copy(l, 1, 0, 1)
	b := tree.Copy(a, 3, 0, 2)
	c := tree.Copy(a, 4, 0, 3)

	if got := tree.CommonAncestor(b, c); got != a {
		t.Errorf("CommonAncestor = %d, want %d", got, a)
	}
	if got := tree.Distance(b, c); math.Abs(got-5) > 1e-12 {
		t.Errorf("Distance = %f, want 5", got)
	}
	if got := tree.Distance(b, b); got != 0 {
		t.Errorf("Distance to self = %f, want 0", got)
	}
	if got := tree.Distance(a, c); math.Abs(got-3) > 1e-12 {
		t.Errorf("Distance to ancestor = %f, want 3", got)
	}
}
