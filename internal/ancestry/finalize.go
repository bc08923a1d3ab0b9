package ancestry

import (
	"cmp"
	"slices"
)

// MarkStep is the spacing in years between marking windows.
const MarkStep = 0.1

// Rand is the random capability the end-of-run passes draw from.
type Rand interface {
	IntN(n int) int
	Bernoulli(p float64) bool
}

// FinalizeOptions configures the end-of-run tree passes.
type FinalizeOptions struct {
	// Group is the number of consecutive tips that form one sample unit.
	// Whole-genome sampling stores every locus of a genotype together.
	Group int

	// Keep is the probability each sample unit survives pruning.
	Keep float64

	// Now is the current date in years.
	Now float64

	// MarkInterval is the width in years of each marking window.
	MarkInterval float64
}

func (o FinalizeOptions) group() int {
	if o.Group < 1 {
		return 1
	}
	return o.Group
}

// PruneTips keeps each sample unit with probability keep.
func (t *Tree) PruneTips(rng Rand, keep float64, group int) {
	if group < 1 {
		group = 1
	}
	kept := t.tips[:0:0]
	for i := 0; i+group <= len(t.tips); i += group {
		unit := t.tips[i : i+group]
		if rng.Bernoulli(keep) {
			kept = append(kept, unit...)
			continue
		}
		for _, id := range unit {
			t.nodes[id].sampled = false
		}
	}
	// Later samples can repeat a dropped segment.
	for _, id := range kept {
		t.nodes[id].sampled = true
	}
	t.tips = kept
}

// MarkTips slides a window of width interval across [0, now) in MarkStep
// increments. In each window one sample unit born inside it is drawn and
// every ancestor of its tips is marked.
func (t *Tree) MarkTips(rng Rand, now, interval float64, group int) {
	if group < 1 {
		group = 1
	}
	var candidates []int
	for step := 0; ; step++ {
		from := float64(step) * MarkStep
		if from >= now {
			break
		}
		to := from + interval

		candidates = candidates[:0]
		for i := 0; i+group <= len(t.tips); i += group {
			b := t.nodes[t.tips[i]].birth
			if b >= from && b < to {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		start := candidates[rng.IntN(len(candidates))]
		for _, id := range t.tips[start : start+group] {
			for ; id != Nil && t.nodes[id].parent != Nil; id = t.nodes[id].parent {
				t.nodes[id].marked = true
			}
		}
	}
}

// MakeTrunk flags every ancestor of the circulating segments as trunk,
// stopping each ascent at the first ancestor already flagged.
func (t *Tree) MakeTrunk(circulating []ID) {
	for _, id := range circulating {
		n := t.at(id)
		n.trunk = true
		for p := n.parent; p != Nil; p = t.nodes[p].parent {
			if t.nodes[p].trunk {
				break
			}
			t.nodes[p].trunk = true
		}
	}
}

// preorder returns r and its descendants in depth-first order, following
// the current child lists.
func (t *Tree) preorder(r ID) []ID {
	order := []ID{}
	stack := []ID{r}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, u)
		kids := t.children[u]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return order
}

// Descendants counts the nodes below r in the current child lists.
func (t *Tree) Descendants(r ID) int {
	return len(t.preorder(r)) - 1
}

func (t *Tree) countDescendants() {
	order := t.preorder(t.root)
	for i := len(order) - 1; i >= 0; i-- {
		u := order[i]
		var n int32
		for _, c := range t.children[u] {
			n += t.nodes[c].descendants + 1
		}
		t.nodes[u].descendants = n
	}
}

// SortChildren orders every child list so that the child with the most
// descendants comes first. Ties keep registration order.
func (t *Tree) SortChildren() {
	t.countDescendants()
	for parent, kids := range t.children {
		slices.SortStableFunc(kids, func(a, b ID) int {
			return cmp.Compare(t.nodes[b].descendants, t.nodes[a].descendants)
		})
		for i, c := range kids {
			t.nodes[c].slot = int32(i)
		}
		t.children[parent] = kids
	}
}

// AssignLayout sets vertical coordinates for drawing. Leaves are numbered in
// depth-first order; internal nodes take the mean of their children.
func (t *Tree) AssignLayout() {
	order := t.preorder(t.root)
	y := 0.0
	for _, u := range order {
		if len(t.children[u]) == 0 {
			t.nodes[u].layout = y
			y++
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		u := order[i]
		kids := t.children[u]
		if len(kids) == 0 {
			continue
		}
		sum := 0.0
		for _, c := range kids {
			sum += t.nodes[c].layout
		}
		t.nodes[u].layout = sum / float64(len(kids))
	}
}

// Finalize runs the end-of-run passes: prune and mark the samples, flag the
// trunk from the circulating segments, build the sample view, order and lay
// out the children, and streamline. The sample view stays filled afterwards
// so records can be read from it.
func (t *Tree) Finalize(rng Rand, circulating []ID, opts FinalizeOptions) {
	group := opts.group()
	t.PruneTips(rng, opts.Keep, group)
	t.MarkTips(rng, opts.Now, opts.MarkInterval, group)
	t.MakeTrunk(circulating)
	t.FillTips()
	t.SortChildren()
	t.AssignLayout()
	t.StreamlineTips()
}
