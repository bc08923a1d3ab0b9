package ancestry

// CompactionStats reports the effect of one Compact call.
type CompactionStats struct {
	Before  int `json:"before"`
	After   int `json:"after"`
	Freed   int `json:"freed"`
	Spliced int `json:"spliced"`
}

// FillTips walks every historical sample back to the root, registering each
// node as a child of its parent and counting how many samples pass through
// each ancestor. Child registration de-duplicates, so repeated calls leave
// the child lists unchanged.
func (t *Tree) FillTips() {
	for _, tip := range t.tips {
		for child := tip; ; {
			parent := t.nodes[child].parent
			if parent == Nil {
				break
			}
			t.link(child)
			t.nodes[parent].coverage++
			child = parent
		}
	}
}

// RemoveTips is the inverse of FillTips.
func (t *Tree) RemoveTips() {
	for _, tip := range t.tips {
		for child := tip; ; {
			parent := t.nodes[child].parent
			if parent == Nil {
				break
			}
			t.unlink(child)
			if t.nodes[parent].coverage > 0 {
				t.nodes[parent].coverage--
			}
			child = parent
		}
	}
}

// FillLive flags every segment in live as active and registers its ancestry.
// Parent chains are unique, so the walk stops at the first edge that is
// already registered.
func (t *Tree) FillLive(live []ID) {
	for _, leaf := range live {
		t.at(leaf).active = true
		for child := leaf; t.nodes[child].parent != Nil; child = t.nodes[child].parent {
			if !t.link(child) {
				break
			}
		}
	}
}

// RemoveLive is the inverse of FillLive.
func (t *Tree) RemoveLive(live []ID) {
	for _, leaf := range live {
		t.at(leaf).active = false
		for child := leaf; t.nodes[child].parent != Nil; child = t.nodes[child].parent {
			if !t.unlink(child) {
				break
			}
		}
	}
}

// StreamlineTips collapses redundant ancestors of the historical samples.
// It must be bracketed by FillTips and RemoveTips.
func (t *Tree) StreamlineTips() int {
	return t.streamline(t.tips)
}

// StreamlineLive collapses redundant ancestors of live segments. It must be
// bracketed by FillLive and RemoveLive.
func (t *Tree) StreamlineLive(live []ID) int {
	return t.streamline(live)
}

func (t *Tree) streamline(leaves []ID) int {
	spliced := 0
	for _, leaf := range leaves {
		s := leaf
		for {
			p := t.nodes[s].parent
			if p == Nil {
				break
			}
			if t.collapsible(s, p) {
				t.splice(s, p)
				spliced++
				continue
			}
			s = p
		}
	}
	return spliced
}

// collapsible reports whether p, the parent of s, can be spliced out. p must
// have a parent of its own and no child other than s, carry the same allele
// and trunk flag as s, and be neither live nor a sample.
func (t *Tree) collapsible(s, p ID) bool {
	pn := &t.nodes[p]
	if pn.parent == Nil || pn.active || pn.sampled {
		return false
	}
	if len(t.children[p]) != 1 || !t.nodes[s].linked {
		return false
	}
	sn := &t.nodes[s]
	return sn.allele == pn.allele && sn.trunk == pn.trunk
}

// splice rewires s to its grandparent, taking p's place in the
// grandparent's child list.
func (t *Tree) splice(s, p ID) {
	pn := &t.nodes[p]
	gp := pn.parent
	list := t.children[gp]
	list[pn.slot] = s

	sn := &t.nodes[s]
	sn.slot = pn.slot
	sn.parent = gp

	delete(t.children, p)
	pn.linked = false
	pn.slot = -1
	pn.coverage = 0
}

// Compact removes redundant internal nodes reachable from the samples and
// the live segments, then frees every record no longer reachable from the
// samples, live, held or the root. held lists segments that are referenced
// outside the infected population, such as reservoir strains.
func (t *Tree) Compact(live, held []ID) CompactionStats {
	stats := CompactionStats{Before: t.Len()}

	t.FillTips()
	t.FillLive(live)
	stats.Spliced += t.StreamlineTips()
	stats.Spliced += t.StreamlineLive(live)
	t.RemoveTips()
	t.RemoveLive(live)

	roots := make([]ID, 0, len(live)+len(held))
	roots = append(roots, live...)
	roots = append(roots, held...)
	stats.Freed = t.Collect(roots)
	stats.After = t.Len()
	return stats
}

// Collect frees every record that is not an ancestor-or-self of a sample,
// one of held, or the root. It returns the number of records freed. No view
// may be filled while collecting.
func (t *Tree) Collect(held []ID) int {
	reached := make([]bool, len(t.nodes))
	reach := func(id ID) {
		for id != Nil && !reached[id] {
			reached[id] = true
			id = t.at(id).parent
		}
	}
	reach(t.root)
	for _, id := range t.tips {
		reach(id)
	}
	for _, id := range held {
		reach(id)
	}

	freed := 0
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.free || reached[i] {
			continue
		}
		*n = node{parent: Nil, slot: -1, free: true}
		t.free = append(t.free, ID(i))
		freed++
	}
	return freed
}
