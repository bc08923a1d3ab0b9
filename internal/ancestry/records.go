package ancestry

import "github.com/nvandessel/reassort/internal/models"

// Record describes id for output. Tip is true when id has no children in
// the current view.
func (t *Tree) Record(id ID) models.TipRecord {
	n := t.at(id)
	return models.TipRecord{
		ID:       n.serial,
		GenomeID: n.genome,
		Birth:    n.birth,
		Trunk:    n.trunk,
		Tip:      len(t.children[id]) == 0,
		Marked:   n.marked,
		HostAge:  n.hostAge,
		Layout:   n.layout,
		Allele:   n.allele,
		Locus:    int(n.locus),
	}
}

// TipRecords describes every retained sample.
func (t *Tree) TipRecords() []models.TipRecord {
	out := make([]models.TipRecord, len(t.tips))
	for i, id := range t.tips {
		out[i] = t.Record(id)
	}
	return out
}

// BranchRecords describes every edge reachable from the root in the filled
// sample view.
func (t *Tree) BranchRecords() []models.BranchRecord {
	var out []models.BranchRecord
	for _, id := range t.preorder(t.root) {
		p := t.nodes[id].parent
		if p == Nil {
			continue
		}
		out = append(out, models.BranchRecord{
			Child:    t.Record(id),
			Parent:   t.Record(p),
			Coverage: int(t.nodes[p].coverage),
		})
	}
	return out
}

// Selection compares the rate of allele-changing edges on the trunk with the
// rate on side branches. Only edges whose child was born after the end of
// burn-in and more than yearsToTrunk before now are counted, because the
// trunk near the present is not yet resolved. Opportunity is the summed
// edge length in years.
func (t *Tree) Selection(now, yearsToTrunk float64) models.SelectionSummary {
	var s models.SelectionSummary
	cutoff := now - yearsToTrunk
	for _, id := range t.preorder(t.root) {
		n := &t.nodes[id]
		if n.parent == Nil || n.birth >= cutoff || n.birth <= 0 {
			continue
		}
		p := &t.nodes[n.parent]
		mutation := n.allele != p.allele
		length := n.birth - p.birth
		switch {
		case !n.trunk:
			s.SideBranchOpportunity += length
			if mutation {
				s.SideBranchMutations++
			}
		case p.trunk:
			s.TrunkOpportunity += length
			if mutation {
				s.TrunkMutations++
			}
		}
	}
	if s.SideBranchOpportunity > 0 {
		s.SideBranchRate = float64(s.SideBranchMutations) / s.SideBranchOpportunity
	}
	if s.TrunkOpportunity > 0 {
		s.TrunkRate = float64(s.TrunkMutations) / s.TrunkOpportunity
	}
	if s.SideBranchRate > 0 {
		s.Ratio = s.TrunkRate / s.SideBranchRate
	}
	return s
}

// CommonAncestor returns the most recent ancestor-or-self shared by a and b.
func (t *Tree) CommonAncestor(a, b ID) ID {
	seen := make(map[ID]struct{})
	for id := a; id != Nil; id = t.at(id).parent {
		seen[id] = struct{}{}
	}
	for id := b; id != Nil; id = t.at(id).parent {
		if _, ok := seen[id]; ok {
			return id
		}
	}
	return t.root
}

// Distance is the summed branch length in years from a and b to their
// common ancestor.
func (t *Tree) Distance(a, b ID) float64 {
	anc := t.at(t.CommonAncestor(a, b)).birth
	return (t.at(a).birth - anc) + (t.at(b).birth - anc)
}
