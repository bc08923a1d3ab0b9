// Package visualization renders finished ancestry trees in formats other
// tools can draw.
package visualization

import (
	"bufio"
	"fmt"
	"io"

	"github.com/nvandessel/reassort/internal/models"
)

// Node fill colors by role in the tree.
const (
	colorTrunk    = "tomato"
	colorMarked   = "goldenrod"
	colorTip      = "steelblue"
	colorInternal = "lightgray"
)

// nodeColor picks a fill color. Trunk wins over marked, marked over tip.
func nodeColor(n models.TipRecord) string {
	switch {
	case n.Trunk:
		return colorTrunk
	case n.Marked:
		return colorMarked
	case n.Tip:
		return colorTip
	}
	return colorInternal
}

// RenderDOT writes a Graphviz DOT digraph of the tree described by
// branches. Nodes are laid out left to right by birth date; an edge whose
// child carries a different allele from its parent is drawn bold and
// labelled with the new allele.
func RenderDOT(w io.Writer, branches []models.BranchRecord) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("digraph ancestry {\n")
	bw.WriteString("  rankdir=LR;\n")
	bw.WriteString("  node [shape=circle, style=filled, label=\"\", width=0.15, fontname=\"Helvetica\"];\n")
	bw.WriteString("  edge [arrowhead=none, fontname=\"Helvetica\", fontsize=8];\n\n")

	seen := make(map[int64]bool)
	node := func(n models.TipRecord) {
		if seen[n.ID] {
			return
		}
		seen[n.ID] = true
		fmt.Fprintf(bw, "  n%d [fillcolor=%q, tooltip=\"year=%.3f allele=%d locus=%d\"];\n",
			n.ID, nodeColor(n), n.Birth, n.Allele, n.Locus)
	}
	for _, b := range branches {
		node(b.Parent)
		node(b.Child)
	}
	bw.WriteString("\n")

	for _, b := range branches {
		if b.Child.Allele != b.Parent.Allele {
			fmt.Fprintf(bw, "  n%d -> n%d [style=bold, label=\"%d\", weight=%d];\n",
				b.Parent.ID, b.Child.ID, b.Child.Allele, b.Coverage)
			continue
		}
		fmt.Fprintf(bw, "  n%d -> n%d [weight=%d];\n", b.Parent.ID, b.Child.ID, b.Coverage)
	}

	bw.WriteString("}\n")
	return bw.Flush()
}

// TreeJSON is a node/edge representation of the tree for JSON consumers.
type TreeJSON struct {
	Nodes     []models.TipRecord `json:"nodes"`
	Edges     []EdgeJSON         `json:"edges"`
	NodeCount int                `json:"node_count"`
	EdgeCount int                `json:"edge_count"`
}

// EdgeJSON is one parent-child edge.
type EdgeJSON struct {
	Source   int64   `json:"source"`
	Target   int64   `json:"target"`
	Length   float64 `json:"length"` // years
	Coverage int     `json:"coverage"`
	Mutation bool    `json:"mutation"`
}

// RenderJSON builds the node/edge representation of branches. Nodes appear
// in first-seen order, parents before their children.
func RenderJSON(branches []models.BranchRecord) TreeJSON {
	out := TreeJSON{
		Nodes: make([]models.TipRecord, 0, len(branches)+1),
		Edges: make([]EdgeJSON, 0, len(branches)),
	}
	seen := make(map[int64]bool)
	add := func(n models.TipRecord) {
		if !seen[n.ID] {
			seen[n.ID] = true
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, b := range branches {
		add(b.Parent)
		add(b.Child)
		out.Edges = append(out.Edges, EdgeJSON{
			Source:   b.Parent.ID,
			Target:   b.Child.ID,
			Length:   b.Child.Birth - b.Parent.Birth,
			Coverage: b.Coverage,
			Mutation: b.Child.Allele != b.Parent.Allele,
		})
	}
	out.NodeCount = len(out.Nodes)
	out.EdgeCount = len(out.Edges)
	return out
}
