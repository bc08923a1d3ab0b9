// Package ancestry records the genealogy of every genome segment created
// during a run.
//
// Segments live in an arena addressed by ID. Each record stores only its
// parent; the parent-to-children index is built for the duration of a
// traversal pass (Fill) and torn down again (Remove). Between passes the
// graph is a forest of parent pointers, so splicing out a node never leaves
// a dangling child reference.
package ancestry

import "fmt"

// ID addresses a segment record in a Tree. IDs are reused after Collect frees
// a record; Serial numbers are not.
type ID int32

// Nil is the absent ID, the parent of the sentinel root.
const Nil ID = -1

// RootAllele is the allele number of the sentinel root.
const RootAllele int64 = -1

type node struct {
	parent  ID
	serial  int64
	allele  int64
	genome  int64
	locus   int32
	fitness float64
	birth   float64
	hostAge float64
	layout  float64

	coverage    int32
	descendants int32

	// slot is this node's index in its parent's child list while linked.
	slot   int32
	linked bool

	active  bool
	sampled bool
	trunk   bool
	marked  bool
	free    bool
}

// Tree is the arena of segment records for one run. It is not safe for
// concurrent use.
type Tree struct {
	nodes    []node
	free     []ID
	root     ID
	tips     []ID
	children map[ID][]ID

	lastSerial int64
	lastAllele int64
}

// New creates a tree holding only the sentinel root, born at birth.
func New(birth float64) *Tree {
	t := &Tree{
		children:   make(map[ID][]ID),
		lastAllele: RootAllele,
	}
	t.root = t.alloc(node{
		parent: Nil,
		allele: RootAllele,
		genome: -1,
		locus:  -1,
		birth:  birth,
	})
	return t
}

func (t *Tree) alloc(n node) ID {
	t.lastSerial++
	n.serial = t.lastSerial
	n.slot = -1
	if k := len(t.free); k > 0 {
		id := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[id] = n
		return id
	}
	t.nodes = append(t.nodes, n)
	return ID(len(t.nodes) - 1)
}

func (t *Tree) at(id ID) *node {
	if id < 0 || int(id) >= len(t.nodes) || t.nodes[id].free {
		panic(fmt.Sprintf("invariant: ancestry id %d is not allocated", id))
	}
	return &t.nodes[id]
}

// Root returns the sentinel root.
func (t *Tree) Root() ID {
	return t.root
}

// NewLineage starts an independent lineage for a locus directly beneath the
// sentinel root. The lineage root carries a freshly minted allele.
func (t *Tree) NewLineage(locus int, fitness, birth float64) ID {
	t.lastAllele++
	return t.alloc(node{
		parent:  t.root,
		allele:  t.lastAllele,
		genome:  -1,
		locus:   int32(locus),
		fitness: fitness,
		birth:   birth,
	})
}

// Mutate creates a child of parent carrying a new allele and fitness.
func (t *Tree) Mutate(parent ID, fitness, birth, hostAge float64, genome int64) ID {
	p := t.at(parent)
	locus := p.locus
	t.lastAllele++
	return t.alloc(node{
		parent:  parent,
		allele:  t.lastAllele,
		genome:  genome,
		locus:   locus,
		fitness: fitness,
		birth:   birth,
		hostAge: hostAge,
	})
}

// Copy creates a replication copy of parent. The copy inherits allele, locus
// and fitness.
func (t *Tree) Copy(parent ID, birth, hostAge float64, genome int64) ID {
	p := t.at(parent)
	allele, locus, fitness := p.allele, p.locus, p.fitness
	return t.alloc(node{
		parent:  parent,
		allele:  allele,
		genome:  genome,
		locus:   locus,
		fitness: fitness,
		birth:   birth,
		hostAge: hostAge,
	})
}

// Len returns the number of allocated records, including the root.
func (t *Tree) Len() int {
	return len(t.nodes) - len(t.free)
}

// Alleles returns the number of alleles minted so far.
func (t *Tree) Alleles() int64 {
	return t.lastAllele + 1
}

// Allocated reports whether id addresses a live record.
func (t *Tree) Allocated(id ID) bool {
	return id >= 0 && int(id) < len(t.nodes) && !t.nodes[id].free
}

func (t *Tree) Parent(id ID) ID        { return t.at(id).parent }
func (t *Tree) Serial(id ID) int64     { return t.at(id).serial }
func (t *Tree) Allele(id ID) int64     { return t.at(id).allele }
func (t *Tree) Genome(id ID) int64     { return t.at(id).genome }
func (t *Tree) Locus(id ID) int        { return int(t.at(id).locus) }
func (t *Tree) Fitness(id ID) float64  { return t.at(id).fitness }
func (t *Tree) Birth(id ID) float64    { return t.at(id).birth }
func (t *Tree) HostAge(id ID) float64  { return t.at(id).hostAge }
func (t *Tree) Layout(id ID) float64   { return t.at(id).layout }
func (t *Tree) Coverage(id ID) int     { return int(t.at(id).coverage) }
func (t *Tree) Trunk(id ID) bool       { return t.at(id).trunk }
func (t *Tree) Marked(id ID) bool      { return t.at(id).marked }
func (t *Tree) Active(id ID) bool      { return t.at(id).active }
func (t *Tree) NumChildren(id ID) int  { return len(t.children[id]) }
func (t *Tree) HasChildren(id ID) bool { return len(t.children[id]) > 0 }

// Children returns a copy of id's current child list. The list is only
// populated while a view is filled.
func (t *Tree) Children(id ID) []ID {
	return append([]ID(nil), t.children[id]...)
}

// AddTip records id as a historical sample.
func (t *Tree) AddTip(id ID) {
	t.at(id).sampled = true
	t.tips = append(t.tips, id)
}

// Tips returns the historical samples in the order they were taken.
func (t *Tree) Tips() []ID {
	return t.tips
}

// link registers child under its parent, once.
func (t *Tree) link(child ID) bool {
	c := &t.nodes[child]
	if c.linked {
		return false
	}
	list := t.children[c.parent]
	c.slot = int32(len(list))
	c.linked = true
	t.children[c.parent] = append(list, child)
	return true
}

// unlink removes child from its parent's list in O(1).
func (t *Tree) unlink(child ID) bool {
	c := &t.nodes[child]
	if !c.linked {
		return false
	}
	list := t.children[c.parent]
	last := len(list) - 1
	moved := list[last]
	list[c.slot] = moved
	t.nodes[moved].slot = c.slot
	list = list[:last]
	if len(list) == 0 {
		delete(t.children, c.parent)
	} else {
		t.children[c.parent] = list
	}
	c.linked = false
	c.slot = -1
	return true
}
