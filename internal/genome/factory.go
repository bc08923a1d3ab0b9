package genome

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/nvandessel/reassort/internal/ancestry"
	"github.com/nvandessel/reassort/internal/models"
	"github.com/nvandessel/reassort/internal/random"
)

// Options configures a Factory.
type Options struct {
	// Loci is the number of segments per genome.
	Loci int

	// Immunogenic is the number of leading loci that drive specific immunity.
	// Zero means every locus.
	Immunogenic int

	// InitialAlleles is the number of founding alleles per locus. Empty
	// means one per locus.
	InitialAlleles []int

	// InitialStrains is the number of founding genotypes.
	InitialStrains int

	SegmentFitness  SegmentFitness
	GenotypeFitness GenotypeFitness
}

// Factory creates genotypes for one run. It owns the frozen pool of
// founding alleles and the founding strains drawn from it.
type Factory struct {
	tree  *ancestry.Tree
	rng   *random.Source
	clock *models.Clock

	loci        int
	immunogenic int
	segFitness  SegmentFitness
	genFitness  GenotypeFitness

	lastGenome int64
	lineages   []ancestry.ID
	pool       [][]ancestry.ID
	strains    []*Virus
}

// NewFactory seeds one lineage per locus beneath the tree root, mutates the
// founding alleles from each lineage, and assembles the founding strains
// by drawing one allele per locus at random.
func NewFactory(tree *ancestry.Tree, rng *random.Source, clock *models.Clock, opts Options) *Factory {
	f := &Factory{
		tree:        tree,
		rng:         rng,
		clock:       clock,
		loci:        opts.Loci,
		immunogenic: opts.Immunogenic,
		segFitness:  opts.SegmentFitness,
		genFitness:  opts.GenotypeFitness,
	}
	if f.immunogenic <= 0 || f.immunogenic > f.loci {
		f.immunogenic = f.loci
	}

	now := clock.Date()
	f.pool = make([][]ancestry.ID, f.loci)
	for locus := 0; locus < f.loci; locus++ {
		lineage := tree.NewLineage(locus, f.segFitness.Draw(rng), now)
		f.lineages = append(f.lineages, lineage)

		n := 1
		if locus < len(opts.InitialAlleles) {
			n = opts.InitialAlleles[locus]
		}
		for j := 0; j < n; j++ {
			f.pool[locus] = append(f.pool[locus], tree.Mutate(lineage, f.segFitness.Draw(rng), now, 0, -1))
		}
	}

	for i := 0; i < opts.InitialStrains; i++ {
		segments := make([]ancestry.ID, f.loci)
		for locus := range segments {
			segments[locus] = f.pool[locus][rng.IntN(len(f.pool[locus]))]
		}
		f.strains = append(f.strains, f.NewGenotype(segments, 0))
	}
	return f
}

// Tree returns the ancestry arena the factory writes to.
func (f *Factory) Tree() *ancestry.Tree { return f.tree }

// Loci returns the number of segments per genome.
func (f *Factory) Loci() int { return f.loci }

// ImmunogenicLoci returns the number of loci that drive specific immunity.
func (f *Factory) ImmunogenicLoci() int { return f.immunogenic }

// Strains returns the founding genotypes.
func (f *Factory) Strains() []*Virus { return f.strains }

// Pool returns the founding alleles at locus.
func (f *Factory) Pool(locus int) []ancestry.ID { return f.pool[locus] }

// Held returns every segment the factory keeps a reference to.
func (f *Factory) Held() []ancestry.ID {
	held := append([]ancestry.ID(nil), f.lineages...)
	for _, alleles := range f.pool {
		held = append(held, alleles...)
	}
	for _, v := range f.strains {
		held = append(held, v.Segments...)
	}
	return held
}

func (f *Factory) nextGenome() int64 {
	f.lastGenome++
	return f.lastGenome
}

// build fills in the derived fields of v.
func (f *Factory) build(v *Virus) *Virus {
	v.immunogenic = &bitset.BitSet{}
	v.fitness = make([]float64, len(v.Segments))
	for locus, s := range v.Segments {
		if locus < f.immunogenic {
			v.immunogenic.Set(uint(f.tree.Allele(s)))
		}
		v.fitness[locus] = f.tree.Fitness(s)
	}
	return v
}

// NewGenotype assembles a new genotype from replication copies of segments.
func (f *Factory) NewGenotype(segments []ancestry.ID, hostAge float64) *Virus {
	now := f.clock.Date()
	genome := f.nextGenome()
	v := &Virus{
		Segments: make([]ancestry.ID, len(segments)),
		Genome:   genome,
		Birth:    now,
		HostAge:  hostAge,
	}
	for locus, s := range segments {
		v.Segments[locus] = f.tree.Copy(s, now, hostAge, genome)
	}
	return f.build(v)
}

// Copy returns a replication copy of v for a host of the given age. The
// copy keeps v's genotype birth.
func (f *Factory) Copy(v *Virus, hostAge float64) *Virus {
	now := f.clock.Date()
	genome := f.nextGenome()
	c := &Virus{
		Segments:    make([]ancestry.ID, len(v.Segments)),
		Genome:      genome,
		Birth:       v.Birth,
		HostAge:     hostAge,
		immunogenic: v.immunogenic,
		fitness:     v.fitness,
	}
	for locus, s := range v.Segments {
		c.Segments[locus] = f.tree.Copy(s, now, hostAge, genome)
	}
	return c
}

// Reassort builds a genotype that, at each locus independently, takes the
// homologous segment of a uniformly chosen virus in others with probability
// rho and keeps v's own segment otherwise. Every segment of the result is a
// fresh copy. With no others the result is a copy of v's segments.
func (f *Factory) Reassort(v *Virus, others []*Virus, rho float64) *Virus {
	segments := make([]ancestry.ID, len(v.Segments))
	for locus, s := range v.Segments {
		segments[locus] = s
		if len(others) > 0 && f.rng.Bernoulli(rho) {
			segments[locus] = others[f.rng.IntN(len(others))].Segments[locus]
		}
	}
	return f.NewGenotype(segments, v.HostAge)
}

// Mutate copies every segment of v and applies one point mutation at a
// uniformly chosen locus.
func (f *Factory) Mutate(v *Virus) *Virus {
	return f.replace(v, f.rng.IntN(f.loci), func(orig ancestry.ID) ancestry.ID {
		return orig
	}, true)
}

// Introduce replaces a uniformly chosen locus with a founding allele and
// mutates it once.
func (f *Factory) Introduce(v *Virus) *Virus {
	locus := f.rng.IntN(f.loci)
	return f.replace(v, locus, f.poolPick(locus), true)
}

// Reintroduce replaces a uniformly chosen locus with a copy of a founding
// allele.
func (f *Factory) Reintroduce(v *Virus) *Virus {
	locus := f.rng.IntN(f.loci)
	return f.replace(v, locus, f.poolPick(locus), false)
}

func (f *Factory) poolPick(locus int) func(ancestry.ID) ancestry.ID {
	pool := f.pool[locus]
	return func(ancestry.ID) ancestry.ID {
		return pool[f.rng.IntN(len(pool))]
	}
}

// replace copies v, substituting a new segment at locus derived from source.
func (f *Factory) replace(v *Virus, locus int, source func(ancestry.ID) ancestry.ID, mutate bool) *Virus {
	now := f.clock.Date()
	genome := f.nextGenome()
	n := &Virus{
		Segments: make([]ancestry.ID, len(v.Segments)),
		Genome:   genome,
		Birth:    now,
		HostAge:  v.HostAge,
	}
	for i, s := range v.Segments {
		if i != locus {
			n.Segments[i] = f.tree.Copy(s, now, v.HostAge, genome)
		}
	}
	origin := source(v.Segments[locus])
	if mutate {
		n.Segments[locus] = f.tree.Mutate(origin, f.segFitness.Draw(f.rng), now, v.HostAge, genome)
	} else {
		n.Segments[locus] = f.tree.Copy(origin, now, v.HostAge, genome)
	}
	return f.build(n)
}

// RandomSegment returns a uniformly chosen segment of v.
func (f *Factory) RandomSegment(v *Virus) ancestry.ID {
	return v.Segments[f.rng.IntN(len(v.Segments))]
}

// Fitness returns v's genotype fitness at the current date.
func (f *Factory) Fitness(v *Virus) float64 {
	return f.genFitness.Of(v.fitness, f.clock.Date()-v.Birth)
}

// Alleles returns the allele carried at each locus of v.
func (f *Factory) Alleles(v *Virus) []int64 {
	out := make([]int64, len(v.Segments))
	for i, s := range v.Segments {
		out[i] = f.tree.Allele(s)
	}
	return out
}
