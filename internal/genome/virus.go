// Package genome builds genotypes out of ancestry segments and implements
// the operators that create new ones: replication, reassortment, mutation,
// introduction and reintroduction.
package genome

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/nvandessel/reassort/internal/ancestry"
)

// Virus is one genotype: one segment per locus.
type Virus struct {
	// Segments holds one segment per locus, indexed by locus.
	Segments []ancestry.ID

	// Genome groups the segments for whole-genome sampling.
	Genome int64

	// Birth is when this genotype first arose, in years. Replication copies
	// inherit it.
	Birth float64

	// HostAge is the age in years of the host the virus was copied into.
	HostAge float64

	immunogenic *bitset.BitSet
	fitness     []float64
}

// Immunogenic returns the set of alleles carried at immunogenic loci.
// Callers must not modify it.
func (v *Virus) Immunogenic() *bitset.BitSet {
	return v.immunogenic
}

// Key identifies the immunogenic make-up of the genotype; two viruses with
// the same key are the same strain for vaccine purposes.
func (v *Virus) Key() string {
	return v.immunogenic.String()
}
