// Package immunity models a host's immune history and the risk it poses to
// an incoming or outgoing infection.
package immunity

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/nvandessel/reassort/internal/constants"
)

// Antigen is anything that presents immunogenic alleles.
type Antigen interface {
	Immunogenic() *bitset.BitSet
}

// System is one host's immune history. All risks lie in [0, 1].
type System interface {
	// RiskOfInfection is the probability factor that a host with this
	// history becomes infected on contact with v.
	RiskOfInfection(v Antigen) float64

	// RiskOfTransmission is the donor-side factor for passing on v, a
	// genotype with the given fitness.
	RiskOfTransmission(v Antigen, fitness float64) float64

	// Add records recovery from an infection with v.
	Add(v Antigen)

	// Vaccinate records exposure to every allele set in one event.
	Vaccinate(composition []*bitset.BitSet)

	// Reset forgets all history.
	Reset()

	// Exposures is the number of recorded exposure events.
	Exposures() int

	// ExposedAlleles lists every allele seen, in ascending order.
	ExposedAlleles() []int64
}

// Params holds the decay constants shared by every host.
type Params struct {
	XiGeneralized  float64
	XiSpecific     float64
	XiTransmission float64

	// ImmunogenicLoci normalizes the specific overlap.
	ImmunogenicLoci int
}

// Model selects an immune-system strategy.
type Model struct {
	Kind   constants.ImmuneModel
	Params Params
}

// New creates an empty immune history of the configured kind.
func (m Model) New() System {
	switch m.Kind {
	case constants.ImmuneModelDiscrete:
		return NewDiscrete(&m.Params)
	}
	panic(fmt.Sprintf("invariant: unknown immune model %q", m.Kind))
}

// Discrete tracks exposure to discrete alleles. Infection risk decays
// exponentially in the number of prior exposures and in the fraction of
// the virus's immunogenic alleles already seen.
type Discrete struct {
	params    *Params
	exposures int
	exposed   bitset.BitSet
}

// NewDiscrete creates an empty Discrete history sharing params.
func NewDiscrete(params *Params) *Discrete {
	return &Discrete{params: params}
}

func (d *Discrete) RiskOfInfection(v Antigen) float64 {
	generalized := -d.params.XiGeneralized * float64(d.exposures)
	specific := 0.0
	if d.params.ImmunogenicLoci > 0 {
		overlap := d.exposed.IntersectionCardinality(v.Immunogenic())
		specific = -d.params.XiSpecific * float64(overlap) / float64(d.params.ImmunogenicLoci)
	}
	return math.Exp(generalized + specific)
}

func (d *Discrete) RiskOfTransmission(v Antigen, fitness float64) float64 {
	risk := math.Exp(-d.params.XiTransmission*float64(d.exposures)) * fitness
	return min(1, max(0, risk))
}

func (d *Discrete) Add(v Antigen) {
	d.exposed.InPlaceUnion(v.Immunogenic())
	d.exposures++
}

func (d *Discrete) Vaccinate(composition []*bitset.BitSet) {
	for _, alleles := range composition {
		d.exposed.InPlaceUnion(alleles)
	}
	d.exposures++
}

func (d *Discrete) Reset() {
	d.exposures = 0
	d.exposed.ClearAll()
}

func (d *Discrete) Exposures() int {
	return d.exposures
}

func (d *Discrete) ExposedAlleles() []int64 {
	out := make([]int64, 0, d.exposed.Count())
	for i, ok := d.exposed.NextSet(0); ok; i, ok = d.exposed.NextSet(i + 1) {
		out = append(out, int64(i))
	}
	return out
}
