package genome

import (
	"fmt"
	"math"

	"github.com/nvandessel/reassort/internal/constants"
	"github.com/nvandessel/reassort/internal/random"
	"gonum.org/v1/gonum/stat"
)

// SegmentFitness draws the fitness of a newly created allele.
type SegmentFitness struct {
	Model constants.SegmentFitness

	// Mean is the exponential mean, or the normal mean before truncation.
	Mean float64

	// SD is the normal standard deviation.
	SD float64
}

// Draw returns a fitness value. The equal model consumes no draw.
func (f SegmentFitness) Draw(rng *random.Source) float64 {
	switch f.Model {
	case constants.SegmentFitnessEqual:
		return 1
	case constants.SegmentFitnessExponential:
		return rng.Exponential(f.Mean)
	case constants.SegmentFitnessTruncatedNormal:
		return min(2*f.Mean, max(0, rng.Normal(f.Mean, f.SD)))
	}
	panic(fmt.Sprintf("invariant: unknown segment fitness model %q", f.Model))
}

// GenotypeFitness aggregates segment fitness into a genotype fitness.
type GenotypeFitness struct {
	Model constants.GenotypeFitness

	// Tau is the saturating time constant in years.
	Tau float64

	// Floor is the saturating fitness of a brand new genotype.
	Floor float64
}

// Of returns the fitness of a genotype with the given segment fitness values
// that has existed for age years.
func (f GenotypeFitness) Of(segments []float64, age float64) float64 {
	switch f.Model {
	case constants.GenotypeFitnessConstant:
		return 1
	case constants.GenotypeFitnessMean:
		if len(segments) == 0 {
			return 0
		}
		return stat.Mean(segments, nil)
	case constants.GenotypeFitnessSaturating:
		if age <= 0 {
			return f.Floor
		}
		return f.Floor + (1-f.Floor)*(1-math.Exp(-age/f.Tau))
	}
	panic(fmt.Sprintf("invariant: unknown genotype fitness model %q", f.Model))
}
