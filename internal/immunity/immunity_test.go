package immunity

import (
	"math"
	"slices"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/nvandessel/reassort/internal/constants"
)

type antigen struct{ alleles *bitset.BitSet }

func (a antigen) Immunogenic() *bitset.BitSet { return a.alleles }

func strain(alleles ...uint) antigen {
	b := &bitset.BitSet{}
	for _, a := range alleles {
		b.Set(a)
	}
	return antigen{b}
}

func newSystem() System {
	return Model{
		Kind: constants.ImmuneModelDiscrete,
		Params: Params{
			XiGeneralized:   0.3,
			XiSpecific:      0.3,
			XiTransmission:  0.2,
			ImmunogenicLoci: 2,
		},
	}.New()
}

func TestRiskOfInfection_Naive(t *testing.T) {
	s := newSystem()
	if got := s.RiskOfInfection(strain(1, 2)); got != 1 {
		t.Errorf("naive risk = %f, want 1", got)
	}
}

func TestRiskOfInfection_Formula(t *testing.T) {
	s := newSystem()
	s.Add(strain(1, 2))
	s.Add(strain(3, 4))

	got := s.RiskOfInfection(strain(1, 5))
	want := math.Exp(-0.3*2) * math.Exp(-0.3*1/2.0)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("risk = %f, want %f", got, want)
	}
}

func TestRiskOfInfection_MonotoneInExposures(t *testing.T) {
	s := newSystem()
	v := strain(10, 11)
	prev := s.RiskOfInfection(v)
	for i := 0; i < 10; i++ {
		s.Add(strain(uint(20 + i)))
		risk := s.RiskOfInfection(v)
		if risk > prev {
			t.Fatalf("risk rose from %f to %f after exposure %d", prev, risk, i+1)
		}
		if risk <= 0 || risk > 1 {
			t.Fatalf("risk %f outside (0, 1]", risk)
		}
		prev = risk
	}
}

func TestRiskOfInfection_MonotoneInOverlap(t *testing.T) {
	// Same exposure count, increasing overlap with the challenge strain.
	v := strain(1, 2)
	var risks []float64
	for _, seen := range []antigen{strain(7, 8), strain(1, 8), strain(1, 2)} {
		s := newSystem()
		s.Add(seen)
		risks = append(risks, s.RiskOfInfection(v))
	}
	for i := 1; i < len(risks); i++ {
		if risks[i] > risks[i-1] {
			t.Errorf("risk rose with overlap: %v", risks)
		}
	}
	if risks[2] >= risks[0] {
		t.Errorf("full overlap should lower risk: %v", risks)
	}
}

func TestRiskOfTransmission(t *testing.T) {
	s := newSystem()
	if got := s.RiskOfTransmission(strain(1), 0.5); got != 0.5 {
		t.Errorf("naive transmission = %f, want 0.5", got)
	}
	if got := s.RiskOfTransmission(strain(1), 3); got != 1 {
		t.Errorf("transmission should be capped at 1, got %f", got)
	}
	s.Add(strain(1))
	if got, want := s.RiskOfTransmission(strain(1), 1), math.Exp(-0.2); math.Abs(got-want) > 1e-12 {
		t.Errorf("transmission = %f, want %f", got, want)
	}
}

func TestAdd_Idempotent(t *testing.T) {
	s := newSystem()
	s.Add(strain(3, 4))
	s.Add(strain(3, 4))

	if got := s.ExposedAlleles(); !slices.Equal(got, []int64{3, 4}) {
		t.Errorf("exposed = %v, want [3 4]", got)
	}
	if s.Exposures() != 2 {
		t.Errorf("exposures = %d, want 2", s.Exposures())
	}
}

func TestVaccinate_SingleEvent(t *testing.T) {
	s := newSystem()
	s.Vaccinate([]*bitset.BitSet{strain(1, 2).alleles, strain(5, 6).alleles})

	if s.Exposures() != 1 {
		t.Errorf("vaccination counted %d exposures, want 1", s.Exposures())
	}
	if got := s.ExposedAlleles(); !slices.Equal(got, []int64{1, 2, 5, 6}) {
		t.Errorf("exposed = %v", got)
	}
}

func TestReset(t *testing.T) {
	s := newSystem()
	s.Add(strain(1, 2))
	s.Reset()

	if s.Exposures() != 0 || len(s.ExposedAlleles()) != 0 {
		t.Error("reset should clear history")
	}
	if got := s.RiskOfInfection(strain(1, 2)); got != 1 {
		t.Errorf("risk after reset = %f, want 1", got)
	}
}
