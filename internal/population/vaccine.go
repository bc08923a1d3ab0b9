package population

import (
	"cmp"
	"slices"

	"github.com/bits-and-blooms/bitset"
	"github.com/nvandessel/reassort/internal/constants"
	"github.com/nvandessel/reassort/internal/models"
)

// Composition is a selected vaccine: one allele set per component.
type Composition struct {
	Components []*bitset.BitSet
	Records    []models.VaccineRecord
}

// Composition returns the current vaccine, or nil before selection.
func (p *Population) Composition() *Composition {
	return p.composition
}

// enqueue stages h for vaccination once the program is close enough to its
// start that h could still be young enough for a target age.
func (p *Population) enqueue(h *Host) {
	v := p.opts.Vaccine
	if !v.enabled() || p.clock.Day < v.StartDay-slices.Max(v.Ages) {
		return
	}
	for i, age := range v.Ages {
		if h.AgeDays(p.clock.Day) <= age {
			p.queues[i].add(h)
		}
	}
}

// vaccinate immunizes every queued host that has reached its target age.
// Each eligible host is vaccinated with probability Coverage. Hosts stay
// queued while the composition is empty.
func (p *Population) vaccinate() {
	v := p.opts.Vaccine
	if !v.enabled() || p.composition == nil || len(p.composition.Components) == 0 || p.clock.Day <= v.StartDay {
		return
	}
	for i, age := range v.Ages {
		for _, h := range p.queues[i].popEligible(p.clock.Day, age) {
			if v.Coverage < 1 && !p.rng.Bernoulli(v.Coverage) {
				continue
			}
			h.immune.Vaccinate(p.composition.Components)
		}
	}
}

type tally struct {
	count   int
	alleles []int64
	set     *bitset.BitSet
}

// SelectVaccine tallies prevalence across every current infection and
// keeps the Valency most prevalent distinct entries. Ties go to the entry
// seen first. The selection replaces the current composition and is
// returned; it is nil when the makeup is none.
func (p *Population) SelectVaccine() *Composition {
	var tallies []*tally
	switch p.opts.Vaccine.Makeup {
	case constants.VaccineMakeupStrains:
		tallies = p.tallyStrains()
	case constants.VaccineMakeupSegments:
		tallies = p.tallySegments()
	default:
		return nil
	}

	slices.SortStableFunc(tallies, func(a, b *tally) int {
		return cmp.Compare(b.count, a.count)
	})
	if len(tallies) > p.opts.Vaccine.Valency {
		tallies = tallies[:p.opts.Vaccine.Valency]
	}

	c := &Composition{}
	for rank, t := range tallies {
		c.Components = append(c.Components, t.set)
		c.Records = append(c.Records, models.VaccineRecord{
			Rank:    rank + 1,
			Tally:   t.count,
			Alleles: t.alleles,
		})
	}
	p.composition = c
	return c
}

func (p *Population) tallyStrains() []*tally {
	index := make(map[string]*tally)
	var order []*tally
	k := p.factory.ImmunogenicLoci()
	for _, h := range p.infecteds {
		for _, v := range h.infections {
			key := v.Key()
			t, ok := index[key]
			if !ok {
				t = &tally{set: v.Immunogenic(), alleles: p.factory.Alleles(v)[:k]}
				index[key] = t
				order = append(order, t)
			}
			t.count++
		}
	}
	return order
}

func (p *Population) tallySegments() []*tally {
	index := make(map[int64]*tally)
	var order []*tally
	tree := p.factory.Tree()
	k := p.factory.ImmunogenicLoci()
	for _, h := range p.infecteds {
		for _, v := range h.infections {
			for _, s := range v.Segments[:k] {
				allele := tree.Allele(s)
				t, ok := index[allele]
				if !ok {
					set := &bitset.BitSet{}
					set.Set(uint(allele))
					t = &tally{alleles: []int64{allele}, set: set}
					index[allele] = t
					order = append(order, t)
				}
				t.count++
			}
		}
	}
	return order
}
