package population

import (
	"github.com/nvandessel/reassort/internal/ancestry"
	"github.com/nvandessel/reassort/internal/models"
)

// Samples are the per-host records collected since the last Drain.
type Samples struct {
	Infected []models.InfectedSample
	Immunity []models.ImmunitySample
}

// Drain returns the buffered samples and empties the buffer.
func (p *Population) Drain() Samples {
	s := p.samples
	p.samples = Samples{}
	return s
}

// sample records infected hosts, immunity snapshots and tree tips. Nothing
// is sampled during burn-in or while no host is infected.
func (p *Population) sample() {
	if p.I() == 0 || !p.clock.PastBurnin() {
		return
	}
	opts := p.opts.Sampling
	date := p.clock.Date()
	tree := p.factory.Tree()

	n := p.rng.Poisson(opts.InfectedHostRate * float64(p.I()))
	for i := 0; i < n; i++ {
		h := p.randomInfected()
		for _, v := range h.infections {
			for _, s := range v.Segments {
				p.samples.Infected = append(p.samples.Infected, models.InfectedSample{
					Date:          date,
					HostID:        h.ID,
					GenomeID:      v.Genome,
					SegmentID:     tree.Allele(s),
					HostAge:       h.Age(p.clock.Day),
					NumInfections: len(h.infections),
				})
			}
		}
	}

	n = p.rng.Poisson(opts.ImmunityHostRate * float64(p.N()))
	for i := 0; i < n; i++ {
		h := p.RandomHost()
		p.samples.Immunity = append(p.samples.Immunity, models.ImmunitySample{
			Date:          date,
			HostID:        h.ID,
			HostAge:       h.Age(p.clock.Day),
			NumInfections: len(h.infections),
			NumExposures:  h.immune.Exposures(),
			Alleles:       h.immune.ExposedAlleles(),
		})
	}

	rate := opts.TipRate
	if opts.TipProportional {
		rate *= float64(p.I())
	} else {
		rate *= float64(p.N())
	}
	n = p.rng.Poisson(rate)
	for i := 0; i < n; i++ {
		v := p.randomInfected().RandomInfection(p.factory, p.rng, p.opts.Rho)
		if opts.WholeGenomes {
			for _, s := range v.Segments {
				tree.AddTip(s)
			}
		} else {
			tree.AddTip(p.factory.RandomSegment(v))
		}
	}
}

// Live returns every segment carried by an infected or reservoir host.
func (p *Population) Live() []ancestry.ID {
	var live []ancestry.ID
	for _, hosts := range [][]*Host{p.infecteds, p.reservoir} {
		for _, h := range hosts {
			for _, v := range h.infections {
				live = append(live, v.Segments...)
			}
		}
	}
	return live
}

// Circulating returns every segment carried by an infected host.
func (p *Population) Circulating() []ancestry.ID {
	var out []ancestry.ID
	for _, h := range p.infecteds {
		for _, v := range h.infections {
			out = append(out, v.Segments...)
		}
	}
	return out
}

// Held returns segments referenced outside the infected population.
func (p *Population) Held() []ancestry.ID {
	held := p.factory.Held()
	for _, h := range p.reservoir {
		for _, v := range h.infections {
			held = append(held, v.Segments...)
		}
	}
	return held
}

// MakeTrunk flags the ancestry of every circulating segment as trunk.
func (p *Population) MakeTrunk() {
	p.factory.Tree().MakeTrunk(p.Circulating())
}

// Diversity is the mean ancestry distance, in years, between the first
// segments of pairs of random infections. It is zero without infections.
func (p *Population) Diversity() float64 {
	pairs := p.opts.Sampling.DiversityPairs
	if p.I() == 0 || pairs <= 0 {
		return 0
	}
	tree := p.factory.Tree()
	total := 0.0
	for i := 0; i < pairs; i++ {
		a := p.randomInfected().RandomInfection(p.factory, p.rng, p.opts.Rho)
		b := p.randomInfected().RandomInfection(p.factory, p.rng, p.opts.Rho)
		total += tree.Distance(a.Segments[0], b.Segments[0])
	}
	return total / float64(pairs)
}
