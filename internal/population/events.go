package population

import (
	"math"

	"github.com/nvandessel/reassort/internal/constants"
)

// swap implements turnover by resetting a Poisson number of hosts from each
// compartment into naive newborns.
func (p *Population) swap() {
	births := p.rng.Poisson(float64(p.S()) * p.opts.BirthRate)
	for i := 0; i < births && p.S() > 0; i++ {
		h := p.RemoveSusceptible(p.rng.IntN(p.S()))
		p.rebirth(h)
	}

	births = p.rng.Poisson(float64(p.I()) * p.opts.BirthRate)
	for i := 0; i < births && p.removable(); i++ {
		h := p.RemoveInfected(p.rng.IntN(p.I()))
		p.rebirth(h)
	}

	births = p.rng.Poisson(float64(p.R()) * p.opts.BirthRate)
	for i := 0; i < births && p.R() > 0; i++ {
		h := p.RemoveRecovered(p.rng.IntN(p.R()))
		p.rebirth(h)
	}
}

func (p *Population) rebirth(h *Host) {
	h.reset(p.nextHostID(), p.clock.Day)
	p.susceptibles = append(p.susceptibles, h)
	p.enqueue(h)
}

// grow adds a Poisson number of naive newborns.
func (p *Population) grow() {
	births := p.rng.Poisson(float64(p.N()) * p.opts.BirthRate)
	for i := 0; i < births; i++ {
		h := newHost(p.nextHostID(), p.clock.Day, p.opts.Immune.New())
		p.susceptibles = append(p.susceptibles, h)
		p.enqueue(h)
	}
}

// decline removes a Poisson number of hosts from each compartment.
func (p *Population) decline() {
	deaths := p.rng.Poisson(float64(p.S()) * p.opts.DeathRate)
	for i := 0; i < deaths && p.S() > 0; i++ {
		p.kill(p.RemoveSusceptible(p.rng.IntN(p.S())))
	}

	deaths = p.rng.Poisson(float64(p.I()) * p.opts.DeathRate)
	for i := 0; i < deaths && p.I() > 0; i++ {
		p.kill(p.RemoveInfected(p.rng.IntN(p.I())))
	}

	deaths = p.rng.Poisson(float64(p.R()) * p.opts.DeathRate)
	for i := 0; i < deaths && p.R() > 0; i++ {
		p.kill(p.RemoveRecovered(p.rng.IntN(p.R())))
	}
}

func (p *Population) fraction(n int) float64 {
	if p.N() == 0 {
		return 0
	}
	return float64(n) / float64(p.N())
}

// contact runs susceptible-directed then infected-directed contacts from
// random infected donors.
func (p *Population) contact() {
	contacts := p.rng.Poisson(float64(p.I()) * p.fraction(p.S()) * p.opts.Beta)
	for i := 0; i < contacts; i++ {
		if p.S() == 0 || p.I() == 0 {
			break
		}
		donor := p.randomInfected()
		p.infectSusceptible(donor, true)
	}

	contacts = p.rng.Poisson(float64(p.I()) * p.fraction(p.I()) * p.opts.Beta)
	for i := 0; i < contacts; i++ {
		if p.I() == 0 {
			break
		}
		donor := p.randomInfected()
		recipient := p.randomInfected()
		if ok, _ := p.Transmit(donor, recipient, true); ok {
			p.cases++
		}
	}
}

// infectSusceptible attempts transmission from donor to a random
// susceptible and moves the recipient to the infected compartment on
// success.
func (p *Population) infectSusceptible(donor *Host, donorRisk bool) {
	i := p.rng.IntN(p.S())
	recipient := p.susceptibles[i]
	if ok, _ := p.Transmit(donor, recipient, donorRisk); ok {
		p.RemoveSusceptible(i)
		p.infecteds = append(p.infecteds, recipient)
		p.cases++
	}
}

// Transmit runs the trials of one contact from donor to recipient and
// reports whether at least one succeeded, along with the number of donor
// genotypes drawn. A donor with one infection gets one trial; a
// superinfected donor gets exactly Bottleneck trials, each on an
// independently drawn genotype. Every successful trial infects the
// recipient with its genotype. When donorRisk is false only the
// recipient's infection risk applies.
func (p *Population) Transmit(donor, recipient *Host, donorRisk bool) (infected bool, trials int) {
	trials = 1
	if donor.Superinfected() {
		trials = p.opts.Bottleneck
	}
	for j := 0; j < trials; j++ {
		v := donor.RandomInfection(p.factory, p.rng, p.opts.Rho)
		chance := recipient.RiskOfInfection(v)
		if donorRisk {
			chance *= donor.RiskOfTransmission(p.factory, v)
		}
		if p.rng.Bernoulli(chance) {
			recipient.Infect(p.factory, v, p.clock.Day)
			infected = true
		}
	}
	return infected, trials
}

// recover clears every infection of a Poisson number of infected hosts.
func (p *Population) recover() {
	recoveries := p.rng.Poisson(float64(p.I()) * p.opts.Nu)
	for i := 0; i < recoveries && p.removable(); i++ {
		p.recoverAt(p.rng.IntN(p.I()))
	}
}

func (p *Population) recoverAt(i int) {
	h := p.RemoveInfected(i)
	h.ClearInfections()
	p.recovereds = append(p.recovereds, h)
}

// wane returns recovered hosts to the susceptible compartment.
func (p *Population) wane() {
	if math.IsInf(p.opts.Omega, 1) {
		for p.R() > 0 {
			p.susceptibles = append(p.susceptibles, p.RemoveRecovered(p.R()-1))
		}
		return
	}
	n := p.rng.Poisson(float64(p.R()) * p.opts.Omega)
	for i := 0; i < n && p.R() > 0; i++ {
		p.susceptibles = append(p.susceptibles, p.RemoveRecovered(p.rng.IntN(p.R())))
	}
}

func (p *Population) mutate() {
	n := p.rng.Poisson(float64(p.I()) * p.opts.Mu)
	for i := 0; i < n && p.I() > 0; i++ {
		p.randomInfected().Mutate(p.factory, p.rng)
	}
}

func (p *Population) introduce() {
	n := p.rng.Poisson(p.opts.Intro)
	for i := 0; i < n && p.I() > 0; i++ {
		p.randomInfected().Introduce(p.factory, p.rng)
	}
}

func (p *Population) reintroduce() {
	n := p.rng.Poisson(p.opts.Reintro)
	for i := 0; i < n && p.I() > 0; i++ {
		p.randomInfected().Reintroduce(p.factory, p.rng)
	}
}

// disrupt applies every disruption scheduled for today.
func (p *Population) disrupt() {
	for _, d := range p.opts.Disruptions {
		if d.Day != p.clock.Day {
			continue
		}
		switch d.Type {
		case constants.DisruptionMassExtinction:
			n := p.rng.Poisson(float64(p.I()) * d.Magnitude)
			for i := 0; i < n && p.I() > 0; i++ {
				p.recoverAt(p.rng.IntN(p.I()))
			}
		case constants.DisruptionChangeMutation:
			p.opts.Mu = d.Magnitude
		case constants.DisruptionChangeIntro:
			p.opts.Intro = d.Magnitude
		case constants.DisruptionChangeReassortment:
			p.opts.Rho = d.Magnitude
		default:
			continue
		}
		p.logger.Info("disruption applied", "day", d.Day, "type", string(d.Type), "magnitude", d.Magnitude, "infected", p.I())
		p.events.Log("disruption", p.clock.Day, map[string]any{
			"type":      string(d.Type),
			"magnitude": d.Magnitude,
			"infected":  p.I(),
		})
	}
}

// contactReservoir runs contacts from the frozen reservoir toward
// susceptible and infected hosts. Infected recipients face only their own
// infection risk.
func (p *Population) contactReservoir() {
	if len(p.reservoir) == 0 {
		return
	}
	rate := float64(len(p.reservoir)) * p.opts.Beta * p.opts.ReservoirContact

	contacts := p.rng.Poisson(rate * p.fraction(p.S()))
	for i := 0; i < contacts && p.S() > 0; i++ {
		donor := p.reservoir[p.rng.IntN(len(p.reservoir))]
		p.infectSusceptible(donor, true)
	}

	contacts = p.rng.Poisson(rate * p.fraction(p.I()))
	for i := 0; i < contacts && p.I() > 0; i++ {
		donor := p.reservoir[p.rng.IntN(len(p.reservoir))]
		recipient := p.randomInfected()
		if ok, _ := p.Transmit(donor, recipient, false); ok {
			p.cases++
		}
	}
}
