// Package population implements the host population and its daily event
// pipeline: demographic turnover, contact, recovery, waning immunity,
// mutation, introduction, vaccination, scheduled disruption, reservoir
// contact and sampling.
//
// Every event type draws a Poisson count from a rate over the current
// compartment sizes and then runs that many independent trials. Hosts move
// between the susceptible, infected and recovered compartments by
// swap-removal, so order within a compartment carries no meaning.
package population

import (
	"io"
	"log/slog"
	"math"

	"github.com/nvandessel/reassort/internal/constants"
	"github.com/nvandessel/reassort/internal/genome"
	"github.com/nvandessel/reassort/internal/immunity"
	"github.com/nvandessel/reassort/internal/logging"
	"github.com/nvandessel/reassort/internal/models"
	"github.com/nvandessel/reassort/internal/random"
)

// Options configures a Population.
type Options struct {
	N          int
	InitialI   int
	InitialPrR float64

	BirthRate float64
	DeathRate float64

	// AgeShape is the gamma shape of host lifespans. 1 or non-positive
	// values use the exponential distribution.
	AgeShape float64

	// Swap resets hosts in place instead of drawing births and deaths
	// independently, so N is conserved exactly.
	Swap bool

	Beta float64
	Nu   float64

	// Omega is the waning rate. +Inf empties the recovered compartment
	// every day.
	Omega float64

	Mu         float64
	Intro      float64
	Rho        float64
	Bottleneck int

	ReservoirContact float64
	Reintro          float64

	Burnin                int
	KeepAlive             bool
	KeepAliveDuringBurnin bool

	Immune   immunity.Model
	Sampling SamplingOptions
	Vaccine  VaccineOptions

	Disruptions []Disruption
}

// SamplingOptions controls the per-day samples.
type SamplingOptions struct {
	InfectedHostRate float64
	ImmunityHostRate float64

	TipRate         float64
	TipProportional bool
	WholeGenomes    bool

	// DiversityPairs is the number of segment pairs averaged by Diversity.
	DiversityPairs int
}

// VaccineOptions controls the vaccination program.
type VaccineOptions struct {
	Makeup   constants.VaccineMakeup
	Ages     []int
	Coverage float64
	Valency  int
	StartDay int
}

func (o VaccineOptions) enabled() bool {
	return o.Makeup != "" && o.Makeup != constants.VaccineMakeupNone && len(o.Ages) > 0
}

// Disruption is a one-time change applied on Day.
type Disruption struct {
	Day       int
	Type      constants.DisruptionType
	Magnitude float64
}

// Population is the host population for one run. It is not safe for
// concurrent use.
type Population struct {
	opts    Options
	rng     *random.Source
	clock   *models.Clock
	factory *genome.Factory

	susceptibles []*Host
	infecteds    []*Host
	recovereds   []*Host
	reservoir    []*Host

	lastHost int64
	cases    int

	queues      []ageQueue
	composition *Composition

	samples Samples

	logger *slog.Logger
	events *logging.EventLogger
}

// New builds a population at the clock's current day: a frozen reservoir
// when reservoir contact is enabled, N-InitialI naive susceptibles,
// InitialI hosts each infected with a random founding strain, and
// round(InitialPrR*N) immune-history assignments to random hosts.
func New(opts Options, f *genome.Factory, rng *random.Source, clock *models.Clock) *Population {
	p := &Population{
		opts:    opts,
		rng:     rng,
		clock:   clock,
		factory: f,
		queues:  make([]ageQueue, len(opts.Vaccine.Ages)),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	strains := f.Strains()

	if opts.ReservoirContact > 0 {
		for _, v := range strains {
			h := p.newHost()
			h.Infect(f, v, clock.Day)
			p.reservoir = append(p.reservoir, h)
		}
	}

	for i := 0; i < opts.N-opts.InitialI; i++ {
		h := p.newHost()
		p.enqueue(h)
		p.susceptibles = append(p.susceptibles, h)
	}

	for i := 0; i < opts.InitialI; i++ {
		h := p.newHost()
		p.enqueue(h)
		h.Infect(f, strains[rng.IntN(len(strains))], clock.Day)
		p.infecteds = append(p.infecteds, h)
	}

	if p.N() > 0 {
		for i := 0; i < int(math.Round(opts.InitialPrR*float64(opts.N))); i++ {
			p.RandomHost().immune.Add(strains[rng.IntN(len(strains))])
		}
	}
	return p
}

// SetLogger sets the structured logger and event logger for observability.
func (p *Population) SetLogger(logger *slog.Logger, events *logging.EventLogger) {
	if logger != nil {
		p.logger = logger
	}
	p.events = events
}

// newHost creates a host whose age is drawn from the lifespan distribution
// implied by the birth rate.
func (p *Population) newHost() *Host {
	age := p.drawAge()
	birth := p.clock.Day - int(math.Round(age*models.DaysPerYear))
	return newHost(p.nextHostID(), birth, p.opts.Immune.New())
}

// drawAge returns an age in years with mean lifespan 1/birthRate. Shape 1
// is exponential; larger shapes concentrate ages around the mean.
func (p *Population) drawAge() float64 {
	if p.opts.BirthRate <= 0 {
		return 0
	}
	lifespan := 1 / (models.DaysPerYear * p.opts.BirthRate)
	shape := p.opts.AgeShape
	if shape <= 0 || shape == 1 {
		return p.rng.Exponential(lifespan)
	}
	return p.rng.Gamma(shape, shape/lifespan)
}

func (p *Population) nextHostID() int64 {
	p.lastHost++
	return p.lastHost
}

// N returns the number of hosts, excluding the reservoir.
func (p *Population) N() int { return len(p.susceptibles) + len(p.infecteds) + len(p.recovereds) }

// S returns the number of susceptible hosts.
func (p *Population) S() int { return len(p.susceptibles) }

// I returns the number of infected hosts, superinfected included.
func (p *Population) I() int { return len(p.infecteds) }

// R returns the number of fully protected recovered hosts.
func (p *Population) R() int { return len(p.recovereds) }

// Cases returns the number of successful transmissions since the last
// ResetCases.
func (p *Population) Cases() int { return p.cases }

// ResetCases zeroes the case counter.
func (p *Population) ResetCases() { p.cases = 0 }

// Infecteds returns the infected hosts. Callers must not modify the slice.
func (p *Population) Infecteds() []*Host { return p.infecteds }

// Reservoir returns the frozen reservoir hosts.
func (p *Population) Reservoir() []*Host { return p.reservoir }

// Rates returns the current mutation, introduction and reassortment
// parameters, which disruptions may change during a run.
func (p *Population) Rates() (mu, intro, rho float64) {
	return p.opts.Mu, p.opts.Intro, p.opts.Rho
}

// RandomHost returns a uniformly chosen host from any compartment.
func (p *Population) RandomHost() *Host {
	n := p.rng.IntN(p.N())
	switch {
	case n < p.S():
		return p.susceptibles[p.rng.IntN(p.S())]
	case n < p.S()+p.I():
		return p.infecteds[p.rng.IntN(p.I())]
	default:
		return p.recovereds[p.rng.IntN(p.R())]
	}
}

func (p *Population) randomInfected() *Host {
	return p.infecteds[p.rng.IntN(p.I())]
}

// removeAt swap-removes the host at index i of hosts and returns it.
func removeAt(hosts *[]*Host, i int) *Host {
	s := *hosts
	h := s[i]
	last := len(s) - 1
	s[i] = s[last]
	s[last] = nil
	*hosts = s[:last]
	return h
}

// RemoveSusceptible removes and returns the susceptible host at index i.
func (p *Population) RemoveSusceptible(i int) *Host {
	return removeAt(&p.susceptibles, i)
}

// RemoveInfected removes and returns the infected host at index i.
func (p *Population) RemoveInfected(i int) *Host {
	return removeAt(&p.infecteds, i)
}

// RemoveRecovered removes and returns the recovered host at index i.
func (p *Population) RemoveRecovered(i int) *Host {
	return removeAt(&p.recovereds, i)
}

// kill drops a removed host from every vaccine queue.
func (p *Population) kill(h *Host) {
	h.gen++
}

// Step advances the population one day. The clock is not advanced.
func (p *Population) Step() {
	if p.opts.Swap {
		p.swap()
	} else {
		p.grow()
		p.decline()
	}
	p.contact()
	p.recover()
	p.wane()
	p.mutate()
	p.introduce()
	p.reintroduce()
	p.vaccinate()
	p.disrupt()
	p.contactReservoir()
	p.sample()
}

// protected reports whether the last infected host must be kept today.
func (p *Population) protected() bool {
	if p.opts.KeepAlive {
		return true
	}
	return p.opts.KeepAliveDuringBurnin && p.clock.Day <= p.opts.Burnin
}

// removable reports whether an infected host may leave the compartment.
func (p *Population) removable() bool {
	if p.protected() {
		return p.I() > 1
	}
	return p.I() > 0
}
