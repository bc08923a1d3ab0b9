package population

import (
	"github.com/nvandessel/reassort/internal/genome"
	"github.com/nvandessel/reassort/internal/immunity"
	"github.com/nvandessel/reassort/internal/models"
	"github.com/nvandessel/reassort/internal/random"
)

// Host is one individual. It carries any number of concurrent infections
// and its own immune history.
type Host struct {
	ID int64

	// BirthDay is the simulated day the host was born. Hosts created at
	// initialization may have negative birth days.
	BirthDay int

	infections []*genome.Virus
	immune     immunity.System

	// gen invalidates vaccine queue entries when the host is reset or dies.
	gen uint32
}

func newHost(id int64, birthDay int, immune immunity.System) *Host {
	return &Host{ID: id, BirthDay: birthDay, immune: immune}
}

// AgeDays returns the host's age on day.
func (h *Host) AgeDays(day int) int {
	return day - h.BirthDay
}

// Age returns the host's age in years on day.
func (h *Host) Age(day int) float64 {
	return float64(h.AgeDays(day)) / models.DaysPerYear
}

// Infections returns the host's concurrent infections. Callers must not
// modify the slice.
func (h *Host) Infections() []*genome.Virus {
	return h.infections
}

// Infected reports whether the host carries at least one infection.
func (h *Host) Infected() bool {
	return len(h.infections) > 0
}

// Superinfected reports whether the host carries more than one infection.
func (h *Host) Superinfected() bool {
	return len(h.infections) > 1
}

// Immune returns the host's immune history.
func (h *Host) Immune() immunity.System {
	return h.immune
}

// Infect appends a replication copy of v, tagged with the host's age.
func (h *Host) Infect(f *genome.Factory, v *genome.Virus, day int) {
	h.infections = append(h.infections, f.Copy(v, h.Age(day)))
}

// RandomInfection returns the host's only infection, or for a
// superinfected host a reassortant of a uniformly chosen infection with the
// others. The host must be infected.
func (h *Host) RandomInfection(f *genome.Factory, rng *random.Source, rho float64) *genome.Virus {
	i := rng.IntN(len(h.infections))
	if !h.Superinfected() {
		return h.infections[i]
	}
	others := make([]*genome.Virus, 0, len(h.infections)-1)
	others = append(others, h.infections[:i]...)
	others = append(others, h.infections[i+1:]...)
	return f.Reassort(h.infections[i], others, rho)
}

// RiskOfInfection is the recipient-side factor for contact with v.
func (h *Host) RiskOfInfection(v *genome.Virus) float64 {
	return h.immune.RiskOfInfection(v)
}

// RiskOfTransmission is the donor-side factor for passing on v.
func (h *Host) RiskOfTransmission(f *genome.Factory, v *genome.Virus) float64 {
	return h.immune.RiskOfTransmission(v, f.Fitness(v))
}

// ClearInfections folds every infection into the immune history and empties
// the infection list.
func (h *Host) ClearInfections() {
	for _, v := range h.infections {
		h.immune.Add(v)
	}
	clear(h.infections)
	h.infections = h.infections[:0]
}

// Mutate replaces a uniformly chosen infection with a point mutant.
func (h *Host) Mutate(f *genome.Factory, rng *random.Source) {
	h.replace(rng, f.Mutate)
}

// Introduce replaces a uniformly chosen infection with a variant carrying a
// mutated founding allele.
func (h *Host) Introduce(f *genome.Factory, rng *random.Source) {
	h.replace(rng, f.Introduce)
}

// Reintroduce replaces a uniformly chosen infection with a variant carrying
// an exact founding allele.
func (h *Host) Reintroduce(f *genome.Factory, rng *random.Source) {
	h.replace(rng, f.Reintroduce)
}

func (h *Host) replace(rng *random.Source, op func(*genome.Virus) *genome.Virus) {
	i := rng.IntN(len(h.infections))
	h.infections[i] = op(h.infections[i])
}

// reset turns the host into a naive newborn.
func (h *Host) reset(id int64, day int) {
	h.ID = id
	h.BirthDay = day
	clear(h.infections)
	h.infections = h.infections[:0]
	h.immune.Reset()
	h.gen++
}
