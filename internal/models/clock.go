package models

// DaysPerYear converts simulated days to years.
const DaysPerYear = 365.0

// Clock is the per-run day counter. A fresh Clock is constructed for every
// run attempt; nothing else in the simulation keeps its own notion of time.
type Clock struct {
	// Day is the number of simulated days elapsed.
	Day int

	// Burnin is the day at which recorded output begins. Dates are measured
	// in years relative to it, so dates during burn-in are negative.
	Burnin int
}

// NewClock returns a clock at day zero.
func NewClock(burnin int) *Clock {
	return &Clock{Burnin: burnin}
}

// Date returns the current time in years relative to the end of burn-in.
func (c *Clock) Date() float64 {
	return float64(c.Day-c.Burnin) / DaysPerYear
}

// Advance moves the clock forward one day.
func (c *Clock) Advance() {
	c.Day++
}

// PastBurnin reports whether recording has started.
func (c *Clock) PastBurnin() bool {
	return c.Day >= c.Burnin
}
