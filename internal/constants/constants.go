// Package constants provides named default values and enumerations used
// throughout the reassort codebase. This centralizes magic numbers so the
// configuration defaults and the model code agree.
package constants

// Simulation schedule defaults, in days.
const (
	// DefaultBurnin is the initial run time without recorded output.
	DefaultBurnin = 365 * 50

	// DefaultEndDay is the last simulated day.
	DefaultEndDay = 365*50 + 365*50

	// DefaultStreamlineInterval is how often the ancestry graph is compacted.
	DefaultStreamlineInterval = 5000
)

// Sampling defaults.
const (
	// DefaultTimeseriesStep is the number of days between aggregate-count rows.
	DefaultTimeseriesStep = 7

	// DefaultTipSamplingRate is the per-host per-day tip sampling rate.
	DefaultTipSamplingRate = 1e-5

	// DefaultTreeProportion is the share of stored tips kept for the final tree.
	DefaultTreeProportion = 1e-2

	// DefaultMarkTipsInterval is the width, in years, of the windows used to
	// pick marked tips.
	DefaultMarkTipsInterval = 0.5

	// MarkTipsStep is the spacing, in years, between successive mark windows.
	MarkTipsStep = 0.1

	// DefaultDiversitySamplingCount is the number of segment pairs averaged
	// for the diversity statistic.
	DefaultDiversitySamplingCount = 50

	// DefaultYearsToTrunk is trimmed off the end of the tree before counting
	// trunk and side-branch mutations.
	DefaultYearsToTrunk = 5.0

	// DefaultInfectedHostSamplingRate is the per-infected per-day sampling rate
	// for infected host records.
	DefaultInfectedHostSamplingRate = 1e-3

	// DefaultImmunityHostSamplingRate is the per-host per-day sampling rate for
	// immunity snapshots.
	DefaultImmunityHostSamplingRate = 1e-6
)

// Host population defaults.
const (
	// DefaultPopulationSize is the number of hosts.
	DefaultPopulationSize = 4000000

	// DefaultBirthRate is births per individual per day (a 30 year lifespan).
	DefaultBirthRate = 1.0 / (30.0 * 365.0)

	// DefaultDeathRate is deaths per individual per day.
	DefaultDeathRate = 1.0 / (30.0 * 365.0)

	// DefaultAgeShape is the gamma shape of host lifespans.
	DefaultAgeShape = 1.0
)

// Epidemiological defaults.
const (
	DefaultInitialInfected = 1

	// DefaultInitialPrR is the number of initial immune-history assignments
	// per host. Values above 1 give some hosts several prior exposures.
	DefaultInitialPrR = 8.0

	// DefaultBeta is contacts per individual per day.
	DefaultBeta = 25.0 / 7.0

	// DefaultNu is recoveries per individual per day.
	DefaultNu = 1.0 / 7.0

	// DefaultOmega is immunity loss per recovered individual per day.
	DefaultOmega = 1.0 / 365.0
)

// Genome defaults.
const (
	DefaultSegmentCount   = 2
	DefaultInitialStrains = 1

	// DefaultMu is mutations per infected host per day.
	DefaultMu = 1e-6

	// DefaultRho is the per-locus probability of taking a segment from a
	// coinfecting genotype.
	DefaultRho = 0.1

	// DefaultBottleneck is the number of genotype draws from a superinfected donor.
	DefaultBottleneck = 1
)

// Immunity defaults.
const (
	// DefaultXiGeneralized scales decay with the number of prior infections.
	DefaultXiGeneralized = 0.3

	// DefaultXiSpecific scales decay with the share of previously seen
	// immunogenic segments.
	DefaultXiSpecific = 0.3
)

// Vaccine defaults.
const (
	// DefaultVaccinationAge is the age in days at which hosts are vaccinated.
	DefaultVaccinationAge = 365

	DefaultVaccineCoverage = 1.0
	DefaultVaccineValency  = 1

	// DefaultVaccinationStartDay is the absolute day the program starts.
	DefaultVaccinationStartDay = 365 * 60
)

// MaxDisruptions is the number of scheduled disruption slots.
const MaxDisruptions = 4
