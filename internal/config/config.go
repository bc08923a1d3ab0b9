// Package config provides unified configuration loading for reassort.
// It supports loading from YAML files, environment variables and flat
// key=value arguments, and validates the result before a run starts.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/nvandessel/reassort/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config contains all reassort configuration settings.
type Config struct {
	Simulation   SimulationConfig   `json:"simulation" yaml:"simulation"`
	Sampling     SamplingConfig     `json:"sampling" yaml:"sampling"`
	Demography   DemographyConfig   `json:"demography" yaml:"demography"`
	Epidemiology EpidemiologyConfig `json:"epidemiology" yaml:"epidemiology"`
	Segments     SegmentsConfig     `json:"segments" yaml:"segments"`
	Mutation     MutationConfig     `json:"mutation" yaml:"mutation"`
	Immunity     ImmunityConfig     `json:"immunity" yaml:"immunity"`
	Reservoir    ReservoirConfig    `json:"reservoir" yaml:"reservoir"`
	Vaccine      VaccineConfig      `json:"vaccine" yaml:"vaccine"`

	// Disruptions holds up to constants.MaxDisruptions scheduled changes.
	Disruptions []DisruptionConfig `json:"disruptions,omitempty" yaml:"disruptions,omitempty"`

	Output  OutputConfig  `json:"output" yaml:"output"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig controls the day loop.
type SimulationConfig struct {
	// Burnin is the number of days run before output is recorded.
	Burnin int `json:"burnin" yaml:"burnin"`

	// EndDay is the last simulated day.
	EndDay int `json:"end_day" yaml:"end_day"`

	// RepeatSim restarts the run after a stochastic extinction.
	RepeatSim bool `json:"repeat_sim" yaml:"repeat_sim"`

	// KeepAliveDuringBurnin never removes the last infected host during burn-in.
	KeepAliveDuringBurnin bool `json:"keep_alive_during_burnin" yaml:"keep_alive_during_burnin"`

	// KeepAlive never removes the last infected host.
	KeepAlive bool `json:"keep_alive" yaml:"keep_alive"`

	// Seed fixes the random stream. Nil draws a seed from the wall clock.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// StreamlineInterval is the number of days between ancestry compactions.
	// Zero disables periodic compaction.
	StreamlineInterval int `json:"streamline_interval" yaml:"streamline_interval"`
}

// SamplingConfig controls what is sampled for output and the final tree.
type SamplingConfig struct {
	TimeseriesStep           int     `json:"timeseries_step" yaml:"timeseries_step"`
	TipSamplingRate          float64 `json:"tip_sampling_rate" yaml:"tip_sampling_rate"`
	TipSamplingProportional  bool    `json:"tip_sampling_proportional" yaml:"tip_sampling_proportional"`
	TreeProportion           float64 `json:"tree_proportion" yaml:"tree_proportion"`
	MarkTipsInterval         float64 `json:"mark_tips_interval" yaml:"mark_tips_interval"`
	DiversitySamplingCount   int     `json:"diversity_sampling_count" yaml:"diversity_sampling_count"`
	YearsToTrunk             float64 `json:"years_to_trunk" yaml:"years_to_trunk"`
	SampleWholeGenomes       bool    `json:"sample_whole_genomes" yaml:"sample_whole_genomes"`
	InfectedHostSamplingRate float64 `json:"infected_host_sampling_rate" yaml:"infected_host_sampling_rate"`
	ImmunityHostSamplingRate float64 `json:"immunity_host_sampling_rate" yaml:"immunity_host_sampling_rate"`
}

// DemographyConfig controls host turnover.
type DemographyConfig struct {
	N         int     `json:"n" yaml:"n"`
	BirthRate float64 `json:"birth_rate" yaml:"birth_rate"`
	DeathRate float64 `json:"death_rate" yaml:"death_rate"`

	// AgeShape is the gamma shape of the lifespan distribution new hosts
	// draw their age from. 1 is exponential.
	AgeShape float64 `json:"age_shape" yaml:"age_shape"`

	// SwapDemography resets hosts in place so N is conserved exactly.
	SwapDemography bool `json:"swap_demography" yaml:"swap_demography"`
}

// EpidemiologyConfig holds the transmission parameters.
type EpidemiologyConfig struct {
	InitialI   int     `json:"initial_i" yaml:"initial_i"`
	InitialPrR float64 `json:"initial_pr_r" yaml:"initial_pr_r"`
	Beta       float64 `json:"beta" yaml:"beta"`
	Nu         float64 `json:"nu" yaml:"nu"`

	// Omega is the waning rate. +Inf moves every recovered host back to
	// susceptible each day.
	Omega float64 `json:"omega" yaml:"omega"`
}

// FitnessConfig selects a fitness model and its parameters.
type FitnessConfig struct {
	Model  string  `json:"model" yaml:"model"`
	Param1 float64 `json:"param1" yaml:"param1"`
	Param2 float64 `json:"param2" yaml:"param2"`
}

// SegmentsConfig describes the genome layout.
type SegmentsConfig struct {
	Count int `json:"count" yaml:"count"`

	// InitialAlleles is the number of founding alleles per locus. Empty means
	// one allele at every locus.
	InitialAlleles []int `json:"initial_alleles,omitempty" yaml:"initial_alleles,omitempty"`

	InitialStrains int `json:"initial_strains" yaml:"initial_strains"`

	// Immunogenic is the number of leading loci that drive specific immunity.
	// Zero means every locus.
	Immunogenic int `json:"immunogenic" yaml:"immunogenic"`

	Fitness         FitnessConfig `json:"fitness" yaml:"fitness"`
	GenotypeFitness FitnessConfig `json:"genotype_fitness" yaml:"genotype_fitness"`
}

// MutationConfig holds mutation and reassortment parameters.
type MutationConfig struct {
	Mu         float64 `json:"mu" yaml:"mu"`
	Intro      float64 `json:"intro" yaml:"intro"`
	Rho        float64 `json:"rho" yaml:"rho"`
	Bottleneck int     `json:"bottleneck" yaml:"bottleneck"`
}

// ImmunityConfig selects the immune-system strategy and its decay constants.
type ImmunityConfig struct {
	Model          string  `json:"model" yaml:"model"`
	XiGeneralized  float64 `json:"xi_generalized" yaml:"xi_generalized"`
	XiSpecific     float64 `json:"xi_specific" yaml:"xi_specific"`
	XiTransmission float64 `json:"xi_transmission" yaml:"xi_transmission"`
}

// ReservoirConfig controls contact with the frozen external strain pool.
type ReservoirConfig struct {
	ContactProportion float64 `json:"contact_proportion" yaml:"contact_proportion"`
	Reintro           float64 `json:"reintro" yaml:"reintro"`
}

// VaccineConfig controls the vaccination program.
type VaccineConfig struct {
	Makeup string `json:"makeup" yaml:"makeup"`

	// Ages are the target ages, in days, one priority queue each.
	Ages []int `json:"ages" yaml:"ages"`

	Coverage float64 `json:"coverage" yaml:"coverage"`
	Valency  int     `json:"valency" yaml:"valency"`
	StartDay int     `json:"start_day" yaml:"start_day"`

	// UpdateInterval re-selects the composition every so many days after the
	// start day. Zero selects once.
	UpdateInterval int `json:"update_interval" yaml:"update_interval"`
}

// DisruptionConfig is one scheduled one-time change.
type DisruptionConfig struct {
	Day       int     `json:"day" yaml:"day"`
	Type      string  `json:"type" yaml:"type"`
	Magnitude float64 `json:"magnitude" yaml:"magnitude"`
}

// OutputConfig controls where results go.
type OutputConfig struct {
	// Dir receives tabular output files and the event log.
	Dir string `json:"dir" yaml:"dir"`

	// Database is the SQLite results path. Empty disables the database.
	Database string `json:"database" yaml:"database"`

	// Tables enables the tabular output files.
	Tables bool `json:"tables" yaml:"tables"`

	Compression string `json:"compression" yaml:"compression"`

	// S3URI, when set, receives a copy of the output directory after the run.
	S3URI    string `json:"s3_uri,omitempty" yaml:"s3_uri,omitempty"`
	S3Region string `json:"s3_region,omitempty" yaml:"s3_region,omitempty"`
}

// LoggingConfig configures reassort's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the JSONL event log in the output directory.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the reference model's defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Burnin:                constants.DefaultBurnin,
			EndDay:                constants.DefaultEndDay,
			RepeatSim:             true,
			KeepAliveDuringBurnin: true,
			KeepAlive:             true,
			StreamlineInterval:    constants.DefaultStreamlineInterval,
		},
		Sampling: SamplingConfig{
			TimeseriesStep:           constants.DefaultTimeseriesStep,
			TipSamplingRate:          constants.DefaultTipSamplingRate,
			TreeProportion:           constants.DefaultTreeProportion,
			MarkTipsInterval:         constants.DefaultMarkTipsInterval,
			DiversitySamplingCount:   constants.DefaultDiversitySamplingCount,
			YearsToTrunk:             constants.DefaultYearsToTrunk,
			SampleWholeGenomes:       true,
			InfectedHostSamplingRate: constants.DefaultInfectedHostSamplingRate,
			ImmunityHostSamplingRate: constants.DefaultImmunityHostSamplingRate,
		},
		Demography: DemographyConfig{
			N:              constants.DefaultPopulationSize,
			BirthRate:      constants.DefaultBirthRate,
			DeathRate:      constants.DefaultDeathRate,
			AgeShape:       constants.DefaultAgeShape,
			SwapDemography: true,
		},
		Epidemiology: EpidemiologyConfig{
			InitialI:   constants.DefaultInitialInfected,
			InitialPrR: constants.DefaultInitialPrR,
			Beta:       constants.DefaultBeta,
			Nu:         constants.DefaultNu,
			Omega:      constants.DefaultOmega,
		},
		Segments: SegmentsConfig{
			Count:          constants.DefaultSegmentCount,
			InitialStrains: constants.DefaultInitialStrains,
			Fitness: FitnessConfig{
				Model:  string(constants.SegmentFitnessEqual),
				Param1: 1,
			},
			GenotypeFitness: FitnessConfig{
				Model:  string(constants.GenotypeFitnessConstant),
				Param1: 1,
			},
		},
		Mutation: MutationConfig{
			Mu:         constants.DefaultMu,
			Rho:        constants.DefaultRho,
			Bottleneck: constants.DefaultBottleneck,
		},
		Immunity: ImmunityConfig{
			Model:          string(constants.ImmuneModelDiscrete),
			XiGeneralized:  constants.DefaultXiGeneralized,
			XiSpecific:     constants.DefaultXiSpecific,
			XiTransmission: constants.DefaultXiGeneralized,
		},
		Vaccine: VaccineConfig{
			Makeup:   string(constants.VaccineMakeupNone),
			Ages:     []int{constants.DefaultVaccinationAge},
			Coverage: constants.DefaultVaccineCoverage,
			Valency:  constants.DefaultVaccineValency,
			StartDay: constants.DefaultVaccinationStartDay,
		},
		Output: OutputConfig{
			Dir:         ".",
			Database:    "reassort.db",
			Tables:      true,
			Compression: string(constants.CompressionNone),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a configuration in order: defaults -> YAML file (if path is
// non-empty) -> environment variables -> key=value args. It returns the keys
// in args that were not recognized; unknown keys are not an error.
func Load(path string, args []string) (*Config, []string, error) {
	cfg := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = fileConfig
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, nil, err
	}

	unknown, err := cfg.ApplyArgs(args)
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, unknown, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &Error{Key: path, Err: fmt.Errorf("parsing config file: %w", err)}
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("REASSORT_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &Error{Key: "REASSORT_SEED", Err: err}
		}
		cfg.Simulation.Seed = &seed
	}

	if v := os.Getenv("REASSORT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("REASSORT_OUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	return nil
}

// Error is a configuration problem detected before the run starts.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalid(key, format string, args ...any) error {
	return &Error{Key: key, Err: fmt.Errorf(format, args...)}
}

// Validate checks that the configuration is valid and internally consistent.
func (c *Config) Validate() error {
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	nonNegative := func(key string, v float64) {
		if v < 0 || math.IsNaN(v) {
			check(invalid(key, "must be non-negative, got %v", v))
		}
	}
	probability := func(key string, v float64) {
		if v < 0 || v > 1 || math.IsNaN(v) {
			check(invalid(key, "must be between 0 and 1, got %v", v))
		}
	}

	sim := c.Simulation
	if sim.Burnin < 0 {
		check(invalid("simulation.burnin", "must be non-negative, got %d", sim.Burnin))
	}
	if sim.EndDay < sim.Burnin {
		check(invalid("simulation.end_day", "must be at least burnin (%d), got %d", sim.Burnin, sim.EndDay))
	}
	if sim.StreamlineInterval < 0 {
		check(invalid("simulation.streamline_interval", "must be non-negative, got %d", sim.StreamlineInterval))
	}

	s := c.Sampling
	if s.TimeseriesStep <= 0 {
		check(invalid("sampling.timeseries_step", "must be positive, got %d", s.TimeseriesStep))
	}
	nonNegative("sampling.tip_sampling_rate", s.TipSamplingRate)
	probability("sampling.tree_proportion", s.TreeProportion)
	if s.MarkTipsInterval <= 0 {
		check(invalid("sampling.mark_tips_interval", "must be positive, got %v", s.MarkTipsInterval))
	}
	if s.DiversitySamplingCount < 0 {
		check(invalid("sampling.diversity_sampling_count", "must be non-negative, got %d", s.DiversitySamplingCount))
	}
	nonNegative("sampling.years_to_trunk", s.YearsToTrunk)
	nonNegative("sampling.infected_host_sampling_rate", s.InfectedHostSamplingRate)
	nonNegative("sampling.immunity_host_sampling_rate", s.ImmunityHostSamplingRate)

	d := c.Demography
	if d.N <= 0 {
		check(invalid("demography.n", "must be positive, got %d", d.N))
	}
	nonNegative("demography.birth_rate", d.BirthRate)
	nonNegative("demography.death_rate", d.DeathRate)
	if d.BirthRate == 0 {
		check(invalid("demography.birth_rate", "must be positive to define host lifespan"))
	}
	if !(d.AgeShape > 0) || math.IsInf(d.AgeShape, 0) {
		check(invalid("demography.age_shape", "must be positive and finite, got %v", d.AgeShape))
	}

	e := c.Epidemiology
	if e.InitialI < 0 || e.InitialI > d.N {
		check(invalid("epidemiology.initial_i", "must be between 0 and N (%d), got %d", d.N, e.InitialI))
	}
	nonNegative("epidemiology.initial_pr_r", e.InitialPrR)
	nonNegative("epidemiology.beta", e.Beta)
	nonNegative("epidemiology.nu", e.Nu)
	nonNegative("epidemiology.omega", e.Omega)

	seg := c.Segments
	if seg.Count <= 0 {
		check(invalid("segments.count", "must be positive, got %d", seg.Count))
	}
	if len(seg.InitialAlleles) > 0 && len(seg.InitialAlleles) != seg.Count {
		check(invalid("segments.initial_alleles", "has %d entries but segments.count is %d", len(seg.InitialAlleles), seg.Count))
	}
	for i, n := range seg.InitialAlleles {
		if n <= 0 {
			check(invalid("segments.initial_alleles", "entry %d must be positive, got %d", i, n))
		}
	}
	if seg.InitialStrains <= 0 {
		check(invalid("segments.initial_strains", "must be positive, got %d", seg.InitialStrains))
	}
	if seg.Immunogenic < 0 || seg.Immunogenic > seg.Count {
		check(invalid("segments.immunogenic", "must be between 0 and segments.count (%d), got %d", seg.Count, seg.Immunogenic))
	}
	if !constants.SegmentFitness(seg.Fitness.Model).Valid() {
		check(invalid("segments.fitness.model", "unknown model %q (valid: equal, exponential, truncated_normal)", seg.Fitness.Model))
	}
	if !constants.GenotypeFitness(seg.GenotypeFitness.Model).Valid() {
		check(invalid("segments.genotype_fitness.model", "unknown model %q (valid: constant, mean, saturating)", seg.GenotypeFitness.Model))
	}
	if seg.GenotypeFitness.Model == string(constants.GenotypeFitnessSaturating) {
		if seg.GenotypeFitness.Param1 <= 0 {
			check(invalid("segments.genotype_fitness.param1", "saturating time constant must be positive"))
		}
		probability("segments.genotype_fitness.param2", seg.GenotypeFitness.Param2)
	}

	m := c.Mutation
	nonNegative("mutation.mu", m.Mu)
	nonNegative("mutation.intro", m.Intro)
	probability("mutation.rho", m.Rho)
	if m.Bottleneck <= 0 {
		check(invalid("mutation.bottleneck", "must be positive, got %d", m.Bottleneck))
	}

	im := c.Immunity
	if !constants.ImmuneModel(im.Model).Valid() {
		check(invalid("immunity.model", "unknown model %q (valid: discrete)", im.Model))
	}
	nonNegative("immunity.xi_generalized", im.XiGeneralized)
	nonNegative("immunity.xi_specific", im.XiSpecific)
	nonNegative("immunity.xi_transmission", im.XiTransmission)

	nonNegative("reservoir.contact_proportion", c.Reservoir.ContactProportion)
	nonNegative("reservoir.reintro", c.Reservoir.Reintro)

	v := c.Vaccine
	if !constants.VaccineMakeup(v.Makeup).Valid() {
		check(invalid("vaccine.makeup", "unknown makeup %q (valid: none, prevalent_strains, prevalent_segments)", v.Makeup))
	}
	for i, age := range v.Ages {
		if age < 0 {
			check(invalid("vaccine.ages", "entry %d must be non-negative, got %d", i, age))
		}
		if i > 0 && age < v.Ages[i-1] {
			check(invalid("vaccine.ages", "must be in ascending order"))
		}
	}
	probability("vaccine.coverage", v.Coverage)
	if v.Valency < 0 {
		check(invalid("vaccine.valency", "must be non-negative, got %d", v.Valency))
	} else if v.Valency == 0 && v.Makeup != string(constants.VaccineMakeupNone) {
		check(invalid("vaccine.valency", "must be at least 1 when vaccine.makeup is %s", v.Makeup))
	}
	if v.UpdateInterval < 0 {
		check(invalid("vaccine.update_interval", "must be non-negative, got %d", v.UpdateInterval))
	}

	if len(c.Disruptions) > constants.MaxDisruptions {
		check(invalid("disruptions", "at most %d slots, got %d", constants.MaxDisruptions, len(c.Disruptions)))
	}
	for i, dis := range c.Disruptions {
		key := fmt.Sprintf("disruption%d", i+1)
		if !constants.DisruptionType(dis.Type).Valid() {
			check(invalid(key+".type", "unknown type %q", dis.Type))
		}
		switch constants.DisruptionType(dis.Type) {
		case constants.DisruptionMassExtinction, constants.DisruptionChangeReassortment:
			probability(key+".magnitude", dis.Magnitude)
		default:
			nonNegative(key+".magnitude", dis.Magnitude)
		}
	}

	if !constants.Compression(c.Output.Compression).Valid() {
		check(invalid("output.compression", "unknown codec %q (valid: none, bgzf, zstd)", c.Output.Compression))
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		check(invalid("logging.level", "invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// InitialAlleleCount returns the number of founding alleles at a locus.
func (c *Config) InitialAlleleCount(locus int) int {
	if len(c.Segments.InitialAlleles) == 0 {
		return 1
	}
	return c.Segments.InitialAlleles[locus]
}

// ImmunogenicLoci returns the number of loci that drive specific immunity.
func (c *Config) ImmunogenicLoci() int {
	if c.Segments.Immunogenic == 0 {
		return c.Segments.Count
	}
	return c.Segments.Immunogenic
}

// MaxVaccinationAge returns the oldest target age, or zero without a program.
func (c *Config) MaxVaccinationAge() int {
	if len(c.Vaccine.Ages) == 0 {
		return 0
	}
	return c.Vaccine.Ages[len(c.Vaccine.Ages)-1]
}

// VaccinationEnabled reports whether a vaccine program is configured.
func (c *Config) VaccinationEnabled() bool {
	return c.Vaccine.Makeup != string(constants.VaccineMakeupNone) && len(c.Vaccine.Ages) > 0
}
