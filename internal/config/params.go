package config

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/nvandessel/reassort/internal/constants"
	"github.com/nvandessel/reassort/internal/models"
)

// Param describes one flat key=value parameter.
type Param struct {
	// Key is the canonical dotted key, e.g. "epidemiology.beta".
	Key string

	// Alias is the short name accepted on the command line, e.g. "beta".
	Alias string

	Description string

	set func(c *Config, v string) error
	get func(c *Config) string
}

// Get returns the parameter's current value in c, formatted for display.
func (p Param) Get(c *Config) string {
	return p.get(c)
}

// Set parses v and stores it in c.
func (p Param) Set(c *Config, v string) error {
	if err := p.set(c, strings.TrimSpace(v)); err != nil {
		return &Error{Key: p.Key, Err: err}
	}
	return nil
}

func intParam(key, alias, desc string, field func(c *Config) *int) Param {
	return Param{
		Key: key, Alias: alias, Description: desc,
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected integer, got %q", v)
			}
			*field(c) = n
			return nil
		},
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
	}
}

func floatParam(key, alias, desc string, field func(c *Config) *float64) Param {
	return Param{
		Key: key, Alias: alias, Description: desc,
		set: func(c *Config, v string) error {
			f, err := parseFloat(v)
			if err != nil {
				return err
			}
			*field(c) = f
			return nil
		},
		get: func(c *Config) string { return formatFloat(*field(c)) },
	}
}

func boolParam(key, alias, desc string, field func(c *Config) *bool) Param {
	return Param{
		Key: key, Alias: alias, Description: desc,
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected boolean, got %q", v)
			}
			*field(c) = b
			return nil
		},
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
	}
}

func stringParam(key, alias, desc string, field func(c *Config) *string) Param {
	return Param{
		Key: key, Alias: alias, Description: desc,
		set: func(c *Config, v string) error {
			*field(c) = v
			return nil
		},
		get: func(c *Config) string { return *field(c) },
	}
}

func intListParam(key, alias, desc string, field func(c *Config) *[]int) Param {
	return Param{
		Key: key, Alias: alias, Description: desc,
		set: func(c *Config, v string) error {
			v = strings.Trim(v, "[]{} ")
			if v == "" {
				*field(c) = nil
				return nil
			}
			var out []int
			for _, part := range strings.Split(v, ",") {
				n, err := strconv.Atoi(strings.TrimSpace(part))
				if err != nil {
					return fmt.Errorf("expected comma-separated integers, got %q", v)
				}
				out = append(out, n)
			}
			*field(c) = out
			return nil
		},
		get: func(c *Config) string {
			parts := make([]string, len(*field(c)))
			for i, n := range *field(c) {
				parts[i] = strconv.Itoa(n)
			}
			return strings.Join(parts, ",")
		},
	}
}

// parseFloat accepts the usual float syntax plus the YAML spelling ".inf".
func parseFloat(v string) (float64, error) {
	lower := strings.ToLower(v)
	switch lower {
	case ".inf", "+.inf":
		return math.Inf(1), nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("expected number, got %q", v)
	}
	return f, nil
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "Inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func seedParam() Param {
	return Param{
		Key: "simulation.seed", Alias: "seed",
		Description: "random seed; empty or \"time\" seeds from the clock",
		set: func(c *Config, v string) error {
			if v == "" || strings.EqualFold(v, "time") {
				c.Simulation.Seed = nil
				return nil
			}
			seed, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("expected unsigned integer, got %q", v)
			}
			c.Simulation.Seed = &seed
			return nil
		},
		get: func(c *Config) string {
			if c.Simulation.Seed == nil {
				return "time"
			}
			return strconv.FormatUint(*c.Simulation.Seed, 10)
		},
	}
}

// disruption returns slot i (zero-based), growing the slice as needed.
func disruption(c *Config, i int) *DisruptionConfig {
	for len(c.Disruptions) <= i {
		c.Disruptions = append(c.Disruptions, DisruptionConfig{Type: string(constants.DisruptionNone)})
	}
	return &c.Disruptions[i]
}

func disruptionParams(slot int) []Param {
	prefix := fmt.Sprintf("disruption%d", slot+1)
	present := func(c *Config) bool { return slot < len(c.Disruptions) }
	return []Param{
		{
			Key: prefix + ".day", Alias: prefix + "Time",
			Description: "day the disruption is applied",
			set: func(c *Config, v string) error {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("expected integer, got %q", v)
				}
				disruption(c, slot).Day = n
				return nil
			},
			get: func(c *Config) string {
				if !present(c) {
					return ""
				}
				return strconv.Itoa(c.Disruptions[slot].Day)
			},
		},
		{
			Key: prefix + ".type", Alias: prefix + "Type",
			Description: "none, mass_extinction, change_mutation, change_intro, or change_reassortment",
			set: func(c *Config, v string) error {
				disruption(c, slot).Type = v
				return nil
			},
			get: func(c *Config) string {
				if !present(c) {
					return ""
				}
				return c.Disruptions[slot].Type
			},
		},
		{
			Key: prefix + ".magnitude", Alias: prefix + "Magnitude",
			Description: "fraction removed, or the new rate",
			set: func(c *Config, v string) error {
				f, err := parseFloat(v)
				if err != nil {
					return err
				}
				disruption(c, slot).Magnitude = f
				return nil
			},
			get: func(c *Config) string {
				if !present(c) {
					return ""
				}
				return formatFloat(c.Disruptions[slot].Magnitude)
			},
		},
	}
}

var params = buildParams()

func buildParams() []Param {
	p := []Param{
		intParam("simulation.burnin", "burnin", "days simulated before output starts",
			func(c *Config) *int { return &c.Simulation.Burnin }),
		intParam("simulation.end_day", "endDay", "last simulated day",
			func(c *Config) *int { return &c.Simulation.EndDay }),
		boolParam("simulation.repeat_sim", "repeatSim", "restart after stochastic extinction",
			func(c *Config) *bool { return &c.Simulation.RepeatSim }),
		boolParam("simulation.keep_alive_during_burnin", "keepAliveDuringBurnin", "never lose the last infection during burn-in",
			func(c *Config) *bool { return &c.Simulation.KeepAliveDuringBurnin }),
		boolParam("simulation.keep_alive", "keepAlive", "never lose the last infection",
			func(c *Config) *bool { return &c.Simulation.KeepAlive }),
		seedParam(),
		intParam("simulation.streamline_interval", "streamlineInterval", "days between ancestry compactions (0 disables)",
			func(c *Config) *int { return &c.Simulation.StreamlineInterval }),

		intParam("sampling.timeseries_step", "printStep", "days between timeseries rows",
			func(c *Config) *int { return &c.Sampling.TimeseriesStep }),
		floatParam("sampling.tip_sampling_rate", "tipSamplingRate", "tips sampled per day",
			func(c *Config) *float64 { return &c.Sampling.TipSamplingRate }),
		boolParam("sampling.tip_sampling_proportional", "tipSamplingProportional", "scale tip sampling with prevalence",
			func(c *Config) *bool { return &c.Sampling.TipSamplingProportional }),
		floatParam("sampling.tree_proportion", "treeProportion", "fraction of tips kept in the final tree",
			func(c *Config) *float64 { return &c.Sampling.TreeProportion }),
		floatParam("sampling.mark_tips_interval", "markTipsInterval", "window width in years for marked tips",
			func(c *Config) *float64 { return &c.Sampling.MarkTipsInterval }),
		intParam("sampling.diversity_sampling_count", "diversitySamplingCount", "pairs drawn for the diversity statistic",
			func(c *Config) *int { return &c.Sampling.DiversitySamplingCount }),
		floatParam("sampling.years_to_trunk", "yearsFromMK", "years excluded before now in the selection statistic",
			func(c *Config) *float64 { return &c.Sampling.YearsToTrunk }),
		boolParam("sampling.sample_whole_genomes", "sampleWholeGenomes", "sample every locus of a genotype together",
			func(c *Config) *bool { return &c.Sampling.SampleWholeGenomes }),
		floatParam("sampling.infected_host_sampling_rate", "infectedHostSamplingRate", "infected hosts sampled per day",
			func(c *Config) *float64 { return &c.Sampling.InfectedHostSamplingRate }),
		floatParam("sampling.immunity_host_sampling_rate", "immunityHostSamplingRate", "hosts sampled for immunity per day",
			func(c *Config) *float64 { return &c.Sampling.ImmunityHostSamplingRate }),

		intParam("demography.n", "N", "population size",
			func(c *Config) *int { return &c.Demography.N }),
		floatParam("demography.birth_rate", "birthRate", "births per host per day",
			func(c *Config) *float64 { return &c.Demography.BirthRate }),
		floatParam("demography.death_rate", "deathRate", "deaths per host per day",
			func(c *Config) *float64 { return &c.Demography.DeathRate }),
		floatParam("demography.age_shape", "ageShape", "gamma shape of host lifespan (1 = exponential)",
			func(c *Config) *float64 { return &c.Demography.AgeShape }),
		boolParam("demography.swap_demography", "swapDemography", "reset hosts in place to conserve N",
			func(c *Config) *bool { return &c.Demography.SwapDemography }),

		intParam("epidemiology.initial_i", "initialI", "initially infected hosts",
			func(c *Config) *int { return &c.Epidemiology.InitialI }),
		floatParam("epidemiology.initial_pr_r", "initialPrR", "prior exposures per host at start",
			func(c *Config) *float64 { return &c.Epidemiology.InitialPrR }),
		floatParam("epidemiology.beta", "beta", "contacts per infected host per day",
			func(c *Config) *float64 { return &c.Epidemiology.Beta }),
		floatParam("epidemiology.nu", "nu", "recovery rate per day",
			func(c *Config) *float64 { return &c.Epidemiology.Nu }),
		floatParam("epidemiology.omega", "omega", "waning rate per day (Inf for immediate)",
			func(c *Config) *float64 { return &c.Epidemiology.Omega }),

		intParam("segments.count", "nSegments", "loci per genome",
			func(c *Config) *int { return &c.Segments.Count }),
		intListParam("segments.initial_alleles", "nInitialSegments", "founding alleles per locus",
			func(c *Config) *[]int { return &c.Segments.InitialAlleles }),
		intParam("segments.initial_strains", "nInitialStrains", "founding genotypes",
			func(c *Config) *int { return &c.Segments.InitialStrains }),
		intParam("segments.immunogenic", "nImmunogenicSegments", "leading loci that drive specific immunity (0 = all)",
			func(c *Config) *int { return &c.Segments.Immunogenic }),
		stringParam("segments.fitness.model", "fitnessType", "equal, exponential, or truncated_normal",
			func(c *Config) *string { return &c.Segments.Fitness.Model }),
		floatParam("segments.fitness.param1", "fitnessParam1", "segment fitness mean",
			func(c *Config) *float64 { return &c.Segments.Fitness.Param1 }),
		floatParam("segments.fitness.param2", "fitnessParam2", "segment fitness standard deviation",
			func(c *Config) *float64 { return &c.Segments.Fitness.Param2 }),
		stringParam("segments.genotype_fitness.model", "genotypeFitnessType", "constant, mean, or saturating",
			func(c *Config) *string { return &c.Segments.GenotypeFitness.Model }),
		floatParam("segments.genotype_fitness.param1", "genotypeFitnessParam1", "saturating time constant in years",
			func(c *Config) *float64 { return &c.Segments.GenotypeFitness.Param1 }),
		floatParam("segments.genotype_fitness.param2", "genotypeFitnessParam2", "saturating fitness floor",
			func(c *Config) *float64 { return &c.Segments.GenotypeFitness.Param2 }),

		floatParam("mutation.mu", "mu", "mutations per infected host per day",
			func(c *Config) *float64 { return &c.Mutation.Mu }),
		floatParam("mutation.intro", "intro", "introductions per day",
			func(c *Config) *float64 { return &c.Mutation.Intro }),
		floatParam("mutation.rho", "rho", "per-locus reassortment probability",
			func(c *Config) *float64 { return &c.Mutation.Rho }),
		intParam("mutation.bottleneck", "bottleneck", "transmission trials from a superinfected donor",
			func(c *Config) *int { return &c.Mutation.Bottleneck }),

		stringParam("immunity.model", "immuneSystemModel", "immune system strategy",
			func(c *Config) *string { return &c.Immunity.Model }),
		floatParam("immunity.xi_generalized", "xiGeneralized", "decay per prior infection",
			func(c *Config) *float64 { return &c.Immunity.XiGeneralized }),
		floatParam("immunity.xi_specific", "xiSpecific", "decay per shared immunogenic segment",
			func(c *Config) *float64 { return &c.Immunity.XiSpecific }),
		floatParam("immunity.xi_transmission", "xiTransmission", "donor-side decay per prior infection",
			func(c *Config) *float64 { return &c.Immunity.XiTransmission }),

		floatParam("reservoir.contact_proportion", "reservoirContactProportion", "reservoir contact scaling",
			func(c *Config) *float64 { return &c.Reservoir.ContactProportion }),
		floatParam("reservoir.reintro", "reintro", "reservoir reintroductions per day",
			func(c *Config) *float64 { return &c.Reservoir.Reintro }),

		stringParam("vaccine.makeup", "vaccineMakeup", "none, prevalent_strains, or prevalent_segments",
			func(c *Config) *string { return &c.Vaccine.Makeup }),
		intListParam("vaccine.ages", "vaccinationAges", "target ages in days, ascending",
			func(c *Config) *[]int { return &c.Vaccine.Ages }),
		floatParam("vaccine.coverage", "vaccineCoverage", "probability an eligible host is vaccinated",
			func(c *Config) *float64 { return &c.Vaccine.Coverage }),
		intParam("vaccine.valency", "vaccineValency", "strains or segments in the vaccine",
			func(c *Config) *int { return &c.Vaccine.Valency }),
		intParam("vaccine.start_day", "vaccinationProgramStartTime", "day vaccination starts",
			func(c *Config) *int { return &c.Vaccine.StartDay }),
		intParam("vaccine.update_interval", "vaccineUpdateInterval", "days between composition updates (0 = once)",
			func(c *Config) *int { return &c.Vaccine.UpdateInterval }),

		stringParam("output.dir", "outDir", "directory for output files",
			func(c *Config) *string { return &c.Output.Dir }),
		stringParam("output.database", "database", "SQLite results path (empty disables)",
			func(c *Config) *string { return &c.Output.Database }),
		boolParam("output.tables", "tables", "write tabular output files",
			func(c *Config) *bool { return &c.Output.Tables }),
		stringParam("output.compression", "compression", "none, bgzf, or zstd",
			func(c *Config) *string { return &c.Output.Compression }),
		stringParam("output.s3_uri", "s3URI", "s3://bucket/prefix to upload results to",
			func(c *Config) *string { return &c.Output.S3URI }),
		stringParam("output.s3_region", "s3Region", "region for the S3 upload",
			func(c *Config) *string { return &c.Output.S3Region }),

		stringParam("logging.level", "logLevel", "info, debug, or trace",
			func(c *Config) *string { return &c.Logging.Level }),
	}
	for slot := 0; slot < constants.MaxDisruptions; slot++ {
		p = append(p, disruptionParams(slot)...)
	}
	return p
}

// Params returns the full parameter table in display order.
func Params() []Param {
	return params
}

// Lookup finds a parameter by key or alias.
func Lookup(name string) (Param, bool) {
	for _, p := range params {
		if p.Key == name || p.Alias == name {
			return p, true
		}
	}
	return Param{}, false
}

// ApplyArgs applies key=value arguments in order. Keys that match no
// parameter are returned; a malformed argument or value is an error.
func (c *Config) ApplyArgs(args []string) ([]string, error) {
	var unknown []string
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, &Error{Key: arg, Err: fmt.Errorf("expected key=value")}
		}
		key = strings.TrimSpace(key)
		p, found := Lookup(key)
		if !found {
			unknown = append(unknown, key)
			continue
		}
		if err := p.Set(c, value); err != nil {
			return nil, err
		}
	}
	return unknown, nil
}

// Resolved returns every parameter with its current value.
func (c *Config) Resolved() []models.Param {
	out := make([]models.Param, 0, len(params))
	for _, p := range params {
		out = append(out, models.Param{Key: p.Key, Value: p.get(c)})
	}
	return out
}

// Dump writes the resolved parameter set as "key = value" lines.
func (c *Config) Dump(w io.Writer) error {
	for _, p := range c.Resolved() {
		if p.Value == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s = %s\n", p.Key, p.Value); err != nil {
			return fmt.Errorf("writing parameters: %w", err)
		}
	}
	return nil
}
