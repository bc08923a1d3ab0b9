package simulation

import (
	"github.com/nvandessel/reassort/internal/config"
	"github.com/nvandessel/reassort/internal/constants"
	"github.com/nvandessel/reassort/internal/genome"
	"github.com/nvandessel/reassort/internal/immunity"
	"github.com/nvandessel/reassort/internal/population"
)

// ImmuneModel builds the immune-system strategy selected by cfg.
func ImmuneModel(cfg *config.Config) immunity.Model {
	return immunity.Model{
		Kind: constants.ImmuneModel(cfg.Immunity.Model),
		Params: immunity.Params{
			XiGeneralized:   cfg.Immunity.XiGeneralized,
			XiSpecific:      cfg.Immunity.XiSpecific,
			XiTransmission:  cfg.Immunity.XiTransmission,
			ImmunogenicLoci: cfg.ImmunogenicLoci(),
		},
	}
}

// FactoryOptions maps the genome settings of cfg.
func FactoryOptions(cfg *config.Config) genome.Options {
	seg := cfg.Segments
	alleles := make([]int, seg.Count)
	for locus := range alleles {
		alleles[locus] = cfg.InitialAlleleCount(locus)
	}
	return genome.Options{
		Loci:           seg.Count,
		Immunogenic:    cfg.ImmunogenicLoci(),
		InitialAlleles: alleles,
		InitialStrains: seg.InitialStrains,
		SegmentFitness: genome.SegmentFitness{
			Model: constants.SegmentFitness(seg.Fitness.Model),
			Mean:  seg.Fitness.Param1,
			SD:    seg.Fitness.Param2,
		},
		GenotypeFitness: genome.GenotypeFitness{
			Model: constants.GenotypeFitness(seg.GenotypeFitness.Model),
			Tau:   seg.GenotypeFitness.Param1,
			Floor: seg.GenotypeFitness.Param2,
		},
	}
}

// PopulationOptions maps the population settings of cfg.
func PopulationOptions(cfg *config.Config) population.Options {
	opts := population.Options{
		N:          cfg.Demography.N,
		InitialI:   cfg.Epidemiology.InitialI,
		InitialPrR: cfg.Epidemiology.InitialPrR,

		BirthRate: cfg.Demography.BirthRate,
		DeathRate: cfg.Demography.DeathRate,
		AgeShape:  cfg.Demography.AgeShape,
		Swap:      cfg.Demography.SwapDemography,

		Beta:  cfg.Epidemiology.Beta,
		Nu:    cfg.Epidemiology.Nu,
		Omega: cfg.Epidemiology.Omega,

		Mu:         cfg.Mutation.Mu,
		Intro:      cfg.Mutation.Intro,
		Rho:        cfg.Mutation.Rho,
		Bottleneck: cfg.Mutation.Bottleneck,

		ReservoirContact: cfg.Reservoir.ContactProportion,
		Reintro:          cfg.Reservoir.Reintro,

		Burnin:                cfg.Simulation.Burnin,
		KeepAlive:             cfg.Simulation.KeepAlive,
		KeepAliveDuringBurnin: cfg.Simulation.KeepAliveDuringBurnin,

		Immune: ImmuneModel(cfg),
		Sampling: population.SamplingOptions{
			InfectedHostRate: cfg.Sampling.InfectedHostSamplingRate,
			ImmunityHostRate: cfg.Sampling.ImmunityHostSamplingRate,
			TipRate:          cfg.Sampling.TipSamplingRate,
			TipProportional:  cfg.Sampling.TipSamplingProportional,
			WholeGenomes:     cfg.Sampling.SampleWholeGenomes,
			DiversityPairs:   cfg.Sampling.DiversitySamplingCount,
		},
		Vaccine: population.VaccineOptions{
			Makeup:   constants.VaccineMakeup(cfg.Vaccine.Makeup),
			Ages:     cfg.Vaccine.Ages,
			Coverage: cfg.Vaccine.Coverage,
			Valency:  cfg.Vaccine.Valency,
			StartDay: cfg.Vaccine.StartDay,
		},
	}
	for _, d := range cfg.Disruptions {
		opts.Disruptions = append(opts.Disruptions, population.Disruption{
			Day:       d.Day,
			Type:      constants.DisruptionType(d.Type),
			Magnitude: d.Magnitude,
		})
	}
	return opts
}
