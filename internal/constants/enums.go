package constants

// SegmentFitness selects how a new segment's fitness is drawn.
type SegmentFitness string

const (
	// SegmentFitnessEqual gives every segment fitness 1.
	SegmentFitnessEqual SegmentFitness = "equal"

	// SegmentFitnessExponential draws fitness from an exponential with mean param1.
	SegmentFitnessExponential SegmentFitness = "exponential"

	// SegmentFitnessTruncatedNormal draws from a normal(param1, param2)
	// clamped to [0, 2*param1].
	SegmentFitnessTruncatedNormal SegmentFitness = "truncated_normal"
)

// Valid returns true if the model is a recognized value.
func (m SegmentFitness) Valid() bool {
	switch m {
	case SegmentFitnessEqual, SegmentFitnessExponential, SegmentFitnessTruncatedNormal:
		return true
	}
	return false
}

// String returns the string representation of the model.
func (m SegmentFitness) String() string {
	return string(m)
}

// GenotypeFitness selects how a genotype's fitness is aggregated.
type GenotypeFitness string

const (
	// GenotypeFitnessConstant gives every genotype fitness 1.
	GenotypeFitnessConstant GenotypeFitness = "constant"

	// GenotypeFitnessMean averages the segment fitness values.
	GenotypeFitnessMean GenotypeFitness = "mean"

	// GenotypeFitnessSaturating rises from param2 toward 1 with time constant
	// param1 (years) since the genotype was created.
	GenotypeFitnessSaturating GenotypeFitness = "saturating"
)

// Valid returns true if the model is a recognized value.
func (m GenotypeFitness) Valid() bool {
	switch m {
	case GenotypeFitnessConstant, GenotypeFitnessMean, GenotypeFitnessSaturating:
		return true
	}
	return false
}

// String returns the string representation of the model.
func (m GenotypeFitness) String() string {
	return string(m)
}

// ImmuneModel selects the immune-system strategy.
type ImmuneModel string

const (
	// ImmuneModelDiscrete tracks exposure to discrete segment alleles.
	ImmuneModelDiscrete ImmuneModel = "discrete"
)

// Valid returns true if the model is a recognized value.
func (m ImmuneModel) Valid() bool {
	return m == ImmuneModelDiscrete
}

// VaccineMakeup selects how the vaccine composition is chosen.
type VaccineMakeup string

const (
	VaccineMakeupNone VaccineMakeup = "none"

	// VaccineMakeupStrains picks the most prevalent immunogenic genotypes.
	VaccineMakeupStrains VaccineMakeup = "prevalent_strains"

	// VaccineMakeupSegments picks the most prevalent immunogenic alleles.
	VaccineMakeupSegments VaccineMakeup = "prevalent_segments"
)

// Valid returns true if the makeup is a recognized value.
func (m VaccineMakeup) Valid() bool {
	switch m {
	case VaccineMakeupNone, VaccineMakeupStrains, VaccineMakeupSegments:
		return true
	}
	return false
}

// DisruptionType is the kind of scheduled one-time change.
type DisruptionType string

const (
	DisruptionNone DisruptionType = "none"

	// DisruptionMassExtinction moves a Poisson-thinned share of infecteds to recovered.
	DisruptionMassExtinction DisruptionType = "mass_extinction"

	// DisruptionChangeMutation replaces the mutation rate.
	DisruptionChangeMutation DisruptionType = "change_mutation"

	// DisruptionChangeIntro replaces the introduction rate.
	DisruptionChangeIntro DisruptionType = "change_intro"

	// DisruptionChangeReassortment replaces the reassortment probability.
	DisruptionChangeReassortment DisruptionType = "change_reassortment"
)

// Valid returns true if the type is a recognized value.
func (d DisruptionType) Valid() bool {
	switch d {
	case DisruptionNone, DisruptionMassExtinction, DisruptionChangeMutation,
		DisruptionChangeIntro, DisruptionChangeReassortment:
		return true
	}
	return false
}

// Compression is the codec applied to tabular output files.
type Compression string

const (
	CompressionNone Compression = "none"

	// CompressionBGZF writes block-gzip files readable by gzip and tabix.
	CompressionBGZF Compression = "bgzf"

	CompressionZstd Compression = "zstd"
)

// Valid returns true if the codec is a recognized value.
func (c Compression) Valid() bool {
	switch c {
	case CompressionNone, CompressionBGZF, CompressionZstd:
		return true
	}
	return false
}

// Suffix returns the file name suffix for the codec.
func (c Compression) Suffix() string {
	switch c {
	case CompressionBGZF:
		return ".gz"
	case CompressionZstd:
		return ".zst"
	}
	return ""
}
