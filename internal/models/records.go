// Package models defines the run clock and the record types a simulation run
// hands to its recorders.
package models

import "time"

// Param is one resolved configuration value, as written to the parameter dump.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RunInfo identifies a run when recording starts.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	Seed      uint64    `json:"seed"`
	StartedAt time.Time `json:"started_at"`
	Params    []Param   `json:"params"`
}

// TimeseriesRow is one aggregate-count sample, emitted every sampling interval.
type TimeseriesRow struct {
	Day       int     `json:"day"`
	Date      float64 `json:"date"` // years since burn-in
	Diversity float64 `json:"diversity"`
	N         int     `json:"n"`
	S         int     `json:"s"`
	I         int     `json:"i"`
	R         int     `json:"r"`
	Cases     int     `json:"cases"` // new cases since the previous row
}

// InfectedSample is one segment carried by a sampled infected host.
type InfectedSample struct {
	Date          float64 `json:"date"`
	HostID        int64   `json:"host_id"`
	GenomeID      int64   `json:"genome_id"`
	SegmentID     int64   `json:"segment_id"` // allele number
	HostAge       float64 `json:"host_age"`   // years
	NumInfections int     `json:"num_infections"`
}

// ImmunitySample is a snapshot of one host's immune history.
type ImmunitySample struct {
	Date          float64 `json:"date"`
	HostID        int64   `json:"host_id"`
	HostAge       float64 `json:"host_age"`
	NumInfections int     `json:"num_infections"`
	NumExposures  int     `json:"num_exposures"`
	Alleles       []int64 `json:"alleles"`
}

// TipRecord describes one historical sample in the finished ancestry tree.
type TipRecord struct {
	ID       int64   `json:"id"`
	GenomeID int64   `json:"genome_id"`
	Birth    float64 `json:"birth"`
	Trunk    bool    `json:"trunk"`
	Tip      bool    `json:"tip"` // no descendants in the finished tree
	Marked   bool    `json:"marked"`
	HostAge  float64 `json:"host_age"`
	Layout   float64 `json:"layout"`
	Allele   int64   `json:"allele"`
	Locus    int     `json:"locus"`
}

// BranchRecord is one parent-child edge in the finished ancestry tree.
type BranchRecord struct {
	Child    TipRecord `json:"child"`
	Parent   TipRecord `json:"parent"`
	Coverage int       `json:"coverage"` // tips descending through the parent
}

// SelectionSummary is the trunk versus side-branch mutation rate comparison.
type SelectionSummary struct {
	SideBranchMutations   int     `json:"side_branch_mutations"`
	SideBranchOpportunity float64 `json:"side_branch_opportunity"`
	SideBranchRate        float64 `json:"side_branch_rate"`
	TrunkMutations        int     `json:"trunk_mutations"`
	TrunkOpportunity      float64 `json:"trunk_opportunity"`
	TrunkRate             float64 `json:"trunk_rate"`
	Ratio                 float64 `json:"ratio"`
}

// VaccineRecord is one component of the selected vaccine composition. For
// strain-based compositions Alleles holds one allele per immunogenic locus;
// for segment-based compositions it holds a single allele.
type VaccineRecord struct {
	Rank    int     `json:"rank"`
	Tally   int     `json:"tally"`
	Alleles []int64 `json:"alleles"`
}

// RunSummary is written once when a run finishes.
type RunSummary struct {
	RunID      string           `json:"run_id"`
	Seed       uint64           `json:"seed"`
	Days       int              `json:"days"`
	Restarts   int              `json:"restarts"`
	Extinct    bool             `json:"extinct"`
	TotalCases int              `json:"total_cases"`
	Incidence  float64          `json:"incidence"` // percent of hosts per year
	Tips       int              `json:"tips"`
	Selection  SelectionSummary `json:"selection"`
	FinishedAt time.Time        `json:"finished_at"`
}
