package pricing

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Efficacy selects how a column's score rewards reduced cost (§4.3).
type Efficacy int

const (
	// Dantzig scores a column by -redcost.
	Dantzig Efficacy = iota
	// SteepestEdge scores a column by -redcost / norm.
	SteepestEdge
	// Lambda is reserved for a future steepest-edge variant that also
	// accounts for the dual direction; not yet implemented.
	Lambda
)

func (e Efficacy) String() string {
	switch e {
	case Dantzig:
		return "dantzig"
	case SteepestEdge:
		return "steepestedge"
	case Lambda:
		return "lambda"
	default:
		return "unknown"
	}
}

// SortingStrategy selects the job-scheduling score function (§4.4).
type SortingStrategy byte

const (
	// SortByProbIndex ('i') scores by negative prob index.
	SortByProbIndex SortingStrategy = 'i'
	// SortByConvexityDual ('d') scores by the dual of the convexity constraint.
	SortByConvexityDual SortingStrategy = 'd'
	// SortByFractionality ('r') scores by -(0.2*#points + #rays).
	SortByFractionality SortingStrategy = 'r'
	// SortByRecentColumns ('l') scores by columns produced in the last nroundscol rounds.
	SortByRecentColumns SortingStrategy = 'l'
)

// Default values for Config, mirroring the teacher plugin's
// Default* constants and SetDefaults_* convention.
const (
	DefaultHeurPricingIters      = 3
	DefaultSorting               = SortByConvexityDual
	DefaultNRoundsCol            = 5
	DefaultRelMaxSuccessfulProbs = 1.0
	DefaultChunkSize             = 0 // 0 means "one chunk containing every job"
	DefaultEagerFreq             = 10
	DefaultJobTimeLimit          = 3600.0
	DefaultAbortPricingInt       = false
	DefaultAbortPricingGap       = 0.0
	DefaultMaxSolsProb           = 10
	DefaultStabilization         = true
	DefaultColpoolSizeMultiplier = 5
	DefaultColpoolAgeLimit       = 20
	DefaultWeightRedcost         = 1.0
	DefaultWeightObjParallelism  = 0.0
	DefaultWeightOrthogonality   = 0.0
	DefaultMinOrth               = 0.0
	DefaultEfficacy              = Dantzig
	DefaultMaxVarsRound          = 100
	DefaultMispriceLimit         = 10
)

// DisableCutoff mirrors the three-valued disablecutoff option (§6).
type DisableCutoff int

const (
	CutoffAlwaysHonour DisableCutoff = 0
	CutoffDisableRoot  DisableCutoff = 1
	CutoffDisableAll   DisableCutoff = 2
)

// Config collects every recognised option from spec.md §6 plus the
// price-store scoring weights from §4.3, the way the teacher's
// MultiObjectiveArgs collects the NSGA-II knobs.
type Config struct {
	// Escalation / scheduling (§4.4)
	UseHeurPricing        bool
	HeurPricingIters      int
	Sorting               SortingStrategy
	NRoundsCol            int
	RelMaxSuccessfulProbs float64
	ChunkSize             int
	EagerFreq             int
	JobTimeLimit          float64
	AbortPricingInt       bool
	AbortPricingGap       float64
	MaxVarsRound          int

	// Price store scoring (§4.3)
	WeightRedcost        float64
	WeightObjParallelism float64
	WeightOrthogonality  float64
	MinOrth              float64
	Efficacy             Efficacy
	MaxColsPerProb       int
	MaxColsPerRound      int

	// Column pool (§4.2)
	ColpoolSizeMultiplier int
	ColpoolAgeLimit       int

	// Stabilization (§4.5)
	Stabilization bool
	// MispriceLimit is the number of consecutive mispricing iterations
	// (no improving column, ᾱ decaying) after which the stabiliser
	// disables itself for the rest of the node (§7).
	MispriceLimit int

	// Master interaction
	DisableCutoff DisableCutoff
	MaxSolsProb   int
}

// SetDefaults_Config fills the zero-valued numeric and strategy fields
// checked below with their defaults, the way SetDefaults_MultiObjectiveArgs
// does for the teacher's plugin args. Fields not checked below, such as
// the boolean Stabilization and ChunkSize, are left as given.
func SetDefaults_Config(cfg *Config) {
	if cfg.HeurPricingIters == 0 {
		cfg.HeurPricingIters = DefaultHeurPricingIters
	}
	if cfg.Sorting == 0 {
		cfg.Sorting = DefaultSorting
	}
	if cfg.NRoundsCol == 0 {
		cfg.NRoundsCol = DefaultNRoundsCol
	}
	if cfg.RelMaxSuccessfulProbs == 0 {
		cfg.RelMaxSuccessfulProbs = DefaultRelMaxSuccessfulProbs
	}
	if cfg.EagerFreq == 0 {
		cfg.EagerFreq = DefaultEagerFreq
	}
	if cfg.JobTimeLimit == 0 {
		cfg.JobTimeLimit = DefaultJobTimeLimit
	}
	if cfg.MaxSolsProb == 0 {
		cfg.MaxSolsProb = DefaultMaxSolsProb
	}
	if cfg.ColpoolSizeMultiplier == 0 {
		cfg.ColpoolSizeMultiplier = DefaultColpoolSizeMultiplier
	}
	if cfg.ColpoolAgeLimit == 0 {
		cfg.ColpoolAgeLimit = DefaultColpoolAgeLimit
	}
	if cfg.MaxVarsRound == 0 {
		cfg.MaxVarsRound = DefaultMaxVarsRound
	}
	if cfg.MispriceLimit == 0 {
		cfg.MispriceLimit = DefaultMispriceLimit
	}
	if cfg.WeightRedcost == 0 && cfg.WeightObjParallelism == 0 && cfg.WeightOrthogonality == 0 {
		cfg.WeightRedcost = DefaultWeightRedcost
		cfg.WeightObjParallelism = DefaultWeightObjParallelism
		cfg.WeightOrthogonality = DefaultWeightOrthogonality
	}
	if cfg.MaxColsPerProb == 0 {
		cfg.MaxColsPerProb = DefaultMaxSolsProb
	}
	if cfg.MaxColsPerRound == 0 {
		cfg.MaxColsPerRound = DefaultMaxVarsRound
	}

	klog.V(5).InfoS("pricing config defaulted",
		"sorting", string(rune(cfg.Sorting)), "chunkSize", cfg.ChunkSize,
		"eagerFreq", cfg.EagerFreq, "stabilization", cfg.Stabilization)
}

// ValidateConfig checks Config for internally-inconsistent values,
// mirroring ValidateMultiObjectiveArgs's range checks.
func ValidateConfig(cfg *Config) error {
	if cfg.WeightRedcost < 0 || cfg.WeightObjParallelism < 0 || cfg.WeightOrthogonality < 0 {
		return errInvalidConfiguration("ValidateConfig",
			fmt.Errorf("scoring weights must be non-negative, got rc=%v obj=%v orth=%v",
				cfg.WeightRedcost, cfg.WeightObjParallelism, cfg.WeightOrthogonality))
	}
	if cfg.MinOrth < 0 || cfg.MinOrth > 1 {
		return errInvalidConfiguration("ValidateConfig",
			fmt.Errorf("minOrth must be in [0,1], got %v", cfg.MinOrth))
	}
	switch cfg.Sorting {
	case SortByProbIndex, SortByConvexityDual, SortByFractionality, SortByRecentColumns:
	default:
		return errInvalidConfiguration("ValidateConfig",
			fmt.Errorf("unknown sorting strategy %q", string(rune(cfg.Sorting))))
	}
	switch cfg.Efficacy {
	case Dantzig, SteepestEdge, Lambda:
	default:
		return errInvalidConfiguration("ValidateConfig", fmt.Errorf("unknown efficacy %v", cfg.Efficacy))
	}
	if cfg.RelMaxSuccessfulProbs < 0 || cfg.RelMaxSuccessfulProbs > 1 {
		return errInvalidConfiguration("ValidateConfig",
			fmt.Errorf("relmaxsuccessfulprobs must be in [0,1], got %v", cfg.RelMaxSuccessfulProbs))
	}
	if cfg.ChunkSize < 0 {
		return errInvalidConfiguration("ValidateConfig", fmt.Errorf("chunksize must be >= 0, got %d", cfg.ChunkSize))
	}
	if cfg.JobTimeLimit <= 0 {
		return errInvalidConfiguration("ValidateConfig", fmt.Errorf("jobtimelimit must be > 0, got %v", cfg.JobTimeLimit))
	}
	if cfg.MispriceLimit < 0 {
		return errInvalidConfiguration("ValidateConfig", fmt.Errorf("mispricelimit must be >= 0, got %d", cfg.MispriceLimit))
	}
	switch cfg.DisableCutoff {
	case CutoffAlwaysHonour, CutoffDisableRoot, CutoffDisableAll:
	default:
		return errInvalidConfiguration("ValidateConfig", fmt.Errorf("disablecutoff must be 0, 1 or 2, got %d", cfg.DisableCutoff))
	}
	return nil
}
