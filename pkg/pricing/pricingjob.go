package pricing

// PricingJob pairs a PricingProb with a solver backend, scheduled in a
// given chunk (§3, §4.4).
type PricingJob struct {
	Prob      *PricingProb
	SolverIdx int
	Chunk     int

	Score     float64
	Heuristic bool

	NHeurIters    int
	SolverChanged bool
}

// NewPricingJob builds a PricingJob for (prob, solverIdx) scheduled in
// chunk; heuristic selects whether it starts in heuristic mode.
func NewPricingJob(prob *PricingProb, solverIdx, chunk int, heuristic bool) *PricingJob {
	return &PricingJob{Prob: prob, SolverIdx: solverIdx, Chunk: chunk, Heuristic: heuristic}
}

// SolverPriority looks up the static scheduling priority of a solver by
// index, used by ComparePricingJobs tie-break rule 1.
type SolverPriority func(solverIdx int) int

// ComparePricingJobs implements the job-ordering rules of §4.4: same
// prob prefers the higher-priority solver, then the lower solver index;
// across probs a heuristic job beats an exact one, then fewer
// solves-this-round wins, then higher score wins. It reports whether a
// should run before b, matching LessFunc's contract so it can back a
// PriorityQueue[*PricingJob] directly.
func ComparePricingJobs(a, b *PricingJob, priority SolverPriority) bool {
	if a.Prob == b.Prob {
		pa, pb := priority(a.SolverIdx), priority(b.SolverIdx)
		if pa != pb {
			return pa > pb
		}
		return a.SolverIdx < b.SolverIdx
	}
	if a.Heuristic != b.Heuristic {
		return a.Heuristic
	}
	if a.Prob.NSolves != b.Prob.NSolves {
		return a.Prob.NSolves < b.Prob.NSolves
	}
	return a.Score > b.Score
}

// DualOfConvexity looks up the current master dual of a block's
// convexity constraint, used by the 'd' scoring strategy.
type DualOfConvexity func(block int) float64

// ScoreJob computes job.Score per the strategy selected in cfg.Sorting
// (§4.4), reading the current dual solution via dualConv.
func ScoreJob(job *PricingJob, cfg *Config, dualConv DualOfConvexity) float64 {
	switch cfg.Sorting {
	case SortByProbIndex:
		return -float64(job.Prob.Block)
	case SortByConvexityDual:
		if dualConv == nil {
			return 0
		}
		return dualConv(job.Prob.Block)
	case SortByFractionality:
		return -(0.2*float64(job.Prob.NPointsTotal) + float64(job.Prob.NRaysTotal))
	case SortByRecentColumns:
		return float64(job.Prob.RecentColumns())
	default:
		return 0
	}
}
