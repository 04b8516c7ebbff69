package pricing

import "context"

// DualChanges describes the delta applied to pricing-relevant duals
// since a solver backend's last update call, letting it patch its
// subproblem's objective incrementally instead of rebuilding from
// scratch (§4.6).
type DualChanges struct {
	Block      int
	ConsDuals  map[int]float64 // original-constraint index -> new pricing objective dual
	CutDuals   map[int]float64 // master-cut index -> new pricing objective dual
}

// SolveResult is what a Solver hands back from one solve call: a
// terminal status, a valid lower bound (only meaningful when Status is
// Optimal or LimitReached with a dual bound), and any columns it
// produced.
type SolveResult struct {
	Status     ProbStatus
	Lowerbound float64
	Columns    []SolverSolution
}

// Solver is the pluggable pricing backend trait (§4.6). Implementations
// own the block's subproblem representation; the core only ever calls
// through this interface. A Solver must be safe to call concurrently
// for different blocks; per-prob exclusivity across workers is the
// controller's responsibility (§5), not the solver's.
type Solver interface {
	// Priority is this solver's static scheduling priority; higher
	// values run first among jobs for the same PricingProb.
	Priority() int
	HeurEnabled() bool
	ExactEnabled() bool

	// Update absorbs an objective-dual change ahead of the next solve;
	// a solver that always recomputes its objective from scratch may
	// implement this as a no-op.
	Update(ctx context.Context, changes DualChanges) error

	// SolveExact finds the subproblem optimum. dualConv is the current
	// master dual of the block's convexity constraint, fed back into
	// SolveResult.Lowerbound's Lagrangian interpretation by the caller.
	SolveExact(ctx context.Context, prob *PricingProb, dualConv float64) (SolveResult, error)

	// SolveHeur searches for improving columns without a guaranteed
	// lower bound; iters bounds the internal effort (e.g. restarts).
	SolveHeur(ctx context.Context, prob *PricingProb, dualConv float64, iters int) (SolveResult, error)

	// Init/Exit bracket the solver's lifetime across the whole pricing
	// run; InitSol/ExitSol bracket one B&B node.
	Init(ctx context.Context) error
	Exit(ctx context.Context) error
	InitSol(ctx context.Context) error
	ExitSol(ctx context.Context) error
}

// SolverRegistry indexes the enabled Solver backends by position,
// matching the arena-of-indices modelling called for by the cyclic
// PricingJob/PricingProb/Solver ownership (§9 design notes).
type SolverRegistry struct {
	solvers []Solver
}

// NewSolverRegistry builds a registry from solvers in the order
// supplied by the caller; a solver's index is its position. Among jobs
// of one prob, solvers of equal priority run in index order
// (ComparePricingJobs rule 1).
func NewSolverRegistry(solvers ...Solver) *SolverRegistry {
	return &SolverRegistry{solvers: solvers}
}

// Len reports how many solver backends are registered.
func (r *SolverRegistry) Len() int { return len(r.solvers) }

// At returns the solver at idx.
func (r *SolverRegistry) At(idx int) Solver { return r.solvers[idx] }

// Priority looks up solver idx's static priority; it satisfies
// SolverPriority for ComparePricingJobs.
func (r *SolverRegistry) Priority(idx int) int {
	if idx < 0 || idx >= len(r.solvers) {
		return 0
	}
	return r.solvers[idx].Priority()
}
