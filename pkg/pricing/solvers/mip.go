package solvers

import (
	"context"
	"fmt"

	"github.com/dwpricing/pricingcore/pkg/pricing"
)

// MaxExactItems bounds how many items ExactSolver will enumerate
// exhaustively; a block whose subproblem exceeds it reports
// LimitReached instead of silently truncating the search.
const MaxExactItems = 24

// ExactSolver is the reference exact pricing backend for
// ConflictSubProblem blocks: it enumerates every subset by bitmask,
// so it is only suitable for small blocks, but it always returns the
// true optimum (and hence a valid Lagrangian lower bound) when one
// exists, unlike HeuristicSolver.
type ExactSolver struct {
	priority int

	duals map[int]map[int]float64 // block -> origCons -> dual
}

// NewExactSolver builds an ExactSolver with the given static scheduling
// priority.
func NewExactSolver(priority int) *ExactSolver {
	return &ExactSolver{priority: priority, duals: make(map[int]map[int]float64)}
}

func (s *ExactSolver) Priority() int      { return s.priority }
func (s *ExactSolver) HeurEnabled() bool  { return false }
func (s *ExactSolver) ExactEnabled() bool { return true }

// Update absorbs the round's master duals for changes.Block, keyed by
// original constraint.
func (s *ExactSolver) Update(ctx context.Context, changes pricing.DualChanges) error {
	d := make(map[int]float64, len(changes.ConsDuals))
	for k, v := range changes.ConsDuals {
		d[k] = v
	}
	s.duals[changes.Block] = d
	return nil
}

// SolveExact enumerates every independent set of sub.Items respecting
// Capacity and Conflicts and returns the one maximizing dual-weighted
// profit minus dualConv, the block's Lagrangian subproblem optimum.
func (s *ExactSolver) SolveExact(ctx context.Context, prob *pricing.PricingProb, dualConv float64) (pricing.SolveResult, error) {
	sub, ok := prob.SubProblem.(*ConflictSubProblem)
	if !ok {
		return pricing.SolveResult{}, &pricing.PricingError{
			Kind: pricing.ErrInvalidConfiguration,
			Op:   "solvers.ExactSolver.SolveExact",
			Err:  fmt.Errorf("block %d: subproblem is %T, want *solvers.ConflictSubProblem", prob.Block, prob.SubProblem),
		}
	}
	n := len(sub.Items)
	if n == 0 {
		return pricing.SolveResult{Status: pricing.StatusInfeasible}, nil
	}
	if n > MaxExactItems {
		return pricing.SolveResult{Status: pricing.StatusLimitReached}, nil
	}

	conflicts := buildConflictAdjacency(n, sub.Conflicts)
	profit := s.itemProfits(prob.Block, sub.Items)

	bestMask := -1
	bestValue := 0.0
	for mask := 1; mask < (1 << n); mask++ {
		select {
		case <-ctx.Done():
			return pricing.SolveResult{Status: pricing.StatusLimitReached}, nil
		default:
		}

		weight, value, feasible := evaluateMask(sub, profit, conflicts, mask, n)
		if !feasible || weight > sub.Capacity {
			continue
		}
		if bestMask == -1 || value > bestValue {
			bestMask, bestValue = mask, value
		}
	}

	if bestMask == -1 {
		return pricing.SolveResult{Status: pricing.StatusOptimal, Lowerbound: -dualConv}, nil
	}

	var vars []int
	var vals []float64
	for i := 0; i < n; i++ {
		if bestMask&(1<<uint(i)) != 0 {
			vars = append(vars, sub.Items[i].OrigVar)
			vals = append(vals, 1)
		}
	}

	return pricing.SolveResult{
		Status:     pricing.StatusOptimal,
		Lowerbound: bestValue - dualConv,
		Columns: []pricing.SolverSolution{
			{Vars: vars, Vals: vals, IsRay: false},
		},
	}, nil
}

// evaluateMask reports the total weight and profit of the item subset
// encoded by mask, and whether it contains no conflicting pair.
func evaluateMask(sub *ConflictSubProblem, profit []float64, conflicts []map[int]bool, mask, n int) (weight, value float64, feasible bool) {
	feasible = true
	for i := 0; i < n; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		weight += sub.Items[i].Weight
		value += profit[i]
		for j := range conflicts[i] {
			if j > i && mask&(1<<uint(j)) != 0 {
				feasible = false
				return
			}
		}
	}
	return
}

func (s *ExactSolver) itemProfits(block int, items []Item) []float64 {
	duals := s.duals[block]
	profit := make([]float64, len(items))
	for i, it := range items {
		p := 0.0
		for j, ci := range it.ConsIdx {
			p += duals[ci] * it.ConsCoef[j]
		}
		profit[i] = p
	}
	return profit
}

// SolveHeur delegates to SolveExact: as a small reference backend,
// ExactSolver has no separate heuristic mode (HeurEnabled() is false).
func (s *ExactSolver) SolveHeur(ctx context.Context, prob *pricing.PricingProb, dualConv float64, iters int) (pricing.SolveResult, error) {
	return s.SolveExact(ctx, prob, dualConv)
}

func (s *ExactSolver) Init(ctx context.Context) error    { return nil }
func (s *ExactSolver) Exit(ctx context.Context) error    { return nil }
func (s *ExactSolver) InitSol(ctx context.Context) error { return nil }
func (s *ExactSolver) ExitSol(ctx context.Context) error { return nil }
