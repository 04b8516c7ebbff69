// Package solvers provides reference pricing backends implementing the
// pricing.Solver trait (§4.6): a greedy heuristic for set-packing-like
// blocks and a small exact reference backend.
package solvers

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/exp/rand"

	"github.com/dwpricing/pricingcore/pkg/pricing"
)

// Item is one candidate pricing variable in a block's knapsack/set-
// packing subproblem: its consumption of the block's single capacity
// row, and the original master constraints it contributes a
// dual-priced coefficient to.
type Item struct {
	OrigVar  int
	Weight   float64
	ConsIdx  []int
	ConsCoef []float64
}

// ConflictSubProblem is the opaque handle a Decomposition hands back
// for a set-packing-like block (§6: Decomposition.SubProblem): a
// capacity row plus a conflict graph over items, the same structure
// solver_cliquer.c builds from a block's "at most one of these"
// constraints before searching for a maximum-weight independent set.
type ConflictSubProblem struct {
	Items     []Item
	Capacity  float64
	Conflicts [][2]int // item-index pairs that cannot both be selected
}

// HeuristicSolver is a greedy, non-exact pricing backend for
// ConflictSubProblem blocks. Items are ranked by profit-to-weight ratio
// (best fit decreasing, as cost.BestFitDecreasing ranks pods by size)
// and added to the column while capacity and the conflict graph allow
// it. The first pass breaks ratio ties by lower item index; each later
// restart walks the items in a seeded random permutation, the way
// nsga2.go uses a seeded source for mutation and crossover instead of
// the unseeded global generator.
type HeuristicSolver struct {
	priority int
	rng      *rand.Rand

	duals map[int]map[int]float64 // block -> origCons -> dual
}

// NewHeuristicSolver builds a HeuristicSolver with static scheduling
// priority and a seeded random source for tie-breaking.
func NewHeuristicSolver(priority int, seed uint64) *HeuristicSolver {
	return &HeuristicSolver{
		priority: priority,
		rng:      rand.New(rand.NewSource(seed)),
		duals:    make(map[int]map[int]float64),
	}
}

func (s *HeuristicSolver) Priority() int      { return s.priority }
func (s *HeuristicSolver) HeurEnabled() bool  { return true }
func (s *HeuristicSolver) ExactEnabled() bool { return false }

// Update absorbs the round's master duals for changes.Block, keyed by
// original constraint, used to rank items in the next SolveHeur call.
func (s *HeuristicSolver) Update(ctx context.Context, changes pricing.DualChanges) error {
	d := make(map[int]float64, len(changes.ConsDuals))
	for k, v := range changes.ConsDuals {
		d[k] = v
	}
	s.duals[changes.Block] = d
	return nil
}

// SolveExact is disabled for HeuristicSolver (ExactEnabled() is false);
// it exists only to satisfy the Solver trait.
func (s *HeuristicSolver) SolveExact(ctx context.Context, prob *pricing.PricingProb, dualConv float64) (pricing.SolveResult, error) {
	return pricing.SolveResult{Status: pricing.StatusNotApplicable}, nil
}

// SolveHeur greedily builds one independent set of items respecting
// Capacity and Conflicts, maximizing the dual-weighted profit estimated
// from the last Update call. iters bounds the number of randomized
// restarts; the best of them is returned.
func (s *HeuristicSolver) SolveHeur(ctx context.Context, prob *pricing.PricingProb, dualConv float64, iters int) (pricing.SolveResult, error) {
	sub, ok := prob.SubProblem.(*ConflictSubProblem)
	if !ok {
		return pricing.SolveResult{}, &pricing.PricingError{
			Kind: pricing.ErrInvalidConfiguration,
			Op:   "solvers.HeuristicSolver.SolveHeur",
			Err:  fmt.Errorf("block %d: subproblem is %T, want *solvers.ConflictSubProblem", prob.Block, prob.SubProblem),
		}
	}
	if len(sub.Items) == 0 {
		return pricing.SolveResult{Status: pricing.StatusInfeasible}, nil
	}

	conflicts := buildConflictAdjacency(len(sub.Items), sub.Conflicts)
	profit := s.itemProfits(prob.Block, sub.Items)

	if iters < 1 {
		iters = 1
	}

	var best []int
	var bestProfit float64
	for r := 0; r < iters; r++ {
		order := s.rankItems(sub.Items, profit, r > 0)
		picked := greedyPack(sub.Items, profit, conflicts, sub.Capacity, order)
		total := 0.0
		for _, i := range picked {
			total += profit[i]
		}
		if best == nil || total > bestProfit {
			best, bestProfit = picked, total
		}
	}

	if len(best) == 0 {
		return pricing.SolveResult{Status: pricing.StatusInfeasible}, nil
	}

	vars := make([]int, len(best))
	vals := make([]float64, len(best))
	for i, itemIdx := range best {
		vars[i] = sub.Items[itemIdx].OrigVar
		vals[i] = 1
	}

	return pricing.SolveResult{
		Status: pricing.StatusUnknown, // no guaranteed bound: a heuristic result never closes a prob by itself
		Columns: []pricing.SolverSolution{
			{Vars: vars, Vals: vals, IsRay: false},
		},
	}, nil
}

func (s *HeuristicSolver) itemProfits(block int, items []Item) []float64 {
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

// rankItems orders item indices by profit-to-weight ratio descending,
// the best-fit-decreasing rule; when shuffle is true (restarts after
// the first) it instead returns a random permutation so repeated
// iters explore different greedy packings.
func (s *HeuristicSolver) rankItems(items []Item, profit []float64, shuffle bool) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	if shuffle {
		s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		return order
	}
	sort.Slice(order, func(a, b int) bool {
		ra, rb := ratio(profit[order[a]], items[order[a]].Weight), ratio(profit[order[b]], items[order[b]].Weight)
		if ra != rb {
			return ra > rb
		}
		return order[a] < order[b]
	})
	return order
}

func ratio(profit, weight float64) float64 {
	if weight <= 0 {
		return profit
	}
	return profit / weight
}

// buildConflictAdjacency turns a conflict-pair list into an adjacency
// set per item index.
func buildConflictAdjacency(n int, pairs [][2]int) []map[int]bool {
	adj := make([]map[int]bool, n)
	for i := range adj {
		adj[i] = make(map[int]bool)
	}
	for _, p := range pairs {
		if p[0] < 0 || p[0] >= n || p[1] < 0 || p[1] >= n {
			continue
		}
		adj[p[0]][p[1]] = true
		adj[p[1]][p[0]] = true
	}
	return adj
}

// greedyPack walks order, adding an item when it still fits the
// remaining capacity and conflicts with no item already picked
// (§4.6 independent-set heuristic).
func greedyPack(items []Item, profit []float64, conflicts []map[int]bool, capacity float64, order []int) []int {
	picked := make([]int, 0, len(order))
	pickedSet := make(map[int]bool, len(order))
	remaining := capacity
	for _, i := range order {
		if profit[i] <= 0 {
			continue
		}
		if items[i].Weight > remaining {
			continue
		}
		blocked := false
		for j := range conflicts[i] {
			if pickedSet[j] {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		picked = append(picked, i)
		pickedSet[i] = true
		remaining -= items[i].Weight
	}
	return picked
}

// Init/Exit/InitSol/ExitSol are no-ops: HeuristicSolver keeps no
// resources beyond the dual cache Update maintains.
func (s *HeuristicSolver) Init(ctx context.Context) error    { return nil }
func (s *HeuristicSolver) Exit(ctx context.Context) error    { return nil }
func (s *HeuristicSolver) InitSol(ctx context.Context) error { return nil }
func (s *HeuristicSolver) ExitSol(ctx context.Context) error { return nil }
