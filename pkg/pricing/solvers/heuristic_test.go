package solvers

import (
	"context"
	"testing"

	"github.com/dwpricing/pricingcore/pkg/pricing"
)

func newTestProb(sub any) *pricing.PricingProb {
	return pricing.NewPricingProb(0, sub, 1)
}

func TestHeuristicSolverPacksByProfitToWeightRatio(t *testing.T) {
	sub := &ConflictSubProblem{
		Items: []Item{
			{OrigVar: 0, Weight: 4, ConsIdx: []int{0}, ConsCoef: []float64{1}}, // profit 2, ratio 0.5
			{OrigVar: 1, Weight: 1, ConsIdx: []int{1}, ConsCoef: []float64{1}}, // profit 3, ratio 3
			{OrigVar: 2, Weight: 2, ConsIdx: []int{2}, ConsCoef: []float64{1}}, // profit 1, ratio 0.5
		},
		Capacity: 3,
	}
	prob := newTestProb(sub)

	s := NewHeuristicSolver(100, 1)
	if err := s.Update(context.Background(), pricing.DualChanges{
		Block:     0,
		ConsDuals: map[int]float64{0: 2, 1: 3, 2: 1},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	res, err := s.SolveHeur(context.Background(), prob, 0, 1)
	if err != nil {
		t.Fatalf("SolveHeur: %v", err)
	}
	if len(res.Columns) != 1 {
		t.Fatalf("expected one column, got %d", len(res.Columns))
	}
	col := res.Columns[0]

	// Best ratio first (item 1, weight 1, profit 3) leaves capacity 2,
	// which exactly fits item 2 (weight 2, profit 1); item 0 (weight 4)
	// never fits. Expect {1, 2} selected, not {0}.
	got := map[int]bool{}
	for _, v := range col.Vars {
		got[v] = true
	}
	if !got[1] || !got[2] || got[0] {
		t.Errorf("Vars = %v, want {1,2}", col.Vars)
	}
}

func TestHeuristicSolverRespectsConflicts(t *testing.T) {
	sub := &ConflictSubProblem{
		Items: []Item{
			{OrigVar: 0, Weight: 1, ConsIdx: []int{0}, ConsCoef: []float64{1}}, // profit 5
			{OrigVar: 1, Weight: 1, ConsIdx: []int{1}, ConsCoef: []float64{1}}, // profit 4
		},
		Capacity:  10,
		Conflicts: [][2]int{{0, 1}},
	}
	prob := newTestProb(sub)

	s := NewHeuristicSolver(100, 1)
	_ = s.Update(context.Background(), pricing.DualChanges{
		Block:     0,
		ConsDuals: map[int]float64{0: 5, 1: 4},
	})

	res, err := s.SolveHeur(context.Background(), prob, 0, 1)
	if err != nil {
		t.Fatalf("SolveHeur: %v", err)
	}
	if len(res.Columns) != 1 || len(res.Columns[0].Vars) != 1 {
		t.Fatalf("expected exactly one item selected under conflict, got %+v", res.Columns)
	}
	if res.Columns[0].Vars[0] != 0 {
		t.Errorf("expected the higher-profit item 0 to win the conflict, got var %d", res.Columns[0].Vars[0])
	}
}

func TestHeuristicSolverWrongSubProblemType(t *testing.T) {
	prob := newTestProb("not a conflict subproblem")
	s := NewHeuristicSolver(1, 1)
	if _, err := s.SolveHeur(context.Background(), prob, 0, 1); err == nil {
		t.Fatal("expected an error for a mistyped SubProblem")
	} else if !pricing.IsInvalidConfiguration(err) {
		t.Errorf("expected IsInvalidConfiguration, got %v", err)
	}
}

func TestHeuristicSolverNoProfitableItemsIsInfeasible(t *testing.T) {
	sub := &ConflictSubProblem{
		Items: []Item{
			{OrigVar: 0, Weight: 1, ConsIdx: []int{0}, ConsCoef: []float64{1}},
		},
		Capacity: 10,
	}
	prob := newTestProb(sub)
	s := NewHeuristicSolver(1, 1)
	_ = s.Update(context.Background(), pricing.DualChanges{Block: 0, ConsDuals: map[int]float64{0: -1}})

	res, err := s.SolveHeur(context.Background(), prob, 0, 1)
	if err != nil {
		t.Fatalf("SolveHeur: %v", err)
	}
	if res.Status != pricing.StatusInfeasible {
		t.Errorf("Status = %v, want Infeasible when no item has positive profit", res.Status)
	}
}

func TestHeuristicSolverTraits(t *testing.T) {
	s := NewHeuristicSolver(42, 1)
	if s.Priority() != 42 {
		t.Errorf("Priority() = %d, want 42", s.Priority())
	}
	if !s.HeurEnabled() || s.ExactEnabled() {
		t.Error("HeuristicSolver must be heur-only")
	}
	if res, err := s.SolveExact(context.Background(), newTestProb(nil), 0); err != nil || res.Status != pricing.StatusNotApplicable {
		t.Errorf("SolveExact should be a no-op returning NotApplicable, got %+v, %v", res, err)
	}
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Errorf("Init: %v", err)
	}
	if err := s.InitSol(ctx); err != nil {
		t.Errorf("InitSol: %v", err)
	}
	if err := s.ExitSol(ctx); err != nil {
		t.Errorf("ExitSol: %v", err)
	}
	if err := s.Exit(ctx); err != nil {
		t.Errorf("Exit: %v", err)
	}
}
