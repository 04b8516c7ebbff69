package pricing

import (
	"context"
	"testing"
)

type fakeSolver struct {
	priority            int
	heur, exact         bool
	exactResult         SolveResult
	heurResult          SolveResult
	updateCalls         int
	initCalls, exitCalls int
}

func (f *fakeSolver) Priority() int      { return f.priority }
func (f *fakeSolver) HeurEnabled() bool  { return f.heur }
func (f *fakeSolver) ExactEnabled() bool { return f.exact }

func (f *fakeSolver) Update(ctx context.Context, changes DualChanges) error {
	f.updateCalls++
	return nil
}

func (f *fakeSolver) SolveExact(ctx context.Context, prob *PricingProb, dualConv float64) (SolveResult, error) {
	return f.exactResult, nil
}

func (f *fakeSolver) SolveHeur(ctx context.Context, prob *PricingProb, dualConv float64, iters int) (SolveResult, error) {
	return f.heurResult, nil
}

func (f *fakeSolver) Init(ctx context.Context) error     { f.initCalls++; return nil }
func (f *fakeSolver) Exit(ctx context.Context) error      { f.exitCalls++; return nil }
func (f *fakeSolver) InitSol(ctx context.Context) error   { return nil }
func (f *fakeSolver) ExitSol(ctx context.Context) error   { return nil }

func TestSolverRegistryPriority(t *testing.T) {
	heur := &fakeSolver{priority: 5, heur: true}
	exact := &fakeSolver{priority: 1, exact: true}
	reg := NewSolverRegistry(heur, exact)

	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}
	if reg.Priority(0) != 5 || reg.Priority(1) != 1 {
		t.Errorf("priorities = %d, %d; want 5, 1", reg.Priority(0), reg.Priority(1))
	}
	if reg.Priority(99) != 0 {
		t.Errorf("out-of-range Priority should return 0, got %d", reg.Priority(99))
	}
	if reg.At(0) != heur {
		t.Error("At(0) should return the first registered solver")
	}
}

func TestSolverRegistryUsableAsSolverPriority(t *testing.T) {
	reg := NewSolverRegistry(&fakeSolver{priority: 1}, &fakeSolver{priority: 9})
	prob := NewPricingProb(0, nil, 3)
	a := NewPricingJob(prob, 0, 0, false)
	b := NewPricingJob(prob, 1, 0, false)

	if !ComparePricingJobs(b, a, reg.Priority) {
		t.Error("job on the higher-priority solver should run first")
	}
}
