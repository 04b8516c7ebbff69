package pricing

import (
	"math"
	"testing"

	"k8s.io/klog/v2"
)

func mustColumn(t *testing.T, block int, idx int, val, redcost float64) *Column {
	t.Helper()
	col, err := NewColumn(block, []int{idx}, []float64{val}, false, redcost, nil)
	if err != nil {
		t.Fatalf("NewColumn: %v", err)
	}
	return col
}

func TestColpoolAddColRejectsDuplicateAndOverHard(t *testing.T) {
	pool, err := NewColpool(2, 2, 5, klog.Background())
	if err != nil {
		t.Fatalf("NewColpool: %v", err)
	}

	c1 := mustColumn(t, 0, 0, 1, -1)
	ok, err := pool.AddCol(c1)
	if err != nil || !ok {
		t.Fatalf("expected first add to succeed, got ok=%v err=%v", ok, err)
	}

	dup := mustColumn(t, 0, 0, 1, -5) // structurally equal to c1 despite different redcost
	ok, _ = pool.AddCol(dup)
	if ok {
		t.Error("duplicate column must be rejected")
	}

	c2 := mustColumn(t, 1, 0, 2, -2)
	ok, _ = pool.AddCol(c2)
	if !ok {
		t.Fatal("second distinct column should be accepted (at maxHard=2 after this)")
	}

	c3 := mustColumn(t, 2, 0, 3, -3)
	ok, _ = pool.AddCol(c3)
	if ok {
		t.Error("expected rejection once pool is at maxHard")
	}
}

func TestColpoolEmptyBoundaries(t *testing.T) {
	pool, _ := NewColpool(10, 10, 5, klog.Background())

	if got := pool.BestRedcost(); !math.IsInf(got, 1) {
		t.Errorf("BestRedcost on empty pool = %v, want +Inf", got)
	}
	if got := pool.BestProbNr(); got != -1 {
		t.Errorf("BestProbNr on empty pool = %d, want -1", got)
	}
	if _, ok := pool.TakeBest(); ok {
		t.Error("TakeBest on empty pool should report ok=false")
	}
}

func TestColpoolTakeBestReturnsSmallestRedcost(t *testing.T) {
	pool, _ := NewColpool(10, 10, 5, klog.Background())
	pool.AddCol(mustColumn(t, 0, 0, 1, -0.5))
	pool.AddCol(mustColumn(t, 1, 0, 1, -3))
	pool.AddCol(mustColumn(t, 2, 0, 1, -1))

	best, ok := pool.TakeBest()
	if !ok || best.Redcost() != -3 || best.Block != 1 {
		t.Fatalf("TakeBest = %+v, ok=%v; want block 1 redcost -3", best, ok)
	}
	if pool.BestProbNr() != 2 {
		t.Errorf("after removing the best, BestProbNr = %d, want 2", pool.BestProbNr())
	}
}

func TestColpoolDeleteOldColumnsRestoresRedcostOrder(t *testing.T) {
	pool, _ := NewColpool(10, 10, 2, klog.Background())
	young := mustColumn(t, 0, 0, 1, -1)
	old := mustColumn(t, 1, 1, 1, -5)
	old.age = 10

	pool.AddCol(young)
	pool.AddCol(old)

	if err := pool.DeleteOldColumns(); err != nil {
		t.Fatalf("DeleteOldColumns: %v", err)
	}
	if pool.Len() != 1 {
		t.Fatalf("expected only the young column to survive, Len() = %d", pool.Len())
	}
	// Ordering must be back to reduced-cost after the call.
	best, _ := pool.PeekBest()
	if best.Block != 0 {
		t.Fatalf("expected surviving column (block 0) at the front, got block %d", best.Block)
	}
}

func TestColpoolDeleteOldColumnsIsIdempotent(t *testing.T) {
	pool, _ := NewColpool(10, 10, 0, klog.Background())
	c := mustColumn(t, 0, 0, 1, -1)
	c.age = 1
	pool.AddCol(c)

	pool.DeleteOldColumns()
	lenAfterFirst := pool.Len()
	pool.DeleteOldColumns()
	if pool.Len() != lenAfterFirst {
		t.Errorf("second DeleteOldColumns call changed size: %d -> %d", lenAfterFirst, pool.Len())
	}
}

func TestColpoolDeleteOldestColumnsZeroMaxSoftEmptiesPool(t *testing.T) {
	pool, _ := NewColpool(0, 10, 5, klog.Background())
	pool.AddCol(mustColumn(t, 0, 0, 1, -1))
	pool.AddCol(mustColumn(t, 1, 0, 1, -2))

	if err := pool.DeleteOldestColumns(); err != nil {
		t.Fatalf("DeleteOldestColumns: %v", err)
	}
	if pool.Len() != 0 {
		t.Errorf("maxSoft=0 should empty the pool, Len() = %d", pool.Len())
	}
}

func TestColpoolUpdateNodeWipesOnChange(t *testing.T) {
	pool, _ := NewColpool(10, 10, 5, klog.Background())
	pool.UpdateNode(1)
	pool.AddCol(mustColumn(t, 0, 0, 1, -1))

	pool.UpdateNode(2)
	if pool.Len() != 0 {
		t.Errorf("UpdateNode with a new node number must clear the pool, Len() = %d", pool.Len())
	}
}

func TestColpoolUpdateNodeSameNodeKeepsColumns(t *testing.T) {
	pool, _ := NewColpool(10, 10, 5, klog.Background())
	pool.UpdateNode(1)
	pool.AddCol(mustColumn(t, 0, 0, 1, -1))

	pool.UpdateNode(1)
	if pool.Len() != 1 {
		t.Errorf("UpdateNode with the same node number must not clear the pool, Len() = %d", pool.Len())
	}
}
