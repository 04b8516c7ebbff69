package pricing

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"
)

func colpoolRedcostLess(a, b *Column) bool { return a.Redcost() < b.Redcost() }
func colpoolAgeLess(a, b *Column) bool      { return a.Age() > b.Age() } // largest age first

// Colpool is a priority-ordered, aged cache of generated columns shared
// across pricing rounds (§3, §4.2). It stores unique owned columns,
// ordered by reduced cost ascending, with two size bounds and an age
// limit.
//
// Colpool is not safe for concurrent use: per §5 it is only ever
// touched by the controller between pricing rounds, single-threaded.
type Colpool struct {
	pq      *PriorityQueue[*Column]
	byHash  map[string]*Column
	maxSoft int
	maxHard int

	ageLimit int

	nodeNr    int
	nodeNrSet bool

	logger klog.Logger
}

// NewColpool builds an empty Colpool. maxHard must be >= maxSoft.
func NewColpool(maxSoft, maxHard, ageLimit int, logger klog.Logger) (*Colpool, error) {
	if maxHard < maxSoft {
		return nil, errInvalidConfiguration("NewColpool",
			fmt.Errorf("maxHard (%d) must be >= maxSoft (%d)", maxHard, maxSoft))
	}
	return &Colpool{
		pq:      NewPriorityQueue(colpoolRedcostLess),
		byHash:  make(map[string]*Column),
		maxSoft: maxSoft,
		maxHard: maxHard,
		ageLimit: ageLimit,
		logger:  logger.WithValues("component", "colpool"),
	}, nil
}

// Len reports how many columns are currently stored.
func (p *Colpool) Len() int { return p.pq.Len() }

// AddCol attempts to insert col, transferring ownership. It rejects
// (accepted=false, no error) when the pool is already at maxHard or a
// structurally equal column is already stored (§4.2).
func (p *Colpool) AddCol(col *Column) (accepted bool, err error) {
	if p.pq.Len() >= p.maxHard {
		p.logger.V(3).Info("colpool rejecting column, at maxHard", "maxHard", p.maxHard)
		return false, nil
	}
	key := col.HashKey()
	if _, dup := p.byHash[key]; dup {
		return false, nil
	}
	p.pq.Push(col)
	p.byHash[key] = col
	return true, nil
}

// PeekBest returns the column with smallest reduced cost without
// removing it, or ok=false when empty.
func (p *Colpool) PeekBest() (*Column, bool) { return p.pq.Peek() }

// TakeBest returns and removes the column with smallest reduced cost.
func (p *Colpool) TakeBest() (*Column, bool) {
	col, ok := p.pq.Pop()
	if !ok {
		return nil, false
	}
	delete(p.byHash, col.HashKey())
	return col, true
}

// BestRedcost returns the smallest reduced cost stored, or +Inf when
// the pool is empty.
func (p *Colpool) BestRedcost() float64 {
	col, ok := p.pq.Peek()
	if !ok {
		return math.Inf(1)
	}
	return col.Redcost()
}

// BestProbNr returns the block index of the best column, or -1 when
// the pool is empty.
func (p *Colpool) BestProbNr() int {
	col, ok := p.pq.Peek()
	if !ok {
		return -1
	}
	return col.Block
}

// DeleteOldColumns evicts every column whose age exceeds ageLimit. It
// switches the comparator to largest-age-first, evicts, and restores
// the reduced-cost comparator before returning (§4.2, §9).
func (p *Colpool) DeleteOldColumns() error {
	p.pq.SetLess(colpoolAgeLess)
	evicted := 0
	for {
		col, ok := p.pq.Peek()
		if !ok || col.Age() <= p.ageLimit {
			break
		}
		col, _ = p.pq.Pop()
		delete(p.byHash, col.HashKey())
		evicted++
	}
	p.pq.SetLess(colpoolRedcostLess)
	if evicted > 0 {
		p.logger.V(3).Info("deleted aged-out columns", "count", evicted, "ageLimit", p.ageLimit)
	}
	return nil
}

// DeleteOldestColumns evicts oldest-first until size <= maxSoft. If
// maxSoft is 0, every column is deleted. The reduced-cost comparator is
// restored before returning (§4.2, §9).
func (p *Colpool) DeleteOldestColumns() error {
	p.pq.SetLess(colpoolAgeLess)
	evicted := 0
	for p.pq.Len() > p.maxSoft {
		col, _ := p.pq.Pop()
		delete(p.byHash, col.HashKey())
		evicted++
	}
	p.pq.SetLess(colpoolRedcostLess)
	if evicted > 0 {
		p.logger.V(3).Info("deleted columns down to maxSoft", "count", evicted, "maxSoft", p.maxSoft)
	}
	return nil
}

// UpdateNode notifies the pool of the current B&B node number. On the
// first call it just records nodeNr; on a change it wipes the pool,
// since branching decisions may have invalidated every stored column
// (§4.2).
func (p *Colpool) UpdateNode(currentNodeNr int) {
	if !p.nodeNrSet {
		p.nodeNr = currentNodeNr
		p.nodeNrSet = true
		return
	}
	if currentNodeNr != p.nodeNr {
		p.logger.V(2).Info("node changed, clearing colpool", "from", p.nodeNr, "to", currentNodeNr, "discarded", p.pq.Len())
		p.pq.Clear()
		p.byHash = make(map[string]*Column)
		p.nodeNr = currentNodeNr
	}
}

// ResortColumns re-heaps the pool after reduced costs were updated out
// from under it (e.g. following a dual update between rounds).
func (p *Colpool) ResortColumns() { p.pq.Reheapify() }
