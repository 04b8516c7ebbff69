package pricing

import (
	"math"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
)

// stagedCol is one column currently held by the price store pending
// apply (§3, §4.3): its objective parallelism, its running minimum
// orthogonality to already-accepted columns this round, and its score.
type stagedCol struct {
	col    *Column
	forced bool
	objPar float64
	orth   float64 // starts at 1 (unconstrained); only ever lowered
	score  float64
	valid  bool
}

// PriceStore is the per-round staging area that filters pricing
// candidates by reduced cost, objective parallelism, and mutual
// orthogonality before they enter the master (§3, §4.3). It holds one
// array and hash set per block.
type PriceStore struct {
	cfg     *Config
	nBlocks int

	forced [][]*stagedCol
	cols   [][]*stagedCol
	hash   []map[string]*stagedCol

	farkas    bool
	forceMode bool

	touched sets.Set[int] // blocks that received a staged column this round

	logger klog.Logger
}

// NewPriceStore builds an empty PriceStore sized for nBlocks blocks.
func NewPriceStore(nBlocks int, cfg *Config, logger klog.Logger) *PriceStore {
	ps := &PriceStore{
		cfg:     cfg,
		nBlocks: nBlocks,
		forced:  make([][]*stagedCol, nBlocks),
		cols:    make([][]*stagedCol, nBlocks),
		hash:    make([]map[string]*stagedCol, nBlocks),
		touched: sets.New[int](),
		logger:  logger.WithValues("component", "pricestore"),
	}
	for b := 0; b < nBlocks; b++ {
		ps.hash[b] = make(map[string]*stagedCol)
	}
	return ps
}

// StartFarkas / EndFarkas bracket Farkas-pricing mode.
func (ps *PriceStore) StartFarkas() { ps.farkas = true }
func (ps *PriceStore) EndFarkas()   { ps.farkas = false }

// IsFarkas reports whether Farkas-pricing mode is active.
func (ps *PriceStore) IsFarkas() bool { return ps.farkas }

// StartForceCols / EndForceCols bracket the phase where known-good
// colpool columns are being forced back into the master
// (§4.4 step 3: priceColumnPool).
func (ps *PriceStore) StartForceCols() { ps.forceMode = true }
func (ps *PriceStore) EndForceCols()   { ps.forceMode = false }

// IsForceCols reports whether forced-columns mode is active.
func (ps *PriceStore) IsForceCols() bool { return ps.forceMode }

// TouchedBlocks returns the blocks that staged at least one column this
// round, in ascending order, for round-statistics reporting.
func (ps *PriceStore) TouchedBlocks() []int {
	return sets.List(ps.touched)
}

// NImpCols reports how many staged columns for block b have strictly
// negative reduced cost, matching the PricingProb.nImpCols invariant
// (§3).
func (ps *PriceStore) NImpCols(block int) int {
	n := 0
	for _, sc := range ps.cols[block] {
		if sc.col.Redcost() < -epsilon {
			n++
		}
	}
	for _, sc := range ps.forced[block] {
		if sc.col.Redcost() < -epsilon {
			n++
		}
	}
	return n
}

// AddCol stages col. If a structurally equal column is already present:
// a forced col replaces a non-forced duplicate (promoted into the
// forced prefix); otherwise the new column is a no-op duplicate and is
// dropped (§4.3). accepted reports whether col (or its promotion) was
// newly staged.
func (ps *PriceStore) AddCol(col *Column, forced bool, dualObj []float64) (accepted bool, err error) {
	b := col.Block
	key := col.HashKey()
	ps.touched.Insert(b)

	if existing, dup := ps.hash[b][key]; dup {
		if forced && !existing.forced {
			ps.removeNonForcedCol(b, existing)
			existing.forced = true
			existing.score = math.Inf(1)
			existing.col = col
			ps.forced[b] = append(ps.forced[b], existing)
			ps.hash[b][key] = existing
			return true, nil
		}
		// duplicate, new not forced, or both forced: destroy new column.
		return false, nil
	}

	sc := &stagedCol{col: col, forced: forced, orth: 1}
	if !ps.farkas && ps.cfg.WeightObjParallelism > 0 {
		sc.objPar = col.ComputeDualObjParallelism(dualObj)
	}
	if forced {
		sc.score = math.Inf(1)
		ps.forced[b] = append(ps.forced[b], sc)
	} else {
		col.setStagingPos(len(ps.cols[b]))
		ps.cols[b] = append(ps.cols[b], sc)
	}
	ps.hash[b][key] = sc
	return true, nil
}

// removeNonForcedCol removes sc from the non-forced slice of block b by
// swap-with-last, keeping the removed/moved columns' stagingPos correct.
func (ps *PriceStore) removeNonForcedCol(b int, sc *stagedCol) {
	list := ps.cols[b]
	idx := sc.col.StagingPos()
	if idx < 0 || idx >= len(list) || list[idx] != sc {
		return
	}
	last := len(list) - 1
	list[idx] = list[last]
	list[idx].col.setStagingPos(idx)
	ps.cols[b] = list[:last]
	sc.col.setStagingPos(-1)
}

func (ps *PriceStore) removeNonForcedAt(b, idx int) *stagedCol {
	list := ps.cols[b]
	sc := list[idx]
	last := len(list) - 1
	list[idx] = list[last]
	list[idx].col.setStagingPos(idx)
	ps.cols[b] = list[:last]
	delete(ps.hash[b], sc.col.HashKey())
	sc.col.setStagingPos(-1)
	return sc
}

// efficacy scores the reward a column's reduced cost earns (§4.3).
func efficacy(cfg *Config, col *Column, weights []float64) float64 {
	switch cfg.Efficacy {
	case SteepestEdge:
		norm := col.ComputeNorm(weights)
		if norm <= epsilon {
			return -col.Redcost()
		}
		return -col.Redcost() / norm
	default: // Dantzig, and Lambda until it gets its own formula
		return -col.Redcost()
	}
}

// scoreOf scores a staged column for applyCols ranking (§4.3). In Farkas
// pricing, objective-parallelism and orthogonality measure diversity
// against the real objective direction, which is meaningless while
// searching for a feasibility certificate; Farkas columns are scored on
// raw Dantzig efficacy alone.
func (ps *PriceStore) scoreOf(sc *stagedCol) float64 {
	if ps.farkas {
		return -sc.col.Redcost()
	}
	cfg := ps.cfg
	return cfg.WeightRedcost*efficacy(cfg, sc.col, nil) +
		cfg.WeightObjParallelism*sc.objPar +
		cfg.WeightOrthogonality*sc.orth
}

// ApplyCols applies staged columns to the master, most-rewarding first,
// filtering by per-block and per-round caps and by mutual orthogonality
// (§4.3). Forced columns are applied unconditionally first. Remaining
// columns that would not improve the RMLP are recycled into colpool
// (if useColpool) or dropped. All staging arrays are cleared before
// return, win or lose.
func (ps *PriceStore) ApplyCols(master MasterSolver, colpool *Colpool, useColpool bool) (applied []*Column, err error) {
	defer ps.clearRound()

	nAppliedPerBlock := make([]int, ps.nBlocks)
	total := 0

	// Step 1: initialise scores for non-forced columns.
	for b := 0; b < ps.nBlocks; b++ {
		for _, sc := range ps.cols[b] {
			sc.score = ps.scoreOf(sc)
			sc.valid = true
		}
	}

	// Step 2: apply every forced column unconditionally.
	for b := 0; b < ps.nBlocks; b++ {
		for _, sc := range ps.forced[b] {
			varID, aerr := applyOneColumn(sc.col, master)
			if aerr != nil {
				return applied, aerr
			}
			_ = varID
			nAppliedPerBlock[b]++
			total++
			applied = append(applied, sc.col)
		}
	}

	// Step 3: repeatedly apply the best remaining non-forced column.
	for total < ps.cfg.MaxColsPerRound {
		bestB, bestI, bestScore := -1, -1, math.Inf(-1)
		for b := 0; b < ps.nBlocks; b++ {
			if nAppliedPerBlock[b] >= ps.cfg.MaxColsPerProb {
				continue
			}
			for i, sc := range ps.cols[b] {
				if !sc.valid || math.IsInf(sc.score, -1) {
					continue
				}
				if sc.score > bestScore {
					bestScore, bestB, bestI = sc.score, b, i
				}
			}
		}
		if bestB == -1 {
			break
		}

		sc := ps.removeNonForcedAt(bestB, bestI)
		if sc.col.Redcost() >= -epsilon {
			// Would not improve the RMLP.
			if useColpool && colpool != nil {
				colpool.AddCol(sc.col)
			}
			continue
		}

		varID, aerr := applyOneColumn(sc.col, master)
		if aerr != nil {
			return applied, aerr
		}
		_ = varID
		nAppliedPerBlock[bestB]++
		total++
		applied = append(applied, sc.col)

		ps.updateOrthogonalityAfterApply(sc.col)
	}

	return applied, nil
}

// updateOrthogonalityAfterApply refreshes every remaining staged
// column's running minimum orthogonality to the just-applied column,
// deleting anything that falls below minOrth and rescoring the rest
// (§4.3, §8).
func (ps *PriceStore) updateOrthogonalityAfterApply(applied *Column) {
	for b := 0; b < ps.nBlocks; b++ {
		i := 0
		for i < len(ps.cols[b]) {
			rem := ps.cols[b][i]
			o := rem.col.ComputeOrth(applied)
			if o < rem.orth {
				rem.orth = o
			}
			if rem.orth < ps.cfg.MinOrth {
				ps.removeNonForcedAt(b, i)
				continue // element at i was swapped in from the tail; re-check it
			}
			rem.score = ps.scoreOf(rem)
			i++
		}
	}
}

func (ps *PriceStore) clearRound() {
	for b := 0; b < ps.nBlocks; b++ {
		for _, sc := range ps.cols[b] {
			sc.col.setStagingPos(-1)
		}
		ps.forced[b] = nil
		ps.cols[b] = nil
		ps.hash[b] = make(map[string]*stagedCol)
	}
	ps.touched = sets.New[int]()
}

// applyOneColumn converts col into a master variable and wires its
// coefficients into the master constraints and cuts it touches
// (§4.3, §9 supplement: moveCols).
func applyOneColumn(col *Column, master MasterSolver) (varID int, err error) {
	varID, err = master.AddPricedVar(col, 0)
	if err != nil {
		return 0, errUnrecoverable("applyOneColumn.AddPricedVar", err)
	}
	if !col.IsRay() {
		if err := master.AddVarToConvCons(col.Block, varID); err != nil {
			return 0, errUnrecoverable("applyOneColumn.AddVarToConvCons", err)
		}
	}

	coefs := col.MasterCoefs()
	nConss := master.NMasterConss()
	for i := 0; i < nConss && i < len(coefs); i++ {
		if coefs[i] == 0 {
			continue
		}
		if err := master.AddLinearCoef(i, varID, coefs[i]); err != nil {
			return 0, errUnrecoverable("applyOneColumn.AddLinearCoef", err)
		}
	}
	for j, r := range master.MasterCuts() {
		idx := nConss + j
		if idx >= len(coefs) || coefs[idx] == 0 {
			continue
		}
		if err := master.AddRowCoef(r, varID, coefs[idx]); err != nil {
			return 0, errUnrecoverable("applyOneColumn.AddRowCoef", err)
		}
	}
	return varID, nil
}
