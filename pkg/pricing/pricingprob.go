package pricing

// ProbStatus is the outcome of the most recent solve attempt for a
// PricingProb (§3).
type ProbStatus int

const (
	StatusUnknown ProbStatus = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	StatusInforUnbd
	StatusLimitReached
	StatusNotApplicable
)

func (s ProbStatus) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusInfeasible:
		return "Infeasible"
	case StatusUnbounded:
		return "Unbounded"
	case StatusInforUnbd:
		return "InforUnbd"
	case StatusLimitReached:
		return "LimitReached"
	case StatusNotApplicable:
		return "NotApplicable"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether s ends the round for its prob without
// requiring an improving column (§4.4 "done" predicate).
func (s ProbStatus) IsTerminal() bool {
	switch s {
	case StatusOptimal, StatusInfeasible, StatusUnbounded, StatusInforUnbd:
		return true
	default:
		return false
	}
}

// branchLevel is one entry of a PricingProb's generic-branching stack:
// a masterbranch constraint, its associated bound tightenings on
// original variables, and its dual value (§3, §6 BranchingContext,
// SPEC_FULL generic-branching replay).
type branchLevel struct {
	cons    int
	changes []BoundChange
	dual    float64
}

// PricingProb is one per relevant block (§3): the subproblem reference,
// the generic-branching stack grown during tree descent, the current
// solve status, the running lower bound, and the per-round counters the
// controller uses to drive escalation and scheduling.
type PricingProb struct {
	Block      int
	SubProblem any

	branchStack []branchLevel

	Status     ProbStatus
	Lowerbound float64

	NImpCols int
	NSolves  int

	// ncolsRound is a rolling window of past improving-column counts,
	// length nroundscol; roundIdx is the next slot to overwrite.
	ncolsRound []int
	roundIdx   int

	bestCol *Column // best column found this round, for the stabilizer's subgradient term

	// NPointsTotal / NRaysTotal accumulate across rounds for the 'r'
	// (fractionality) job-scoring strategy (§4.4).
	NPointsTotal int
	NRaysTotal   int
}

// NewPricingProb builds a PricingProb for block with a rolling window
// of nroundscol rounds.
func NewPricingProb(block int, sub any, nroundscol int) *PricingProb {
	if nroundscol < 1 {
		nroundscol = 1
	}
	return &PricingProb{
		Block:      block,
		SubProblem: sub,
		ncolsRound: make([]int, nroundscol),
	}
}

// IsDone reports whether this prob need not be solved again this round:
// it already found an improving column, or its status is terminal
// (§4.4).
func (p *PricingProb) IsDone() bool {
	return p.NImpCols >= 1 || p.Status.IsTerminal()
}

// ResetRound clears the per-round counters ahead of a new pricing call
// (initPricing, §4.4 step 1).
func (p *PricingProb) ResetRound() {
	p.NImpCols = 0
	p.NSolves = 0
	p.bestCol = nil
}

// RecordSolve updates status, lower bound and solve count after a
// solver call (§9 supplement: updatePricingprob).
func (p *PricingProb) RecordSolve(status ProbStatus, lb float64) {
	p.Status = status
	p.Lowerbound = lb
	p.NSolves++
}

// RecordImprovingColumn registers that an improving column (strictly
// negative reduced cost) was found for this prob this round, updating
// the best-column cache used by the stabilizer's subgradient term.
func (p *PricingProb) RecordImprovingColumn(col *Column) {
	p.NImpCols++
	if col.IsRay() {
		p.NRaysTotal++
	} else {
		p.NPointsTotal++
	}
	if p.bestCol == nil || col.Redcost() < p.bestCol.Redcost() {
		p.bestCol = col
	}
}

// BestCol returns the best column found for this prob this round, or
// nil if none.
func (p *PricingProb) BestCol() *Column { return p.bestCol }

// EndRound slides the rolling improving-column-count window (§3).
func (p *PricingProb) EndRound() {
	p.ncolsRound[p.roundIdx] = p.NImpCols
	p.roundIdx = (p.roundIdx + 1) % len(p.ncolsRound)
}

// RecentColumns sums the improving-column counts over the rolling
// window, used by the 'l' job-scoring strategy (§4.4).
func (p *PricingProb) RecentColumns() int {
	sum := 0
	for _, n := range p.ncolsRound {
		sum += n
	}
	return sum
}

// PushBranchLevel grows the generic-branching stack by one level as the
// tree descends.
func (p *PricingProb) PushBranchLevel(cons int, changes []BoundChange, dual float64) {
	p.branchStack = append(p.branchStack, branchLevel{cons: cons, changes: changes, dual: dual})
}

// PopBranchLevel shrinks the stack by one level as the tree ascends.
// It is a no-op on an empty stack.
func (p *PricingProb) PopBranchLevel() {
	if len(p.branchStack) == 0 {
		return
	}
	p.branchStack = p.branchStack[:len(p.branchStack)-1]
}

// BranchStackDepth reports how many generic-branching levels are
// currently active for this prob.
func (p *PricingProb) BranchStackDepth() int { return len(p.branchStack) }

// BranchDuals returns the dual value of every generic-branching
// constraint currently on the stack, bottom (root-most) first; used by
// the controller to recover each level's Lagrangian contribution.
func (p *PricingProb) BranchDuals() []float64 {
	duals := make([]float64, len(p.branchStack))
	for i, lvl := range p.branchStack {
		duals[i] = lvl.dual
	}
	return duals
}

// ApplyBranchingStack rebuilds the generic-branching bound-tightening
// stack from ctx by walking the active masterbranch chain from the
// current node to the root, then pushes it in root-to-leaf ("bottom-up")
// order so later, tighter levels are applied after earlier ones. It
// returns the flattened bound changes in the order they were applied.
// Call UndoBranchingStack to unwind before the next solve of a
// different prob (§6 BranchingContext, SPEC_FULL generic-branching
// replay).
func (p *PricingProb) ApplyBranchingStack(ctx BranchingContext) ([]BoundChange, error) {
	if ctx == nil {
		return nil, nil
	}

	var chain []int
	for _, cons := range ctx.ActiveCons() {
		for c := cons; c != -1; c = ctx.ParentOf(c) {
			if ctx.IsGenericBranching(c) {
				chain = append(chain, c)
			}
		}
	}

	// chain is leaf-to-root; reverse to root-to-leaf ("bottom-up" in
	// the tree-descent sense) before pushing.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	var flattened []BoundChange
	for _, cons := range chain {
		changes := ctx.GenericBranchBoundChanges(cons)
		dual := ctx.GenericBranchDual(cons)
		p.PushBranchLevel(ctx.GenericBranchMasterCons(cons), changes, dual)
		flattened = append(flattened, changes...)
	}
	return flattened, nil
}

// UndoBranchingStack pops every level ApplyBranchingStack pushed.
func (p *PricingProb) UndoBranchingStack() {
	p.branchStack = nil
}
