package pricing

// This file collects the typed interfaces through which the core
// reaches its external collaborators (§1, §6): the master LP solver,
// the branch-and-bound tree's branching context, and the decomposition.
// None of these are implemented here; the core only ever calls them.

// MasterSolver is the master LP solver collaborator. The core interacts
// with it only through dual-value queries and column insertion.
type MasterSolver interface {
	NMasterConss() int
	MasterConss() []int
	OrigConss() []int
	ConsDual(c int) float64
	CutDual(r int) float64
	MasterCuts() []int
	OrigCuts() []int

	// AddPricedVar installs col as a new master variable with lower
	// bound lb (0 for points, 0 for rays too — rays only ever enter at
	// a nonnegative multiple) and returns its master variable id.
	AddPricedVar(col *Column, lb float64) (varID int, err error)
	AddLinearCoef(c int, varID int, coef float64) error
	AddRowCoef(r int, varID int, coef float64) error
	AddVarToConvCons(block int, varID int) error
}

// BoundSense is the direction of a generic-branching bound change.
type BoundSense int

const (
	BoundGE BoundSense = iota
	BoundLT
)

// BoundChange is one local bound tightening imposed by a generic
// branching constraint on an original variable.
type BoundChange struct {
	OrigVar int
	Sense   BoundSense
	Bound   float64
}

// BranchingContext exposes the active masterbranch stack and generic
// branching bound changes to the pricing loop. Generic branching
// requires the pricing subproblem to be solved once per level of the
// stack with tightened bounds applied, recovering each level's
// contribution to the Lagrangian dual.
type BranchingContext interface {
	ActiveCons() []int
	ParentOf(cons int) int
	IsGenericBranching(cons int) bool
	GenericBranchBoundChanges(cons int) []BoundChange
	GenericBranchMasterCons(cons int) int
	GenericBranchDual(cons int) float64
	CurrentNodeNr() int
}

// Decomposition exposes the block structure of the reformulated
// problem. The core makes no assumption about what a block's
// subproblem actually is (ILP, combinatorial, ...); SubProblem returns
// an opaque handle a Solver backend knows how to interpret.
type Decomposition interface {
	NBlocks() int
	IsRelevant(b int) bool
	NIdenticalBlocks(b int) int
	ConvexityCons(b int) int
	LinkingConss() []int
	SubProblem(b int) any
	PricingVar(origVar, b int) int
	MasterVarOrigVars(mv int) []int
	OrigVarBlock(ov int) int
}

// ColumnSink accepts a column that has been decided to move into the
// master (§9 design notes: moveCols). MasterSolver-backed
// implementations convert it via AddPricedVar and friends.
type ColumnSink interface {
	AcceptColumn(col *Column) error
}
