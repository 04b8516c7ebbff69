// Package pricing implements the pricing loop of a branch-price-and-cut
// solver built on Dantzig-Wolfe decomposition: a priority-ordered column
// pool, a per-round price store, a Wentges/in-out dual-smoothing
// stabilizer, and the controller that drives pricing jobs across blocks
// and solver backends to extend a restricted master LP with negative
// reduced-cost columns.
//
// The master LP solver, the branch-and-bound tree, and individual
// pricing-solver backends beyond the reference ones are external
// collaborators, reached only through the interfaces in external.go and
// solver.go.
package pricing
