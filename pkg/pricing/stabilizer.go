package pricing

import (
	"math"

	"k8s.io/klog/v2"
)

// DualVector holds smoothed or raw dual values for every dual-priced
// master object, indexed identically to the collaborator's own indexing
// (§3 invariant: reallocation preserves values and zero-fills suffix).
type DualVector struct {
	Conss   []float64 // original master constraints
	Cuts    []float64 // master cuts
	Linking []float64 // linking constraints
	Convex  []float64 // convexity constraints
}

// resizeDualVector grows v's slices to width n, preserving existing values and
// zero-filling any new suffix, matching the stability-centre reindexing
// invariant (§3).
func resizeDualVector(v *DualVector, nConss, nCuts, nLinking, nConvex int) {
	v.Conss = growFloat64(v.Conss, nConss)
	v.Cuts = growFloat64(v.Cuts, nCuts)
	v.Linking = growFloat64(v.Linking, nLinking)
	v.Convex = growFloat64(v.Convex, nConvex)
}

func growFloat64(s []float64, n int) []float64 {
	if len(s) >= n {
		return s
	}
	grown := make([]float64, n)
	copy(grown, s)
	return grown
}

const (
	stabAlphaInit   = 0.8
	stabAlphaMax    = 0.9
	stabAlphaMinGap = 0.5
)

// Stabilizer implements Wentges / in-out dual smoothing (§4.5): a
// stability centre blended with the current dual solution by a factor
// α, with a mispricing schedule that decays α when pricing repeatedly
// fails to find improving columns.
type Stabilizer struct {
	configEnabled bool // Config.Stabilization; restored at the start of every node
	enabled       bool // current runtime state; repeated mispricing can clear it early

	centre     DualVector
	hasCentre  bool
	bestBound  float64

	alpha        float64
	misprice     float64 // effective alpha while in the mispricing schedule
	k            int     // mispricing iteration count
	t            int     // pricing iteration at this node
	nodeNr       int
	nodeNrSet    bool
	inMispricing bool

	// mispriceLimit is the number of consecutive mispricing iterations
	// after which the stabiliser disables itself for the rest of the
	// node (§7). <= 0 means never auto-disable.
	mispriceLimit int

	logger klog.Logger
}

// NewStabilizer builds a Stabilizer. enabled mirrors Config.Stabilization;
// mispriceLimit mirrors Config.MispriceLimit.
func NewStabilizer(enabled bool, mispriceLimit int, logger klog.Logger) *Stabilizer {
	return &Stabilizer{
		configEnabled: enabled,
		enabled:       enabled,
		mispriceLimit: mispriceLimit,
		alpha:         stabAlphaInit,
		t:             1,
		logger:        logger.WithValues("component", "stabilizer"),
	}
}

// Enabled reports whether dual smoothing is active at all.
func (s *Stabilizer) Enabled() bool { return s.enabled }

// Disable turns off stabilisation for the remainder of the node,
// per §7's repeated-mispricing user-visible behaviour.
func (s *Stabilizer) Disable() {
	s.enabled = false
	s.logger.V(2).Info("stabilization disabled for remainder of node", "nodeNr", s.nodeNr)
}

// IsStabilized reports whether smoothing should be applied this
// iteration: enabled, and a stability centre is available.
func (s *Stabilizer) IsStabilized() bool {
	return s.enabled && s.hasCentre
}

// InMispricing reports whether the mispricing schedule is currently
// active (ᾱ should be used in place of α).
func (s *Stabilizer) InMispricing() bool { return s.inMispricing }

// CurrentAlpha returns the α value that should be used for this
// iteration's smoothing: ᾱ while in the mispricing schedule, α
// otherwise.
func (s *Stabilizer) CurrentAlpha() float64 {
	if s.inMispricing {
		return s.misprice
	}
	return s.alpha
}

// UpdateNode resets the stabiliser's per-node state when currentNodeNr
// differs from the last node it saw (§4.5.c): k←0, t←1, α←0.8, the
// centre is forgotten, and mispricing is cleared.
func (s *Stabilizer) UpdateNode(currentNodeNr int) {
	if !s.nodeNrSet {
		s.nodeNr = currentNodeNr
		s.nodeNrSet = true
		return
	}
	if currentNodeNr == s.nodeNr {
		return
	}
	s.logger.V(3).Info("stabilizer resetting for new node", "from", s.nodeNr, "to", currentNodeNr)
	s.nodeNr = currentNodeNr
	s.k = 0
	s.t = 1
	s.alpha = stabAlphaInit
	s.hasCentre = false
	s.inMispricing = false
	s.enabled = s.configEnabled
}

// SmoothedDual blends the stability centre with raw, the current raw
// master dual, using the active α. Outside stabilisation (disabled, no
// centre yet, or Farkas pricing) callers should use raw directly
// instead of calling this method (§4.5.a).
func (s *Stabilizer) SmoothedDual(raw []float64, centre []float64) []float64 {
	alpha := s.CurrentAlpha()
	out := make([]float64, len(raw))
	for i, pi := range raw {
		piHat := 0.0
		if i < len(centre) {
			piHat = centre[i]
		}
		out[i] = alpha*piHat + (1-alpha)*pi
	}
	return out
}

// PricingObjective computes the smoothed pricing-objective dual for
// original constraint c: π̃_c = α·π̂_c + (1−α)·π_c when a centre
// exists and stabilisation applies, else the raw dual (§4.5.a).
func (s *Stabilizer) PricingObjective(c int, rawDual float64, farkas bool) float64 {
	if farkas || !s.IsStabilized() {
		return rawDual
	}
	alpha := s.CurrentAlpha()
	piHat := 0.0
	if c < len(s.centre.Conss) {
		piHat = s.centre.Conss[c]
	}
	return alpha*piHat + (1-alpha)*rawDual
}

// UpdateStabilityCenter overwrites the centre with the current smoothed
// dual vector when bound strictly improves the best bound seen so far
// at this node (§4.5.d).
func (s *Stabilizer) UpdateStabilityCenter(bound float64, smoothedDual DualVector) {
	if s.hasCentre && bound <= s.bestBound+epsilon {
		return
	}
	s.centre = smoothedDual
	s.bestBound = bound
	s.hasCentre = true
	s.logger.V(4).Info("stability centre updated", "bound", bound)
}

// SubgradientTerm computes one constraint's contribution to the
// subgradient inner product g = Σ (π̂_c − π̃_c)·(a_c·x̂_c − b_c)
// (§4.5.b). Callers sum this over constraints, cuts, and linking rows.
func SubgradientTerm(piHat, piTilde, activityMinusRHS float64) float64 {
	return (piHat - piTilde) * activityMinusRHS
}

// UpdateAlpha applies the Wentges rule after a successful pricing
// round (≥1 improving column found): g is the subgradient inner
// product computed by the caller over all dual-priced rows (§4.5.b).
func (s *Stabilizer) UpdateAlpha(g float64) {
	s.inMispricing = false
	s.k = 0
	if g > 0 {
		s.alpha = math.Min(stabAlphaMax, s.alpha+0.1*(1-s.alpha))
	} else if s.alpha >= stabAlphaMinGap && s.alpha < 1 {
		s.alpha = s.alpha / 1.1
	} else {
		s.alpha = math.Max(0, s.alpha-0.1*(1-s.alpha))
	}
	s.logger.V(4).Info("alpha updated", "g", g, "alpha", s.alpha)
}

// UpdateAlphaMisprice applies the mispricing recovery rule (§4.5.b):
// k←k+1; ᾱ ← max(0, 1 − k·(1−α)), capped at α so floating-point
// rounding cannot push it above α. The controller should use
// CurrentAlpha() (which now returns ᾱ) for the next iteration. Once k
// reaches mispriceLimit, stabilisation is disabled for the rest of the
// node (§7 user-visible behaviour).
func (s *Stabilizer) UpdateAlphaMisprice() {
	s.inMispricing = true
	s.k++
	s.misprice = math.Min(s.alpha, math.Max(0, 1-float64(s.k)*(1-s.alpha)))
	s.logger.V(4).Info("mispricing alpha updated", "k", s.k, "alphaBar", s.misprice)
	if s.mispriceLimit > 0 && s.k >= s.mispriceLimit {
		s.Disable()
	}
}

// AdvanceIteration increments the per-node pricing-iteration counter t.
func (s *Stabilizer) AdvanceIteration() { s.t++ }

// Iteration returns the current per-node pricing-iteration count.
func (s *Stabilizer) Iteration() int { return s.t }

// PricingType dispatches the handful of behaviours that differ between
// Farkas pricing (searching for a proof of infeasibility) and
// reduced-cost pricing (the normal column-generation mode), mirroring
// the original's pricingtype dispatch table (consDual/rowDual/varObj/
// canAbort).
type PricingType interface {
	// ConsDual returns the dual value to use in the pricing objective
	// for original constraint c.
	ConsDual(master MasterSolver, c int) float64
	// RowDual returns the dual value to use in the pricing objective
	// for master cut r.
	RowDual(master MasterSolver, r int) float64
	// CanAbort reports whether the early abort (maxvarsround plus
	// relmaxsuccessfulprobs) is permitted in this pricing mode; the eager
	// sweep does not consult it.
	CanAbort() bool
	// Name identifies the mode for logging.
	Name() string
}

// ReducedCostPricing is the normal column-generation pricing mode: it
// reads the master's real duals and allows early-abort heuristics.
type ReducedCostPricing struct{}

func (ReducedCostPricing) ConsDual(master MasterSolver, c int) float64 { return master.ConsDual(c) }
func (ReducedCostPricing) RowDual(master MasterSolver, r int) float64  { return master.CutDual(r) }
func (ReducedCostPricing) CanAbort() bool                              { return true }
func (ReducedCostPricing) Name() string                                { return "reducedcost" }

// FarkasPricing searches for a column proving the master LP infeasible;
// it never abandons a prob early, since a single unexplored block could
// hold the certificate.
type FarkasPricing struct{}

func (FarkasPricing) ConsDual(master MasterSolver, c int) float64 { return master.ConsDual(c) }
func (FarkasPricing) RowDual(master MasterSolver, r int) float64  { return master.CutDual(r) }
func (FarkasPricing) CanAbort() bool                              { return false }
func (FarkasPricing) Name() string                                { return "farkas" }
