package pricing

import (
	"math"
	"testing"

	"k8s.io/klog/v2"
)

// Scenario 2 from §8: start α=0.8, centre π̂=1.0, current π=0.0. First
// mispricing iteration leaves ᾱ unchanged at 0.8; the second drops it
// to 0.6, giving a smoothed dual of 0.6.
func TestStabilizerMispricingRecoveryScenario(t *testing.T) {
	s := NewStabilizer(true, 0, klog.Background())
	s.UpdateNode(1)
	s.centre = DualVector{Conss: []float64{1.0}}
	s.hasCentre = true
	s.alpha = 0.8

	s.UpdateAlphaMisprice()
	if got := s.CurrentAlpha(); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("after k=1, alphaBar = %v, want 0.8", got)
	}

	s.UpdateAlphaMisprice()
	if got := s.CurrentAlpha(); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("after k=2, alphaBar = %v, want 0.6", got)
	}

	smoothed := s.PricingObjective(0, 0.0, false)
	if math.Abs(smoothed-0.6) > 1e-9 {
		t.Errorf("smoothed dual = %v, want 0.6", smoothed)
	}
}

func TestStabilizerAlphaStaysInBounds(t *testing.T) {
	s := NewStabilizer(true, 0, klog.Background())
	for i := 0; i < 50; i++ {
		s.UpdateAlpha(1) // always "successful", pushes alpha upward
		if s.alpha < 0 || s.alpha > stabAlphaMax {
			t.Fatalf("alpha escaped [0, 0.9]: %v", s.alpha)
		}
	}
	for i := 0; i < 50; i++ {
		s.UpdateAlpha(-1) // always "unsuccessful", pushes alpha downward
		if s.alpha < 0 || s.alpha > stabAlphaMax {
			t.Fatalf("alpha escaped [0, 0.9]: %v", s.alpha)
		}
	}
}

func TestStabilizerMispriceAlphaBarBoundedByAlpha(t *testing.T) {
	s := NewStabilizer(true, 0, klog.Background())
	s.alpha = 0.3
	for k := 0; k < 20; k++ {
		s.UpdateAlphaMisprice()
		if s.misprice < 0 || s.misprice > s.alpha {
			t.Fatalf("alphaBar %v out of [0, alpha=%v] at k=%d", s.misprice, s.alpha, k)
		}
	}
}

func TestStabilizerUpdateNodeResetsState(t *testing.T) {
	s := NewStabilizer(true, 0, klog.Background())
	s.UpdateNode(1)
	s.alpha = 0.5
	s.hasCentre = true
	s.k = 3
	s.t = 7
	s.inMispricing = true

	s.UpdateNode(2)
	if s.alpha != stabAlphaInit || s.hasCentre || s.k != 0 || s.t != 1 || s.inMispricing {
		t.Errorf("UpdateNode on a new node must reset state, got alpha=%v hasCentre=%v k=%d t=%d mispricing=%v",
			s.alpha, s.hasCentre, s.k, s.t, s.inMispricing)
	}
}

func TestStabilizerUpdateNodeSameNodeKeepsState(t *testing.T) {
	s := NewStabilizer(true, 0, klog.Background())
	s.UpdateNode(1)
	s.alpha = 0.5
	s.UpdateNode(1)
	if s.alpha != 0.5 {
		t.Errorf("UpdateNode with the same node number must not reset alpha, got %v", s.alpha)
	}
}

func TestStabilizerIsStabilizedRequiresCentreAndEnabled(t *testing.T) {
	s := NewStabilizer(false, 0, klog.Background())
	s.hasCentre = true
	if s.IsStabilized() {
		t.Error("disabled stabilizer must never report stabilized")
	}

	s2 := NewStabilizer(true, 0, klog.Background())
	if s2.IsStabilized() {
		t.Error("a stabilizer without a centre yet must not report stabilized")
	}
	s2.hasCentre = true
	if !s2.IsStabilized() {
		t.Error("enabled stabilizer with a centre should report stabilized")
	}
}

func TestStabilizerPricingObjectiveFarkasBypassesSmoothing(t *testing.T) {
	s := NewStabilizer(true, 0, klog.Background())
	s.centre = DualVector{Conss: []float64{5}}
	s.hasCentre = true

	if got := s.PricingObjective(0, 2.0, true); got != 2.0 {
		t.Errorf("Farkas pricing must use the raw dual, got %v", got)
	}
}

func TestStabilizerUpdateStabilityCenterOnlyOnImprovement(t *testing.T) {
	s := NewStabilizer(true, 0, klog.Background())
	s.UpdateStabilityCenter(10, DualVector{Conss: []float64{1}})
	if !s.hasCentre || s.bestBound != 10 {
		t.Fatalf("first update should always set the centre, bestBound=%v hasCentre=%v", s.bestBound, s.hasCentre)
	}

	s.UpdateStabilityCenter(9, DualVector{Conss: []float64{2}})
	if s.bestBound != 10 || s.centre.Conss[0] != 1 {
		t.Errorf("a worse bound must not overwrite the centre, got bestBound=%v centre=%v", s.bestBound, s.centre.Conss)
	}

	s.UpdateStabilityCenter(11, DualVector{Conss: []float64{3}})
	if s.bestBound != 11 || s.centre.Conss[0] != 3 {
		t.Errorf("a strictly better bound must overwrite the centre, got bestBound=%v centre=%v", s.bestBound, s.centre.Conss)
	}
}

func TestStabilizerDisablesAfterRepeatedMispricing(t *testing.T) {
	s := NewStabilizer(true, 2, klog.Background())
	s.UpdateNode(1)
	s.hasCentre = true

	s.UpdateAlphaMisprice()
	if !s.Enabled() {
		t.Fatal("stabilizer must stay enabled before the mispriceLimit is reached")
	}

	s.UpdateAlphaMisprice()
	if s.Enabled() {
		t.Error("stabilizer must disable itself once mispriceLimit consecutive mispricings occur")
	}
	if s.IsStabilized() {
		t.Error("a disabled stabilizer must never report stabilized")
	}
}

func TestStabilizerReenablesOnNewNode(t *testing.T) {
	s := NewStabilizer(true, 1, klog.Background())
	s.UpdateNode(1)
	s.UpdateAlphaMisprice()
	if s.Enabled() {
		t.Fatal("expected the stabilizer to be disabled within the node")
	}

	s.UpdateNode(2)
	if !s.Enabled() {
		t.Error("a new node must restore the configured enabled state")
	}
}

func TestResizeDualVectorPreservesAndZeroFills(t *testing.T) {
	v := DualVector{Conss: []float64{1, 2}}
	resizeDualVector(&v, 4, 0, 0, 0)
	want := []float64{1, 2, 0, 0}
	for i, w := range want {
		if v.Conss[i] != w {
			t.Errorf("Conss[%d] = %v, want %v", i, v.Conss[i], w)
		}
	}
}

func TestResizeDualVectorShrinkIsNoop(t *testing.T) {
	v := DualVector{Conss: []float64{1, 2, 3}}
	resizeDualVector(&v, 2, 0, 0, 0)
	if len(v.Conss) != 3 {
		t.Errorf("resize must never shrink, len = %d", len(v.Conss))
	}
}
