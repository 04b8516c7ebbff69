package pricing

import (
	"errors"
	"fmt"
	"testing"
)

func TestPricingErrorPredicates(t *testing.T) {
	cause := errors.New("boom")
	err := errResourceExhausted("colpool.addCol", cause)

	if !IsResourceExhausted(err) {
		t.Errorf("expected IsResourceExhausted, got kind %v", kindOf(err))
	}
	if IsInfeasible(err) {
		t.Errorf("did not expect IsInfeasible")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find wrapped cause")
	}
}

func TestPricingErrorWrappedThroughFmt(t *testing.T) {
	base := errInfeasible("pricingprob.solve", nil)
	wrapped := fmt.Errorf("round aborted: %w", base)

	if !IsInfeasible(wrapped) {
		t.Errorf("expected IsInfeasible through fmt.Errorf wrap, got kind %v", kindOf(wrapped))
	}
}

func TestErrorKindString(t *testing.T) {
	cases := map[ErrorKind]string{
		ErrResourceExhausted:    "ResourceExhausted",
		ErrInvalidConfiguration: "InvalidConfiguration",
		ErrUnrecoverable:        "Unrecoverable",
		ErrLimitReached:         "LimitReached",
		ErrInfeasible:           "Infeasible",
		ErrUnknown:              "Unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
