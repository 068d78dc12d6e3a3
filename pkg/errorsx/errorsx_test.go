package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonFollowUp)
	if Reason(err) != ReasonFollowUp {
		t.Fatalf("expected reason %s, got %s", ReasonFollowUp, Reason(err))
	}
	if !HasReason(err, ReasonFollowUp) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonDecode)
	second := Wrap(first, ReasonAssessment)
	if Reason(second) != ReasonDecode {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestReasonSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("assess: %w", Wrap(assertErr{}, ReasonValidate))
	if Reason(err) != ReasonValidate {
		t.Fatalf("expected reason through %%w, got %s", Reason(err))
	}
	if !errors.Is(err, assertErr{}) {
		t.Fatalf("expected underlying error to be reachable")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, ReasonFollowUp) != nil {
		t.Fatalf("expected nil")
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestErrorfTagsOutermostReason(t *testing.T) {
	inner := Wrap(assertErr{}, ReasonValidate)
	err := Errorf(ReasonFollowUpTimeout, "timed out: %w", inner)
	if Reason(err) != ReasonFollowUpTimeout {
		t.Fatalf("expected outer reason, got %s", Reason(err))
	}
	if err.Error() != "timed out: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Reason(Wrap(err, ReasonFollowUp)) != ReasonFollowUpTimeout {
		t.Fatalf("wrap must keep the existing reason")
	}
	if !errors.Is(err, assertErr{}) {
		t.Fatalf("expected underlying error to be reachable")
	}
}

func TestWrapRetagsUnknownReason(t *testing.T) {
	err := Wrap(ReasonedError{Err: assertErr{}}, ReasonDecode)
	if Reason(err) != ReasonDecode {
		t.Fatalf("expected decode reason, got %s", Reason(err))
	}
}
