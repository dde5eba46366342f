package errors

import (
	stderrors "errors"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	base := ValidationError("period must be positive")
	if base.Error() != "period must be positive" {
		t.Fatalf("got %q", base.Error())
	}

	wrapped := Wrap(base, "single-star query failed")
	if wrapped.Error() != "single-star query failed: period must be positive" {
		t.Fatalf("got %q", wrapped.Error())
	}
}

func TestWrapPreservesCode(t *testing.T) {
	err := Wrapf(EmptyPopulation("no stars in window"), "row %d", 7)
	if GetCode(err) != CodeEmptyPopulation {
		t.Fatalf("got code %s", GetCode(err))
	}
	if !HasCode(err, CodeEmptyPopulation) {
		t.Fatal("HasCode should match the preserved code")
	}
}

func TestWrapForeignError(t *testing.T) {
	err := Wrap(stderrors.New("disk full"), "failed to write output")
	if GetCode(err) != CodeInternalError {
		t.Fatalf("got code %s", GetCode(err))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Fatal("wrapping nil should stay nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Fatal("wrapping nil should stay nil")
	}
}

func TestGetCodeUnknown(t *testing.T) {
	if GetCode(stderrors.New("plain")) != "UNKNOWN" {
		t.Fatal("plain errors have no code")
	}
	if IsAppError(stderrors.New("plain")) {
		t.Fatal("plain error is not an AppError")
	}
}

func TestUnwrap(t *testing.T) {
	cause := ValidationError("bad value")
	err := Wrap(cause, "outer")
	if !stderrors.Is(err, cause) {
		t.Fatal("wrapped error should unwrap to its cause")
	}
}
