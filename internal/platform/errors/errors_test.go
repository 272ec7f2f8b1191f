package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByCode(t *testing.T) {
	err := fmt.Errorf("prepare: %w", New(CodeContentCommandUnregistered, "command type is not registered"))
	if !IsCode(err, CodeContentCommandUnregistered) {
		t.Fatal("expected wrapped error to match its code")
	}
	if IsCode(err, CodeContentResourceUnknown) {
		t.Fatal("expected code mismatch")
	}
	if got := GetCode(err); got != CodeContentCommandUnregistered {
		t.Fatalf("GetCode = %s", got)
	}
}

func TestGetCodeWithoutDomainError(t *testing.T) {
	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("GetCode = %s, want %s", got, CodeUnknown)
	}
}

func TestWrapExposesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeStorageFailure, "apply batch", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if err.Error() != "apply batch: disk full" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestWithMetadata(t *testing.T) {
	err := WithMetadata(CodeContentResourceUnknown, "unknown resource", map[string]string{"resource": "mana"})
	if err.Metadata["resource"] != "mana" {
		t.Fatalf("metadata = %v", err.Metadata)
	}
	wrapped := WrapWithMetadata(CodeContentDiceFormulaInvalid, "bad formula", map[string]string{"formula": "2x6"}, stderrors.New("lex"))
	if wrapped.Metadata["formula"] != "2x6" || wrapped.Cause == nil {
		t.Fatalf("unexpected wrapped error %+v", wrapped)
	}
}

func TestCodeClass(t *testing.T) {
	tests := []struct {
		code Code
		want Class
	}{
		{CodeContentDiceFormulaInvalid, ClassContent},
		{CodeContentResourceUnknown, ClassContent},
		{CodeCheckInFlight, ClassConflict},
		{CodeCommandAlreadyCommitted, ClassConflict},
		{CodeKingdomNotFound, ClassNotFound},
		{CodeStorageFailure, ClassInternal},
		{CodeUnknown, ClassInternal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Class(); got != tt.want {
				t.Fatalf("Class() = %v, want %v", got, tt.want)
			}
		})
	}
	if !IsContent(New(CodeContentOutcomeMissing, "missing")) {
		t.Fatal("expected content classification")
	}
}
