package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "no snapshot for commit")
		if err.Error() != "[NOT_FOUND] no snapshot for commit" {
			t.Errorf("expected [NOT_FOUND] no snapshot for commit, got %s", err.Error())
		}
	})

	t.Run("Newf", func(t *testing.T) {
		err := Newf(CodeMalformedSnapshot, "unknown class tag %q", "Widget")
		expected := `[MALFORMED_SNAPSHOT] unknown class tag "Widget"`
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid version")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("decode snapshot: %w", New(CodeMalformedSnapshot, "bad"))
		if !IsCode(err, CodeMalformedSnapshot) {
			t.Error("expected IsCode to see through fmt.Errorf wrapping")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeValidationError, "invalid version"), CtxVersion, "1.x")
		var de *DomainError
		if !errors.As(err, &de) || de.Context[CtxVersion] != "1.x" {
			t.Fatalf("expected version context, got %v", err)
		}
		plain := AddContext(errors.New("boom"), CtxPath, "a.json")
		if !IsCode(plain, CodeInternal) {
			t.Errorf("expected plain errors to become internal, got %v", plain)
		}
	})
}
