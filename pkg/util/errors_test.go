package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("tier1", "t1-blue")

	msg := err.Error()
	if msg != "tier1 't1-blue' not found" {
		t.Errorf("unexpected message: %s", msg)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("NotFoundError should unwrap to ErrNotFound")
	}

	wrapped := fmt.Errorf("delete: %w", err)
	var nf *NotFoundError
	if !errors.As(wrapped, &nf) {
		t.Fatal("errors.As should find NotFoundError through wrapping")
	}
	if nf.Kind != "tier1" || nf.Name != "t1-blue" {
		t.Errorf("got kind=%q name=%q", nf.Kind, nf.Name)
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("field is required")
		msg := err.Error()
		if !strings.Contains(msg, "field is required") {
			t.Errorf("Error message should contain the error: %s", msg)
		}
		if !errors.Is(err, ErrValidationFailed) {
			t.Errorf("ValidationError should unwrap to ErrValidationFailed")
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("field1 is required", "field2 is invalid", "field3 out of range")
		msg := err.Error()
		if !strings.Contains(msg, "field1") || !strings.Contains(msg, "field2") || !strings.Contains(msg, "field3") {
			t.Errorf("Error message should contain all errors: %s", msg)
		}
	})
}

func TestValidationBuilder(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(true, "this should not appear")
		v.Add(true, "neither should this")

		if v.HasErrors() {
			t.Error("Should not have errors when all conditions are true")
		}
		if err := v.Build(); err != nil {
			t.Errorf("Build() should return nil when no errors: %v", err)
		}
	})

	t.Run("with errors", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(false, "first error")
		v.Add(true, "this passes")
		v.Add(false, "second error")
		v.AddError("unconditional error")
		v.AddErrorf("formatted error: %d", 42)

		err := v.Build()
		if err == nil {
			t.Fatal("Build() should return error")
		}

		validationErr, ok := err.(*ValidationError)
		if !ok {
			t.Fatalf("Expected *ValidationError, got %T", err)
		}
		if len(validationErr.Errors) != 4 {
			t.Errorf("Expected 4 errors, got %d", len(validationErr.Errors))
		}
	})

	t.Run("merge", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Merge(nil)
		v.Merge(NewValidationError("a", "b"))
		v.Merge(errors.New("c"))

		err := v.Build()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Expected *ValidationError, got %T", err)
		}
		if strings.Join(ve.Errors, ",") != "a,b,c" {
			t.Errorf("merged errors = %v", ve.Errors)
		}
	})
}

func TestDependencyError(t *testing.T) {
	err := NewDependencyError("tier1 't1'", "tier0", "t0-edge")
	if !strings.Contains(err.Error(), "tier0 't0-edge'") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, ErrDependencyMissing) {
		t.Error("DependencyError should unwrap to ErrDependencyMissing")
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrValidationFailed,
		ErrDependencyMissing,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v == %v", err1, err2)
			}
		}
	}
}
