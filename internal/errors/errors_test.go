package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestCadenceError_Error(t *testing.T) {
	err := &CadenceError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "post not found",
	}

	expected := "NOT_FOUND: post not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("scheduled_date", "cannot reschedule into the past")

	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Details["field"] != "scheduled_date" {
		t.Errorf("Details[field] = %v, want %q", err.Details["field"], "scheduled_date")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("post", "01ABC")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != "01ABC" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "01ABC")
	}
}

func TestNewMutationInFlight(t *testing.T) {
	err := NewMutationInFlight("01ABC")

	if err.Code != ErrConflict {
		t.Errorf("Code = %q, want %q", err.Code, ErrConflict)
	}
	if err.Details["post_id"] != "01ABC" {
		t.Errorf("Details[post_id] = %v, want %q", err.Details["post_id"], "01ABC")
	}
}

func TestNewTransport_UnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewTransport("list", cause)

	if err.Code != ErrTransport {
		t.Errorf("Code = %q, want %q", err.Code, ErrTransport)
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if err.Details["op"] != "list" {
		t.Errorf("Details[op] = %v, want %q", err.Details["op"], "list")
	}
}

func TestNewConsistency(t *testing.T) {
	err := NewConsistency("01ABC", fmt.Errorf("timeout"))

	if err.Code != ErrConsistency {
		t.Errorf("Code = %q, want %q", err.Code, ErrConsistency)
	}
	if err.Details["post_id"] != "01ABC" {
		t.Errorf("Details[post_id] = %v, want %q", err.Details["post_id"], "01ABC")
	}
	if Is(err, ErrTransport) {
		t.Error("consistency error must not report as TRANSPORT")
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("disk full"))
		if err.Message != "disk full" {
			t.Errorf("Message = %q, want %q", err.Message, "disk full")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)
		if err.Message != "internal error" {
			t.Errorf("Message = %q, want %q", err.Message, "internal error")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		if !Is(NewNotFound("post", "x"), ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		if Is(NewNotFound("post", "x"), ErrConflict) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("foreign error", func(t *testing.T) {
		if Is(fmt.Errorf("plain error"), ErrNotFound) {
			t.Error("Is() = true, want false for plain error")
		}
	})

	t.Run("wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("refresh: %w", NewUnavailable(nil))
		if !Is(wrapped, ErrUnavailable) {
			t.Error("Is() = false, want true for wrapped CadenceError")
		}
	})
}

func TestCode(t *testing.T) {
	if got := Code(NewConflict("x")); got != ErrConflict {
		t.Errorf("Code() = %q, want %q", got, ErrConflict)
	}
	if got := Code(fmt.Errorf("boom")); got != ErrInternal {
		t.Errorf("Code() = %q, want %q", got, ErrInternal)
	}
}
