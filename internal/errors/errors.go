package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Cadence error code.
type ErrorCode string

const (
	ErrValidation     ErrorCode = "VALIDATION"      // 400
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"    // 401
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrTransport      ErrorCode = "TRANSPORT"       // 502
	ErrUnavailable    ErrorCode = "UNAVAILABLE"     // 503
	ErrConsistency    ErrorCode = "CONSISTENCY"     // 500, mutation applied but refresh failed
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// CadenceError represents a structured error with code, status, and details.
type CadenceError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *CadenceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CadenceError) Unwrap() error {
	return e.cause
}

// NewValidation creates a 400 error for input that is rejected before any
// store call is made.
func NewValidation(field, msg string) *CadenceError {
	return &CadenceError{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
		Details: map[string]any{"field": field},
	}
}

// NewInvalidRequest creates a 400 error for malformed request parameters.
func NewInvalidRequest(msg string) *CadenceError {
	return &CadenceError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for missing or wrong credentials.
func NewUnauthorized() *CadenceError {
	return &CadenceError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: "missing or invalid credentials",
	}
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(kind, id string) *CadenceError {
	return &CadenceError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]any{"kind": kind, "id": id},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *CadenceError {
	return &CadenceError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewMutationInFlight creates a 409 error for a second mutation issued
// against a post that already has one in flight.
func NewMutationInFlight(postID string) *CadenceError {
	return &CadenceError{
		Code:    ErrConflict,
		Status:  409,
		Message: fmt.Sprintf("a mutation for post %s is already in flight", postID),
		Details: map[string]any{"post_id": postID},
	}
}

// NewTransport creates a 502 error for a failed or timed out store call.
func NewTransport(op string, err error) *CadenceError {
	msg := "store request failed"
	if err != nil {
		msg = fmt.Sprintf("store request failed: %v", err)
	}
	return &CadenceError{
		Code:    ErrTransport,
		Status:  502,
		Message: msg,
		Details: map[string]any{"op": op},
		cause:   err,
	}
}

// NewUnavailable creates a 503 error for a read that failed with no
// last-known-good data to fall back to.
func NewUnavailable(err error) *CadenceError {
	return &CadenceError{
		Code:    ErrUnavailable,
		Status:  503,
		Message: "data unavailable: store unreachable and no cached result",
		cause:   err,
	}
}

// NewConsistency creates an error for a mutation that was applied by the
// store but whose follow-up refresh failed. Callers must re-read rather than
// treat the mutation as failed.
func NewConsistency(postID string, err error) *CadenceError {
	msg := fmt.Sprintf("post %s was changed but derived views could not be refreshed", postID)
	if err != nil {
		msg += ": " + err.Error()
	}
	return &CadenceError{
		Code:    ErrConsistency,
		Status:  500,
		Message: msg,
		Details: map[string]any{"post_id": postID},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CadenceError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CadenceError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// As returns the first CadenceError in err's chain.
func As(err error) (*CadenceError, bool) {
	var cErr *CadenceError
	if stderrors.As(err, &cErr) {
		return cErr, true
	}
	return nil, false
}

// Is checks if an error is, or wraps, a CadenceError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := As(err); ok {
		return cErr.Code == code
	}
	return false
}

// Code returns the error code of err, or ErrInternal for foreign errors.
func Code(err error) ErrorCode {
	if cErr, ok := As(err); ok {
		return cErr.Code
	}
	return ErrInternal
}

// FromWire rebuilds a CadenceError from its wire envelope fields.
func FromWire(code ErrorCode, status int, msg string, details map[string]any) *CadenceError {
	return &CadenceError{
		Code:    code,
		Status:  status,
		Message: msg,
		Details: details,
	}
}
