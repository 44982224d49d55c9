package errors

import "fmt"

// ErrorCode represents a wikigen error code.
type ErrorCode string

const (
	ErrValidation      ErrorCode = "VALIDATION"       // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrTransition      ErrorCode = "TRANSITION"       // 409
	ErrApproval        ErrorCode = "APPROVAL"         // 403
	ErrVersionConflict ErrorCode = "VERSION_CONFLICT" // 409
	ErrCollection      ErrorCode = "COLLECTION"       // 502
	ErrExternal        ErrorCode = "EXTERNAL"         // 502
	ErrTimeout         ErrorCode = "TIMEOUT"          // 504
	ErrInternal        ErrorCode = "INTERNAL"         // 500
)

// WikiGenError represents a structured error with code, status, and details.
type WikiGenError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *WikiGenError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidation creates a 400 error for missing or malformed input.
// No session is created when this is returned.
func NewValidation(msg string) *WikiGenError {
	return &WikiGenError{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing session, page, or branch.
func NewNotFound(kind, identifier string) *WikiGenError {
	return &WikiGenError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewTransition creates a 409 error for an illegal workflow state edge.
// This signals a programming error; the session is left unchanged.
func NewTransition(from, to string, allowed []string) *WikiGenError {
	return &WikiGenError{
		Code:    ErrTransition,
		Status:  409,
		Message: fmt.Sprintf("illegal state transition: %s -> %s (allowed: %v)", from, to, allowed),
		Details: map[string]any{"from": from, "to": to},
	}
}

// NewApproval creates a 403 error for approval failures
// (wrong state, token mismatch, or expired token).
func NewApproval(msg string) *WikiGenError {
	return &WikiGenError{
		Code:    ErrApproval,
		Status:  403,
		Message: msg,
	}
}

// NewVersionConflict creates a 409 error for an optimistic-locking conflict
// on a wiki page update. The append retry loop branches on this code.
func NewVersionConflict(pageID string) *WikiGenError {
	return &WikiGenError{
		Code:    ErrVersionConflict,
		Status:  409,
		Message: fmt.Sprintf("page version conflict: another writer updated the page first (page_id=%s)", pageID),
		Details: map[string]any{"page_id": pageID},
	}
}

// NewCollection creates a 502 error for a failed git collection step.
func NewCollection(msg string) *WikiGenError {
	return &WikiGenError{
		Code:    ErrCollection,
		Status:  502,
		Message: msg,
	}
}

// NewExternal creates a 502 error for an issue-tracker or wiki API failure.
func NewExternal(service, msg string) *WikiGenError {
	return &WikiGenError{
		Code:    ErrExternal,
		Status:  502,
		Message: fmt.Sprintf("%s: %s", service, msg),
		Details: map[string]any{"service": service},
	}
}

// NewTimeout creates a 504 error for a timed-out subprocess invocation.
func NewTimeout(command string, seconds int) *WikiGenError {
	return &WikiGenError{
		Code:    ErrTimeout,
		Status:  504,
		Message: fmt.Sprintf("command timed out after %ds: %s", seconds, command),
		Details: map[string]any{"command": command, "timeout_seconds": seconds},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(msg string) *WikiGenError {
	if msg == "" {
		msg = "internal error"
	}
	return &WikiGenError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a WikiGenError with the given code.
func Is(err error, code ErrorCode) bool {
	if wErr, ok := err.(*WikiGenError); ok {
		return wErr.Code == code
	}
	return false
}
