package model

import "fmt"

// ValidationError indicates malformed input (bad usernames, missing callback
// URL, wrong mode constraints). Maps to HTTP 400 at the edge.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates an unknown request id or a remote profile that the
// source confirmed does not exist. Maps to HTTP 404 at the edge.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ForbiddenError indicates an ownership mismatch between the caller and the
// request. Maps to HTTP 403 at the edge.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// NewForbiddenError creates a forbidden error with a formatted message
func NewForbiddenError(format string, args ...any) *ForbiddenError {
	return &ForbiddenError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError indicates the client already has an active request. The
// existing request id is included so the caller can poll or cancel it.
type ConflictError struct {
	Message   string
	RequestID string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError creates a conflict error referencing an existing request
func NewConflictError(requestID string) *ConflictError {
	return &ConflictError{
		Message:   fmt.Sprintf("client already has an active processing request: %s", requestID),
		RequestID: requestID,
	}
}

// DuplicateKeyError indicates an insert collided with an existing request id
type DuplicateKeyError struct {
	RequestID string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("request %s already exists", e.RequestID)
}

// FetchError indicates a remote fetch or parse failure for a single profile.
// It is contained within the item's outcome and never aborts sibling items.
type FetchError struct {
	Message string
}

func (e *FetchError) Error() string { return e.Message }

// NewFetchError creates a fetch error with a formatted message
func NewFetchError(format string, args ...any) *FetchError {
	return &FetchError{Message: fmt.Sprintf(format, args...)}
}
