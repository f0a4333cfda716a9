// Package publish defines the failure taxonomy of the publishing write path.
// Expected outcomes (invalid, reserved, taken) and faults (storage) are
// distinguished by Kind so callers can pick the right retry behaviour.
package publish

import (
	"errors"
	"fmt"
)

// Kind classifies a publishing failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidName
	KindReservedName
	KindNameTaken
	KindUnauthorized
	KindProjectNotFound
	KindStorageFailure
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindInvalidName:
		return "invalid_name"
	case KindReservedName:
		return "reserved_name"
	case KindNameTaken:
		return "name_taken"
	case KindUnauthorized:
		return "unauthorized"
	case KindProjectNotFound:
		return "project_not_found"
	case KindStorageFailure:
		return "storage_failure"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Expected returns true for outcomes caused by the caller (validation,
// conflict, authorization) rather than by infrastructure.
func (k Kind) Expected() bool {
	switch k {
	case KindInvalidName, KindReservedName, KindNameTaken, KindUnauthorized, KindProjectNotFound, KindInvalidInput:
		return true
	}
	return false
}

// Retryable returns true if the same call may succeed later without changes.
func (k Kind) Retryable() bool {
	return k == KindStorageFailure
}

// StatusCode maps the kind to an HTTP status.
func (k Kind) StatusCode() int {
	switch k {
	case KindInvalidName, KindReservedName, KindInvalidInput:
		return 422
	case KindNameTaken:
		return 409
	case KindUnauthorized:
		return 403
	case KindProjectNotFound:
		return 404
	case KindStorageFailure:
		return 503
	default:
		return 500
	}
}

// Error is a publishing failure.
type Error struct {
	Kind    Kind
	Name    string // normalized name involved, if any
	Reason  string // sub-reason, e.g. "too_short"
	Message string
	Err     error // underlying cause for storage failures
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidNameError creates an error for a name that failed normalization.
func NewInvalidNameError(name, reason string) *Error {
	return &Error{
		Kind:    KindInvalidName,
		Name:    name,
		Reason:  reason,
		Message: fmt.Sprintf("invalid name %q (%s)", name, reason),
	}
}

// NewReservedNameError creates an error for a name in the reservation policy.
func NewReservedNameError(name string) *Error {
	return &Error{
		Kind:    KindReservedName,
		Name:    name,
		Message: fmt.Sprintf("name %q is reserved", name),
	}
}

// NewNameTakenError creates an error for a name held by another project.
func NewNameTakenError(name string) *Error {
	return &Error{
		Kind:    KindNameTaken,
		Name:    name,
		Message: fmt.Sprintf("name %q is already taken", name),
	}
}

// NewUnauthorizedError creates an error for a caller that does not own the project.
func NewUnauthorizedError(projectID string) *Error {
	return &Error{
		Kind:    KindUnauthorized,
		Message: fmt.Sprintf("not allowed to modify project %s", projectID),
	}
}

// NewProjectNotFoundError creates an error for an unknown project.
func NewProjectNotFoundError(projectID string) *Error {
	return &Error{
		Kind:    KindProjectNotFound,
		Message: fmt.Sprintf("project not found: %s", projectID),
	}
}

// NewStorageError wraps an infrastructure fault.
func NewStorageError(op string, err error) *Error {
	return &Error{
		Kind:    KindStorageFailure,
		Message: op + " failed",
		Err:     err,
	}
}

// NewInvalidInputError wraps a domain validation failure on project fields.
func NewInvalidInputError(err error) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Message: err.Error(),
		Err:     err,
	}
}

// KindOf returns the Kind of err, or KindUnknown if err is not a publishing error.
func KindOf(err error) Kind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is a publishing error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
