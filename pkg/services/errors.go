// Package services implements the transition executor and its side effects
// on top of the persistence and authorization layers.
package services

import (
	"errors"
	"fmt"

	"github.com/assetflow-io/assetflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnknownAction       = errors.New("unknown action")
	ErrCommentRequired     = errors.New("comment content is required")
	ErrOpinionFieldsNeeded = errors.New("maintenance opinion and estimated completion are both required")
	ErrRejectReasonNeeded  = errors.New("rejection reason is required")

	// Authorization (403 Forbidden).
	ErrPermissionDenied = errors.New("permission denied")

	// Business Logic Conflicts (409 Conflict).
	ErrInvalidTransition      = errors.New("action not valid for the record's current stage")
	ErrConcurrentModification = errors.New("record was modified concurrently")

	// Not found (404), re-exported from the persistence layer.
	ErrRecordNotFound     = persistence.ErrRecordNotFound
	ErrInspectionNotFound = persistence.ErrInspectionNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnknownAction) ||
		errors.Is(err, ErrCommentRequired) ||
		errors.Is(err, ErrOpinionFieldsNeeded) ||
		errors.Is(err, ErrRejectReasonNeeded)
}

// IsPermissionDenied checks if an error should return HTTP 403.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrInspectionNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
