// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRecordNotFound indicates a record was not found by the given identifier.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInspectionNotFound indicates a post-inspection was not found.
	ErrInspectionNotFound = errors.New("inspection not found")

	// ErrRecordAlreadyExists indicates a record with the same identifier already exists.
	ErrRecordAlreadyExists = errors.New("record already exists")

	// ErrVersionConflict indicates an optimistic concurrency check failed:
	// the stored version no longer matches the version the caller read.
	ErrVersionConflict = errors.New("version conflict")
)

// RecordError wraps record-related errors with additional context.
type RecordError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Update", "Delete")
	RecordID   string
	EntityType string
	Err        error
	Message    string
}

func (e *RecordError) Error() string {
	target := e.RecordID
	if e.EntityType != "" {
		target = fmt.Sprintf("%s/%s", e.EntityType, e.RecordID)
	}

	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for record %s: %s (%v)", e.Op, target, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for record %s: %v", e.Op, target, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *RecordError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRecordError creates a new record error with context.
func NewRecordError(op, entityType, recordID string, err error) *RecordError {
	return &RecordError{
		Op:         op,
		EntityType: entityType,
		RecordID:   recordID,
		Err:        err,
	}
}

// InspectionError wraps inspection-related errors with additional context.
type InspectionError struct {
	Op           string
	InspectionID string
	Err          error
}

func (e *InspectionError) Error() string {
	return fmt.Sprintf("%s operation failed for inspection %s: %v", e.Op, e.InspectionID, e.Err)
}

func (e *InspectionError) Unwrap() error {
	return e.Err
}

func (e *InspectionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewInspectionError creates a new inspection error with context.
func NewInspectionError(op, inspectionID string, err error) *InspectionError {
	return &InspectionError{Op: op, InspectionID: inspectionID, Err: err}
}

// IsRecordNotFound checks if an error indicates a record was not found.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsInspectionNotFound checks if an error indicates an inspection was not found.
func IsInspectionNotFound(err error) bool {
	return errors.Is(err, ErrInspectionNotFound)
}

// IsVersionConflict checks if an error indicates an optimistic concurrency failure.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
