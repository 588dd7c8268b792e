// Package web provides HTTP request and response types for the approval API.
package web

import "github.com/assetflow-io/assetflow/pkg/models"

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateRecordRequest represents the request body for opening a new record.
// The entity type comes from the URL; reports additionally carry a variant.
type CreateRecordRequest struct {
	Variant    string         `json:"variant,omitempty"`
	Code       string         `json:"code,omitempty"`
	Department string         `json:"department,omitempty"`
	Payload    map[string]any `json:"payload"`
}

// ActionRequest represents the request body for a workflow action.
type ActionRequest struct {
	Comment             string   `json:"comment,omitempty"`
	Attachments         []string `json:"attachments,omitempty"`
	MaintenanceOpinion  string   `json:"maintenance_opinion,omitempty"`
	EstimatedCompletion string   `json:"estimated_completion,omitempty"`

	// ExpectedVersion is the record version the client last saw. Omitting it
	// (or sending a negative value) skips the conflict check.
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// CommentRequest represents the request body for adding a comment.
type CommentRequest struct {
	Content   string `json:"content"               validate:"required,min=1"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

// InspectionActionRequest represents the body for an inspection confirmation.
type InspectionActionRequest struct {
	Comment string `json:"comment,omitempty"`
}

// UpdateRolesRequest represents the request body for replacing the role
// configuration.
type UpdateRolesRequest struct {
	Assignments map[models.EntityType]map[string][]string `json:"assignments" validate:"required"`
	Admins      []string                                  `json:"admins"`
}

// RecordListResponse wraps a record listing with its paging window.
type RecordListResponse struct {
	Records []*models.Record `json:"records"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}
