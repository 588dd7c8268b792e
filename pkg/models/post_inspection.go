package models

import "time"

// InspectionStatus is the lifecycle state of a post-inspection.
type InspectionStatus string

const (
	InspectionStatusPending              InspectionStatus = "pending"
	InspectionStatusMaintenanceConfirmed InspectionStatus = "maintenance_confirmed"
	InspectionStatusCompleted            InspectionStatus = "completed"
)

// InspectionConfirmation is one of the two confirmation slots of a
// post-inspection.
type InspectionConfirmation struct {
	Confirmed bool      `json:"confirmed"`
	Time      time.Time `json:"time"`
	User      string    `json:"user"`
	Comment   string    `json:"comment,omitempty"`
}

// PostInspection is the follow-up verification record created when a repair
// proposal completes its final stage. It back-references the proposal but is
// not owned by it: it transitions independently and is never deleted
// automatically.
type PostInspection struct {
	ID                 string `json:"id"`
	OriginalProposalID string `json:"original_proposal_id" validate:"required"`
	OriginalCode       string `json:"original_code,omitempty"`
	OriginalContent    string `json:"original_content,omitempty"`
	Department         string `json:"department,omitempty"`
	Proposer           string `json:"proposer,omitempty"`

	Status        InspectionStatus `json:"status"`
	ScheduledDate time.Time        `json:"scheduled_date"`
	CompletedDate time.Time        `json:"completed_date"`

	MaintenanceConfirmation  *InspectionConfirmation `json:"maintenance_confirmation,omitempty"`
	ViceDirectorConfirmation *InspectionConfirmation `json:"vice_director_confirmation,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeriveStatus recomputes the inspection status from its confirmation slots.
func (pi *PostInspection) DeriveStatus() InspectionStatus {
	switch {
	case pi.ViceDirectorConfirmation != nil && pi.ViceDirectorConfirmation.Confirmed:
		return InspectionStatusCompleted
	case pi.MaintenanceConfirmation != nil && pi.MaintenanceConfirmation.Confirmed:
		return InspectionStatusMaintenanceConfirmed
	default:
		return InspectionStatusPending
	}
}
