// Package models defines the core domain model for approval-pipeline records.
package models

import "time"

// Actor is the identity performing or having performed an action.
type Actor struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
	Admin bool   `json:"admin,omitempty"`
}

// Signature records who completed a stage, when, and with what comment.
// Signatures are embedded in their record and never shared across records.
type Signature struct {
	ActorName   string    `json:"actor_name"`
	ActorEmail  string    `json:"actor_email"`
	SignedAt    time.Time `json:"signed_at"`
	Comment     string    `json:"comment,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
}

// Rejection marks a record as terminally rejected until it is resubmitted.
// It overrides the forward stage progression.
type Rejection struct {
	By         string    `json:"by"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejected_at"`
}

// HistoryKind classifies entries in a record's append-only history log.
type HistoryKind string

const (
	HistoryTransition           HistoryKind = "transition"
	HistoryRejected             HistoryKind = "rejected"
	HistoryResubmitted          HistoryKind = "resubmitted"
	HistoryRework               HistoryKind = "rework"
	HistoryMaintenanceConfirmed HistoryKind = "maintenance_confirmed"
	HistoryInspectionScheduled  HistoryKind = "inspection_scheduled"
)

// HistoryEntry is one event in a record's history. The log is append-only:
// rework and resubmission null out live signature fields but the invalidated
// data is archived here, so no information is lost.
type HistoryEntry struct {
	Kind       HistoryKind `json:"kind"`
	Action     string      `json:"action,omitempty"`
	Stage      string      `json:"stage,omitempty"`
	ActorName  string      `json:"actor_name,omitempty"`
	ActorEmail string      `json:"actor_email"`
	At         time.Time   `json:"at"`
	Note       string      `json:"note,omitempty"`
	Archived   *Signature  `json:"archived,omitempty"`
	Attempt    int         `json:"attempt,omitempty"`
}

// Record is one approval-pipeline instance: a transfer slip, an asset change
// request, an inventory report, or a repair proposal. Stage progression is
// derived from Signatures; Status is a cached projection updated on every
// transition and never trusted on its own.
type Record struct {
	ID         string     `json:"id"`
	EntityType EntityType `json:"entity_type"`
	Variant    string     `json:"variant,omitempty"`
	Code       string     `json:"code,omitempty"`
	Status     string     `json:"status"`
	Creator    Actor      `json:"creator"`
	Department string     `json:"department,omitempty"`

	// Payload holds type-specific domain fields (asset lines, amounts,
	// maintenance opinion, estimated completion). The workflow engine only
	// inspects the fields a stage declares as required.
	Payload map[string]any `json:"payload,omitempty"`

	Signatures map[string]*Signature `json:"signatures"`
	Rejection  *Rejection            `json:"rejection,omitempty"`
	History    []HistoryEntry        `json:"history,omitempty"`
	Comments   []Comment             `json:"comments,omitempty"`

	// Version increments on every successful write and guards against two
	// actors racing on the same stage.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SignatureFor returns the signature for a stage key, or nil.
func (r *Record) SignatureFor(stage string) *Signature {
	if r.Signatures == nil {
		return nil
	}

	return r.Signatures[stage]
}

// FieldSet reports whether a payload field is present and non-empty.
func (r *Record) FieldSet(field string) bool {
	if r.Payload == nil {
		return false
	}

	v, ok := r.Payload[field]
	if !ok || v == nil {
		return false
	}

	if s, isString := v.(string); isString {
		return s != ""
	}

	return true
}

// AppendHistory adds an entry to the record's history log.
func (r *Record) AppendHistory(entry HistoryEntry) {
	r.History = append(r.History, entry)
}

// LastRejection returns the archive of the most recent rejection that was
// cleared by a resubmission, or nil if the record was never resubmitted.
func (r *Record) LastRejection() *HistoryEntry {
	return r.lastOfKind(HistoryResubmitted)
}

// LastReworkRequest returns the most recent rework ("send back") entry.
func (r *Record) LastReworkRequest() *HistoryEntry {
	return r.lastOfKind(HistoryRework)
}

func (r *Record) lastOfKind(kind HistoryKind) *HistoryEntry {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Kind == kind {
			entry := r.History[i]

			return &entry
		}
	}

	return nil
}

// MaintenanceHistory returns every maintenance confirmation and rework entry
// in order. Attempt counters are assigned at append time and strictly
// increase across maintenance confirmations.
func (r *Record) MaintenanceHistory() []HistoryEntry {
	entries := make([]HistoryEntry, 0)

	for _, entry := range r.History {
		if entry.Kind == HistoryMaintenanceConfirmed || entry.Kind == HistoryRework {
			entries = append(entries, entry)
		}
	}

	return entries
}

// MaintenanceAttempts counts completed maintenance confirmations so far.
func (r *Record) MaintenanceAttempts() int {
	count := 0

	for _, entry := range r.History {
		if entry.Kind == HistoryMaintenanceConfirmed {
			count++
		}
	}

	return count
}
