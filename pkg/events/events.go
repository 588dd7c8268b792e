// Package events defines the change events fanned out to subscribers on
// every record and inspection mutation.
package events

import (
	"time"

	"github.com/assetflow-io/assetflow/pkg/models"
)

type EventType string

// Topic is the event bus topic carrying all change events.
const Topic = "assetflow.changes"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RecordCreatedEvent   EventType = "record.created"
	RecordUpdatedEvent   EventType = "record.updated"
	RecordDeletedEvent   EventType = "record.deleted"
	RecordCommentedEvent EventType = "record.commented"

	InspectionScheduledEvent EventType = "inspection.scheduled"
	InspectionUpdatedEvent   EventType = "inspection.updated"
	InspectionDeletedEvent   EventType = "inspection.deleted"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RecordCreated is published after a record is first persisted.
type RecordCreated struct {
	BaseEvent

	Record *models.Record `json:"record"`
}

func (e RecordCreated) GetType() EventType { return RecordCreatedEvent }

// RecordUpdated is published after every successful transition. Action names
// the workflow action that produced the update.
type RecordUpdated struct {
	BaseEvent

	Record *models.Record `json:"record"`
	Action string         `json:"action"`
	Actor  string         `json:"actor"`
}

func (e RecordUpdated) GetType() EventType { return RecordUpdatedEvent }

// RecordDeleted is published after a hard delete. The store keeps no
// tombstone; this event is the only trace left for downstream consumers.
type RecordDeleted struct {
	BaseEvent

	RecordID   string            `json:"record_id"`
	EntityType models.EntityType `json:"entity_type"`
	Actor      string            `json:"actor"`
}

func (e RecordDeleted) GetType() EventType { return RecordDeletedEvent }

// RecordCommented is published when a comment is appended.
type RecordCommented struct {
	BaseEvent

	RecordID string         `json:"record_id"`
	Comment  models.Comment `json:"comment"`
}

func (e RecordCommented) GetType() EventType { return RecordCommentedEvent }

// InspectionScheduled is published when proposal completion (or the
// reconciler) creates a post-inspection.
type InspectionScheduled struct {
	BaseEvent

	Inspection *models.PostInspection `json:"inspection"`
}

func (e InspectionScheduled) GetType() EventType { return InspectionScheduledEvent }

// InspectionUpdated is published after a confirmation lands.
type InspectionUpdated struct {
	BaseEvent

	Inspection *models.PostInspection `json:"inspection"`
	Action     string                 `json:"action"`
}

func (e InspectionUpdated) GetType() EventType { return InspectionUpdatedEvent }

// InspectionDeleted is published after an inspection is removed.
type InspectionDeleted struct {
	BaseEvent

	InspectionID string `json:"inspection_id"`
	Actor        string `json:"actor"`
}

func (e InspectionDeleted) GetType() EventType { return InspectionDeletedEvent }
