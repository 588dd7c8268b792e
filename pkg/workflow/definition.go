// Package workflow holds the static stage definitions and the pure step
// resolver for approval-pipeline records.
package workflow

import (
	"fmt"

	"github.com/assetflow-io/assetflow/pkg/models"
)

// Stage is one named step in an entity's approval sequence. Key is the
// signature field the stage writes; Role gates who may act; PendingStatus is
// the cached status label while the stage is awaiting action. RequiredFields
// are payload fields that must all be populated for the stage to count as
// complete, in addition to its signature.
type Stage struct {
	Key            string
	PendingStatus  string
	Role           string
	RequiredFields []string

	// CreatorGated stages are self-service: the acting identity must be the
	// record's creator rather than a member of Role.
	CreatorGated bool
}

// Definition is the ordered stage list for one entity type (or report
// variant), plus its terminal status labels.
type Definition struct {
	EntityType      models.EntityType
	Variant         string
	Stages          []Stage
	CompletedStatus string
	RejectedStatus  string

	// Rejectable pipelines support the reject/resubmit cycle.
	Rejectable bool
}

// Role keys referenced by the stage definitions and the role configuration.
const (
	RoleSender       = "sender"
	RoleReceiver     = "receiver"
	RoleAdminHC      = "hc"
	RoleBlockLeader  = "blockLeader"
	RoleDeptLeader   = "deptLeader"
	RoleKT           = "kt"
	RoleDirector     = "director"
	RoleMaintenance  = "maintenance"
	RoleViceDirector = "viceDirector"
)

// Proposal payload fields jointly required to leave the first stage.
const (
	FieldMaintenanceOpinion  = "maintenanceOpinion"
	FieldEstimatedCompletion = "estimatedCompletion"
)

var transferDefinition = Definition{
	EntityType:      models.EntityTypeTransfer,
	CompletedStatus: "COMPLETED",
	Stages: []Stage{
		{Key: "sender", PendingStatus: "PENDING_SENDER", Role: RoleSender},
		{Key: "receiver", PendingStatus: "PENDING_RECEIVER", Role: RoleReceiver},
		{Key: "admin", PendingStatus: "PENDING_ADMIN", Role: RoleAdminHC},
	},
}

var requestDefinition = Definition{
	EntityType:      models.EntityTypeRequest,
	CompletedStatus: "COMPLETED",
	RejectedStatus:  "REJECTED",
	Rejectable:      true,
	Stages: []Stage{
		{Key: "hc", PendingStatus: "PENDING_HC", Role: RoleAdminHC},
		{Key: "blockLeader", PendingStatus: "PENDING_BLOCK_LEADER", Role: RoleBlockLeader},
		{Key: "kt", PendingStatus: "PENDING_KT", Role: RoleKT},
	},
}

var reportBlockInventoryDefinition = Definition{
	EntityType:      models.EntityTypeReport,
	Variant:         models.ReportVariantBlockInventory,
	CompletedStatus: "COMPLETED",
	RejectedStatus:  "REJECTED",
	Rejectable:      true,
	Stages: []Stage{
		{Key: "hc", PendingStatus: "PENDING_HC", Role: RoleAdminHC},
		{Key: "deptLeader", PendingStatus: "PENDING_DEPT_LEADER", Role: RoleDeptLeader},
		{Key: "director", PendingStatus: "PENDING_DIRECTOR", Role: RoleDirector},
	},
}

var reportSummaryDefinition = Definition{
	EntityType:      models.EntityTypeReport,
	Variant:         models.ReportVariantSummary,
	CompletedStatus: "COMPLETED",
	RejectedStatus:  "REJECTED",
	Rejectable:      true,
	Stages: []Stage{
		{Key: "hc", PendingStatus: "PENDING_HC", Role: RoleAdminHC},
		{Key: "kt", PendingStatus: "PENDING_KT", Role: RoleKT},
		{Key: "director", PendingStatus: "PENDING_DIRECTOR", Role: RoleDirector},
	},
}

var proposalDefinition = Definition{
	EntityType:      models.EntityTypeProposal,
	CompletedStatus: "completed",
	RejectedStatus:  "rejected",
	Rejectable:      true,
	Stages: []Stage{
		{
			Key:            "opinion",
			PendingStatus:  "new",
			Role:           RoleMaintenance,
			RequiredFields: []string{FieldMaintenanceOpinion, FieldEstimatedCompletion},
		},
		{Key: "approval", PendingStatus: "pending_approval", Role: RoleViceDirector},
		{Key: "maintenance", PendingStatus: "maintenance_doing", Role: RoleMaintenance},
		{Key: "proposer", PendingStatus: "pending_proposer", CreatorGated: true},
		{Key: "viceDirector", PendingStatus: "pending_final", Role: RoleViceDirector},
	},
}

// DefinitionFor returns the workflow definition applying to an entity type.
// Reports require a variant; other types ignore it.
func DefinitionFor(entityType models.EntityType, variant string) (*Definition, error) {
	switch entityType {
	case models.EntityTypeTransfer:
		return &transferDefinition, nil
	case models.EntityTypeRequest:
		return &requestDefinition, nil
	case models.EntityTypeReport:
		switch variant {
		case models.ReportVariantBlockInventory:
			return &reportBlockInventoryDefinition, nil
		case models.ReportVariantSummary:
			return &reportSummaryDefinition, nil
		default:
			return nil, fmt.Errorf("unknown report variant: %q", variant)
		}
	case models.EntityTypeProposal:
		return &proposalDefinition, nil
	default:
		return nil, fmt.Errorf("no workflow definition for entity type %q", entityType)
	}
}

// DefinitionForRecord resolves the definition from a record's own fields.
func DefinitionForRecord(record *models.Record) (*Definition, error) {
	return DefinitionFor(record.EntityType, record.Variant)
}

// StageByKey returns the stage with the given signature key and its index.
func (d *Definition) StageByKey(key string) (Stage, int, bool) {
	for i, stage := range d.Stages {
		if stage.Key == key {
			return stage, i, true
		}
	}

	return Stage{}, 0, false
}
