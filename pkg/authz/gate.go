// Package authz implements the permission gate for workflow actions.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/workflow"
)

// Action names understood by the gate and the transition executor.
const (
	ActionApprove       = "approve"
	ActionSubmitOpinion = "submit_opinion"
	ActionReject        = "reject"
	ActionResubmit      = "resubmit"
	ActionRework        = "request_rework"
	ActionDelete        = "delete"
	ActionComment       = "comment"
	ActionEdit          = "edit"
	ActionConfigure     = "configure_roles"
)

// RoleProvider supplies the current role configuration. It is injected
// explicitly so the gate never reads shared mutable state.
type RoleProvider interface {
	Assignments(ctx context.Context) (*models.RoleConfig, error)
}

// StaticRoleProvider wraps a fixed configuration, mainly for tests.
type StaticRoleProvider struct {
	Config *models.RoleConfig
}

func (p StaticRoleProvider) Assignments(_ context.Context) (*models.RoleConfig, error) {
	return p.Config, nil
}

// Gate decides whether an actor may perform an action on a record. The
// result is advisory: callers must still reject unauthorized calls, and the
// transition executor re-checks before mutating.
type Gate struct {
	roles RoleProvider
}

func NewGate(roles RoleProvider) *Gate {
	return &Gate{roles: roles}
}

// CanAct maps (action, record, actor) to an allow/deny decision.
//
// Admins bypass every check except one: deleting an already-approved record
// stays admin-only, and a non-admin creator may delete their own record only
// while it has not reached an approved or completed state. This asymmetry
// mirrors the delete rules of the asset-management workflows exactly.
func (g *Gate) CanAct(ctx context.Context, action string, record *models.Record, actor models.Actor) (bool, error) {
	config, err := g.roles.Assignments(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load role assignments: %w", err)
	}

	isAdmin := actor.Admin || config.IsAdmin(actor.Email)

	if action == ActionConfigure {
		return isAdmin, nil
	}

	if record == nil {
		return false, nil
	}

	def, err := workflow.DefinitionForRecord(record)
	if err != nil {
		return false, err
	}

	switch action {
	case ActionDelete:
		return g.canDelete(def, record, actor, isAdmin), nil

	case ActionComment:
		// Discussion is open to any authenticated identity.
		return actor.Email != "", nil

	case ActionEdit, ActionResubmit:
		return isAdmin || isCreator(record, actor), nil

	case ActionReject:
		// Whether the pipeline is rejectable at all is a transition rule, not
		// a permission; the executor classifies that case.
		if isAdmin {
			return true, nil
		}

		stage, ok := workflow.CurrentStage(def, record)
		if !ok {
			return false, nil
		}

		return g.actorHoldsStage(config, def, stage, record, actor), nil

	case ActionRework:
		// Sending maintenance work back is the proposer's acceptance call.
		if record.EntityType != models.EntityTypeProposal {
			return false, nil
		}

		return isAdmin || isCreator(record, actor), nil

	case ActionApprove, ActionSubmitOpinion:
		if isAdmin {
			return true, nil
		}

		stage, ok := workflow.CurrentStage(def, record)
		if !ok {
			return false, nil
		}

		return g.actorHoldsStage(config, def, stage, record, actor), nil

	default:
		return false, nil
	}
}

func (g *Gate) canDelete(def *workflow.Definition, record *models.Record, actor models.Actor, isAdmin bool) bool {
	if isAdmin {
		return true
	}

	if !isCreator(record, actor) {
		return false
	}

	ref := workflow.ResolveStage(def, record)
	if ref.Phase == workflow.PhaseCompleted || ref.Phase == workflow.PhaseRejected {
		return false
	}

	// Once the approval stage has been passed the record counts as approved
	// and only an admin may remove it.
	return !approvalGranted(def, record)
}

// approvalGranted reports whether any stage beyond the first has been signed,
// i.e. the record has received at least one approval signature.
func approvalGranted(def *workflow.Definition, record *models.Record) bool {
	for i, stage := range def.Stages {
		if i == 0 && stage.RequiredFields != nil {
			// A proposal's opinion entry is data entry, not an approval.
			continue
		}

		if record.SignatureFor(stage.Key) != nil {
			return true
		}
	}

	return false
}

func (g *Gate) actorHoldsStage(config *models.RoleConfig, def *workflow.Definition, stage workflow.Stage, record *models.Record, actor models.Actor) bool {
	if stage.CreatorGated {
		return isCreator(record, actor)
	}

	return config.HasRole(def.EntityType, stage.Role, actor.Email)
}

func isCreator(record *models.Record, actor models.Actor) bool {
	return actor.Email != "" && strings.EqualFold(record.Creator.Email, actor.Email)
}
