package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/assetflow-io/assetflow/pkg/authz"
	"github.com/assetflow-io/assetflow/pkg/eventbus"
	"github.com/assetflow-io/assetflow/pkg/events"
	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/persistence"
	"github.com/assetflow-io/assetflow/pkg/workflow"
)

// DefaultInspectionOffset is how far after proposal completion the follow-up
// inspection is scheduled by default.
const DefaultInspectionOffset = 168 * time.Hour

// Confirmation actions accepted by the inspection service.
const (
	ActionConfirmMaintenance  = "confirm_maintenance"
	ActionConfirmViceDirector = "confirm_vice_director"
)

// Inspections manages the follow-up verification records spawned by
// completed repair proposals. Creation is keyed by the source proposal ID,
// so retries and the reconciler sweep never produce duplicates.
type Inspections struct {
	persistence persistence.Persistence
	roles       authz.RoleProvider
	bus         eventbus.EventBus
	logger      *slog.Logger
	offset      time.Duration
	now         func() time.Time
}

// NewInspections creates the inspection service. A non-positive offset falls
// back to DefaultInspectionOffset.
func NewInspections(persist persistence.Persistence, roles authz.RoleProvider, bus eventbus.EventBus, logger *slog.Logger, offset time.Duration) *Inspections {
	if offset <= 0 {
		offset = DefaultInspectionOffset
	}

	return &Inspections{
		persistence: persist,
		roles:       roles,
		bus:         bus,
		logger:      logger.With("module", "inspections_service"),
		offset:      offset,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns all inspections, newest-first.
func (s *Inspections) List(ctx context.Context) ([]*models.PostInspection, error) {
	return s.persistence.InspectionRepository().List(ctx)
}

// Get loads a single inspection.
func (s *Inspections) Get(ctx context.Context, id string) (*models.PostInspection, error) {
	return s.persistence.InspectionRepository().GetByID(ctx, id)
}

// EnsureForProposal creates the follow-up inspection for a completed
// proposal if one does not exist yet. It reports whether a new inspection
// was created.
func (s *Inspections) EnsureForProposal(ctx context.Context, proposal *models.Record) (*models.PostInspection, bool, error) {
	existing, err := s.persistence.InspectionRepository().GetByProposalID(ctx, proposal.ID)
	if err == nil {
		return existing, false, nil
	}

	if !persistence.IsInspectionNotFound(err) {
		return nil, false, fmt.Errorf("failed to probe for existing inspection: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate inspection ID: %w", err)
	}

	now := s.now()
	completedAt := s.proposalCompletionTime(proposal)

	content, _ := proposal.Payload["content"].(string)
	inspection := &models.PostInspection{
		ID:                 id.String(),
		OriginalProposalID: proposal.ID,
		OriginalCode:       proposal.Code,
		OriginalContent:    content,
		Department:         proposal.Department,
		Proposer:           proposal.Creator.Email,
		Status:             models.InspectionStatusPending,
		ScheduledDate:      completedAt.Add(s.offset),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.persistence.InspectionRepository().Create(ctx, inspection); err != nil {
		// A concurrent scheduler may have won the race; the unique proposal
		// key makes the loser's insert fail, so re-read instead of erroring.
		if existing, getErr := s.persistence.InspectionRepository().GetByProposalID(ctx, proposal.ID); getErr == nil {
			return existing, false, nil
		}

		return nil, false, fmt.Errorf("failed to create inspection: %w", err)
	}

	s.markScheduled(ctx, proposal, inspection)

	s.publish(ctx, inspection.ID, &events.InspectionScheduled{
		BaseEvent:  s.baseEvent(events.InspectionScheduledEvent),
		Inspection: inspection,
	})

	return inspection, true, nil
}

// markScheduled appends the scheduling to the proposal's history. Best
// effort: the inspection itself is already durable.
func (s *Inspections) markScheduled(ctx context.Context, proposal *models.Record, inspection *models.PostInspection) {
	_, err := s.persistence.RecordRepository().Update(ctx, proposal.EntityType, proposal.ID, -1, func(record *models.Record) error {
		record.AppendHistory(models.HistoryEntry{
			Kind: models.HistoryInspectionScheduled,
			At:   s.now(),
			Note: inspection.ID,
		})

		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record inspection scheduling",
			"proposal_id", proposal.ID, "inspection_id", inspection.ID, "error", err)
	}
}

// proposalCompletionTime is the final stage's signing time, falling back to
// the record's last update when the signature is missing.
func (s *Inspections) proposalCompletionTime(proposal *models.Record) time.Time {
	def, err := workflow.DefinitionForRecord(proposal)
	if err == nil && len(def.Stages) > 0 {
		final := def.Stages[len(def.Stages)-1]
		if sig := proposal.SignatureFor(final.Key); sig != nil {
			return sig.SignedAt
		}
	}

	if !proposal.UpdatedAt.IsZero() {
		return proposal.UpdatedAt
	}

	return s.now()
}

// Confirm records one of the two confirmation slots and re-derives the
// inspection status. Maintenance confirms first, the vice director closes.
func (s *Inspections) Confirm(ctx context.Context, id, action, comment string, actor models.Actor) (*models.PostInspection, error) {
	var role string

	switch action {
	case ActionConfirmMaintenance:
		role = workflow.RoleMaintenance
	case ActionConfirmViceDirector:
		role = workflow.RoleViceDirector
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	config, err := s.roles.Assignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load role configuration: %w", err)
	}

	isAdmin := actor.Admin || config.IsAdmin(actor.Email)
	if !isAdmin && !config.HasRole(models.EntityTypeProposal, role, actor.Email) {
		return nil, fmt.Errorf("%w: %s on inspection %s by %s", ErrPermissionDenied, action, id, actor.Email)
	}

	updated, err := s.persistence.InspectionRepository().Update(ctx, id, -1, func(inspection *models.PostInspection) error {
		confirmation := &models.InspectionConfirmation{
			Confirmed: true,
			Time:      s.now(),
			User:      actor.Email,
			Comment:   comment,
		}

		switch action {
		case ActionConfirmMaintenance:
			if inspection.MaintenanceConfirmation != nil && inspection.MaintenanceConfirmation.Confirmed {
				return fmt.Errorf("%w: maintenance already confirmed", ErrInvalidTransition)
			}

			inspection.MaintenanceConfirmation = confirmation
		case ActionConfirmViceDirector:
			if inspection.MaintenanceConfirmation == nil || !inspection.MaintenanceConfirmation.Confirmed {
				return fmt.Errorf("%w: maintenance confirmation pending", ErrInvalidTransition)
			}

			if inspection.ViceDirectorConfirmation != nil && inspection.ViceDirectorConfirmation.Confirmed {
				return fmt.Errorf("%w: inspection already completed", ErrInvalidTransition)
			}

			inspection.ViceDirectorConfirmation = confirmation
		}

		inspection.Status = inspection.DeriveStatus()
		if inspection.Status == models.InspectionStatusCompleted {
			inspection.CompletedDate = confirmation.Time
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, updated.ID, &events.InspectionUpdated{
		BaseEvent:  s.baseEvent(events.InspectionUpdatedEvent),
		Inspection: updated,
		Action:     action,
	})

	return updated, nil
}

// Delete removes an inspection. Admin only.
func (s *Inspections) Delete(ctx context.Context, id string, actor models.Actor) error {
	config, err := s.roles.Assignments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load role configuration: %w", err)
	}

	if !actor.Admin && !config.IsAdmin(actor.Email) {
		return fmt.Errorf("%w: delete inspection %s by %s", ErrPermissionDenied, id, actor.Email)
	}

	if err := s.persistence.InspectionRepository().Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, id, &events.InspectionDeleted{
		BaseEvent:    s.baseEvent(events.InspectionDeletedEvent),
		InspectionID: id,
		Actor:        actor.Email,
	})

	return nil
}

// Reconcile sweeps completed proposals and ensures each has its follow-up
// inspection. Safe to run on any schedule; it never duplicates.
func (s *Inspections) Reconcile(ctx context.Context) (int, error) {
	def, err := workflow.DefinitionFor(models.EntityTypeProposal, "")
	if err != nil {
		return 0, err
	}

	proposals, err := s.persistence.RecordRepository().List(ctx, persistence.ListRecordsOptions{
		EntityType: models.EntityTypeProposal,
		Status:     def.CompletedStatus,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list completed proposals: %w", err)
	}

	created := 0

	for _, proposal := range proposals {
		_, wasCreated, err := s.EnsureForProposal(ctx, proposal)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to reconcile inspection",
				"proposal_id", proposal.ID, "error", err)

			continue
		}

		if wasCreated {
			created++
		}
	}

	return created, nil
}

func (s *Inspections) baseEvent(eventType events.EventType) events.BaseEvent {
	base := events.BaseEvent{Type: eventType, Timestamp: s.now()}
	if s.bus != nil {
		base.ID = s.bus.GenerateID()
	}

	return base
}

func (s *Inspections) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.bus == nil {
		return
	}

	if err := s.bus.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}
