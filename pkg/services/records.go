package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/assetflow-io/assetflow/pkg/authz"
	"github.com/assetflow-io/assetflow/pkg/eventbus"
	"github.com/assetflow-io/assetflow/pkg/events"
	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/otelhelper"
	"github.com/assetflow-io/assetflow/pkg/persistence"
	"github.com/assetflow-io/assetflow/pkg/workflow"
)

// Records executes workflow transitions. Every mutation re-checks the
// permission gate against the freshly loaded record and goes through the
// repository's version-checked update, so a stale client loses the race
// instead of overwriting a concurrent transition.
type Records struct {
	persistence persistence.Persistence
	gate        *authz.Gate
	bus         eventbus.EventBus
	inspections *Inspections
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewRecords creates the record service. inspections may be nil when the
// post-inspection side effect is not wanted (some tests).
func NewRecords(persist persistence.Persistence, gate *authz.Gate, bus eventbus.EventBus, inspections *Inspections, logger *slog.Logger) *Records {
	return &Records{
		persistence: persist,
		gate:        gate,
		bus:         bus,
		inspections: inspections,
		logger:      logger.With("module", "records_service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithTracer enables span emission on workflow transitions.
func (s *Records) WithTracer(tracer trace.Tracer) *Records {
	s.tracer = tracer

	return s
}

// HealthCheck checks the health of the persistence layer.
func (s *Records) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateRecordRequest carries the fields needed to open a new record.
type CreateRecordRequest struct {
	EntityType models.EntityType `validate:"required"`
	Variant    string
	Code       string
	Department string
	Payload    map[string]any
}

// Create validates the payload against the entity schema, assigns an ID, and
// persists the record at its first pending stage.
func (s *Records) Create(ctx context.Context, req CreateRecordRequest, actor models.Actor) (*models.Record, error) {
	def, err := workflow.DefinitionFor(req.EntityType, req.Variant)
	if err != nil {
		return nil, NewValidationError("Create", "UNKNOWN_ENTITY_TYPE", err.Error(), ErrInvalidRequest)
	}

	if err := models.ValidatePayload(req.EntityType, req.Payload); err != nil {
		return nil, NewValidationError("Create", "INVALID_PAYLOAD", err.Error(), ErrInvalidRequest)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate record ID: %w", err)
	}

	now := s.now()
	record := &models.Record{
		ID:         id.String(),
		EntityType: req.EntityType,
		Variant:    req.Variant,
		Code:       req.Code,
		Creator:    actor,
		Department: req.Department,
		Payload:    req.Payload,
		Signatures: map[string]*models.Signature{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	record.Status = workflow.StatusFor(def, record)

	if err := s.persistence.RecordRepository().Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	s.publish(ctx, record.ID, &events.RecordCreated{
		BaseEvent: s.baseEvent(events.RecordCreatedEvent),
		Record:    record,
	})

	return record, nil
}

// Get loads a single record.
func (s *Records) Get(ctx context.Context, entityType models.EntityType, id string) (*models.Record, error) {
	return s.persistence.RecordRepository().GetByID(ctx, entityType, id)
}

// List returns records newest-first, optionally filtered.
func (s *Records) List(ctx context.Context, opts persistence.ListRecordsOptions) ([]*models.Record, error) {
	if opts.Limit < 0 {
		opts.Limit = 0
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	return s.persistence.RecordRepository().List(ctx, opts)
}

// Threads reconstructs the record's comment threads.
func (s *Records) Threads(ctx context.Context, entityType models.EntityType, id string) ([]models.CommentThread, error) {
	record, err := s.Get(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	return models.BuildThreads(record.Comments), nil
}

// ActionRequest carries the client-supplied parts of a workflow action.
type ActionRequest struct {
	Comment             string
	Attachments         []string
	MaintenanceOpinion  string
	EstimatedCompletion string

	// ExpectedVersion is the record version the client acted on. Negative
	// skips the check.
	ExpectedVersion int64
}

// ApplyAction runs one workflow action against a record. The permission gate
// is evaluated inside the version-checked update, against the same snapshot
// the mutation is applied to.
func (s *Records) ApplyAction(ctx context.Context, entityType models.EntityType, id, action string, req ActionRequest, actor models.Actor) (*models.Record, error) {
	if s.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "records.apply_action",
			attribute.String(otelhelper.RecordIDKey, id),
			attribute.String(otelhelper.EntityTypeKey, string(entityType)),
			attribute.String(otelhelper.ActionKey, action),
			attribute.String(otelhelper.ActorKey, actor.Email),
		)
		defer span.End()
	}

	var wasCompleted bool

	updated, err := s.persistence.RecordRepository().Update(ctx, entityType, id, req.ExpectedVersion, func(record *models.Record) error {
		allowed, err := s.gate.CanAct(ctx, action, record, actor)
		if err != nil {
			return fmt.Errorf("failed to evaluate permissions: %w", err)
		}

		if !allowed {
			return fmt.Errorf("%w: %s on %s/%s by %s", ErrPermissionDenied, action, entityType, id, actor.Email)
		}

		def, err := workflow.DefinitionForRecord(record)
		if err != nil {
			return NewValidationError("ApplyAction", "UNKNOWN_ENTITY_TYPE", err.Error(), ErrInvalidRequest)
		}

		wasCompleted = record.Status == def.CompletedStatus

		switch action {
		case authz.ActionApprove:
			return s.applyApprove(def, record, req, actor)
		case authz.ActionSubmitOpinion:
			return s.applySubmitOpinion(def, record, req, actor)
		case authz.ActionReject:
			return s.applyReject(def, record, req, actor)
		case authz.ActionResubmit:
			return s.applyResubmit(def, record, actor)
		case authz.ActionRework:
			return s.applyRework(def, record, req, actor)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownAction, action)
		}
	})
	if err != nil {
		if persistence.IsVersionConflict(err) {
			err = fmt.Errorf("%w: %s/%s", ErrConcurrentModification, entityType, id)
		}

		if s.tracer != nil {
			otelhelper.SetError(trace.SpanFromContext(ctx), err)
		}

		return nil, err
	}

	if s.tracer != nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(otelhelper.StatusKey, updated.Status))
	}

	s.publish(ctx, updated.ID, &events.RecordUpdated{
		BaseEvent: s.baseEvent(events.RecordUpdatedEvent),
		Record:    updated,
		Action:    action,
		Actor:     actor.Email,
	})

	s.scheduleInspection(ctx, updated, wasCompleted)

	return updated, nil
}

// applyApprove completes the current stage by writing its signature.
func (s *Records) applyApprove(def *workflow.Definition, record *models.Record, req ActionRequest, actor models.Actor) error {
	stage, ok := workflow.CurrentStage(def, record)
	if !ok {
		return fmt.Errorf("%w: record is not awaiting approval", ErrInvalidTransition)
	}

	// Stages with required payload fields take submit_opinion, which writes
	// the fields along with the signature.
	if len(stage.RequiredFields) > 0 {
		for _, field := range stage.RequiredFields {
			if !record.FieldSet(field) {
				return fmt.Errorf("%w: stage %q needs %s", ErrInvalidTransition, stage.Key, field)
			}
		}
	}

	if record.SignatureFor(stage.Key) != nil {
		return fmt.Errorf("%w: stage %q already signed", ErrConcurrentModification, stage.Key)
	}

	s.sign(def, record, stage, req, actor)

	return nil
}

// applySubmitOpinion is the proposal's first stage: the maintenance team
// records its opinion and estimated completion date in one step.
func (s *Records) applySubmitOpinion(def *workflow.Definition, record *models.Record, req ActionRequest, actor models.Actor) error {
	stage, ok := workflow.CurrentStage(def, record)
	if !ok || len(stage.RequiredFields) == 0 {
		return fmt.Errorf("%w: record is not awaiting an opinion", ErrInvalidTransition)
	}

	if req.MaintenanceOpinion == "" || req.EstimatedCompletion == "" {
		return ErrOpinionFieldsNeeded
	}

	if record.SignatureFor(stage.Key) != nil {
		return fmt.Errorf("%w: stage %q already signed", ErrConcurrentModification, stage.Key)
	}

	if record.Payload == nil {
		record.Payload = map[string]any{}
	}

	record.Payload[workflow.FieldMaintenanceOpinion] = req.MaintenanceOpinion
	record.Payload[workflow.FieldEstimatedCompletion] = req.EstimatedCompletion

	s.sign(def, record, stage, req, actor)

	return nil
}

func (s *Records) applyReject(def *workflow.Definition, record *models.Record, req ActionRequest, actor models.Actor) error {
	if !def.Rejectable {
		return fmt.Errorf("%w: %s records cannot be rejected", ErrInvalidTransition, record.EntityType)
	}

	if record.Rejection != nil {
		return fmt.Errorf("%w: record is already rejected", ErrInvalidTransition)
	}

	stage, ok := workflow.CurrentStage(def, record)
	if !ok {
		return fmt.Errorf("%w: record is not awaiting approval", ErrInvalidTransition)
	}

	if req.Comment == "" {
		return ErrRejectReasonNeeded
	}

	now := s.now()
	record.Rejection = &models.Rejection{
		By:         actor.Email,
		Reason:     req.Comment,
		RejectedAt: now,
	}
	record.AppendHistory(models.HistoryEntry{
		Kind:       models.HistoryRejected,
		Action:     authz.ActionReject,
		Stage:      stage.Key,
		ActorName:  actor.Name,
		ActorEmail: actor.Email,
		At:         now,
		Note:       req.Comment,
	})
	record.Status = workflow.StatusFor(def, record)

	return nil
}

// applyResubmit clears the rejection and reopens the stage that fed the
// rejected one, archiving its signature into the history log.
func (s *Records) applyResubmit(def *workflow.Definition, record *models.Record, actor models.Actor) error {
	if record.Rejection == nil {
		return fmt.Errorf("%w: record is not rejected", ErrInvalidTransition)
	}

	ref := workflow.ResolveStage(def, record)
	entry := models.HistoryEntry{
		Kind:       models.HistoryResubmitted,
		Action:     authz.ActionResubmit,
		ActorName:  actor.Name,
		ActorEmail: actor.Email,
		At:         s.now(),
		Note:       record.Rejection.Reason,
	}

	if ref.Index > 0 {
		reopened := def.Stages[ref.Index-1]
		entry.Stage = reopened.Key
		entry.Archived = record.SignatureFor(reopened.Key)
		delete(record.Signatures, reopened.Key)
	}

	record.Rejection = nil
	record.AppendHistory(entry)
	record.Status = workflow.StatusFor(def, record)

	return nil
}

// applyRework sends a proposal back to the maintenance stage. The live
// maintenance signature is archived, never overwritten in place.
func (s *Records) applyRework(def *workflow.Definition, record *models.Record, req ActionRequest, actor models.Actor) error {
	stage, ok := workflow.CurrentStage(def, record)
	if !ok || !stage.CreatorGated {
		return fmt.Errorf("%w: record is not awaiting proposer confirmation", ErrInvalidTransition)
	}

	maintenanceStage, _, found := def.StageByKey("maintenance")
	if !found {
		return fmt.Errorf("%w: %s records have no maintenance stage", ErrInvalidTransition, record.EntityType)
	}

	archived := record.SignatureFor(maintenanceStage.Key)
	if archived == nil {
		return fmt.Errorf("%w: maintenance stage is not signed", ErrInvalidTransition)
	}

	record.AppendHistory(models.HistoryEntry{
		Kind:       models.HistoryRework,
		Action:     authz.ActionRework,
		Stage:      maintenanceStage.Key,
		ActorName:  actor.Name,
		ActorEmail: actor.Email,
		At:         s.now(),
		Note:       req.Comment,
		Archived:   archived,
		Attempt:    record.MaintenanceAttempts(),
	})
	delete(record.Signatures, maintenanceStage.Key)
	record.Status = workflow.StatusFor(def, record)

	return nil
}

// sign writes the stage signature, logs the transition, and refreshes the
// cached status projection.
func (s *Records) sign(def *workflow.Definition, record *models.Record, stage workflow.Stage, req ActionRequest, actor models.Actor) {
	now := s.now()

	if record.Signatures == nil {
		record.Signatures = map[string]*models.Signature{}
	}

	record.Signatures[stage.Key] = &models.Signature{
		ActorName:   actor.Name,
		ActorEmail:  actor.Email,
		SignedAt:    now,
		Comment:     req.Comment,
		Attachments: req.Attachments,
	}

	entry := models.HistoryEntry{
		Kind:       models.HistoryTransition,
		Action:     authz.ActionApprove,
		Stage:      stage.Key,
		ActorName:  actor.Name,
		ActorEmail: actor.Email,
		At:         now,
		Note:       req.Comment,
	}

	// Signing the maintenance stage is a maintenance confirmation; attempts
	// count strictly up across rework cycles.
	if stage.Key == "maintenance" {
		entry.Kind = models.HistoryMaintenanceConfirmed
		entry.Attempt = record.MaintenanceAttempts() + 1
	}

	record.AppendHistory(entry)
	record.Status = workflow.StatusFor(def, record)
}

// scheduleInspection runs the post-inspection side effect after a proposal
// reaches its completed status. It happens outside the record write, so it is
// at-least-once; EnsureForProposal makes the retry idempotent.
func (s *Records) scheduleInspection(ctx context.Context, record *models.Record, wasCompleted bool) {
	if s.inspections == nil || record.EntityType != models.EntityTypeProposal {
		return
	}

	def, err := workflow.DefinitionForRecord(record)
	if err != nil || wasCompleted || record.Status != def.CompletedStatus {
		return
	}

	if _, _, err := s.inspections.EnsureForProposal(ctx, record); err != nil {
		// The reconciler sweep picks this proposal up later.
		s.logger.ErrorContext(ctx, "failed to schedule post-inspection",
			"proposal_id", record.ID, "error", err)
	}
}

// AddComment appends a comment to the record's flat comment list. Threading
// is reconstructed on read.
func (s *Records) AddComment(ctx context.Context, entityType models.EntityType, id, content, replyToID string, actor models.Actor) (*models.Comment, error) {
	if content == "" {
		return nil, ErrCommentRequired
	}

	commentID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate comment ID: %w", err)
	}

	comment := models.Comment{
		ID:          commentID.String(),
		Content:     content,
		AuthorName:  actor.Name,
		AuthorEmail: actor.Email,
		CreatedAt:   s.now(),
		ReplyToID:   replyToID,
	}

	_, err = s.persistence.RecordRepository().Update(ctx, entityType, id, -1, func(record *models.Record) error {
		allowed, err := s.gate.CanAct(ctx, authz.ActionComment, record, actor)
		if err != nil {
			return fmt.Errorf("failed to evaluate permissions: %w", err)
		}

		if !allowed {
			return fmt.Errorf("%w: comment on %s/%s by %s", ErrPermissionDenied, entityType, id, actor.Email)
		}

		record.Comments = append(record.Comments, comment)

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, id, &events.RecordCommented{
		BaseEvent: s.baseEvent(events.RecordCommentedEvent),
		RecordID:  id,
		Comment:   comment,
	})

	return &comment, nil
}

// Delete removes a record permanently. The published event is the only trace
// left behind.
func (s *Records) Delete(ctx context.Context, entityType models.EntityType, id string, actor models.Actor) error {
	record, err := s.Get(ctx, entityType, id)
	if err != nil {
		return err
	}

	allowed, err := s.gate.CanAct(ctx, authz.ActionDelete, record, actor)
	if err != nil {
		return fmt.Errorf("failed to evaluate permissions: %w", err)
	}

	if !allowed {
		return fmt.Errorf("%w: delete %s/%s by %s", ErrPermissionDenied, entityType, id, actor.Email)
	}

	if err := s.persistence.RecordRepository().Delete(ctx, entityType, id); err != nil {
		return err
	}

	s.publish(ctx, id, &events.RecordDeleted{
		BaseEvent:  s.baseEvent(events.RecordDeletedEvent),
		RecordID:   id,
		EntityType: entityType,
		Actor:      actor.Email,
	})

	return nil
}

func (s *Records) baseEvent(eventType events.EventType) events.BaseEvent {
	base := events.BaseEvent{Type: eventType, Timestamp: s.now()}
	if s.bus != nil {
		base.ID = s.bus.GenerateID()
	}

	return base
}

// publish pushes a change event on a best-effort basis. A failed publish is
// logged, not surfaced: the write already committed.
func (s *Records) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.bus == nil {
		return
	}

	if err := s.bus.Publish(ctx, key, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}
