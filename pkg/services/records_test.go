package services

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetflow-io/assetflow/pkg/authz"
	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/persistence"
	"github.com/assetflow-io/assetflow/pkg/persistence/file"
	"github.com/assetflow-io/assetflow/pkg/workflow"
)

var (
	alice = models.Actor{Name: "Alice", Email: "alice@example.com"}
	bob   = models.Actor{Name: "Bob", Email: "bob@example.com"}
	carol = models.Actor{Name: "Carol", Email: "carol@example.com"}
	dan   = models.Actor{Name: "Dan", Email: "dan@example.com"}
	mia   = models.Actor{Name: "Mia", Email: "mia@example.com"}
	vera  = models.Actor{Name: "Vera", Email: "vera@example.com"}
	paula = models.Actor{Name: "Paula", Email: "paula@example.com"}
)

func transferPayload() map[string]any {
	return map[string]any{
		"from": "Block A",
		"to":   "Block B",
		"assets": []any{
			map[string]any{"name": "pump", "quantity": float64(1)},
		},
	}
}

func testRoleConfig() *models.RoleConfig {
	config := models.NewRoleConfig()
	config.Assign(models.EntityTypeTransfer, workflow.RoleSender, []string{alice.Email})
	config.Assign(models.EntityTypeTransfer, workflow.RoleReceiver, []string{bob.Email})
	config.Assign(models.EntityTypeTransfer, workflow.RoleAdminHC, []string{carol.Email})
	config.Assign(models.EntityTypeRequest, workflow.RoleAdminHC, []string{carol.Email})
	config.Assign(models.EntityTypeRequest, workflow.RoleBlockLeader, []string{dan.Email})
	config.Assign(models.EntityTypeRequest, workflow.RoleKT, []string{dan.Email})
	config.Assign(models.EntityTypeProposal, workflow.RoleMaintenance, []string{mia.Email})
	config.Assign(models.EntityTypeProposal, workflow.RoleViceDirector, []string{vera.Email})
	config.Admins = []string{"root@example.com"}

	return config
}

func newTestServices(t *testing.T) (*Records, *Inspections, persistence.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	gate := authz.NewGate(authz.StaticRoleProvider{Config: testRoleConfig()})
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	inspections := NewInspections(persist, authz.StaticRoleProvider{Config: testRoleConfig()}, nil, logger, DefaultInspectionOffset)
	records := NewRecords(persist, gate, nil, inspections, logger)

	return records, inspections, persist
}

func TestRecords_CreateTransfer(t *testing.T) {
	records, _, _ := newTestServices(t)

	created, err := records.Create(t.Context(), CreateRecordRequest{
		EntityType: models.EntityTypeTransfer,
		Department: "block-a",
		Payload:    transferPayload(),
	}, alice)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "PENDING_SENDER", created.Status)
	assert.Equal(t, alice.Email, created.Creator.Email)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestRecords_CreateTransferMissingEndpoints(t *testing.T) {
	records, _, _ := newTestServices(t)

	_, err := records.Create(t.Context(), CreateRecordRequest{
		EntityType: models.EntityTypeTransfer,
		Payload:    map[string]any{"assets": []any{}},
	}, alice)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestRecords_CreateUnknownReportVariant(t *testing.T) {
	records, _, _ := newTestServices(t)

	_, err := records.Create(t.Context(), CreateRecordRequest{
		EntityType: models.EntityTypeReport,
		Variant:    "WEEKLY",
	}, alice)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestRecords_TransferApproveProgression(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeTransfer, Payload: transferPayload()}, alice)
	require.NoError(t, err)

	updated, err := records.ApplyAction(ctx, models.EntityTypeTransfer, created.ID, authz.ActionApprove,
		ActionRequest{Comment: "handed over", ExpectedVersion: created.Version}, alice)
	require.NoError(t, err)

	require.NotNil(t, updated.SignatureFor("sender"))
	assert.Equal(t, alice.Email, updated.SignatureFor("sender").ActorEmail)
	assert.Equal(t, "PENDING_RECEIVER", updated.Status)

	// The cached status always agrees with the derived one
	def, err := workflow.DefinitionForRecord(updated)
	require.NoError(t, err)
	assert.Equal(t, updated.Status, workflow.StatusFor(def, updated))

	// Remaining stages to completion
	updated, err = records.ApplyAction(ctx, models.EntityTypeTransfer, created.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, bob)
	require.NoError(t, err)
	assert.Equal(t, "PENDING_ADMIN", updated.Status)

	updated, err = records.ApplyAction(ctx, models.EntityTypeTransfer, created.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, carol)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", updated.Status)
	assert.Equal(t, updated.Status, workflow.StatusFor(def, updated))

	// A completed record takes no further approvals, even from an admin
	admin := models.Actor{Name: "Root", Email: "root@example.com"}
	_, err = records.ApplyAction(ctx, models.EntityTypeTransfer, created.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, admin)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecords_ApplyActionPermissionDenied(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeTransfer, Payload: transferPayload()}, alice)
	require.NoError(t, err)

	// Bob holds the receiver role, not sender
	_, err = records.ApplyAction(ctx, models.EntityTypeTransfer, created.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: created.Version}, bob)
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))
}

func TestRecords_ApplyActionStaleVersion(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeTransfer, Payload: transferPayload()}, alice)
	require.NoError(t, err)

	_, err = records.ApplyAction(ctx, models.EntityTypeTransfer, created.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: created.Version}, alice)
	require.NoError(t, err)

	// A second client acting on the original snapshot loses the race
	_, err = records.ApplyAction(ctx, models.EntityTypeTransfer, created.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: created.Version}, bob)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.True(t, IsConflictError(err))
}

func TestRecords_RejectThenResubmit(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{
		EntityType: models.EntityTypeRequest,
		Payload:    map[string]any{"reason": "new rack"},
	}, alice)
	require.NoError(t, err)
	assert.Equal(t, "PENDING_HC", created.Status)

	// hc approves, then the block leader rejects
	updated, err := records.ApplyAction(ctx, models.EntityTypeRequest, created.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: created.Version}, carol)
	require.NoError(t, err)
	assert.Equal(t, "PENDING_BLOCK_LEADER", updated.Status)

	updated, err = records.ApplyAction(ctx, models.EntityTypeRequest, created.ID, authz.ActionReject,
		ActionRequest{Comment: "wrong cost center", ExpectedVersion: updated.Version}, dan)
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", updated.Status)
	require.NotNil(t, updated.Rejection)
	assert.Equal(t, "wrong cost center", updated.Rejection.Reason)

	// Creator resubmits: the record returns to the stage preceding the
	// rejected one and the hc signature is archived, not lost.
	updated, err = records.ApplyAction(ctx, models.EntityTypeRequest, created.ID, authz.ActionResubmit,
		ActionRequest{ExpectedVersion: updated.Version}, alice)
	require.NoError(t, err)

	assert.Equal(t, "PENDING_HC", updated.Status)
	assert.Nil(t, updated.Rejection)
	assert.Nil(t, updated.SignatureFor("hc"))

	archive := updated.LastRejection()
	require.NotNil(t, archive)
	assert.Equal(t, "wrong cost center", archive.Note)
	assert.Equal(t, "hc", archive.Stage)
	require.NotNil(t, archive.Archived)
	assert.Equal(t, carol.Email, archive.Archived.ActorEmail)
}

func TestRecords_RejectRequiresReason(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeRequest}, alice)
	require.NoError(t, err)

	_, err = records.ApplyAction(ctx, models.EntityTypeRequest, created.ID, authz.ActionReject,
		ActionRequest{ExpectedVersion: created.Version}, carol)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejectReasonNeeded)
}

func TestRecords_TransferNotRejectable(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeTransfer, Payload: transferPayload()}, alice)
	require.NoError(t, err)

	_, err = records.ApplyAction(ctx, models.EntityTypeTransfer, created.ID, authz.ActionReject,
		ActionRequest{Comment: "no", ExpectedVersion: created.Version}, alice)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func completeProposalThroughMaintenance(t *testing.T, records *Records) *models.Record {
	t.Helper()

	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{
		EntityType: models.EntityTypeProposal,
		Code:       "PR-2025-014",
		Department: "block-b",
		Payload:    map[string]any{"content": "replace compressor"},
	}, paula)
	require.NoError(t, err)
	assert.Equal(t, "new", created.Status)

	updated, err := records.ApplyAction(ctx, models.EntityTypeProposal, created.ID, authz.ActionSubmitOpinion,
		ActionRequest{MaintenanceOpinion: "replace bearings", EstimatedCompletion: "2025-10-01", ExpectedVersion: created.Version}, mia)
	require.NoError(t, err)
	assert.Equal(t, "pending_approval", updated.Status)

	updated, err = records.ApplyAction(ctx, models.EntityTypeProposal, created.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, vera)
	require.NoError(t, err)
	assert.Equal(t, "maintenance_doing", updated.Status)

	updated, err = records.ApplyAction(ctx, models.EntityTypeProposal, created.ID, authz.ActionApprove,
		ActionRequest{Comment: "done", ExpectedVersion: updated.Version}, mia)
	require.NoError(t, err)
	assert.Equal(t, "pending_proposer", updated.Status)

	return updated
}

func TestRecords_ProposalOpinionRequiresBothFields(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{
		EntityType: models.EntityTypeProposal,
		Payload:    map[string]any{"content": "leaking valve"},
	}, paula)
	require.NoError(t, err)

	_, err = records.ApplyAction(ctx, models.EntityTypeProposal, created.ID, authz.ActionSubmitOpinion,
		ActionRequest{MaintenanceOpinion: "swap valve", ExpectedVersion: created.Version}, mia)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpinionFieldsNeeded)

	// Still at the first stage
	current, err := records.Get(ctx, models.EntityTypeProposal, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", current.Status)
}

func TestRecords_ProposalReworkCycle(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	updated := completeProposalThroughMaintenance(t, records)

	historyBefore := len(updated.History)

	// Proposer sends the work back
	updated, err := records.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionRework,
		ActionRequest{Comment: "still vibrating", ExpectedVersion: updated.Version}, paula)
	require.NoError(t, err)

	assert.Equal(t, "maintenance_doing", updated.Status)
	assert.Nil(t, updated.SignatureFor("maintenance"))
	assert.Len(t, updated.History, historyBefore+1)

	rework := updated.LastReworkRequest()
	require.NotNil(t, rework)
	assert.Equal(t, "still vibrating", rework.Note)
	assert.Equal(t, 1, rework.Attempt)
	require.NotNil(t, rework.Archived)
	assert.Equal(t, mia.Email, rework.Archived.ActorEmail)

	// Second maintenance confirmation carries a strictly higher attempt
	updated, err = records.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionApprove,
		ActionRequest{Comment: "rebalanced", ExpectedVersion: updated.Version}, mia)
	require.NoError(t, err)

	history := updated.MaintenanceHistory()
	attempts := make([]int, 0)

	for _, entry := range history {
		if entry.Kind == models.HistoryMaintenanceConfirmed {
			attempts = append(attempts, entry.Attempt)
		}
	}

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRecords_ReworkOnlyFromProposerStage(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{
		EntityType: models.EntityTypeProposal,
		Payload:    map[string]any{"content": "broken fan"},
	}, paula)
	require.NoError(t, err)

	_, err = records.ApplyAction(ctx, models.EntityTypeProposal, created.ID, authz.ActionRework,
		ActionRequest{ExpectedVersion: created.Version}, paula)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecords_ProposalCompletionSchedulesOneInspection(t *testing.T) {
	records, inspections, persist := newTestServices(t)
	ctx := t.Context()

	updated := completeProposalThroughMaintenance(t, records)

	// Proposer confirms, vice director closes
	updated, err := records.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, paula)
	require.NoError(t, err)
	assert.Equal(t, "pending_final", updated.Status)

	updated, err = records.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, vera)
	require.NoError(t, err)
	assert.Equal(t, "completed", updated.Status)

	inspection, err := persist.InspectionRepository().GetByProposalID(ctx, updated.ID)
	require.NoError(t, err)

	assert.Equal(t, models.InspectionStatusPending, inspection.Status)
	assert.Equal(t, "PR-2025-014", inspection.OriginalCode)
	assert.Equal(t, "replace compressor", inspection.OriginalContent)
	assert.Equal(t, paula.Email, inspection.Proposer)

	finalSignature := updated.SignatureFor("viceDirector")
	require.NotNil(t, finalSignature)
	assert.Equal(t, finalSignature.SignedAt.Add(DefaultInspectionOffset), inspection.ScheduledDate)

	reloaded, err := records.Get(ctx, models.EntityTypeProposal, updated.ID)
	require.NoError(t, err)

	var scheduled []models.HistoryEntry
	for _, entry := range reloaded.History {
		if entry.Kind == models.HistoryInspectionScheduled {
			scheduled = append(scheduled, entry)
		}
	}
	require.Len(t, scheduled, 1)
	assert.Equal(t, inspection.ID, scheduled[0].Note)

	// Reconcile never duplicates
	createdCount, err := inspections.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, createdCount)

	all, err := inspections.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecords_AddCommentAndThreads(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeTransfer, Payload: transferPayload()}, alice)
	require.NoError(t, err)

	root, err := records.AddComment(ctx, models.EntityTypeTransfer, created.ID, "please double-check serials", "", bob)
	require.NoError(t, err)
	require.NotEmpty(t, root.ID)

	_, err = records.AddComment(ctx, models.EntityTypeTransfer, created.ID, "serials verified", root.ID, alice)
	require.NoError(t, err)

	threads, err := records.Threads(ctx, models.EntityTypeTransfer, created.ID)
	require.NoError(t, err)

	require.Len(t, threads, 1)
	assert.Equal(t, root.ID, threads[0].Root.ID)
	require.Len(t, threads[0].Replies, 1)
	assert.Equal(t, "serials verified", threads[0].Replies[0].Content)
}

func TestRecords_AddCommentRequiresContent(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	created, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeTransfer, Payload: transferPayload()}, alice)
	require.NoError(t, err)

	_, err = records.AddComment(ctx, models.EntityTypeTransfer, created.ID, "", "", bob)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommentRequired)
}

func TestRecords_DeleteGating(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()
	admin := models.Actor{Name: "Root", Email: "root@example.com"}

	t.Run("creator may delete before approval", func(t *testing.T) {
		created, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeRequest}, alice)
		require.NoError(t, err)

		require.NoError(t, records.Delete(ctx, models.EntityTypeRequest, created.ID, alice))

		_, err = records.Get(ctx, models.EntityTypeRequest, created.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("creator may not delete once approved", func(t *testing.T) {
		created, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeRequest}, alice)
		require.NoError(t, err)

		_, err = records.ApplyAction(ctx, models.EntityTypeRequest, created.ID, authz.ActionApprove,
			ActionRequest{ExpectedVersion: created.Version}, carol)
		require.NoError(t, err)

		err = records.Delete(ctx, models.EntityTypeRequest, created.ID, alice)
		require.Error(t, err)
		assert.True(t, IsPermissionDenied(err))

		// Admin still can
		require.NoError(t, records.Delete(ctx, models.EntityTypeRequest, created.ID, admin))
	})
}

func TestRecords_ListFilters(t *testing.T) {
	records, _, _ := newTestServices(t)
	ctx := t.Context()

	_, err := records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeTransfer, Department: "block-a", Payload: transferPayload()}, alice)
	require.NoError(t, err)
	_, err = records.Create(ctx, CreateRecordRequest{EntityType: models.EntityTypeRequest, Department: "block-b"}, bob)
	require.NoError(t, err)

	transfers, err := records.List(ctx, persistence.ListRecordsOptions{EntityType: models.EntityTypeTransfer})
	require.NoError(t, err)
	assert.Len(t, transfers, 1)

	byCreator, err := records.List(ctx, persistence.ListRecordsOptions{CreatorEmail: bob.Email})
	require.NoError(t, err)
	require.Len(t, byCreator, 1)
	assert.Equal(t, models.EntityTypeRequest, byCreator[0].EntityType)
}

func TestRecords_HealthCheck(t *testing.T) {
	records, _, _ := newTestServices(t)

	message, healthy := records.HealthCheck(t.Context())
	assert.True(t, healthy)
	assert.NotEmpty(t, message)
}

func TestInspections_ConfirmLifecycle(t *testing.T) {
	records, inspections, _ := newTestServices(t)
	ctx := t.Context()

	updated := completeProposalThroughMaintenance(t, records)

	updated, err := records.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, paula)
	require.NoError(t, err)

	updated, err = records.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, vera)
	require.NoError(t, err)

	all, err := inspections.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	inspection := all[0]

	// Vice director cannot close before maintenance confirms
	_, err = inspections.Confirm(ctx, inspection.ID, ActionConfirmViceDirector, "", vera)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	confirmed, err := inspections.Confirm(ctx, inspection.ID, ActionConfirmMaintenance, "holding steady", mia)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusMaintenanceConfirmed, confirmed.Status)

	// Wrong role is denied
	_, err = inspections.Confirm(ctx, inspection.ID, ActionConfirmViceDirector, "", mia)
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))

	closed, err := inspections.Confirm(ctx, inspection.ID, ActionConfirmViceDirector, "verified on site", vera)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusCompleted, closed.Status)
	assert.False(t, closed.CompletedDate.IsZero())

	// Double confirmation is rejected
	_, err = inspections.Confirm(ctx, inspection.ID, ActionConfirmViceDirector, "", vera)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInspections_DeleteAdminOnly(t *testing.T) {
	records, inspections, _ := newTestServices(t)
	ctx := t.Context()

	updated := completeProposalThroughMaintenance(t, records)

	updated, err := records.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, paula)
	require.NoError(t, err)

	_, err = records.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, vera)
	require.NoError(t, err)

	all, err := inspections.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	err = inspections.Delete(ctx, all[0].ID, mia)
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))

	admin := models.Actor{Name: "Root", Email: "root@example.com"}
	require.NoError(t, inspections.Delete(ctx, all[0].ID, admin))

	_, err = inspections.Get(ctx, all[0].ID)
	assert.ErrorIs(t, err, ErrInspectionNotFound)
}

func TestInspections_ReconcileBackfills(t *testing.T) {
	_, _, persist := newTestServices(t)
	ctx := t.Context()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	// Wire a records service without the inline side effect to simulate a
	// crash between the record write and the inspection write.
	gate := authz.NewGate(authz.StaticRoleProvider{Config: testRoleConfig()})
	detached := NewRecords(persist, gate, nil, nil, logger)

	updated := completeProposalThroughMaintenance(t, detached)

	updated, err := detached.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, paula)
	require.NoError(t, err)

	_, err = detached.ApplyAction(ctx, models.EntityTypeProposal, updated.ID, authz.ActionApprove,
		ActionRequest{ExpectedVersion: updated.Version}, vera)
	require.NoError(t, err)

	inspections := NewInspections(persist, authz.StaticRoleProvider{Config: testRoleConfig()}, nil, logger, time.Hour)

	created, err := inspections.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// Idempotent on the second pass
	created, err = inspections.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}
