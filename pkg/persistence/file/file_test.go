package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/persistence"
)

func testRecord(id string, entityType models.EntityType) *models.Record {
	now := time.Now().UTC()

	return &models.Record{
		ID:         id,
		EntityType: entityType,
		Status:     "PENDING_SENDER",
		Creator:    models.Actor{Name: "Alice", Email: "alice@example.com"},
		Department: "block-a",
		Payload:    map[string]any{"content": "replace pump"},
		Signatures: map[string]*models.Signature{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRecordRepository_CreateAndGet(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())
	ctx := context.Background()

	record := testRecord("rec-1", models.EntityTypeTransfer)
	require.NoError(t, repo.Create(ctx, record))

	loaded, err := repo.GetByID(ctx, models.EntityTypeTransfer, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, loaded.ID)
	assert.Equal(t, record.Status, loaded.Status)
	assert.Equal(t, "replace pump", loaded.Payload["content"])
}

func TestRecordRepository_CreateDuplicate(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())
	ctx := context.Background()

	record := testRecord("rec-1", models.EntityTypeTransfer)
	require.NoError(t, repo.Create(ctx, record))

	err := repo.Create(ctx, record)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrRecordAlreadyExists)
}

func TestRecordRepository_GetMissing(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())

	_, err := repo.GetByID(context.Background(), models.EntityTypeTransfer, "nope")
	require.Error(t, err)
	assert.True(t, persistence.IsRecordNotFound(err))
}

func TestRecordRepository_ListFilters(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())
	ctx := context.Background()

	first := testRecord("rec-1", models.EntityTypeTransfer)
	second := testRecord("rec-2", models.EntityTypeTransfer)
	second.Status = "COMPLETED"
	second.Department = "block-b"
	third := testRecord("rec-3", models.EntityTypeRequest)
	third.Status = "PENDING_HC"

	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, third))

	all, err := repo.List(ctx, persistence.ListRecordsOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	transfers, err := repo.List(ctx, persistence.ListRecordsOptions{EntityType: models.EntityTypeTransfer})
	require.NoError(t, err)
	assert.Len(t, transfers, 2)

	completed, err := repo.List(ctx, persistence.ListRecordsOptions{Status: "COMPLETED"})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "rec-2", completed[0].ID)

	blockA, err := repo.List(ctx, persistence.ListRecordsOptions{Department: "block-a"})
	require.NoError(t, err)
	assert.Len(t, blockA, 2)
}

func TestRecordRepository_ListPaging(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"rec-1", "rec-2", "rec-3"} {
		require.NoError(t, repo.Create(ctx, testRecord(id, models.EntityTypeTransfer)))
	}

	page, err := repo.List(ctx, persistence.ListRecordsOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := repo.List(ctx, persistence.ListRecordsOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestRecordRepository_UpdateIncrementsVersion(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("rec-1", models.EntityTypeTransfer)))

	updated, err := repo.Update(ctx, models.EntityTypeTransfer, "rec-1", 0, func(record *models.Record) error {
		record.Status = "PENDING_RECEIVER"

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, "PENDING_RECEIVER", updated.Status)

	loaded, err := repo.GetByID(ctx, models.EntityTypeTransfer, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
}

func TestRecordRepository_UpdateVersionConflict(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("rec-1", models.EntityTypeTransfer)))

	_, err := repo.Update(ctx, models.EntityTypeTransfer, "rec-1", 7, func(record *models.Record) error {
		return nil
	})
	require.Error(t, err)
	assert.True(t, persistence.IsVersionConflict(err))
}

func TestRecordRepository_UpdateSkipsCheckWhenNegative(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("rec-1", models.EntityTypeTransfer)))

	updated, err := repo.Update(ctx, models.EntityTypeTransfer, "rec-1", -1, func(record *models.Record) error {
		record.Status = "COMPLETED"

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", updated.Status)
}

func TestRecordRepository_UpdateRefreshesUpdatedAt(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())
	ctx := context.Background()

	record := testRecord("rec-1", models.EntityTypeTransfer)
	record.UpdatedAt = record.CreatedAt.Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, record))

	updated, err := repo.Update(ctx, models.EntityTypeTransfer, "rec-1", 0, func(record *models.Record) error {
		record.Status = "PENDING_RECEIVER"

		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(record.CreatedAt))
}

func TestRecordRepository_Delete(t *testing.T) {
	repo := NewRecordRepository(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testRecord("rec-1", models.EntityTypeTransfer)))
	require.NoError(t, repo.Delete(ctx, models.EntityTypeTransfer, "rec-1"))

	_, err := repo.GetByID(ctx, models.EntityTypeTransfer, "rec-1")
	assert.True(t, persistence.IsRecordNotFound(err))

	err = repo.Delete(ctx, models.EntityTypeTransfer, "rec-1")
	assert.True(t, persistence.IsRecordNotFound(err))
}

func testInspection(id, proposalID string) *models.PostInspection {
	now := time.Now().UTC()

	return &models.PostInspection{
		ID:                 id,
		OriginalProposalID: proposalID,
		OriginalCode:       "PR-2025-001",
		Department:         "maintenance",
		Proposer:           "alice@example.com",
		Status:             models.InspectionStatusPending,
		ScheduledDate:      now.Add(7 * 24 * time.Hour),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestInspectionRepository_CreateAndGetByProposal(t *testing.T) {
	repo := NewInspectionRepository(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testInspection("ins-1", "prop-1")))
	require.NoError(t, repo.Create(ctx, testInspection("ins-2", "prop-2")))

	found, err := repo.GetByProposalID(ctx, "prop-2")
	require.NoError(t, err)
	assert.Equal(t, "ins-2", found.ID)

	_, err = repo.GetByProposalID(ctx, "prop-9")
	require.Error(t, err)
	assert.True(t, persistence.IsInspectionNotFound(err))
}

func TestInspectionRepository_CreateDuplicateProposal(t *testing.T) {
	repo := NewInspectionRepository(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testInspection("ins-1", "prop-1")))

	err := repo.Create(ctx, testInspection("ins-2", "prop-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrRecordAlreadyExists)

	found, err := repo.GetByProposalID(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "ins-1", found.ID)
}

func TestInspectionRepository_UpdateConfirmation(t *testing.T) {
	repo := NewInspectionRepository(t.TempDir())
	ctx := context.Background()

	inspection := testInspection("ins-1", "prop-1")
	inspection.UpdatedAt = inspection.CreatedAt.Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, inspection))

	updated, err := repo.Update(ctx, "ins-1", 0, func(inspection *models.PostInspection) error {
		inspection.MaintenanceConfirmation = &models.InspectionConfirmation{
			Confirmed: true,
			Time:      time.Now().UTC(),
			User:      "bob@example.com",
		}
		inspection.Status = inspection.DeriveStatus()

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.InspectionStatusMaintenanceConfirmed, updated.Status)
	assert.Equal(t, int64(1), updated.Version)
	assert.True(t, updated.UpdatedAt.After(inspection.CreatedAt))
}

func TestInspectionRepository_ListEmpty(t *testing.T) {
	repo := NewInspectionRepository(t.TempDir())

	inspections, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, inspections)
}

func TestRoleRepository_GetReturnsEmptyConfigWhenMissing(t *testing.T) {
	repo := NewRoleRepository(t.TempDir())

	config, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.False(t, config.HasRole(models.EntityTypeTransfer, "sender", "alice@example.com"))
}

func TestRoleRepository_SaveAndGet(t *testing.T) {
	repo := NewRoleRepository(t.TempDir())
	ctx := context.Background()

	config := models.NewRoleConfig()
	config.Assign(models.EntityTypeTransfer, "sender", []string{"alice@example.com"})
	config.Admins = []string{"root@example.com"}

	require.NoError(t, repo.Save(ctx, config))

	loaded, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.HasRole(models.EntityTypeTransfer, "sender", "Alice@Example.com"))
	assert.True(t, loaded.IsAdmin("root@example.com"))
}

func TestPersistence_HealthCheck(t *testing.T) {
	persist := NewPersistence("file://" + t.TempDir())

	require.NoError(t, persist.HealthCheck(context.Background()))
	require.NoError(t, persist.Close(context.Background()))
}
