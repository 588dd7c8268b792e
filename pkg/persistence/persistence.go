// Package persistence provides the entity store abstraction for records,
// post-inspections, and the role configuration document.
package persistence

import (
	"context"

	"github.com/assetflow-io/assetflow/pkg/models"
)

// ListRecordsOptions filters and pages a record listing. Results are always
// ordered by creation time descending.
type ListRecordsOptions struct {
	EntityType   models.EntityType
	Status       string
	Department   string
	CreatorEmail string
	Limit        int
	Offset       int
}

// MutateRecord applies an in-place change to a freshly loaded record. The
// repository persists the result only if the version check passes.
type MutateRecord func(record *models.Record) error

// MutateInspection is the inspection counterpart of MutateRecord.
type MutateInspection func(inspection *models.PostInspection) error

// RecordRepository stores approval-pipeline records. Update implements
// optimistic concurrency: when expectedVersion >= 0, the stored version must
// still equal it at write time or the call fails with ErrVersionConflict.
type RecordRepository interface {
	Create(ctx context.Context, record *models.Record) error
	GetByID(ctx context.Context, entityType models.EntityType, id string) (*models.Record, error)
	List(ctx context.Context, opts ListRecordsOptions) ([]*models.Record, error)
	Update(ctx context.Context, entityType models.EntityType, id string, expectedVersion int64, mutate MutateRecord) (*models.Record, error)
	Delete(ctx context.Context, entityType models.EntityType, id string) error
}

// InspectionRepository stores post-inspection records. GetByProposalID is
// the idempotency probe used by the reconciliation pass.
type InspectionRepository interface {
	Create(ctx context.Context, inspection *models.PostInspection) error
	GetByID(ctx context.Context, id string) (*models.PostInspection, error)
	GetByProposalID(ctx context.Context, proposalID string) (*models.PostInspection, error)
	List(ctx context.Context) ([]*models.PostInspection, error)
	Update(ctx context.Context, id string, expectedVersion int64, mutate MutateInspection) (*models.PostInspection, error)
	Delete(ctx context.Context, id string) error
}

// RoleRepository stores the single role configuration document. Get returns
// an empty configuration when none has been saved yet.
type RoleRepository interface {
	Get(ctx context.Context) (*models.RoleConfig, error)
	Save(ctx context.Context, config *models.RoleConfig) error
}

type Persistence interface {
	RecordRepository() RecordRepository
	InspectionRepository() InspectionRepository
	RoleRepository() RoleRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
