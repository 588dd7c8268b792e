package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/persistence"
)

// InspectionRepository stores one JSON file per post-inspection under
// <root>/inspections/<id>.json.
type InspectionRepository struct {
	root string
	mu   sync.Mutex
}

func NewInspectionRepository(root string) *InspectionRepository {
	return &InspectionRepository{root: root}
}

func (ir *InspectionRepository) dir() string {
	return filepath.Join(ir.root, "inspections")
}

func (ir *InspectionRepository) path(id string) string {
	return filepath.Join(ir.dir(), id+".json")
}

func (ir *InspectionRepository) Create(ctx context.Context, inspection *models.PostInspection) error {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	// One inspection per proposal. Re-check under the mutex so two racing
	// schedulers cannot both pass their probe and write.
	if existing, err := ir.getByProposalID(ctx, inspection.OriginalProposalID); err == nil {
		return persistence.NewInspectionError("Create", existing.ID, persistence.ErrRecordAlreadyExists)
	} else if !persistence.IsInspectionNotFound(err) {
		return err
	}

	return ir.write(inspection)
}

func (ir *InspectionRepository) GetByID(ctx context.Context, id string) (*models.PostInspection, error) {
	data, err := os.ReadFile(ir.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewInspectionError("GetByID", id, persistence.ErrInspectionNotFound)
		}

		return nil, fmt.Errorf("failed to read inspection %s: %w", id, err)
	}

	var inspection models.PostInspection
	if err := json.Unmarshal(data, &inspection); err != nil {
		return nil, fmt.Errorf("failed to decode inspection %s: %w", id, err)
	}

	return &inspection, nil
}

func (ir *InspectionRepository) GetByProposalID(ctx context.Context, proposalID string) (*models.PostInspection, error) {
	return ir.getByProposalID(ctx, proposalID)
}

func (ir *InspectionRepository) getByProposalID(ctx context.Context, proposalID string) (*models.PostInspection, error) {
	inspections, err := ir.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, inspection := range inspections {
		if inspection.OriginalProposalID == proposalID {
			return inspection, nil
		}
	}

	return nil, persistence.NewInspectionError("GetByProposalID", proposalID, persistence.ErrInspectionNotFound)
}

func (ir *InspectionRepository) List(ctx context.Context) ([]*models.PostInspection, error) {
	entries, err := os.ReadDir(ir.dir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.PostInspection{}, nil
		}

		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}

	inspections := make([]*models.PostInspection, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-len(".json")]

		inspection, err := ir.GetByID(ctx, id)
		if err != nil {
			if persistence.IsInspectionNotFound(err) {
				continue
			}

			return nil, err
		}

		inspections = append(inspections, inspection)
	}

	sort.Slice(inspections, func(i, j int) bool {
		return inspections[i].CreatedAt.After(inspections[j].CreatedAt)
	})

	return inspections, nil
}

func (ir *InspectionRepository) Update(ctx context.Context, id string, expectedVersion int64, mutate persistence.MutateInspection) (*models.PostInspection, error) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	inspection, err := ir.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if expectedVersion >= 0 && inspection.Version != expectedVersion {
		return nil, persistence.NewInspectionError("Update", id, persistence.ErrVersionConflict)
	}

	if err := mutate(inspection); err != nil {
		return nil, err
	}

	inspection.Version++
	inspection.UpdatedAt = time.Now().UTC()

	if err := ir.write(inspection); err != nil {
		return nil, err
	}

	return inspection, nil
}

func (ir *InspectionRepository) Delete(ctx context.Context, id string) error {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	err := os.Remove(ir.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewInspectionError("Delete", id, persistence.ErrInspectionNotFound)
		}

		return fmt.Errorf("failed to delete inspection %s: %w", id, err)
	}

	return nil
}

func (ir *InspectionRepository) write(inspection *models.PostInspection) error {
	if err := os.MkdirAll(ir.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create inspections directory: %w", err)
	}

	data, err := json.MarshalIndent(inspection, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode inspection %s: %w", inspection.ID, err)
	}

	if err := os.WriteFile(ir.path(inspection.ID), data, fileMode); err != nil {
		return fmt.Errorf("failed to write inspection %s: %w", inspection.ID, err)
	}

	return nil
}
