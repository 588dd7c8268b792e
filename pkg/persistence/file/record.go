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

const fileMode = 0o644

// RecordRepository stores one JSON file per record under
// <root>/records/<entity-type>/<id>.json. A process-wide mutex provides the
// compare-and-swap semantics of the Update contract.
type RecordRepository struct {
	root string
	mu   sync.Mutex
}

func NewRecordRepository(root string) *RecordRepository {
	return &RecordRepository{root: root}
}

func (rr *RecordRepository) dir(entityType models.EntityType) string {
	return filepath.Join(rr.root, "records", string(entityType))
}

func (rr *RecordRepository) path(entityType models.EntityType, id string) string {
	return filepath.Join(rr.dir(entityType), id+".json")
}

func (rr *RecordRepository) Create(ctx context.Context, record *models.Record) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	path := rr.path(record.EntityType, record.ID)

	if _, err := os.Stat(path); err == nil {
		return persistence.NewRecordError("Create", string(record.EntityType), record.ID, persistence.ErrRecordAlreadyExists)
	}

	return rr.write(record)
}

func (rr *RecordRepository) GetByID(ctx context.Context, entityType models.EntityType, id string) (*models.Record, error) {
	data, err := os.ReadFile(rr.path(entityType, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewRecordError("GetByID", string(entityType), id, persistence.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}

	var record models.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}

	return &record, nil
}

func (rr *RecordRepository) List(ctx context.Context, opts persistence.ListRecordsOptions) ([]*models.Record, error) {
	types := []models.EntityType{opts.EntityType}

	// An empty entity type means all of them: the per-type directories under
	// <root>/records are the collections to walk.
	if opts.EntityType == "" {
		entries, err := os.ReadDir(filepath.Join(rr.root, "records"))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return []*models.Record{}, nil
			}

			return nil, fmt.Errorf("failed to list record collections: %w", err)
		}

		types = types[:0]

		for _, entry := range entries {
			if entry.IsDir() {
				types = append(types, models.EntityType(entry.Name()))
			}
		}
	}

	records := []*models.Record{}

	for _, entityType := range types {
		typed, err := rr.listType(ctx, entityType, opts)
		if err != nil {
			return nil, err
		}

		records = append(records, typed...)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return page(records, opts.Offset, opts.Limit), nil
}

func (rr *RecordRepository) listType(ctx context.Context, entityType models.EntityType, opts persistence.ListRecordsOptions) ([]*models.Record, error) {
	entries, err := os.ReadDir(rr.dir(entityType))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]*models.Record, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-len(".json")]

		record, err := rr.GetByID(ctx, entityType, id)
		if err != nil {
			if persistence.IsRecordNotFound(err) {
				continue
			}

			return nil, err
		}

		if !matches(record, opts) {
			continue
		}

		records = append(records, record)
	}

	return records, nil
}

func matches(record *models.Record, opts persistence.ListRecordsOptions) bool {
	if opts.Status != "" && record.Status != opts.Status {
		return false
	}

	if opts.Department != "" && record.Department != opts.Department {
		return false
	}

	if opts.CreatorEmail != "" && record.Creator.Email != opts.CreatorEmail {
		return false
	}

	return true
}

func page(records []*models.Record, offset, limit int) []*models.Record {
	if offset >= len(records) {
		return []*models.Record{}
	}

	records = records[offset:]

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	return records
}

func (rr *RecordRepository) Update(ctx context.Context, entityType models.EntityType, id string, expectedVersion int64, mutate persistence.MutateRecord) (*models.Record, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	record, err := rr.GetByID(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	if expectedVersion >= 0 && record.Version != expectedVersion {
		return nil, persistence.NewRecordError("Update", string(entityType), id, persistence.ErrVersionConflict)
	}

	if err := mutate(record); err != nil {
		return nil, err
	}

	record.Version++
	record.UpdatedAt = time.Now().UTC()

	if err := rr.write(record); err != nil {
		return nil, err
	}

	return record, nil
}

func (rr *RecordRepository) Delete(ctx context.Context, entityType models.EntityType, id string) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	err := os.Remove(rr.path(entityType, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewRecordError("Delete", string(entityType), id, persistence.ErrRecordNotFound)
		}

		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}

	return nil
}

func (rr *RecordRepository) write(record *models.Record) error {
	dir := rr.dir(record.EntityType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create records directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.ID, err)
	}

	if err := os.WriteFile(rr.path(record.EntityType, record.ID), data, fileMode); err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.ID, err)
	}

	return nil
}
