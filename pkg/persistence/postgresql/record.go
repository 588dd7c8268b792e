package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/persistence"
)

// RecordRepository handles record-related database operations. The full
// record is stored as a JSONB document; the indexed columns exist only to
// serve list filters.
type RecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *sql.DB, logger *slog.Logger) *RecordRepository {
	return &RecordRepository{db: db, logger: logger}
}

func (r *RecordRepository) Create(ctx context.Context, record *models.Record) error {
	document, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO records (id, entity_type, status, department, creator_email, version, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.EntityType,
		record.Status,
		record.Department,
		record.Creator.Email,
		record.Version,
		document,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewRecordError("Create", string(record.EntityType), record.ID, persistence.ErrRecordAlreadyExists)
		}

		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, entityType models.EntityType, id string) (*models.Record, error) {
	query := `SELECT document FROM records WHERE id = $1 AND entity_type = $2`

	var document []byte

	err := r.db.QueryRowContext(ctx, query, id, entityType).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("GetByID", string(entityType), id, persistence.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("failed to query record: %w", err)
	}

	var record models.Record
	if err := json.Unmarshal(document, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
	}

	return &record, nil
}

func (r *RecordRepository) List(ctx context.Context, opts persistence.ListRecordsOptions) ([]*models.Record, error) {
	query := `SELECT document FROM records WHERE 1=1`
	args := make([]any, 0, 4)

	if opts.EntityType != "" {
		args = append(args, opts.EntityType)
		query += ` AND entity_type = $` + strconv.Itoa(len(args))
	}

	if opts.Status != "" {
		args = append(args, opts.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}

	if opts.Department != "" {
		args = append(args, opts.Department)
		query += ` AND department = $` + strconv.Itoa(len(args))
	}

	if opts.CreatorEmail != "" {
		args = append(args, opts.CreatorEmail)
		query += ` AND creator_email = $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY created_at DESC`

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.Record, 0)

	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		var record models.Record
		if err := json.Unmarshal(document, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}

		records = append(records, &record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// Update loads the record inside a transaction, applies the mutation, and
// writes it back guarded by the version column. The row lock serializes
// concurrent updates; the version check rejects stale expectations.
func (r *RecordRepository) Update(ctx context.Context, entityType models.EntityType, id string, expectedVersion int64, mutate persistence.MutateRecord) (*models.Record, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var document []byte

	err = tx.QueryRowContext(ctx,
		`SELECT document FROM records WHERE id = $1 AND entity_type = $2 FOR UPDATE`,
		id, entityType,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("Update", string(entityType), id, persistence.ErrRecordNotFound)
		}

		return nil, fmt.Errorf("failed to lock record %s: %w", id, err)
	}

	var record models.Record
	if err = json.Unmarshal(document, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", id, err)
	}

	if expectedVersion >= 0 && record.Version != expectedVersion {
		err = persistence.NewRecordError("Update", string(entityType), id, persistence.ErrVersionConflict)

		return nil, err
	}

	if err = mutate(&record); err != nil {
		return nil, err
	}

	record.Version++
	record.UpdatedAt = time.Now().UTC()

	document, err = json.Marshal(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE records
		 SET status = $1, department = $2, version = $3, document = $4, updated_at = $5
		 WHERE id = $6`,
		record.Status,
		record.Department,
		record.Version,
		document,
		record.UpdatedAt,
		record.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update record %s: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit record update: %w", err)
	}

	return &record, nil
}

func (r *RecordRepository) Delete(ctx context.Context, entityType models.EntityType, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE id = $1 AND entity_type = $2`, id, entityType)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}

	if affected == 0 {
		return persistence.NewRecordError("Delete", string(entityType), id, persistence.ErrRecordNotFound)
	}

	return nil
}
