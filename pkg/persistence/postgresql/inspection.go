package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/persistence"
)

// InspectionRepository handles post-inspection database operations.
type InspectionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInspectionRepository creates a new inspection repository.
func NewInspectionRepository(db *sql.DB, logger *slog.Logger) *InspectionRepository {
	return &InspectionRepository{db: db, logger: logger}
}

func (r *InspectionRepository) Create(ctx context.Context, inspection *models.PostInspection) error {
	document, err := json.Marshal(inspection)
	if err != nil {
		return fmt.Errorf("failed to marshal inspection: %w", err)
	}

	query := `
		INSERT INTO inspections (id, original_proposal_id, status, version, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		inspection.ID,
		inspection.OriginalProposalID,
		inspection.Status,
		inspection.Version,
		document,
		inspection.CreatedAt,
		inspection.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inspection: %w", err)
	}

	return nil
}

func (r *InspectionRepository) GetByID(ctx context.Context, id string) (*models.PostInspection, error) {
	return r.getByColumn(ctx, "id", id)
}

func (r *InspectionRepository) GetByProposalID(ctx context.Context, proposalID string) (*models.PostInspection, error) {
	return r.getByColumn(ctx, "original_proposal_id", proposalID)
}

func (r *InspectionRepository) getByColumn(ctx context.Context, column, value string) (*models.PostInspection, error) {
	query := `SELECT document FROM inspections WHERE ` + column + ` = $1`

	var document []byte

	err := r.db.QueryRowContext(ctx, query, value).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewInspectionError("GetBy"+column, value, persistence.ErrInspectionNotFound)
		}

		return nil, fmt.Errorf("failed to query inspection: %w", err)
	}

	var inspection models.PostInspection
	if err := json.Unmarshal(document, &inspection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inspection %s: %w", value, err)
	}

	return &inspection, nil
}

func (r *InspectionRepository) List(ctx context.Context) ([]*models.PostInspection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT document FROM inspections ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inspections: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	inspections := make([]*models.PostInspection, 0)

	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan inspection: %w", err)
		}

		var inspection models.PostInspection
		if err := json.Unmarshal(document, &inspection); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inspection: %w", err)
		}

		inspections = append(inspections, &inspection)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating inspections: %w", err)
	}

	return inspections, nil
}

func (r *InspectionRepository) Update(ctx context.Context, id string, expectedVersion int64, mutate persistence.MutateInspection) (*models.PostInspection, error) {
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
		`SELECT document FROM inspections WHERE id = $1 FOR UPDATE`, id,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewInspectionError("Update", id, persistence.ErrInspectionNotFound)
		}

		return nil, fmt.Errorf("failed to lock inspection %s: %w", id, err)
	}

	var inspection models.PostInspection
	if err = json.Unmarshal(document, &inspection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inspection %s: %w", id, err)
	}

	if expectedVersion >= 0 && inspection.Version != expectedVersion {
		err = persistence.NewInspectionError("Update", id, persistence.ErrVersionConflict)

		return nil, err
	}

	if err = mutate(&inspection); err != nil {
		return nil, err
	}

	inspection.Version++
	inspection.UpdatedAt = time.Now().UTC()

	document, err = json.Marshal(&inspection)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inspection %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE inspections SET status = $1, version = $2, document = $3, updated_at = $4 WHERE id = $5`,
		inspection.Status,
		inspection.Version,
		document,
		inspection.UpdatedAt,
		inspection.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update inspection %s: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit inspection update: %w", err)
	}

	return &inspection, nil
}

func (r *InspectionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM inspections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete inspection %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}

	if affected == 0 {
		return persistence.NewInspectionError("Delete", id, persistence.ErrInspectionNotFound)
	}

	return nil
}
