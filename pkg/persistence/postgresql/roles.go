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
)

// RoleRepository stores the single role configuration row.
type RoleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRoleRepository creates a new role repository.
func NewRoleRepository(db *sql.DB, logger *slog.Logger) *RoleRepository {
	return &RoleRepository{db: db, logger: logger}
}

func (r *RoleRepository) Get(ctx context.Context) (*models.RoleConfig, error) {
	var document []byte

	err := r.db.QueryRowContext(ctx, `SELECT document FROM role_config WHERE id = 1`).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewRoleConfig(), nil
		}

		return nil, fmt.Errorf("failed to query role configuration: %w", err)
	}

	var config models.RoleConfig
	if err := json.Unmarshal(document, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role configuration: %w", err)
	}

	return &config, nil
}

func (r *RoleRepository) Save(ctx context.Context, config *models.RoleConfig) error {
	config.UpdatedAt = time.Now().UTC()

	document, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal role configuration: %w", err)
	}

	query := `
		INSERT INTO role_config (id, document, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, document, config.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save role configuration: %w", err)
	}

	return nil
}
