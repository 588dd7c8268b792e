package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/assetflow-io/assetflow/pkg/models"
)

// RoleRepository keeps the whole role configuration in a single
// settings file. A missing file yields an empty configuration so a
// fresh store is usable without seeding.
type RoleRepository struct {
	root string
	mu   sync.Mutex
}

func NewRoleRepository(root string) *RoleRepository {
	return &RoleRepository{root: root}
}

func (rr *RoleRepository) path() string {
	return filepath.Join(rr.root, "settings", "roles.json")
}

func (rr *RoleRepository) Get(ctx context.Context) (*models.RoleConfig, error) {
	data, err := os.ReadFile(rr.path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewRoleConfig(), nil
		}

		return nil, fmt.Errorf("failed to read role configuration: %w", err)
	}

	var config models.RoleConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to decode role configuration: %w", err)
	}

	return &config, nil
}

func (rr *RoleRepository) Save(ctx context.Context, config *models.RoleConfig) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(rr.path()), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode role configuration: %w", err)
	}

	if err := os.WriteFile(rr.path(), data, fileMode); err != nil {
		return fmt.Errorf("failed to write role configuration: %w", err)
	}

	return nil
}
