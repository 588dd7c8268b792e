package services

import (
	"context"
	"fmt"

	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/persistence"
)

// Roles exposes the live role configuration. It implements
// authz.RoleProvider, so the permission gate always sees the stored
// assignments without an extra caching layer.
type Roles struct {
	persistence persistence.Persistence
}

func NewRoles(persist persistence.Persistence) *Roles {
	return &Roles{persistence: persist}
}

// Assignments satisfies authz.RoleProvider.
func (s *Roles) Assignments(ctx context.Context) (*models.RoleConfig, error) {
	return s.persistence.RoleRepository().Get(ctx)
}

// Get returns the current configuration.
func (s *Roles) Get(ctx context.Context) (*models.RoleConfig, error) {
	return s.persistence.RoleRepository().Get(ctx)
}

// Save replaces the configuration. Admin only; the existing admin list is
// consulted, and an actor carrying the admin flag may bootstrap an empty
// store.
func (s *Roles) Save(ctx context.Context, config *models.RoleConfig, actor models.Actor) error {
	current, err := s.persistence.RoleRepository().Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load role configuration: %w", err)
	}

	if !actor.Admin && !current.IsAdmin(actor.Email) {
		return fmt.Errorf("%w: configure roles by %s", ErrPermissionDenied, actor.Email)
	}

	return s.persistence.RoleRepository().Save(ctx, config)
}
