package models

import (
	"strings"
	"time"
)

// RoleConfig is the live-editable role assignment document: per entity type,
// a mapping of role key to member emails, plus a global admin list. It is
// persisted in the entity store and consulted by the permission gate through
// an injected provider.
type RoleConfig struct {
	Assignments map[EntityType]map[string][]string `json:"assignments"`
	Admins      []string                           `json:"admins"`
	UpdatedAt   time.Time                          `json:"updated_at"`
	Version     int64                              `json:"version"`
}

// NewRoleConfig returns an empty configuration with initialized maps.
func NewRoleConfig() *RoleConfig {
	return &RoleConfig{Assignments: make(map[EntityType]map[string][]string)}
}

// HasRole reports whether an email is assigned the role for an entity type.
// Email comparison is case-insensitive.
func (rc *RoleConfig) HasRole(entityType EntityType, role, email string) bool {
	if rc == nil || rc.Assignments == nil || email == "" {
		return false
	}

	members, ok := rc.Assignments[entityType][role]
	if !ok {
		return false
	}

	return containsFold(members, email)
}

// IsAdmin reports whether an email is in the global admin list.
func (rc *RoleConfig) IsAdmin(email string) bool {
	if rc == nil {
		return false
	}

	return containsFold(rc.Admins, email)
}

// Assign sets the member list for a role, replacing any previous list.
func (rc *RoleConfig) Assign(entityType EntityType, role string, emails []string) {
	if rc.Assignments == nil {
		rc.Assignments = make(map[EntityType]map[string][]string)
	}

	if rc.Assignments[entityType] == nil {
		rc.Assignments[entityType] = make(map[string][]string)
	}

	rc.Assignments[entityType][role] = emails
}

func containsFold(list []string, email string) bool {
	for _, member := range list {
		if strings.EqualFold(member, email) {
			return true
		}
	}

	return false
}
