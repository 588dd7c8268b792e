// Package file provides file-based persistence for records, inspections, and
// the role configuration. One JSON document per entity, mirroring a document
// store; intended for development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/assetflow-io/assetflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file
// system.
type Persistence struct {
	root           string
	recordRepo     *RecordRepository
	inspectionRepo *InspectionRepository
	roleRepo       *RoleRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		recordRepo:     NewRecordRepository(cleanRoot),
		inspectionRepo: NewInspectionRepository(cleanRoot),
		roleRepo:       NewRoleRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) RecordRepository() persistence.RecordRepository {
	return fp.recordRepo
}

func (fp *Persistence) InspectionRepository() persistence.InspectionRepository {
	return fp.inspectionRepo
}

func (fp *Persistence) RoleRepository() persistence.RoleRepository {
	return fp.roleRepo
}
