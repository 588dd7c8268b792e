package authz

import (
	"context"
	"testing"
	"time"

	"github.com/assetflow-io/assetflow/pkg/models"
	"github.com/assetflow-io/assetflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoleConfig() *models.RoleConfig {
	config := models.NewRoleConfig()
	config.Admins = []string{"admin@plant.vn"}
	config.Assign(models.EntityTypeTransfer, workflow.RoleSender, []string{"sender@plant.vn"})
	config.Assign(models.EntityTypeTransfer, workflow.RoleReceiver, []string{"receiver@plant.vn"})
	config.Assign(models.EntityTypeTransfer, workflow.RoleAdminHC, []string{"hc@plant.vn"})
	config.Assign(models.EntityTypeProposal, workflow.RoleMaintenance, []string{"bt@plant.vn"})
	config.Assign(models.EntityTypeProposal, workflow.RoleViceDirector, []string{"pgd@plant.vn"})

	return config
}

func newGate() *Gate {
	return NewGate(StaticRoleProvider{Config: testRoleConfig()})
}

func pendingTransfer() *models.Record {
	return &models.Record{
		ID:         "t-1",
		EntityType: models.EntityTypeTransfer,
		Status:     "PENDING_SENDER",
		Creator:    models.Actor{Name: "Creator", Email: "creator@plant.vn"},
		Signatures: map[string]*models.Signature{},
	}
}

func TestGate_StageRoleGating(t *testing.T) {
	t.Parallel()

	gate := newGate()
	record := pendingTransfer()

	ok, err := gate.CanAct(context.Background(), ActionApprove, record, models.Actor{Email: "sender@plant.vn"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.CanAct(context.Background(), ActionApprove, record, models.Actor{Email: "receiver@plant.vn"})
	require.NoError(t, err)
	assert.False(t, ok, "receiver cannot sign before the sender stage is done")

	record.Signatures["sender"] = &models.Signature{ActorEmail: "sender@plant.vn", SignedAt: time.Now()}

	ok, err = gate.CanAct(context.Background(), ActionApprove, record, models.Actor{Email: "receiver@plant.vn"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_AdminBypass(t *testing.T) {
	t.Parallel()

	gate := newGate()
	record := pendingTransfer()

	ok, err := gate.CanAct(context.Background(), ActionApprove, record, models.Actor{Email: "admin@plant.vn"})
	require.NoError(t, err)
	assert.True(t, ok)

	// Coarse admin flag from the identity provider works too.
	ok, err = gate.CanAct(context.Background(), ActionApprove, record, models.Actor{Email: "other@plant.vn", Admin: true})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGate_DeleteAsymmetry(t *testing.T) {
	t.Parallel()

	gate := newGate()

	t.Run("creator may delete before any approval", func(t *testing.T) {
		t.Parallel()

		ok, err := gate.CanAct(context.Background(), ActionDelete, pendingTransfer(), models.Actor{Email: "creator@plant.vn"})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("creator may not delete once approved", func(t *testing.T) {
		t.Parallel()

		record := pendingTransfer()
		record.Signatures["sender"] = &models.Signature{ActorEmail: "sender@plant.vn", SignedAt: time.Now()}

		ok, err := gate.CanAct(context.Background(), ActionDelete, record, models.Actor{Email: "creator@plant.vn"})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = gate.CanAct(context.Background(), ActionDelete, record, models.Actor{Email: "admin@plant.vn"})
		require.NoError(t, err)
		assert.True(t, ok, "admin may still delete an approved record")
	})

	t.Run("non-creator non-admin may never delete", func(t *testing.T) {
		t.Parallel()

		ok, err := gate.CanAct(context.Background(), ActionDelete, pendingTransfer(), models.Actor{Email: "stranger@plant.vn"})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGate_ProposalCreatorGatedStage(t *testing.T) {
	t.Parallel()

	gate := newGate()

	record := &models.Record{
		ID:         "p-1",
		EntityType: models.EntityTypeProposal,
		Creator:    models.Actor{Name: "Proposer", Email: "dx@plant.vn"},
		Payload: map[string]any{
			workflow.FieldMaintenanceOpinion:  "replace belt",
			workflow.FieldEstimatedCompletion: "2026-09-20",
		},
		Signatures: map[string]*models.Signature{
			"opinion":     {ActorEmail: "bt@plant.vn", SignedAt: time.Now()},
			"approval":    {ActorEmail: "pgd@plant.vn", SignedAt: time.Now()},
			"maintenance": {ActorEmail: "bt@plant.vn", SignedAt: time.Now()},
		},
	}

	ok, err := gate.CanAct(context.Background(), ActionApprove, record, models.Actor{Email: "dx@plant.vn"})
	require.NoError(t, err)
	assert.True(t, ok, "proposer confirmation is identity-gated, not role-gated")

	ok, err = gate.CanAct(context.Background(), ActionApprove, record, models.Actor{Email: "bt@plant.vn"})
	require.NoError(t, err)
	assert.False(t, ok, "maintenance crew cannot confirm on the proposer's behalf")
}

func TestGate_RejectIsStageGatedOnly(t *testing.T) {
	t.Parallel()

	gate := newGate()
	record := pendingTransfer()

	// Transfers cannot actually be rejected; the executor answers that with
	// an invalid-transition error. The gate only decides who may ask.
	ok, err := gate.CanAct(context.Background(), ActionReject, record, models.Actor{Email: "sender@plant.vn"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.CanAct(context.Background(), ActionReject, record, models.Actor{Email: "receiver@plant.vn"})
	require.NoError(t, err)
	assert.False(t, ok, "only the current stage holder may raise a rejection")
}

func TestGate_ConfigureRolesAdminOnly(t *testing.T) {
	t.Parallel()

	gate := newGate()

	ok, err := gate.CanAct(context.Background(), ActionConfigure, nil, models.Actor{Email: "admin@plant.vn"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.CanAct(context.Background(), ActionConfigure, nil, models.Actor{Email: "creator@plant.vn"})
	require.NoError(t, err)
	assert.False(t, ok)
}
