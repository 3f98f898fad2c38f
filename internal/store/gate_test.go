package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

func newTestGate(t *testing.T) (*ApprovalGate, *FileStore) {
	t.Helper()
	s := newFileStore(t)
	spec := schema.GateSpec{ID: "deploy-approval", Name: "Deploy approval"}
	return NewGate(spec, "demo", s, nil), s
}

func TestApprovalGate_CheckApproved_FirstSightPauses(t *testing.T) {
	g, s := newTestGate(t)
	ctx := context.Background()

	ok, err := g.CheckApproved(ctx, "step_2")
	require.NoError(t, err)
	assert.False(t, ok)

	state, err := s.LoadGate(ctx, "demo", "deploy-approval")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, schema.GateStatusPending, state.Status)
	assert.Equal(t, "step_2", state.StepID)
	require.NotNil(t, state.CreatedAt)
}

func TestApprovalGate_CheckApproved_DoesNotResetCreation(t *testing.T) {
	g, s := newTestGate(t)
	ctx := context.Background()

	ok, err := g.CheckApproved(ctx, "step_2")
	require.NoError(t, err)
	assert.False(t, ok)

	first, err := s.LoadGate(ctx, "demo", "deploy-approval")
	require.NoError(t, err)

	ok, err = g.CheckApproved(ctx, "step_2")
	require.NoError(t, err)
	assert.False(t, ok)

	second, err := s.LoadGate(ctx, "demo", "deploy-approval")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestApprovalGate_ApproveThenCheck(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	_, err := g.CheckApproved(ctx, "step_2")
	require.NoError(t, err)

	state, err := g.Approve(ctx, "alice", "looks good")
	require.NoError(t, err)
	assert.Equal(t, schema.GateStatusApproved, state.Status)
	assert.Equal(t, "alice", state.ApprovedBy)
	assert.Equal(t, "looks good", state.Reason)
	require.NotNil(t, state.ApprovedAt)

	ok, err := g.CheckApproved(ctx, "step_2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApprovalGate_Approve_DefaultsApprover(t *testing.T) {
	g, _ := newTestGate(t)

	state, err := g.Approve(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "user", state.ApprovedBy)
}

func TestApprovalGate_ApproveBeforeFirstSight_StillPausesOnce(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	// Approval lands before any run has reached the gate.
	state, err := g.Approve(ctx, "ops", "pre-cleared")
	require.NoError(t, err)
	assert.Nil(t, state.CreatedAt)

	// First consultation stamps the record and pauses regardless.
	ok, err := g.CheckApproved(ctx, "step_0")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.CheckApproved(ctx, "step_0")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApprovalGate_Reject(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	_, err := g.CheckApproved(ctx, "step_2")
	require.NoError(t, err)

	state, err := g.Reject(ctx, "not this release")
	require.NoError(t, err)
	assert.Equal(t, schema.GateStatusRejected, state.Status)
	assert.Equal(t, "not this release", state.Reason)
	require.NotNil(t, state.RejectedAt)

	ok, err := g.CheckApproved(ctx, "step_2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApprovalGate_Approve_AfterReject_Fails(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	_, err := g.Reject(ctx, "no")
	require.NoError(t, err)

	_, err = g.Approve(ctx, "alice", "")
	require.Error(t, err)
	var lerr *schema.LobsterError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, schema.ErrCodeGate, lerr.Code)
}

func TestApprovalGate_Reject_AfterApprove_Fails(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	_, err := g.Approve(ctx, "alice", "")
	require.NoError(t, err)

	_, err = g.Reject(ctx, "changed my mind")
	require.Error(t, err)
	var lerr *schema.LobsterError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, schema.ErrCodeGate, lerr.Code)
}

func TestApprovalGate_Reset(t *testing.T) {
	g, s := newTestGate(t)
	ctx := context.Background()

	_, err := g.CheckApproved(ctx, "step_2")
	require.NoError(t, err)
	_, err = g.Approve(ctx, "alice", "ship it")
	require.NoError(t, err)

	require.NoError(t, g.Reset(ctx))

	state, err := s.LoadGate(ctx, "demo", "deploy-approval")
	require.NoError(t, err)
	assert.Equal(t, schema.GateStatusPending, state.Status)
	assert.Nil(t, state.CreatedAt)
	assert.Nil(t, state.ApprovedAt)
	assert.Empty(t, state.ApprovedBy)
	assert.Empty(t, state.Reason)
	// The owning step survives a reset.
	assert.Equal(t, "step_2", state.StepID)

	// The gate pauses again as if never seen.
	ok, err := g.CheckApproved(ctx, "step_2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApprovalGate_State_UnsavedPendingView(t *testing.T) {
	g, s := newTestGate(t)
	ctx := context.Background()

	state, err := g.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.GateStatusPending, state.Status)
	assert.Equal(t, "deploy-approval", state.GateID)
	assert.Equal(t, "Deploy approval", state.Name)

	// Viewing the state must not create a record.
	persisted, err := s.LoadGate(ctx, "demo", "deploy-approval")
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestApprovalGate_DefaultSpecIdentifiers(t *testing.T) {
	s := newFileStore(t)
	g := NewGate(schema.GateSpec{}, "demo", s, nil)
	assert.Equal(t, "gate", g.GateID())
	assert.Equal(t, "gate", g.Name())
}
