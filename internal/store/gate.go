package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// ApprovalGate is a handle on one gate's persisted record. The record is
// re-read from the store on every call so an out-of-band approval from
// another process is always observed; the handle itself holds no state
// beyond its keys.
type ApprovalGate struct {
	spec       schema.GateSpec
	workflowID string
	store      Store
	log        *slog.Logger
}

// NewGate builds a handle for the gate declared by spec within the given
// workflow.
func NewGate(spec schema.GateSpec, workflowID string, st Store, log *slog.Logger) *ApprovalGate {
	if log == nil {
		log = slog.Default()
	}
	return &ApprovalGate{spec: spec, workflowID: workflowID, store: st, log: log}
}

// GateID returns the gate's effective identifier.
func (g *ApprovalGate) GateID() string { return g.spec.EffectiveID() }

// Name returns the gate's display name.
func (g *ApprovalGate) Name() string { return g.spec.EffectiveName() }

// CheckApproved reports whether the gate has been approved. The first
// consultation stamps the creation time and owning step, persists the
// pending record, and reports false: first sight of a gate always pauses
// the run, even when an early approval already flipped the status.
func (g *ApprovalGate) CheckApproved(ctx context.Context, stepID string) (bool, error) {
	state, err := g.load(ctx)
	if err != nil {
		return false, err
	}
	if !state.Seen() {
		state.CreatedAt = nowUTC()
		state.StepID = stepID
		if err := g.store.SaveGate(ctx, state); err != nil {
			return false, err
		}
		return false, nil
	}
	return state.Status == schema.GateStatusApproved, nil
}

// Approve marks the gate approved and persists it. An empty approvedBy
// is recorded as "user". A rejected gate must be reset before it can be
// approved.
func (g *ApprovalGate) Approve(ctx context.Context, approvedBy, reason string) (*schema.GateState, error) {
	state, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	if state.Status == schema.GateStatusRejected {
		return nil, schema.NewErrorf(schema.ErrCodeGate,
			"gate %q is rejected, reset it before approving", g.GateID())
	}
	if approvedBy == "" {
		approvedBy = "user"
	}
	state.Status = schema.GateStatusApproved
	state.ApprovedAt = nowUTC()
	state.ApprovedBy = approvedBy
	state.Reason = reason
	if err := g.store.SaveGate(ctx, state); err != nil {
		return nil, err
	}
	g.log.Info("gate approved",
		"workflow_id", g.workflowID, "gate_id", g.GateID(), "approved_by", approvedBy)
	return state, nil
}

// Reject marks the gate rejected and persists it. An approved gate must
// be reset before it can be rejected.
func (g *ApprovalGate) Reject(ctx context.Context, reason string) (*schema.GateState, error) {
	state, err := g.load(ctx)
	if err != nil {
		return nil, err
	}
	if state.Status == schema.GateStatusApproved {
		return nil, schema.NewErrorf(schema.ErrCodeGate,
			"gate %q is approved, reset it before rejecting", g.GateID())
	}
	state.Status = schema.GateStatusRejected
	state.RejectedAt = nowUTC()
	state.Reason = reason
	if err := g.store.SaveGate(ctx, state); err != nil {
		return nil, err
	}
	g.log.Info("gate rejected",
		"workflow_id", g.workflowID, "gate_id", g.GateID(), "reason", reason)
	return state, nil
}

// Reset returns the gate to pending and clears the creation stamp, so
// the next consultation pauses the run again as if the gate had never
// been seen.
func (g *ApprovalGate) Reset(ctx context.Context) error {
	state, err := g.load(ctx)
	if err != nil {
		return err
	}
	state.Status = schema.GateStatusPending
	state.CreatedAt = nil
	state.ApprovedAt = nil
	state.RejectedAt = nil
	state.ApprovedBy = ""
	state.Reason = ""
	return g.store.SaveGate(ctx, state)
}

// State returns the gate's current record without mutating it. When no
// record exists yet, an unsaved pending record is returned.
func (g *ApprovalGate) State(ctx context.Context) (*schema.GateState, error) {
	return g.load(ctx)
}

func (g *ApprovalGate) load(ctx context.Context) (*schema.GateState, error) {
	state, err := g.store.LoadGate(ctx, g.workflowID, g.GateID())
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &schema.GateState{
			GateID:     g.GateID(),
			WorkflowID: g.workflowID,
			Name:       g.Name(),
			Status:     schema.GateStatusPending,
		}
	}
	return state, nil
}

func nowUTC() *time.Time {
	t := time.Now().UTC()
	return &t
}
