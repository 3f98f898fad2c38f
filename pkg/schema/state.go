package schema

import "time"

// RunState is the persisted representation of a workflow run. The
// orchestrator owns the in-memory copy; the state store owns the durable
// record. The record is rewritten after every state-changing transition,
// so on disk it always reflects the last completed step.
type RunState struct {
	WorkflowID     string                `json:"workflow_id"`
	RunID          string                `json:"run_id,omitempty"`
	Status         RunStatus             `json:"status"`
	StartedAt      *time.Time            `json:"started_at,omitempty"`
	CurrentStep    int                   `json:"current_step"`
	CompletedSteps []StepRecord          `json:"completed_steps"`
	Variables      map[string]any        `json:"variables"`
	GateStates     map[string]GateStatus `json:"gate_states"`
	PausedAt       *time.Time            `json:"paused_at,omitempty"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
	FailedAt       *time.Time            `json:"failed_at,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// StepRecord is the durable record of one completed step.
type StepRecord struct {
	StepID      string         `json:"step_id"`
	Name        string         `json:"name"`
	CompletedAt time.Time      `json:"completed_at"`
	Result      map[string]any `json:"result,omitempty"`
}

// GateState is the persisted approval record of a single gate. Gates are
// re-read from the store on every consultation and never held by value
// across calls, so an out-of-band approval is always observed.
type GateState struct {
	GateID     string     `json:"gate_id"`
	WorkflowID string     `json:"workflow_id"`
	Name       string     `json:"name"`
	Status     GateStatus `json:"status"`
	StepID     string     `json:"step_id,omitempty"`
	CreatedAt  *time.Time `json:"created_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// Seen reports whether the gate has been reached by a run at least once.
// The creation timestamp is stamped on first consultation, so an unset
// value means no run has paused on this gate yet.
func (g *GateState) Seen() bool {
	return g.CreatedAt != nil
}
