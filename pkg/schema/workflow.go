package schema

import "fmt"

// WorkflowDefinition is the parsed workflow format. Embedders provide it
// directly, the definition loader produces it from YAML/JSON documents,
// and agents pass it inline via lobster.run.
type WorkflowDefinition struct {
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	Steps       []Step         `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// Step describes a single step in a workflow.
type Step struct {
	ID     string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name   string         `json:"name,omitempty" yaml:"name,omitempty"`
	Action string         `json:"action" yaml:"action"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Gate   *GateSpec      `json:"gate,omitempty" yaml:"gate,omitempty"`
}

// GateSpec declares an approval gate guarding a step.
type GateSpec struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// EffectiveID returns the step's identifier, synthesizing a positional
// one (zero-based) when the definition omits it.
func (s Step) EffectiveID(index int) string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("step_%d", index)
}

// EffectiveName returns the step's display name, falling back to the
// effective identifier.
func (s Step) EffectiveName(index int) string {
	if s.Name != "" {
		return s.Name
	}
	return s.EffectiveID(index)
}

// EffectiveID returns the gate's identifier, defaulting to "gate" when
// the definition omits it.
func (g GateSpec) EffectiveID() string {
	if g.ID != "" {
		return g.ID
	}
	return "gate"
}

// EffectiveName returns the gate's display name, falling back to the
// effective identifier.
func (g GateSpec) EffectiveName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.EffectiveID()
}

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusNotStarted       RunStatus = "not_started"
	RunStatusRunning          RunStatus = "running"
	RunStatusAwaitingApproval RunStatus = "awaiting_approval"
	RunStatusCompleted        RunStatus = "completed"
	RunStatusFailed           RunStatus = "failed"
)

// GateStatus represents the approval state of a gate.
type GateStatus string

const (
	GateStatusPending  GateStatus = "pending"
	GateStatusApproved GateStatus = "approved"
	GateStatusRejected GateStatus = "rejected"
)
