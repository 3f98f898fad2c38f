package engine

import (
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// ValidTransitions defines the allowed run status transitions. A failed
// run may re-enter running so that a corrected definition or registry
// can resume from the persisted position.
var ValidTransitions = map[schema.RunStatus][]schema.RunStatus{
	schema.RunStatusNotStarted:       {schema.RunStatusRunning},
	schema.RunStatusRunning:          {schema.RunStatusAwaitingApproval, schema.RunStatusCompleted, schema.RunStatusFailed},
	schema.RunStatusAwaitingApproval: {schema.RunStatusRunning},
	schema.RunStatusFailed:           {schema.RunStatusRunning},
	schema.RunStatusCompleted:        {},
}

// transition applies a status change to state after validating it
// against the table. A from==to change is a no-op.
func transition(state *schema.RunState, to schema.RunStatus) error {
	from := state.Status
	if from == to {
		return nil
	}
	if !isValidTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeExecution,
			"invalid run status transition: %s -> %s", from, to).
			WithDetails(map[string]any{"from": string(from), "to": string(to)})
	}
	state.Status = to
	return nil
}

func isValidTransition(from, to schema.RunStatus) bool {
	for _, allowed := range ValidTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
