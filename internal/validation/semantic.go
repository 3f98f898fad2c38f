package validation

import (
	"fmt"
	"strings"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// validateSemantic performs the checks JSON Schema cannot express:
// effective step id uniqueness, identifier path safety, action
// registration, and gates shared between steps.
func validateSemantic(def *schema.WorkflowDefinition, lookup ActionLookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if !pathSafe(def.ID) {
		result.AddError("id", schema.ErrCodeDefinition,
			fmt.Sprintf("workflow id %q is not usable as a state key", def.ID))
	}

	// Uniqueness runs on effective ids so an explicit "step_1" colliding
	// with a synthesized positional id is caught too.
	seen := make(map[string]int, len(def.Steps))
	gates := make(map[string]int, len(def.Steps))

	for i := range def.Steps {
		step := &def.Steps[i]
		path := fmt.Sprintf("steps[%d]", i)
		id := step.EffectiveID(i)

		if first, dup := seen[id]; dup {
			result.AddError(path+".id", schema.ErrCodeDefinition,
				fmt.Sprintf("step id %q already used by steps[%d]", id, first))
		} else {
			seen[id] = i
		}

		if lookup != nil && step.Action != "" && !lookup.Has(step.Action) {
			result.AddError(path+".action", schema.ErrCodeUnknownAction,
				fmt.Sprintf("action %q not registered", step.Action))
		}

		if step.Gate != nil {
			gateID := step.Gate.EffectiveID()
			if !pathSafe(gateID) {
				result.AddError(path+".gate.id", schema.ErrCodeDefinition,
					fmt.Sprintf("gate id %q is not usable as a state key", gateID))
			}
			if first, dup := gates[gateID]; dup {
				result.AddWarning(path+".gate.id", schema.ErrCodeDefinition,
					fmt.Sprintf("gate %q is shared with steps[%d], one approval opens both", gateID, first))
			} else {
				gates[gateID] = i
			}
		}
	}

	return result
}

// pathSafe reports whether an identifier can be embedded in a state file
// name without escaping the state directory.
func pathSafe(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\")
}
