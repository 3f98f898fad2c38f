package validation

import "github.com/CCAgentOrg/nanobot-skills/pkg/schema"

// Validator checks workflow definitions for correctness before execution.
type Validator interface {
	ValidateDefinition(def *schema.WorkflowDefinition) error
}

// ActionLookup reports whether an action identifier is registered.
// *actions.Registry satisfies it.
type ActionLookup interface {
	Has(name string) bool
}
