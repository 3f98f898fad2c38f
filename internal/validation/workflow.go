package validation

import "github.com/CCAgentOrg/nanobot-skills/pkg/schema"

// WorkflowValidator runs the two-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (id uniqueness, path safety, action registration)
type WorkflowValidator struct {
	jsonSchema *JSONSchemaValidator
	actions    ActionLookup
}

// NewWorkflowValidator creates a WorkflowValidator.
// lookup may be nil to skip action existence checks.
func NewWorkflowValidator(lookup ActionLookup) (*WorkflowValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &WorkflowValidator{
		jsonSchema: jsv,
		actions:    lookup,
	}, nil
}

// Validate runs both stages and returns an aggregated result.
// Structural errors short-circuit: the semantic stage is skipped.
func (wv *WorkflowValidator) Validate(def *schema.WorkflowDefinition) *schema.ValidationResult {
	if def == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeDefinition, "workflow definition is nil")
		return r
	}

	result := validateStructural(wv.jsonSchema, def)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(def, wv.actions))
	return result
}

// ValidateDefinition satisfies the Validator interface.
func (wv *WorkflowValidator) ValidateDefinition(def *schema.WorkflowDefinition) error {
	return wv.Validate(def).ToError()
}

// ValidateDocument checks a raw definition document against the JSON
// Schema before struct binding.
func (wv *WorkflowValidator) ValidateDocument(doc any) error {
	return wv.jsonSchema.ValidateDocument(doc)
}

// validateStructural wraps JSONSchemaValidator.ValidateDefinition,
// converting its error output into ValidationResult.
func validateStructural(v *JSONSchemaValidator, def *schema.WorkflowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateDefinition(def)
	if err == nil {
		return result
	}

	lerr, ok := err.(*schema.LobsterError)
	if !ok {
		result.AddError("/", schema.ErrCodeDefinition, err.Error())
		return result
	}

	if lerr.Details != nil {
		if violations, ok := lerr.Details["violations"].([]string); ok {
			for _, violation := range violations {
				result.AddError("/", schema.ErrCodeDefinition, violation)
			}
			return result
		}
	}
	result.AddError("/", schema.ErrCodeDefinition, lerr.Message)
	return result
}
