package actions

import (
	"context"

	"github.com/CCAgentOrg/nanobot-skills/internal/expressions"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// AssertAction checks a CEL condition over an explicit environment. The
// condition references the env param through the `vars` scope, e.g.
// `vars.status_code == 200`. A false condition is a fault by default; a
// step with `fatal: false` records a failed result instead and the run
// continues.
type AssertAction struct {
	engine *expressions.CELEngine
}

// NewAssertAction creates the assert action.
func NewAssertAction() (*AssertAction, error) {
	engine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &AssertAction{engine: engine}, nil
}

func (a *AssertAction) Name() string     { return "assert" }
func (a *AssertAction) Describe() string { return "Check a CEL condition over an explicit environment" }

func (a *AssertAction) Execute(ctx context.Context, params map[string]any) (Result, error) {
	condition := stringParam(params, "condition", "")
	if condition == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "assert: missing required param 'condition'")
	}

	env, _ := params["env"].(map[string]any)

	value, err := a.engine.Evaluate(ctx, condition, env)
	if err != nil {
		return nil, err
	}

	pass, ok := value.(bool)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"assert: condition %q evaluated to %T, want bool", condition, value)
	}

	if pass {
		return Result{"status": StatusSuccess, "pass": true}, nil
	}

	message := stringParam(params, "message", "assertion failed")
	if boolParam(params, "fatal", true) {
		return nil, schema.NewError(schema.ErrCodeAssertionFailed, message).
			WithDetails(map[string]any{"condition": condition})
	}
	return Result{"status": StatusFailed, "pass": false, "message": message}, nil
}
