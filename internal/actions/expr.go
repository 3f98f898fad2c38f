package actions

import (
	"context"

	"github.com/CCAgentOrg/nanobot-skills/internal/expressions"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// ExprActions returns the expression evaluation actions.
func ExprActions() []Action {
	return []Action{
		&EvalAction{engine: expressions.NewExprEngine()},
		&JQAction{engine: expressions.NewGoJQEngine()},
	}
}

// --- eval ---

// EvalAction computes a value from an expr-lang expression. The env
// param is the expression environment; placeholder substitution is how
// runtime variables flow into it. With assign_to set, the computed value
// is bound to that runtime variable.
type EvalAction struct {
	engine *expressions.ExprEngine
}

func (a *EvalAction) Name() string     { return "eval" }
func (a *EvalAction) Describe() string { return "Evaluate an expression over an explicit environment" }

func (a *EvalAction) Execute(ctx context.Context, params map[string]any) (Result, error) {
	expression := stringParam(params, "expression", "")
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "eval: missing required param 'expression'")
	}

	env, _ := params["env"].(map[string]any)

	value, err := a.engine.Evaluate(ctx, expression, env)
	if err != nil {
		return nil, err
	}

	return Result{"status": StatusSuccess, "value": value}, nil
}

// Bindings binds the computed value when assign_to names a variable.
func (a *EvalAction) Bindings(params map[string]any, res Result) map[string]any {
	target := stringParam(params, "assign_to", "")
	if target == "" || res.Status() != StatusSuccess {
		return nil
	}
	return map[string]any{target: res["value"]}
}

// --- jq ---

// JQAction reshapes structured data with a jq program. The input param
// is the program's input object; with assign_to set, the program output
// is bound to that runtime variable.
type JQAction struct {
	engine *expressions.GoJQEngine
}

func (a *JQAction) Name() string     { return "jq" }
func (a *JQAction) Describe() string { return "Transform structured data with a jq program" }

func (a *JQAction) Execute(ctx context.Context, params map[string]any) (Result, error) {
	program := stringParam(params, "program", "")
	if program == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "jq: missing required param 'program'")
	}

	input, _ := params["input"].(map[string]any)

	value, err := a.engine.Evaluate(ctx, program, input)
	if err != nil {
		return nil, err
	}

	return Result{"status": StatusSuccess, "value": value}, nil
}

// Bindings binds the program output when assign_to names a variable.
func (a *JQAction) Bindings(params map[string]any, res Result) map[string]any {
	target := stringParam(params, "assign_to", "")
	if target == "" || res.Status() != StatusSuccess {
		return nil
	}
	return map[string]any{target: res["value"]}
}
