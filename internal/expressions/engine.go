package expressions

import "context"

// Engine evaluates expressions for the eval, jq, and assert actions.
// Three implementations: Expr (computed values), GoJQ (data reshaping),
// CEL (assertion conditions).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
