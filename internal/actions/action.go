package actions

import (
	"context"
	"encoding/json"
)

// Result status values observed at the action boundary. The engine
// records results verbatim and interprets no field beyond "status".
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusError     = "error"
	StatusApproved  = "approved"
	StatusCancelled = "cancelled"
)

// Result is the mapping an action reports for a step. It always carries
// a "status" field; everything else is action-specific data.
type Result map[string]any

// Status returns the result's status field, or "" when absent.
func (r Result) Status() string {
	s, _ := r["status"].(string)
	return s
}

// Action is an executable unit of work within a workflow step.
type Action interface {
	Name() string
	Describe() string
	Execute(ctx context.Context, params map[string]any) (Result, error)
}

// VariableWriter is an optional interface for actions whose result binds
// runtime variables. The orchestrator, not the action, writes the
// returned bindings into the run state after recording the step.
type VariableWriter interface {
	Bindings(params map[string]any, res Result) map[string]any
}

// ActionInfo is a summary of a registered action for listing.
type ActionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// errorResult wraps a launch or transport failure as an error-status
// result. These are recorded step data, not run faults.
func errorResult(err error) Result {
	return Result{"status": StatusError, "error": err.Error()}
}

// --- Param helpers used by all action files ---

func stringParam(m map[string]any, key, defaultVal string) string {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func boolParam(m map[string]any, key string, defaultVal bool) bool {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

func floatParam(m map[string]any, key string, defaultVal float64) float64 {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return defaultVal
		}
		return f
	default:
		return defaultVal
	}
}

func stringMapParam(m map[string]any, key string) map[string]string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	result := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	return result
}
