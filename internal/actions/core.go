package actions

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// --- echo ---

// EchoAction writes a message to its configured output.
type EchoAction struct {
	out io.Writer
}

// NewEchoAction creates the echo action. A nil writer falls back to
// stdout.
func NewEchoAction(out io.Writer) *EchoAction {
	if out == nil {
		out = os.Stdout
	}
	return &EchoAction{out: out}
}

func (a *EchoAction) Name() string     { return "echo" }
func (a *EchoAction) Describe() string { return "Write a message to the configured output" }

func (a *EchoAction) Execute(_ context.Context, params map[string]any) (Result, error) {
	message := stringParam(params, "message", "")
	fmt.Fprintln(a.out, message)
	return Result{"status": StatusSuccess, "output": message}, nil
}

// --- sleep ---

// SleepAction pauses execution for a number of seconds.
type SleepAction struct{}

func (a *SleepAction) Name() string     { return "sleep" }
func (a *SleepAction) Describe() string { return "Pause execution for a number of seconds" }

func (a *SleepAction) Execute(ctx context.Context, params map[string]any) (Result, error) {
	seconds := floatParam(params, "seconds", 1)
	if seconds < 0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "sleep: seconds must be non-negative, got %v", seconds)
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, schema.NewError(schema.ErrCodeExecution, "sleep: interrupted").WithCause(ctx.Err())
	}

	return Result{"status": StatusSuccess, "duration": seconds}, nil
}

// --- set_variable ---

// SetVariableAction signals a runtime variable binding. The action is
// pure: the orchestrator applies the binding via VariableWriter.
type SetVariableAction struct{}

func (a *SetVariableAction) Name() string     { return "set_variable" }
func (a *SetVariableAction) Describe() string { return "Bind a value to a runtime variable" }

func (a *SetVariableAction) Execute(_ context.Context, params map[string]any) (Result, error) {
	name := stringParam(params, "name", "")
	if name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "set_variable: missing required param 'name'")
	}
	return Result{"status": StatusSuccess, "variable": name, "value": params["value"]}, nil
}

// Bindings reports the variable binding the orchestrator should apply.
func (a *SetVariableAction) Bindings(params map[string]any, res Result) map[string]any {
	name := stringParam(params, "name", "")
	if name == "" || res.Status() != StatusSuccess {
		return nil
	}
	return map[string]any{name: params["value"]}
}
