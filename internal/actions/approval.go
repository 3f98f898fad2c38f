package actions

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

// ApprovalConfig configures the manual_approval action's prompt I/O.
type ApprovalConfig struct {
	In  io.Reader
	Out io.Writer
}

// ManualApprovalAction prompts on the configured output and waits for a
// line of input. It is the inline alternative to a persisted gate: the
// confirmation lives in the result, not in the gate store.
type ManualApprovalAction struct {
	in  *bufio.Reader
	out io.Writer
}

// NewManualApprovalAction creates the manual_approval action. Nil reader
// and writer fall back to stdin and stdout.
func NewManualApprovalAction(cfg ApprovalConfig) *ManualApprovalAction {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &ManualApprovalAction{in: bufio.NewReader(cfg.In), out: cfg.Out}
}

func (a *ManualApprovalAction) Name() string     { return "manual_approval" }
func (a *ManualApprovalAction) Describe() string { return "Prompt for inline confirmation" }

func (a *ManualApprovalAction) Execute(ctx context.Context, params map[string]any) (Result, error) {
	prompt := stringParam(params, "prompt", "Please confirm to continue")

	fmt.Fprintf(a.out, "\n%s\n", prompt)
	fmt.Fprintln(a.out, "Press Enter to continue, or interrupt to cancel...")

	lines := make(chan error, 1)
	go func() {
		_, err := a.in.ReadString('\n')
		lines <- err
	}()

	select {
	case <-ctx.Done():
		return Result{"status": StatusCancelled, "prompt": prompt}, nil
	case err := <-lines:
		if err != nil && err != io.EOF {
			return nil, schema.NewError(schema.ErrCodeExecution, "manual_approval: reading input").WithCause(err)
		}
		if err == io.EOF {
			return nil, schema.NewError(schema.ErrCodeExecution, "manual_approval: input closed before confirmation")
		}
		return Result{"status": StatusApproved, "prompt": prompt}, nil
	}
}
