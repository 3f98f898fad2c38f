package actions

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// ShellConfig configures the shell action.
type ShellConfig struct {
	// Shell is the interpreter invoked with -c. Empty means /bin/sh.
	Shell string
}

// ShellAction runs a command line through the system shell.
type ShellAction struct {
	cfg ShellConfig
}

// NewShellAction creates the shell action.
func NewShellAction(cfg ShellConfig) *ShellAction {
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	return &ShellAction{cfg: cfg}
}

func (a *ShellAction) Name() string     { return "shell" }
func (a *ShellAction) Describe() string { return "Execute a command through the system shell" }

// Execute runs the command synchronously. A non-zero exit is a failed
// result, not a fault; inability to launch is an error result.
func (a *ShellAction) Execute(ctx context.Context, params map[string]any) (Result, error) {
	command := stringParam(params, "command", "")
	capture := boolParam(params, "capture_output", true)

	cmd := exec.CommandContext(ctx, a.cfg.Shell, "-c", command)

	var stdout, stderr bytes.Buffer
	if capture {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// Launch failure (interpreter missing, ctx cancelled before start).
			return errorResult(runErr), nil
		}
		exitCode = exitErr.ExitCode()
	}

	status := StatusSuccess
	if exitCode != 0 {
		status = StatusFailed
	}

	return Result{
		"status":      status,
		"return_code": exitCode,
		"output":      stdout.String(),
		"error":       stderr.String(),
	}, nil
}
