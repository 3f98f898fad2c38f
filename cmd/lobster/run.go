package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/CCAgentOrg/nanobot-skills/internal/actions"
	"github.com/CCAgentOrg/nanobot-skills/internal/engine"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

var resumeFlag bool

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Run a workflow from the beginning",
	Long: `Run starts the workflow fresh, replacing any prior run state for its
workflow id. Gate records are kept: a gate approved on an earlier run
stays approved until it is reset. Use --resume to continue from
persisted state instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd.Context(), args[0], resumeFlag)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <workflow-file>",
	Short: "Resume a paused or failed workflow from its persisted state",
	Long: `Resume loads the persisted run state and continues from the step the
workflow stopped at. A run paused at a gate only passes it once the
gate is approved; a failed run retries its failed step. Without prior
state, resume behaves like run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd.Context(), args[0], true)
	},
}

func init() {
	runCmd.Flags().BoolVar(&resumeFlag, "resume", false, "resume from persisted state instead of starting fresh")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runWorkflow(ctx context.Context, path string, resume bool) error {
	def, err := loadDefinition(path)
	if err != nil {
		return err
	}

	lock, err := acquireLock(def.ID)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	reg, err := newRegistry(actions.BuiltinConfig{})
	if err != nil {
		return err
	}

	orc, err := engine.New(def, engine.Config{Store: st, Registry: reg, Logger: logger})
	if err != nil {
		return err
	}

	var state *schema.RunState
	if resume {
		state, err = orc.Resume(ctx)
	} else {
		state, err = orc.Run(ctx)
	}
	if err != nil {
		return err
	}

	return reportRunState(state, path)
}

// acquireLock takes the per-workflow file lock that serializes run and
// resume invocations against the same state directory.
func acquireLock(workflowID string) (*flock.Flock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(stateDir, workflowID+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("workflow %q is already being run by another process", workflowID)
	}
	return lock, nil
}

// reportRunState prints the outcome of a run or resume. A paused run
// gets the approve and resume commands to issue next.
func reportRunState(state *schema.RunState, path string) error {
	if jsonOut {
		return printJSON(state)
	}

	fmt.Printf("workflow: %s\n", state.WorkflowID)
	fmt.Printf("run:      %s\n", state.RunID)
	fmt.Printf("status:   %s\n", state.Status)
	fmt.Printf("steps:    %d completed\n", len(state.CompletedSteps))

	if state.Status == schema.RunStatusAwaitingApproval {
		for gateID, gateStatus := range state.GateStates {
			if gateStatus == schema.GateStatusApproved {
				continue
			}
			fmt.Printf("gate:     %s (%s)\n", gateID, gateStatus)
			fmt.Println()
			fmt.Printf("approve with:  lobster approve %s %s\n", state.WorkflowID, gateID)
			fmt.Printf("then resume:   lobster resume %s\n", path)
		}
	}
	return nil
}
