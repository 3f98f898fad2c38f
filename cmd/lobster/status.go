package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CCAgentOrg/nanobot-skills/internal/store"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

var resetGates bool

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Show the persisted run state of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		state, err := st.LoadRun(ctx, args[0])
		if err != nil {
			return err
		}
		if state == nil {
			state = &schema.RunState{WorkflowID: args[0], Status: schema.RunStatusNotStarted}
		}

		if jsonOut {
			return printJSON(state)
		}
		printStatus(state)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <workflow-id>",
	Short: "Delete a workflow's run state",
	Long: `Reset deletes the persisted run state so the next run starts from step
zero. Gate records survive a reset; pass --gates to also return every
gate of the workflow to pending.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		workflowID := args[0]

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.DeleteRun(ctx, workflowID); err != nil {
			return err
		}
		fmt.Printf("run state of %q deleted\n", workflowID)

		if !resetGates {
			return nil
		}
		gates, err := st.ListGates(ctx, workflowID)
		if err != nil {
			return err
		}
		for _, g := range gates {
			gate := store.NewGate(schema.GateSpec{ID: g.GateID}, workflowID, st, logger)
			if err := gate.Reset(ctx); err != nil {
				return err
			}
			fmt.Printf("gate %q reset to pending\n", g.GateID)
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetGates, "gates", false, "also reset every gate of the workflow to pending")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

func printStatus(state *schema.RunState) {
	fmt.Printf("workflow: %s\n", state.WorkflowID)
	if state.RunID != "" {
		fmt.Printf("run:      %s\n", state.RunID)
	}
	fmt.Printf("status:   %s\n", state.Status)
	if state.StartedAt != nil {
		fmt.Printf("started:  %s\n", state.StartedAt.Format(time.RFC3339))
	}
	if state.PausedAt != nil {
		fmt.Printf("paused:   %s\n", state.PausedAt.Format(time.RFC3339))
	}
	if state.FailedAt != nil {
		fmt.Printf("failed:   %s\n", state.FailedAt.Format(time.RFC3339))
	}
	if state.CompletedAt != nil {
		fmt.Printf("finished: %s\n", state.CompletedAt.Format(time.RFC3339))
	}
	if state.Error != "" {
		fmt.Printf("error:    %s\n", state.Error)
	}

	if len(state.CompletedSteps) > 0 {
		fmt.Println()
		fmt.Println("completed steps:")
		for i, rec := range state.CompletedSteps {
			name := rec.Name
			if name == "" {
				name = rec.StepID
			}
			fmt.Printf("  %d. %s (%s)\n", i+1, name, rec.CompletedAt.Format(time.RFC3339))
		}
	}

	if len(state.GateStates) > 0 {
		fmt.Println()
		fmt.Println("gates:")
		for gateID, gateStatus := range state.GateStates {
			fmt.Printf("  %s: %s\n", gateID, gateStatus)
		}
	}
}
