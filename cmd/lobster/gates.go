package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CCAgentOrg/nanobot-skills/internal/store"
	"github.com/CCAgentOrg/nanobot-skills/pkg/schema"
)

var (
	approvedBy string
	gateReason string
)

var approveCmd = &cobra.Command{
	Use:   "approve <workflow-id> <gate-id>",
	Short: "Approve an approval gate",
	Long: `Approve flips the gate to approved so the workflow passes it on the
next run or resume. Only the gate record is touched; run state stays as
it is until the workflow is resumed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		gate := store.NewGate(schema.GateSpec{ID: args[1]}, args[0], st, logger)
		state, err := gate.Approve(ctx, approvedBy, gateReason)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(state)
		}
		fmt.Printf("gate %q approved by %s\n", state.GateID, state.ApprovedBy)
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <workflow-id> <gate-id>",
	Short: "Reject an approval gate",
	Long: `Reject flips the gate to rejected. The workflow stays paused at the
gate until it is approved; a rejected gate must be reset before it can
be approved.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		gate := store.NewGate(schema.GateSpec{ID: args[1]}, args[0], st, logger)
		state, err := gate.Reject(ctx, gateReason)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(state)
		}
		fmt.Printf("gate %q rejected\n", state.GateID)
		return nil
	},
}

var gatesCmd = &cobra.Command{
	Use:   "gates <workflow-id>",
	Short: "List a workflow's gate records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		gates, err := st.ListGates(ctx, args[0])
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(gates)
		}
		if len(gates) == 0 {
			fmt.Println("no gate records")
			return nil
		}
		for _, g := range gates {
			line := fmt.Sprintf("%s: %s", g.GateID, g.Status)
			if g.StepID != "" {
				line += fmt.Sprintf(" (step %s)", g.StepID)
			}
			if g.ApprovedBy != "" {
				line += fmt.Sprintf(", by %s", g.ApprovedBy)
			}
			if g.Reason != "" {
				line += fmt.Sprintf(", reason: %s", g.Reason)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	approveCmd.Flags().StringVar(&approvedBy, "by", "cli", "identity recorded on the approval")
	approveCmd.Flags().StringVar(&gateReason, "reason", "", "reason recorded on the decision")
	rejectCmd.Flags().StringVar(&gateReason, "reason", "", "reason recorded on the decision")
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(gatesCmd)
}
