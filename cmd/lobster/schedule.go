package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CCAgentOrg/nanobot-skills/internal/actions"
	"github.com/CCAgentOrg/nanobot-skills/internal/engine"
	"github.com/CCAgentOrg/nanobot-skills/internal/scheduler"
)

var cronExpr string

var scheduleCmd = &cobra.Command{
	Use:   "schedule <workflow-file>",
	Short: "Run a workflow repeatedly on a cron schedule",
	Long: `Schedule runs the workflow every time the cron expression fires,
strictly one run at a time. Slots that come due while a run is still
executing are skipped, and a run paused at an approval gate is left
alone until someone approves it and resumes. The command holds the
workflow lock until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		def, err := loadDefinition(args[0])
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
		orc, err := engine.New(def, engine.Config{
			Store:    st,
			Registry: reg,
			Logger:   logger,
		})
		if err != nil {
			return err
		}

		sched, err := scheduler.New(orc, scheduler.Config{
			Cron:   cronExpr,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}

		fmt.Printf("scheduling %q with cron %q\n", def.ID, cronExpr)
		fmt.Printf("next run: %s (ctrl-c to stop)\n", sched.NextRunAt().Format(time.RFC3339))

		<-ctx.Done()
		return sched.Stop()
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&cronExpr, "cron", "", "five-field cron expression (required)")
	_ = scheduleCmd.MarkFlagRequired("cron")
	rootCmd.AddCommand(scheduleCmd)
}
