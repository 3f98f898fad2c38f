package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CCAgentOrg/nanobot-skills/internal/actions"
	"github.com/CCAgentOrg/nanobot-skills/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-file>",
	Short: "Validate a workflow definition without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := loadDefinition(args[0])
		if err != nil {
			return err
		}

		reg, err := newRegistry(actions.BuiltinConfig{})
		if err != nil {
			return err
		}
		validator, err := validation.NewWorkflowValidator(reg)
		if err != nil {
			return err
		}
		result := validator.Validate(def)

		if jsonOut {
			return printJSON(result)
		}
		for _, w := range result.Warnings {
			if w.Path != "" && w.Path != "/" {
				fmt.Printf("warning: %s: %s\n", w.Path, w.Message)
				continue
			}
			fmt.Printf("warning: %s\n", w.Message)
		}
		for _, e := range result.Errors {
			if e.Path != "" && e.Path != "/" {
				fmt.Printf("error: %s: %s\n", e.Path, e.Message)
				continue
			}
			fmt.Printf("error: %s\n", e.Message)
		}
		if !result.Valid() {
			return fmt.Errorf("definition %q has %d error(s)", def.ID, len(result.Errors))
		}
		fmt.Printf("definition %q is valid: %d step(s)\n", def.ID, len(def.Steps))
		return nil
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the registered step actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry(actions.BuiltinConfig{})
		if err != nil {
			return err
		}
		infos := reg.Infos()

		if jsonOut {
			return printJSON(infos)
		}
		for _, info := range infos {
			fmt.Printf("%-16s %s\n", info.Name, info.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(actionsCmd)
}
