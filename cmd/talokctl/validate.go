package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"talok/internal/wizard"
)

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config <file>",
		Short: "Check a wizard config file (yaml, json or toml)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := wizard.Load(args[0])
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d property types, %d steps, %d fields, %d rules\n",
				args[0], len(cfg.PropertyTypes), len(cfg.Steps), len(cfg.AllFields()), len(cfg.Rules))
			return nil
		},
	}
}
