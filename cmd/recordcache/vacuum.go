package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Reclaim space left by deleted rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engine.Vacuum(rootCtx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "vacuum complete")
		return nil
	},
}
