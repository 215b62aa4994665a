package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var invalidateStructureChanged bool

var invalidateCmd = &cobra.Command{
	Use:   "invalidate <table_id>",
	Short: "Force a table's cached rows to expire immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := engine.Invalidate(rootCtx, args[0], invalidateStructureChanged); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", args[0])
		return nil
	},
}

func init() {
	invalidateCmd.Flags().BoolVar(&invalidateStructureChanged, "structure-changed", false,
		"also invalidate the table's list-level metadata row")
}
