package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh <resource> [id...]",
	Short: "Cascade-invalidate a resource: solutions, tables, records, members, teams",
	Long: `Resource-keyed invalidation. "solutions" invalidates every cached
solution, table, and record. "tables [solution_id]" scopes to one solution.
"records <table_id>" is equivalent to invalidate. "members"/"teams" clear
the ancillary member/team caches.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resource := args[0]
		ids := args[1:]
		if err := engine.Refresh(rootCtx, resource, ids...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "refreshed %s\n", resource)
		return nil
	},
}
