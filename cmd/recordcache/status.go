package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [table_id]",
	Short: "Show cache validity and record counts",
	Long: `Show cache status for one table or, with no argument, every
registered table: row count, cached_at, expires_at, and remaining TTL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tableID := ""
		if len(args) > 0 {
			tableID = args[0]
		}
		snapshot, err := engine.Status(rootCtx, tableID)
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snapshot)
		}
		if len(snapshot) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no cached tables")
			return nil
		}
		for id, st := range snapshot {
			validity := "valid"
			if !st.IsValid {
				validity = "expired"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows, %s (expires %s, %ds remaining)\n",
				id, st.Count, validity, st.ExpiresAt, st.TimeRemainingSeconds)
		}
		return nil
	},
}
