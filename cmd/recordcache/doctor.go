package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recordcache/recordcache/internal/cache"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the cache store's health",
	Long:  `Verify required tables exist and the table registry is readable, and report how many tables it holds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		checks, err := engine.Doctor(rootCtx)
		if err != nil {
			return err
		}

		overallOK := true
		for _, c := range checks {
			if c.Status != cache.StatusOK {
				overallOK = false
				break
			}
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"checks":     checks,
				"overall_ok": overallOK,
			})
		}

		for _, c := range checks {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", c.Status, c.Name, c.Message)
		}
		if !overallOK {
			return fmt.Errorf("doctor: one or more checks failed")
		}
		return nil
	},
}
