// Command recordcache is a thin administrative CLI over a cache store:
// status, invalidate, refresh, vacuum, and doctor. Record mutation itself
// is driven by the embedding host process through the Engine Go API, not
// this CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recordcache/recordcache/internal/cache"
	"github.com/recordcache/recordcache/internal/engineconfig"
)

var (
	storePath  string
	jsonOutput bool

	engine *cache.Engine
	cfg    *engineconfig.Config

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "recordcache",
	Short: "recordcache - administrative CLI for the record-cache store",
	Long:  `Inspect and administer a record-caching engine's local SQLite store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		loaded, err := engineconfig.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		path := cfg.StorePath(storePath)
		if path == "" {
			path = "recordcache.db"
		}

		e, err := cache.Open(rootCtx, path, cache.WithDefaultTTL(cfg.DefaultTTL))
		if err != nil {
			return fmt.Errorf("open store %s: %w", path, err)
		}
		engine = e
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		defer rootCancel()
		if engine == nil {
			return nil
		}
		return engine.Close(rootCtx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Path to the cache store file (default: recordcache.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(invalidateCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(vacuumCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
