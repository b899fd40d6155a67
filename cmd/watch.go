package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/vault"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index the vault and keep the index current as files change",
	Long: `Watch performs a full index, then follows filesystem events: edited
and created documents are re-parsed, deleted ones are dropped from the
index. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := app.indexer.IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("initial index failed: %w", err)
	}
	fmt.Printf("Indexed %d tasks from %d files in %s, watching %s\n",
		stats.Tasks, stats.Files, formatDuration(stats.Duration), app.cfg.Vault)

	watcher, err := vault.NewWatcher(app.indexer, app.fs, app.resolver, app.logger)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Println("Watch stopped.")
	return nil
}
