package cmd

import (
	"context"
	"fmt"

	output "github.com/ArjenSchwarz/go-output/v2"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan the vault and report what was indexed",
	Long: `Index walks the vault, parses every markdown and canvas document on
the worker pool, resolves each file's project, and reports totals.

Per-line parse failures are non-fatal: the offending line is skipped,
counted, and the rest of the file is indexed normally.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.indexer.IndexAll(context.Background())
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if verbose {
		fmt.Printf("Vault: %s\n", app.cfg.Vault)
	}

	statsData := []map[string]any{{
		"Files":        stats.Files,
		"Tasks":        stats.Tasks,
		"Parse Errors": stats.ParseErrors,
		"Duration":     formatDuration(stats.Duration),
	}}
	doc := output.New().
		Table("Index Summary", statsData,
			output.WithKeys("Files", "Tasks", "Parse Errors", "Duration")).
		Build()
	return renderDoc(doc)
}
