package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose  bool
	format   string
	cfgPath  string
	vaultDir string

	// Version information
	version = "0.1.0-dev"

	rootCmd = &cobra.Command{
		Use:   "taskvault",
		Short: "Extract and manage tasks from a markdown vault",
		Long: `Taskvault scans a vault of markdown and canvas documents, extracts
every task line with its metadata, and keeps an in-memory index you can
query and update.

This tool provides:
- Task extraction from markdown checklists and canvas text nodes
- Emoji and bracket metadata dialects (dates, priority, recurrence)
- Project resolution from paths, frontmatter and config documents
- Query and filter capabilities over the index
- Safe write-back of task updates to the source files`,
		Version: version,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "table", "output format (table, markdown, json)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", "", "vault root directory (overrides config)")

	rootCmd.SetVersionTemplate("taskvault version {{.Version}}\n")
}
