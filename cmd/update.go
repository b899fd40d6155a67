package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/task"
)

var updateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Update a task in its source file",
	Long: `Update locates a task's exact source line and rewrites it in place,
leaving every other line of the file untouched.

Task ids come from index or query output, for example:
  notes/inbox.md#L12
  boards/plan.canvas#node1:L3

The source line is matched against the indexed task before writing. If
the file changed and the line can no longer be identified unambiguously,
the update is refused rather than guessed at.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var (
	updateDone     bool
	updateUndone   bool
	updateContent  string
	updatePriority int
	updateDue      string
	updateAddTags  []string
)

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().BoolVar(&updateDone, "done", false, "mark the task completed")
	updateCmd.Flags().BoolVar(&updateUndone, "undone", false, "mark the task not completed")
	updateCmd.Flags().StringVar(&updateContent, "content", "", "replace the task content")
	updateCmd.Flags().IntVar(&updatePriority, "priority", 0, "set priority 1-5")
	updateCmd.Flags().StringVar(&updateDue, "due", "", "set the due date (YYYY-MM-DD)")
	updateCmd.Flags().StringArrayVar(&updateAddTags, "add-tag", nil, "add a tag (repeatable)")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if updateDone && updateUndone {
		return fmt.Errorf("--done and --undone are mutually exclusive")
	}
	if updatePriority < 0 || updatePriority > 5 {
		return fmt.Errorf("priority must be between 1 and 5")
	}

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.indexer.IndexAll(context.Background()); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	original := app.cache.Get(args[0])
	if original == nil {
		return fmt.Errorf("no indexed task with id %s", args[0])
	}

	parser := task.NewParser(app.cfg.TaskOptions())
	updated, err := applyChanges(parser, original)
	if err != nil {
		return err
	}

	source, err := app.fs.Read(original.FilePath)
	if err != nil {
		return fmt.Errorf("%w: %s", task.ErrSourceNotFound, original.FilePath)
	}
	rewritten, err := parser.Update(original, updated, source)
	if err != nil {
		result := task.ResultFromError(err)
		if format == formatJSON {
			return renderJSON(result)
		}
		return fmt.Errorf("update refused: %s", result.Error)
	}
	if err := app.fs.Write(original.FilePath, rewritten); err != nil {
		return fmt.Errorf("writing %s: %w", original.FilePath, err)
	}

	if format == formatJSON {
		return renderJSON(task.ResultFromError(nil))
	}
	fmt.Printf("Updated %s\n", original.ID)
	return nil
}

// applyChanges clones the indexed record and applies the flag-driven
// edits to the clone.
func applyChanges(parser *task.Parser, original *task.Task) (*task.Task, error) {
	updated := original.Clone()

	markers := parser.Options().CompletedMarkers
	if updateDone {
		updated.Completed = true
		updated.Status = rune(markers[0])
	}
	if updateUndone {
		updated.Completed = false
		updated.Status = ' '
	}
	if updateContent != "" {
		updated.Content = updateContent
	}
	if updatePriority != 0 {
		updated.Metadata.Priority = updatePriority
	}
	if updateDue != "" {
		ms, ok := parser.Dates().Parse(updateDue)
		if !ok {
			return nil, fmt.Errorf("unparseable due date %q", updateDue)
		}
		updated.Metadata.Due = ms
	}
	for _, tag := range updateAddTags {
		if !updated.Metadata.HasTag(tag) {
			updated.Metadata.Tags = append(updated.Metadata.Tags, tag)
		}
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	return updated, nil
}
