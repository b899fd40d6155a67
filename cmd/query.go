package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/task"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the task index with filters and sorting",
	Long: `Query indexes the vault and evaluates filters against every task.

Filters take the form field:op:value, for example:
  --filter completed:eq:false
  --filter due:before:2026-09-01
  --filter tag:eq:errand

Operators: eq, ne, contains, before, after, empty, not-empty.
Fields: id, file, content, status, completed, priority, project,
context, area, tag, due, start, scheduled, recurrence.

Sort keys are field names, prefixed with - for descending:
  --sort priority --sort -due`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

var (
	queryFilters []string
	querySorts   []string
	queryAny     bool
	queryProject string
	queryTag     string
	queryOpen    bool
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringArrayVar(&queryFilters, "filter", nil, "filter expression field:op:value (repeatable)")
	queryCmd.Flags().StringArrayVar(&querySorts, "sort", nil, "sort key, prefix with - for descending (repeatable)")
	queryCmd.Flags().BoolVar(&queryAny, "any", false, "match tasks satisfying any filter instead of all")
	queryCmd.Flags().StringVar(&queryProject, "project", "", "shorthand for --filter project:eq:NAME")
	queryCmd.Flags().StringVar(&queryTag, "tag", "", "shorthand for --filter tag:eq:NAME")
	queryCmd.Flags().BoolVar(&queryOpen, "open", false, "shorthand for --filter completed:eq:false")
}

func runQuery(cmd *cobra.Command, args []string) error {
	q, err := buildQuery()
	if err != nil {
		return err
	}

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.indexer.IndexAll(context.Background()); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	results := app.cache.Query(q)
	if len(results) == 0 && format == formatTable {
		fmt.Println("No tasks matched.")
		return nil
	}
	return renderTasks("Tasks", results)
}

func buildQuery() (task.Query, error) {
	q := task.Query{Conjunction: task.ConjAnd}
	if queryAny {
		q.Conjunction = task.ConjOr
	}

	for _, raw := range queryFilters {
		f, err := parseFilter(raw)
		if err != nil {
			return task.Query{}, err
		}
		q.Filters = append(q.Filters, f)
	}
	if queryProject != "" {
		q.Filters = append(q.Filters, task.Filter{Field: "project", Op: task.OpEquals, Value: queryProject})
	}
	if queryTag != "" {
		q.Filters = append(q.Filters, task.Filter{Field: "tag", Op: task.OpEquals, Value: queryTag})
	}
	if queryOpen {
		q.Filters = append(q.Filters, task.Filter{Field: "completed", Op: task.OpEquals, Value: "false"})
	}

	for _, raw := range querySorts {
		desc := strings.HasPrefix(raw, "-")
		q.Sorts = append(q.Sorts, task.SortKey{
			Field:      strings.TrimPrefix(raw, "-"),
			Descending: desc,
		})
	}
	return q, nil
}

// parseFilter splits field:op:value. Value may be empty for the empty
// and not-empty operators, and may itself contain colons.
func parseFilter(raw string) (task.Filter, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 {
		return task.Filter{}, fmt.Errorf("invalid filter %q, expected field:op:value", raw)
	}
	f := task.Filter{Field: parts[0], Op: task.Operator(parts[1])}
	if len(parts) == 3 {
		f.Value = parts[2]
	}

	switch f.Op {
	case task.OpEquals, task.OpNotEqual, task.OpContains, task.OpBefore, task.OpAfter:
		if f.Value == "" {
			return task.Filter{}, fmt.Errorf("filter %q requires a value", raw)
		}
	case task.OpEmpty, task.OpNotEmpty:
	default:
		return task.Filter{}, fmt.Errorf("unknown operator %q in filter %q", parts[1], raw)
	}
	return f, nil
}
