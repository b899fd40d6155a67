package cmd

import (
	"context"
	"fmt"
	"sort"

	output "github.com/ArjenSchwarz/go-output/v2"
	"github.com/spf13/cobra"

	"github.com/taskvault/taskvault/internal/task"
)

var projectCmd = &cobra.Command{
	Use:   "project [name]",
	Short: "List projects or show one project's tasks",
	Long: `Project without arguments lists every project the index knows about
with its task counts. With a name it lists that project's tasks.

Projects come from inline task metadata or from the resolution cascade:
path mappings, file frontmatter, ancestor config documents, and the
optional default naming strategy, in that order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProject,
}

var projectResolve string

func init() {
	rootCmd.AddCommand(projectCmd)

	projectCmd.Flags().StringVar(&projectResolve, "resolve", "", "show how a project resolves for the given file path")
}

func runProject(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if projectResolve != "" {
		return showResolution(app, projectResolve)
	}

	if _, err := app.indexer.IndexAll(context.Background()); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	if len(args) == 1 {
		return showProjectTasks(app, args[0])
	}
	return listProjects(app)
}

func showResolution(app *app, path string) error {
	tg, err := app.resolver.DetermineProject(path)
	if err != nil {
		return err
	}
	if tg == nil {
		fmt.Printf("No project resolves for %s\n", path)
		return nil
	}
	if format == formatJSON {
		return renderJSON(tg)
	}
	fmt.Printf("Project: %s (from %s: %s)\n", tg.Name, tg.Type, tg.Source)
	return nil
}

func showProjectTasks(app *app, name string) error {
	ids := app.cache.ByProject(name)
	if len(ids) == 0 {
		fmt.Printf("No tasks found for project: %s\n", name)
		return nil
	}
	tasks := app.cache.Query(taskProjectQuery(name))
	return renderTasks(fmt.Sprintf("Project: %s", name), tasks)
}

func listProjects(app *app) error {
	counts := make(map[string]int)
	open := make(map[string]int)
	for _, t := range app.cache.Query(taskProjectQuery("")) {
		name := t.Metadata.DisplayProject()
		if name == "" {
			continue
		}
		counts[name]++
		if !t.Completed {
			open[name]++
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 && format == formatTable {
		fmt.Println("No projects found.")
		return nil
	}

	records := make([]map[string]any, 0, len(names))
	for _, name := range names {
		records = append(records, map[string]any{
			"Project": name,
			"Tasks":   counts[name],
			"Open":    open[name],
		})
	}
	doc := output.New().
		Table("Projects", records, output.WithKeys("Project", "Tasks", "Open")).
		Build()
	return renderDoc(doc)
}

// taskProjectQuery matches one project's tasks, or everything when name
// is empty.
func taskProjectQuery(name string) task.Query {
	if name == "" {
		return task.Query{}
	}
	return task.Query{Filters: []task.Filter{
		{Field: "project", Op: task.OpEquals, Value: name},
	}}
}
