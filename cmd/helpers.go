package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	output "github.com/ArjenSchwarz/go-output/v2"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault/internal/config"
	"github.com/taskvault/taskvault/internal/logging"
	"github.com/taskvault/taskvault/internal/pool"
	"github.com/taskvault/taskvault/internal/project"
	"github.com/taskvault/taskvault/internal/store"
	"github.com/taskvault/taskvault/internal/task"
	"github.com/taskvault/taskvault/internal/vault"
)

// Output format names
const (
	formatTable    = "table"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// app bundles the wired collaborators every command needs.
type app struct {
	cfg      config.Config
	logger   *zap.SugaredLogger
	fs       *store.FS
	cache    *task.Cache
	resolver *project.Resolver
	pool     *pool.Pool
	indexer  *vault.Indexer
}

// buildApp loads configuration and wires the store, resolver, pool and
// indexer. Callers must Close the returned app.
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if vaultDir != "" {
		cfg.Vault = vaultDir
	}

	logger := logging.New(verbose)
	fs := store.NewFS(cfg.Vault)
	cache := task.NewCache()
	resolver := project.NewResolver(fs, cfg.Project, logger)
	pl := pool.New(cfg.Pool, cfg.TaskOptions(), logger)
	indexer := vault.NewIndexer(fs, pl, resolver, cache, cfg.Index, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		fs:       fs,
		cache:    cache,
		resolver: resolver,
		pool:     pl,
		indexer:  indexer,
	}, nil
}

func (a *app) Close() {
	a.pool.Stop()
	_ = a.logger.Sync()
}

// taskRecords converts tasks to the flat structure the table renderer
// consumes.
func taskRecords(tasks []*task.Task) []map[string]any {
	records := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, map[string]any{
			"ID":       t.ID,
			"Status":   fmt.Sprintf("[%c]", t.Status),
			"Content":  t.Content,
			"Project":  t.Metadata.DisplayProject(),
			"Due":      formatDay(t.Metadata.Due),
			"Priority": formatPriority(t.Metadata.Priority),
			"Tags":     strings.Join(t.Metadata.Tags, ", "),
			"File":     t.FilePath,
		})
	}
	return records
}

var taskTableKeys = []string{"ID", "Status", "Content", "Project", "Due", "Priority", "Tags", "File"}

// renderTasks writes the task list in the selected output format.
func renderTasks(title string, tasks []*task.Task) error {
	if format == formatJSON {
		return renderJSON(tasks)
	}

	doc := output.New().
		Table(title, taskRecords(tasks), output.WithKeys(taskTableKeys...)).
		Build()
	return renderDoc(doc)
}

// renderDoc renders a built document in the selected format.
func renderDoc(doc *output.Document) error {
	var outputFormat output.Format
	switch format {
	case formatJSON:
		outputFormat = output.JSON
	case formatMarkdown:
		outputFormat = output.Markdown
	default:
		outputFormat = output.Table
	}

	out := output.NewOutput(
		output.WithFormat(outputFormat),
		output.WithWriter(output.NewStdoutWriter()),
	)
	return out.Render(context.Background(), doc)
}

func renderJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func formatDay(ms int64) string {
	return task.DayKey(ms)
}

func formatPriority(p int) string {
	if p == 0 {
		return ""
	}
	return fmt.Sprintf("%d", p)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
