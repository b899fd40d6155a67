// Package vault orchestrates indexing: it walks a content store,
// fans parsing out to the worker pool, resolves projects and keeps the
// task cache current.
package vault

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taskvault/taskvault/internal/pool"
	"github.com/taskvault/taskvault/internal/project"
	"github.com/taskvault/taskvault/internal/store"
	"github.com/taskvault/taskvault/internal/task"
)

// Options configure what the indexer treats as a task source.
type Options struct {
	// FrontmatterStatusKey, when set, turns any document whose
	// frontmatter carries this key into a whole-file task.
	FrontmatterStatusKey string `yaml:"frontmatter_status_key"`
	// FrontmatterDoneValues are the status values meaning completed.
	FrontmatterDoneValues []string `yaml:"frontmatter_done_values"`
	// SkipDirs are directory names excluded from the walk.
	SkipDirs []string `yaml:"skip_dirs"`
}

// DefaultOptions skips the usual hidden vault directories and leaves
// frontmatter tasks off.
func DefaultOptions() Options {
	return Options{
		FrontmatterDoneValues: []string{"done", "complete", "completed"},
		SkipDirs:              []string{".obsidian", ".git", ".trash"},
	}
}

// Stats summarizes one indexing run.
type Stats struct {
	Files       int
	Tasks       int
	ParseErrors int
	Duration    time.Duration
}

// Indexer drives full and incremental indexing. The cache and resolver
// are mutated only on the goroutine that calls its methods; only the
// parsing itself runs on the pool.
type Indexer struct {
	store    store.ContentStore
	pool     *pool.Pool
	resolver *project.Resolver
	cache    *task.Cache
	opts     Options
	logger   *zap.SugaredLogger
}

// NewIndexer wires an indexer over its collaborators.
func NewIndexer(cs store.ContentStore, p *pool.Pool, r *project.Resolver, cache *task.Cache, opts Options, logger *zap.SugaredLogger) *Indexer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Indexer{
		store:    cs,
		pool:     p,
		resolver: r,
		cache:    cache,
		opts:     opts,
		logger:   logger,
	}
}

// Cache returns the task cache the indexer maintains.
func (ix *Indexer) Cache() *task.Cache {
	return ix.cache
}

// IndexAll walks the whole store and rebuilds the cache from scratch.
// Results are applied in completion order; per-file ordering inside the
// cache comes from line numbers, not arrival.
func (ix *Indexer) IndexAll(ctx context.Context) (Stats, error) {
	start := time.Now()

	paths, err := ix.collectPaths("")
	if err != nil {
		return Stats{}, err
	}
	ix.cache.Clear()

	var futures []*pool.Future
	for _, p := range paths {
		content, err := ix.store.Read(p)
		if err != nil {
			ix.logger.Warnw("skipping unreadable file", "path", p, "error", err)
			continue
		}
		f, err := ix.pool.Submit(pool.Work{Path: p, Content: content})
		if err != nil {
			return Stats{}, errors.Wrapf(err, "submitting %s", p)
		}
		futures = append(futures, f)
	}

	results := make(chan pool.Result, len(futures))
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range futures {
		f := f
		g.Go(func() error {
			r, err := f.Wait(gctx)
			if err != nil {
				return err
			}
			results <- r
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	stats := Stats{}
	for r := range results {
		stats.Files++
		ix.applyResult(r, &stats)
	}
	if err := g.Wait(); err != nil {
		return stats, errors.Wrap(err, "collecting parse results")
	}

	stats.Duration = time.Since(start)
	ix.logger.Infow("index complete",
		"files", stats.Files,
		"tasks", stats.Tasks,
		"parse_errors", stats.ParseErrors,
		"duration", stats.Duration)
	return stats, nil
}

// ReindexFile re-parses one file and replaces its cache entries. A file
// that no longer exists is simply removed.
func (ix *Indexer) ReindexFile(ctx context.Context, path string) error {
	content, err := ix.store.Read(path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ix.RemoveFile(path)
			return nil
		}
		return err
	}

	f, err := ix.pool.Submit(pool.Work{Path: path, Content: content})
	if err != nil {
		return errors.Wrapf(err, "submitting %s", path)
	}
	r, err := f.Wait(ctx)
	if err != nil {
		return err
	}

	ix.cache.RemoveFile(path)
	ix.applyResult(r, &Stats{})
	return nil
}

// RemoveFile drops a file's tasks from the cache.
func (ix *Indexer) RemoveFile(path string) {
	n := ix.cache.RemoveFile(path)
	if n > 0 {
		ix.logger.Debugw("removed file from index", "path", path, "tasks", n)
	}
}

// applyResult resolves the file's project, attaches it to every task
// and upserts them. A fatal unit error counts as one parse error and
// leaves the cache untouched for that file.
func (ix *Indexer) applyResult(r pool.Result, stats *Stats) {
	if r.Err != nil {
		stats.ParseErrors++
		ix.logger.Warnw("file failed to parse", "path", r.Path, "error", r.Err)
		return
	}
	stats.ParseErrors += len(r.Errors)
	for _, pe := range r.Errors {
		ix.logger.Debugw("line skipped", "path", r.Path, "line", pe.Line, "error", pe.Msg)
	}

	resolved, err := ix.resolver.DetermineProject(r.Path)
	if err != nil {
		ix.logger.Warnw("project resolution failed", "path", r.Path, "error", err)
	}

	for _, t := range r.Tasks {
		t.Metadata.Resolved = resolved
		ix.cache.Upsert(t)
		stats.Tasks++
	}

	if ft := ix.frontmatterTask(r.Path, resolved); ft != nil {
		ix.cache.Upsert(ft)
		stats.Tasks++
	}
}

// frontmatterTask turns a document whose frontmatter carries the
// configured status key into a whole-file task. These have no stable
// line anchor, so they get a generated id. The frontmatter is read
// through the resolver's mapping rules, so a mapped priority or date
// field lands on the task as typed metadata.
func (ix *Indexer) frontmatterTask(path string, resolved *task.TgProject) *task.Task {
	if ix.opts.FrontmatterStatusKey == "" || strings.HasSuffix(path, ".canvas") {
		return nil
	}
	fm, err := ix.resolver.EnhancedMetadata(path)
	if err != nil || fm == nil {
		return nil
	}
	status, ok := store.StringValue(fm[ix.opts.FrontmatterStatusKey])
	if !ok || status == "" {
		return nil
	}

	completed := false
	for _, v := range ix.opts.FrontmatterDoneValues {
		if strings.EqualFold(status, v) {
			completed = true
			break
		}
	}

	content, _ := store.StringValue(fm["title"])
	if content == "" {
		content = baseName(path)
	}

	t := &task.Task{
		ID:        uuid.NewString(),
		Content:   content,
		FilePath:  path,
		Completed: completed,
		Status:    statusRune(completed),
		Metadata:  task.Metadata{Resolved: resolved},
	}
	if tags, ok := fm["tags"].([]any); ok {
		for _, raw := range tags {
			if s, ok := store.StringValue(raw); ok && !t.Metadata.HasTag(s) {
				t.Metadata.Tags = append(t.Metadata.Tags, s)
			}
		}
	}

	if n, ok := fm["priority"].(int); ok {
		t.Metadata.Priority = n
	}
	if ms, ok := fm["due"].(int64); ok {
		t.Metadata.Due = ms
	}
	if ms, ok := fm["start"].(int64); ok {
		t.Metadata.Start = ms
	}
	if ms, ok := fm["scheduled"].(int64); ok {
		t.Metadata.Scheduled = ms
	}
	if ms, ok := fm["created"].(int64); ok {
		t.Metadata.CreatedAt = ms
	}
	if ms, ok := fm["completed"].(int64); ok {
		t.Metadata.CompletedAt = ms
	}
	return t
}

func statusRune(completed bool) rune {
	if completed {
		return 'x'
	}
	return ' '
}

// collectPaths walks the store recursively and returns every markdown
// and canvas path, skipping the configured directories.
func (ix *Indexer) collectPaths(dir string) ([]string, error) {
	entries, err := ix.store.ListChildren(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.Dir {
			if ix.skipDir(e.Name) {
				continue
			}
			sub, err := ix.collectPaths(e.Path)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
			continue
		}
		if strings.HasSuffix(e.Name, ".md") || strings.HasSuffix(e.Name, ".canvas") {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

func (ix *Indexer) skipDir(name string) bool {
	for _, s := range ix.opts.SkipDirs {
		if name == s {
			return true
		}
	}
	return false
}

func baseName(path string) string {
	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	return strings.TrimSuffix(name, ".md")
}
