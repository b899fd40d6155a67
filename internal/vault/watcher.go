package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault/internal/project"
	"github.com/taskvault/taskvault/internal/store"
)

// Watcher keeps the index current while the vault changes on disk. It
// needs a real filesystem store; the in-memory store has no events to
// watch.
type Watcher struct {
	ix       *Indexer
	fs       *store.FS
	resolver *project.Resolver
	fsw      *fsnotify.Watcher
	logger   *zap.SugaredLogger
}

// NewWatcher registers the vault root and every subdirectory.
func NewWatcher(ix *Indexer, fs *store.FS, r *project.Resolver, logger *zap.SugaredLogger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating watcher")
	}

	w := &Watcher{ix: ix, fs: fs, resolver: r, fsw: fsw, logger: logger}
	if err := w.addRecursive(fs.Root()); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run processes events until the context is cancelled. Reindexing
// happens inline on this goroutine; the pool does the parsing.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("watch error", "error", err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	rel, err := filepath.Rel(w.fs.Root(), ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warnw("watching new directory", "path", rel, "error", err)
			}
			return
		}
		w.reindex(ctx, rel)
	case ev.Op.Has(fsnotify.Write):
		w.reindex(ctx, rel)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.ix.RemoveFile(rel)
		// A deleted config document must not keep resolving from cache.
		w.resolver.Invalidate(rel)
	}
}

func (w *Watcher) reindex(ctx context.Context, rel string) {
	if !strings.HasSuffix(rel, ".md") && !strings.HasSuffix(rel, ".canvas") {
		return
	}
	if err := w.ix.ReindexFile(ctx, rel); err != nil {
		w.logger.Warnw("reindex failed", "path", rel, "error", err)
		return
	}
	w.logger.Debugw("reindexed", "path", rel)
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
