// Package project resolves which project a file's tasks belong to
// through a fixed-priority cascade: path mapping, frontmatter metadata,
// ancestor config-document inheritance, then an optional default naming
// strategy.
package project

import (
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault/internal/store"
	"github.com/taskvault/taskvault/internal/task"
)

// Strategy selects how the default naming step derives a name.
type Strategy string

const (
	// StrategyFilename uses the file's own name
	StrategyFilename Strategy = "filename"
	// StrategyFoldername uses the parent directory's name
	StrategyFoldername Strategy = "foldername"
	// StrategyMetadata uses a named frontmatter field
	StrategyMetadata Strategy = "metadata"
)

// PathMapping maps a path pattern to a project name. Patterns may
// contain * wildcard segments; a pattern without wildcards matches as a
// path substring.
type PathMapping struct {
	Pattern string `yaml:"pattern"`
	Project string `yaml:"project"`
	Enabled bool   `yaml:"enabled"`
}

// MetadataMapping renames a frontmatter field during enhanced-metadata
// computation. Disabled rules are skipped entirely.
type MetadataMapping struct {
	SourceKey string `yaml:"source_key"`
	TargetKey string `yaml:"target_key"`
	Enabled   bool   `yaml:"enabled"`
}

// DefaultNaming configures the last cascade step. It only applies when
// explicitly enabled.
type DefaultNaming struct {
	Enabled        bool     `yaml:"enabled"`
	Strategy       Strategy `yaml:"strategy"`
	StripExtension bool     `yaml:"strip_extension"`
	MetadataField  string   `yaml:"metadata_field"`
}

// Options configure the resolver.
type Options struct {
	PathMappings      []PathMapping     `yaml:"path_mappings"`
	MetadataKey       string            `yaml:"metadata_key"`
	ConfigFile        string            `yaml:"config_file"`
	SearchRecursively bool              `yaml:"search_recursively"`
	DefaultNaming     DefaultNaming     `yaml:"default_naming"`
	MetadataMappings  []MetadataMapping `yaml:"metadata_mappings"`
}

// DefaultOptions returns the resolver defaults: "project" frontmatter
// key, "project.md" config documents, immediate-directory search only,
// default naming off.
func DefaultOptions() Options {
	return Options{
		MetadataKey: "project",
		ConfigFile:  "project.md",
	}
}

// configEntry caches one config document's parsed data keyed by its
// modification time.
type configEntry struct {
	modTime time.Time
	data    map[string]string
}

// Resolver walks the cascade and caches config-document results by
// (path, mtime). It is mutated only on the orchestrating goroutine.
type Resolver struct {
	store  store.ContentStore
	opts   Options
	dates  *task.DateCache
	logger *zap.SugaredLogger

	configCache map[string]configEntry
}

// NewResolver creates a resolver over the given content store.
func NewResolver(cs store.ContentStore, opts Options, logger *zap.SugaredLogger) *Resolver {
	if opts.MetadataKey == "" {
		opts.MetadataKey = "project"
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = "project.md"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Resolver{
		store:       cs,
		opts:        opts,
		dates:       task.NewDateCache(task.DefaultDateCacheSize),
		logger:      logger,
		configCache: make(map[string]configEntry),
	}
}

// SetOptions replaces the resolution options and invalidates every
// cache entry.
func (r *Resolver) SetOptions(opts Options) {
	if opts.MetadataKey == "" {
		opts.MetadataKey = "project"
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = "project.md"
	}
	r.opts = opts
	r.configCache = make(map[string]configEntry)
}

// Invalidate drops the cached data for one config document. The mtime
// check already catches rewrites; this handles deletions, where no new
// mtime will ever disagree.
func (r *Resolver) Invalidate(configPath string) {
	delete(r.configCache, configPath)
}

// DetermineProject runs the cascade for one file. First match wins;
// a nil result with nil error means no step produced a name.
func (r *Resolver) DetermineProject(filePath string) (*task.TgProject, error) {
	if tg := r.fromPathMapping(filePath); tg != nil {
		return tg, nil
	}
	if tg := r.fromFrontmatter(filePath); tg != nil {
		return tg, nil
	}
	if tg := r.fromConfigFile(filePath); tg != nil {
		return tg, nil
	}
	if tg := r.fromDefaultNaming(filePath); tg != nil {
		return tg, nil
	}
	return nil, nil
}

// fromPathMapping checks the ordered mapping rules against the
// normalized path.
func (r *Resolver) fromPathMapping(filePath string) *task.TgProject {
	normalized := path.Clean(strings.ReplaceAll(filePath, "\\", "/"))
	for _, m := range r.opts.PathMappings {
		if !m.Enabled || m.Pattern == "" || m.Project == "" {
			continue
		}
		if matchPathPattern(m.Pattern, normalized) {
			return &task.TgProject{
				Type:     task.ProjectFromPath,
				Name:     m.Project,
				Source:   m.Pattern,
				ReadOnly: true,
			}
		}
	}
	return nil
}

// matchPathPattern matches a mapping pattern against a path. Patterns
// with wildcard segments match segment-wise anywhere in the path;
// plain patterns match as substrings.
func matchPathPattern(pattern, p string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.Contains(p, pattern)
	}
	patSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSegs := strings.Split(strings.Trim(p, "/"), "/")
	if len(patSegs) > len(pathSegs) {
		return false
	}
	for start := 0; start+len(patSegs) <= len(pathSegs); start++ {
		all := true
		for i, ps := range patSegs {
			ok, err := path.Match(ps, pathSegs[start+i])
			if err != nil || !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// fromFrontmatter reads the configured metadata key from the file's own
// frontmatter. Unreadable frontmatter means no match, never a failure.
func (r *Resolver) fromFrontmatter(filePath string) *task.TgProject {
	fm, err := r.store.Frontmatter(filePath)
	if err != nil || fm == nil {
		return nil
	}
	v, ok := fm[r.opts.MetadataKey]
	if !ok {
		return nil
	}
	name, ok := store.StringValue(v)
	if !ok || name == "" {
		return nil
	}
	return &task.TgProject{
		Type:     task.ProjectFromMetadata,
		Name:     name,
		Source:   r.opts.MetadataKey,
		ReadOnly: true,
	}
}

// fromConfigFile searches ancestor directories for the designated
// config document. A malformed or unreadable document is treated as
// "no config found" and the search continues.
func (r *Resolver) fromConfigFile(filePath string) *task.TgProject {
	dir := store.ParentDir(filePath)
	for {
		configPath := joinDir(dir, r.opts.ConfigFile)
		if data := r.loadConfig(configPath); data != nil {
			if name, ok := data["project"]; ok && name != "" {
				return &task.TgProject{
					Type:     task.ProjectFromConfig,
					Name:     name,
					Source:   configPath,
					ReadOnly: true,
				}
			}
		}
		if !r.opts.SearchRecursively || dir == "" {
			return nil
		}
		dir = store.ParentDir(dir)
	}
}

// loadConfig reads one config document, caching by (path, mtime).
// The document's YAML frontmatter and its "key: value" body lines both
// contribute; frontmatter wins on key collisions.
func (r *Resolver) loadConfig(configPath string) map[string]string {
	info, err := r.store.Stat(configPath)
	if err != nil {
		return nil
	}
	if entry, ok := r.configCache[configPath]; ok && entry.modTime.Equal(info.ModTime) {
		return entry.data
	}

	content, err := r.store.Read(configPath)
	if err != nil {
		return nil
	}
	data, err := parseConfigDocument(content)
	if err != nil {
		r.logger.Warnw("ignoring malformed project config",
			"path", configPath,
			"error", err)
		return nil
	}

	r.configCache[configPath] = configEntry{modTime: info.ModTime, data: data}
	return data
}

// parseConfigDocument extracts the flat key-value data of a config
// document from its frontmatter and simple "key: value" body lines.
func parseConfigDocument(content string) (map[string]string, error) {
	fm, body, err := store.SplitFrontmatter(content)
	if err != nil {
		return nil, errors.Wrap(err, "config frontmatter")
	}

	data := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key != "" && value != "" && !strings.Contains(key, " ") {
			data[key] = value
		}
	}
	for k, v := range fm {
		if s, ok := store.StringValue(v); ok {
			data[k] = s
		}
	}
	return data, nil
}

// fromDefaultNaming derives a name from the filename, the parent
// directory, or a named metadata field. Only applies when enabled.
func (r *Resolver) fromDefaultNaming(filePath string) *task.TgProject {
	dn := r.opts.DefaultNaming
	if !dn.Enabled {
		return nil
	}

	var name string
	switch dn.Strategy {
	case StrategyFoldername:
		dir := store.ParentDir(filePath)
		name = path.Base(dir)
		if name == "." || name == "/" {
			name = ""
		}
	case StrategyMetadata:
		fm, err := r.store.Frontmatter(filePath)
		if err != nil || fm == nil {
			return nil
		}
		name, _ = store.StringValue(fm[dn.MetadataField])
	default:
		name = path.Base(filePath)
		if dn.StripExtension {
			name = strings.TrimSuffix(name, path.Ext(name))
		}
	}

	if name == "" {
		return nil
	}
	return &task.TgProject{
		Type:     task.ProjectFromDefault,
		Name:     name,
		Source:   string(dn.Strategy),
		ReadOnly: true,
	}
}

func joinDir(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
