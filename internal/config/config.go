// Package config loads the application configuration from YAML and
// translates it into the option structs the other packages consume.
package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/taskvault/taskvault/internal/pool"
	"github.com/taskvault/taskvault/internal/project"
	"github.com/taskvault/taskvault/internal/task"
	"github.com/taskvault/taskvault/internal/vault"
)

// Config is the on-disk configuration shape. Zero values fall back to
// the package defaults at translation time.
type Config struct {
	// Vault is the root directory of the content store.
	Vault string `yaml:"vault"`

	// Dialect selects the metadata grammar: "emoji" or "bracket".
	Dialect          string `yaml:"dialect"`
	CompletedMarkers string `yaml:"completed_markers"`
	ProjectPrefix    string `yaml:"project_prefix"`
	AreaPrefix       string `yaml:"area_prefix"`
	ContextSigil     string `yaml:"context_sigil"`
	DateCacheSize    int    `yaml:"date_cache_size"`

	Limits  task.Limits     `yaml:"limits"`
	Project project.Options `yaml:"project"`
	Pool    pool.Config     `yaml:"pool"`
	Index   vault.Options   `yaml:"index"`
}

// Default returns the built-in configuration: emoji dialect, current
// directory as vault, full-speed pool.
func Default() Config {
	return Config{
		Vault:   ".",
		Dialect: "emoji",
		Limits:  task.DefaultLimits(),
		Project: project.DefaultOptions(),
		Pool:    pool.DefaultConfig(),
		Index:   vault.DefaultOptions(),
	}
}

// configPaths returns the discovery locations in precedence order: the
// working directory's dotfile first, then the user config directory.
func configPaths() []string {
	paths := []string{".taskvault.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "taskvault", "config.yml"))
	}
	return paths
}

// Load reads configuration from the given path, or discovers one when
// the path is empty. A missing discovered file is not an error; an
// explicit path that does not exist is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "reading config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing config %s", path)
		}
		return cfg, nil
	}

	for _, p := range configPaths() {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing config %s", p)
		}
		return cfg, nil
	}
	return cfg, nil
}

// TaskOptions translates the flat parser settings into task.Options.
func (c Config) TaskOptions() task.Options {
	opts := task.DefaultOptions()
	if c.Dialect == "bracket" {
		opts.Dialect = task.DialectBracket
	}
	if c.CompletedMarkers != "" {
		opts.CompletedMarkers = c.CompletedMarkers
	}
	if c.ProjectPrefix != "" {
		opts.ProjectPrefix = c.ProjectPrefix
	}
	if c.AreaPrefix != "" {
		opts.AreaPrefix = c.AreaPrefix
	}
	if c.ContextSigil != "" {
		opts.ContextSigil = c.ContextSigil
	}
	if c.DateCacheSize > 0 {
		opts.DateCacheSize = c.DateCacheSize
	}
	if c.Limits.MaxParseIterations > 0 {
		opts.Limits = c.Limits
	}
	return opts
}
