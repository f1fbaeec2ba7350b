// Package storeconfig loads the span telemetry store's runtime
// configuration: the badger data directory, retention and undelete
// durations, the snowflake node-id allocator backend, and the
// observability endpoints. It is the store-domain counterpart of
// pkg/config/koanf_loader.go, generalized from agent config to store
// config: same koanf/file/yaml stack, same watch-and-reload shape, a
// different Config type.
package storeconfig

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kadirpekel/spanstore/pkg/obs"
)

// SnowflakeConfig selects and parameterizes the node-id allocator (see
// pkg/telemetry/snowflake.Allocator).
type SnowflakeConfig struct {
	// Allocator is one of "static", "consul", "etcd", "zookeeper".
	Allocator string   `koanf:"allocator"`
	NodeID    uint64   `koanf:"node_id"`    // used by "static"
	Endpoints []string `koanf:"endpoints"`  // used by the coordinated backends
	Prefix    string   `koanf:"prefix"`     // key/znode prefix under which ids are claimed
}

func (c *SnowflakeConfig) setDefaults() {
	if c.Allocator == "" {
		c.Allocator = "static"
	}
	if c.Prefix == "" {
		c.Prefix = "spanstore/nodeids/"
	}
}

// RetentionConfig sets the max age the purge command uses when no
// --max-age flag is given.
type RetentionConfig struct {
	SpanMaxAge time.Duration `koanf:"span_max_age"`
}

// UndeleteConfig mirrors undelete.Policy, loaded from config instead of
// constructed in code.
type UndeleteConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Retention time.Duration `koanf:"retention"`
}

// Config is the span telemetry store's full runtime configuration.
type Config struct {
	BadgerDir string `koanf:"badger_dir"`

	Snowflake SnowflakeConfig `koanf:"snowflake"`
	Retention RetentionConfig `koanf:"retention"`
	Undelete  UndeleteConfig  `koanf:"undelete"`

	Metrics obs.MetricsConfig `koanf:"metrics"`
	Tracer  obs.TracerConfig  `koanf:"tracer"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func (c *Config) setDefaults() {
	if c.BadgerDir == "" {
		c.BadgerDir = ".spanstore/data"
	}
	c.Snowflake.setDefaults()
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "simple"
	}
}

var defaults = map[string]interface{}{
	"badger_dir":         ".spanstore/data",
	"snowflake.allocator": "static",
	"snowflake.node_id":   0,
	"log_level":           "info",
	"log_format":          "simple",
}

// Loader loads Config from a YAML file, with the option to watch it for
// changes the way pkg/config.Loader watches agent config — a thin layer
// over koanf's file provider, which itself multiplexes to fsnotify for the
// local-filesystem case.
type Loader struct {
	koanf    *koanf.Koanf
	path     string
	provider *file.File
	onChange func(*Config)
}

// NewLoader returns a Loader that will read path (a YAML file) on Load.
func NewLoader(path string) *Loader {
	return &Loader{
		koanf: koanf.New("."),
		path:  path,
	}
}

// Load reads defaults, then path, and returns the merged Config with
// setDefaults applied. It performs no further validation.
func (l *Loader) Load() (*Config, error) {
	if err := l.koanf.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("storeconfig: load defaults: %w", err)
	}

	l.provider = file.Provider(l.path)
	if err := l.koanf.Load(l.provider, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("storeconfig: load %s: %w", l.path, err)
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.koanf.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("storeconfig: unmarshal: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

// Watch starts watching the config file for changes via koanf's
// fsnotify-backed file provider, invoking onChange with the freshly loaded
// Config on every write. Load must be called first. Watch returns once the
// watch is established; errors during a later reload are logged and do
// not stop the watch.
func (l *Loader) Watch(onChange func(*Config)) error {
	if l.provider == nil {
		return fmt.Errorf("storeconfig: Watch called before Load")
	}
	l.onChange = onChange

	return l.provider.Watch(func(event interface{}, err error) {
		if err != nil {
			obs.GetLogger().Error("storeconfig: watch error", slog.Any("error", err))
			return
		}
		if err := l.koanf.Load(l.provider, yaml.Parser()); err != nil {
			obs.GetLogger().Error("storeconfig: reload failed", slog.Any("error", err))
			return
		}
		cfg, err := l.unmarshal()
		if err != nil {
			obs.GetLogger().Error("storeconfig: reload unmarshal failed", slog.Any("error", err))
			return
		}
		if l.onChange != nil {
			l.onChange(cfg)
		}
	})
}
