// Package config loads and validates the site configuration that drives the
// incremental build engine.
package config

import (
	"fmt"
	"os"
	"runtime"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level site configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Content ContentConfig `yaml:"content"`
	Build   BuildConfig   `yaml:"build"`
	Cache   CacheConfig   `yaml:"cache"`
	Watch   WatchConfig   `yaml:"watch"`
	Git     GitConfig     `yaml:"git"`
}

// SiteConfig describes the site itself.
type SiteConfig struct {
	Title   string `yaml:"title"`
	BaseURL string `yaml:"base_url"`
	Theme   string `yaml:"theme"`
	Lang    string `yaml:"lang"`
}

// ContentConfig describes where and how content is discovered.
type ContentConfig struct {
	Root string `yaml:"root"`
	// ThemeDir holds the active theme's templates; template changes there
	// expand to dependent pages via the effect tracer.
	ThemeDir string `yaml:"theme_dir"`
	// Lazy enables proxy pages whose bodies load on first access when the
	// cached metadata is verified unchanged.
	Lazy bool `yaml:"lazy"`
	// StrictValidation makes collection schema violations fatal (default)
	// instead of recorded diagnostics.
	StrictValidation *bool `yaml:"strict_validation"`
}

// BuildConfig tunes the build engine.
type BuildConfig struct {
	OutputDir string `yaml:"output_dir"`
	// Workers bounds the discovery parse pool; 0 means sized for I/O-bound
	// work from the core count.
	Workers int `yaml:"workers"`
	// NavFields overrides the frontmatter subset treated as
	// navigation-relevant for section index change detection.
	NavFields []string `yaml:"nav_fields"`
}

// CacheConfig locates persisted build state.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig tunes the watch daemon.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
	// FullRebuildEvery optionally schedules periodic cold rebuilds,
	// e.g. "30m". Empty disables the schedule.
	FullRebuildEvery string `yaml:"full_rebuild_every"`
	// NATSUrl enables publishing rebuild summaries when non-empty.
	NATSUrl     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

// GitConfig controls git-derived page metadata.
type GitConfig struct {
	// Lastmod stamps pages with the last commit time touching them.
	Lastmod bool `yaml:"lastmod"`
}

// Load reads the configuration file, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	// Best effort: .env files are optional.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Content.Root == "" {
		c.Content.Root = "content"
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = "public"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = ".sitegen/cache.json"
	}
	if c.Build.Workers <= 0 {
		// I/O-bound parsing: near core count, capped so a big machine does
		// not turn discovery into a seek storm.
		c.Build.Workers = min(runtime.GOMAXPROCS(0)*2, 16)
	}
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = 300
	}
	if c.Watch.NATSSubject == "" {
		c.Watch.NATSSubject = "sitegen.rebuilt"
	}
	if c.Site.Lang == "" {
		c.Site.Lang = "en"
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SITEGEN_CONTENT_ROOT"); v != "" {
		c.Content.Root = v
	}
	if v := os.Getenv("SITEGEN_OUTPUT_DIR"); v != "" {
		c.Build.OutputDir = v
	}
	if v := os.Getenv("SITEGEN_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("SITEGEN_NATS_URL"); v != "" {
		c.Watch.NATSUrl = v
	}
}

// Validate checks structural invariants of the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Content, validation.Required),
		validation.Field(&c.Build),
		validation.Field(&c.Watch),
	)
}

// Validate implements validation.Validatable.
func (c ContentConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Root, validation.Required),
	)
}

// Validate implements validation.Validatable.
func (c BuildConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.OutputDir, validation.Required),
		validation.Field(&c.Workers, validation.Min(1), validation.Max(128)),
	)
}

// Validate implements validation.Validatable.
func (c WatchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DebounceMS, validation.Min(1), validation.Max(60_000)),
	)
}

// Strict reports whether schema validation failures abort the build.
// Strict is the default; lenient mode records diagnostics and proceeds with
// unvalidated metadata.
func (c *Config) Strict() bool {
	if c.Content.StrictValidation == nil {
		return true
	}
	return *c.Content.StrictValidation
}
