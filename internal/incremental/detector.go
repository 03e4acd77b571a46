// Package incremental decides, per build, the minimal set of pages and
// assets that must be regenerated. It combines the build cache's hash diff,
// the effect tracer's reverse index, and the content tree's cascade and
// navigation metadata into one additive expansion pipeline.
package incremental

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitegen/internal/buildcache"
	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/content"
	"git.home.luguber.info/inful/sitegen/internal/discovery"
	sgerrors "git.home.luguber.info/inful/sitegen/internal/errors"
	"git.home.luguber.info/inful/sitegen/internal/eventstore"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/registry"
)

// ErrNotInitialized is returned by every detection query that runs before
// Initialize. Silent continuation here would under-invalidate, so this is a
// fatal contract error.
var ErrNotInitialized = sgerrors.NotInitialized("incremental detector")

// Detector is the per-build incremental orchestrator. Single-threaded: it
// operates on the fully materialized tree after discovery, with no
// concurrent mutation.
type Detector struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	metrics  metrics.Recorder
	events   eventstore.Store

	buildID     string
	cache       *buildcache.Cache
	initialized bool
	enabled     bool

	tree        *discovery.Result
	pageByPath  map[string]*content.Page
	pageByOut   map[string]*content.Page
	lastChanged []string // memo of the early phase's changed inputs
}

// Option configures optional detector collaborators.
type Option func(*Detector)

// WithMetrics wires a metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(d *Detector) {
		if r != nil {
			d.metrics = r
		}
	}
}

// WithEvents wires a build event log.
func WithEvents(s eventstore.Store) Option {
	return func(d *Detector) {
		if s != nil {
			d.events = s
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDetector creates a detector for one build session.
func NewDetector(cfg *config.Config, reg *registry.Registry, opts ...Option) *Detector {
	d := &Detector{
		cfg:      cfg,
		logger:   slog.Default(),
		registry: reg,
		metrics:  metrics.NoopRecorder{},
		events:   eventstore.Nop{},
		buildID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BuildID identifies this build in logs and the event store.
func (d *Detector) BuildID() string { return d.buildID }

// Initialize loads the build cache. With enabled=false the cache is forced
// cold, which makes every detection query report a full rebuild.
// Initialize must run before any other method.
func (d *Detector) Initialize(ctx context.Context, enabled bool) (*buildcache.Cache, error) {
	d.cache = buildcache.Load(d.cfg.Cache.Path, d.logger)
	d.enabled = enabled
	if !enabled {
		d.cache.Discard()
	}
	d.initialized = true

	if err := d.events.Append(ctx, d.buildID, eventstore.EventBuildStarted, nil, map[string]string{
		"incremental": boolLabel(enabled),
		"cold":        boolLabel(d.cache.IsCold()),
	}); err != nil {
		d.logger.Warn("Event log append failed", logfields.Error(err))
	}

	d.logger.Info("Incremental detector initialized",
		logfields.BuildID(d.buildID),
		slog.Bool("enabled", enabled),
		slog.Bool("cold", d.cache.IsCold()))
	return d.cache, nil
}

// SetTree installs the freshly discovered content tree and assigns output
// paths. Must run after Initialize and before the detection phases.
func (d *Detector) SetTree(res *discovery.Result) error {
	if !d.initialized {
		return ErrNotInitialized
	}
	d.tree = res
	d.pageByPath = make(map[string]*content.Page, len(res.Pages))
	d.pageByOut = make(map[string]*content.Page, len(res.Pages))
	for _, p := range res.Pages {
		if p.OutputPath == "" {
			p.OutputPath = OutputPathFor(p.SourcePath, d.cfg.Content.Root, d.cfg.Build.OutputDir)
		}
		d.pageByPath[p.SourcePath] = p
		d.pageByOut[p.OutputPath] = p
	}
	return nil
}

// CheckConfigChanged reports whether the persisted configuration
// fingerprint no longer matches the active configuration.
func (d *Detector) CheckConfigChanged() (bool, error) {
	if !d.initialized {
		return false, ErrNotInitialized
	}
	return !d.cache.ValidateConfig(d.cfg.Snapshot()), nil
}

// SaveCache persists the per-file states and the effect graph once, at the
// end of a successful build.
func (d *Detector) SaveCache(ctx context.Context, pagesBuilt []*content.Page, assetsProcessed []string) error {
	if !d.initialized {
		return ErrNotInitialized
	}
	if d.tree == nil {
		return sgerrors.NotInitialized("detector content tree")
	}

	navFields := d.cfg.Build.NavFields
	for _, p := range d.tree.Pages {
		navHash := ""
		if p.IsIndex() {
			navHash = buildcache.NavHash(p.Meta, navFields)
		}
		if err := d.cache.Stage(p.SourcePath, navHash); err != nil {
			d.logger.Warn("Stage failed, file will rebuild next time",
				logfields.Path(p.SourcePath), logfields.Error(err))
		}
	}
	for _, a := range d.tree.Assets {
		if err := d.cache.Stage(a, ""); err != nil {
			d.logger.Warn("Stage failed, asset will reprocess next time",
				logfields.Path(a), logfields.Error(err))
		}
	}
	for _, tpl := range d.templateFiles() {
		if err := d.cache.Stage(tpl, ""); err != nil {
			d.logger.Warn("Stage failed, template counts as changed next time",
				logfields.Path(tpl), logfields.Error(err))
		}
	}

	if err := d.cache.Save(d.cfg.Snapshot()); err != nil {
		return sgerrors.CacheWriteFailed(d.cfg.Cache.Path, err)
	}

	payload, _ := json.Marshal(map[string]int{
		"pages_built":      len(pagesBuilt),
		"assets_processed": len(assetsProcessed),
	})
	if err := d.events.Append(ctx, d.buildID, eventstore.EventCacheSaved, payload, nil); err != nil {
		d.logger.Warn("Event log append failed", logfields.Error(err))
	}
	return nil
}

func (d *Detector) observe(phase string, start time.Time) {
	elapsed := time.Since(start)
	d.metrics.ObserveDetectionDuration(phase, elapsed)
	d.logger.Debug("Detection phase complete",
		slog.String("phase", phase),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
