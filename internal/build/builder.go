// Package build runs the full build pipeline: discover the content tree,
// compute the minimal rebuild set, render it, clean up orphaned outputs and
// persist the cache. Both the CLI build command and the watch daemon drive
// builds through here.
package build

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/content"
	"git.home.luguber.info/inful/sitegen/internal/discovery"
	sgerrors "git.home.luguber.info/inful/sitegen/internal/errors"
	"git.home.luguber.info/inful/sitegen/internal/eventstore"
	"git.home.luguber.info/inful/sitegen/internal/gitmeta"
	"git.home.luguber.info/inful/sitegen/internal/incremental"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/registry"
	"git.home.luguber.info/inful/sitegen/internal/render"
	"git.home.luguber.info/inful/sitegen/internal/trace"
)

// Options selects the work of one build.
type Options struct {
	// Incremental enables the build cache; false forces a cold full build.
	Incremental bool
	// Forced are paths already known changed (file watcher batches).
	Forced []string
	// NavChanged are section index paths whose navigation metadata the
	// caller asserts changed.
	NavChanged []string
	Verbose    bool
}

// Result summarizes one completed build.
type Result struct {
	BuildID         string
	PagesBuilt      int
	AssetsProcessed int
	Summary         incremental.ChangeSummary
	Diagnostics     []content.Diagnostic
	Duration        time.Duration
}

// Builder holds the long-lived collaborators shared across builds in one
// process (daemon mode runs many builds; the CLI exactly one).
type Builder struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	metrics  metrics.Recorder
	events   eventstore.Store
	renderer render.Renderer
	lastmod  func(path string) (time.Time, bool)
}

// Option configures optional builder collaborators.
type Option func(*Builder)

// WithMetrics wires a metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(b *Builder) {
		if r != nil {
			b.metrics = r
		}
	}
}

// WithEvents wires a build event log.
func WithEvents(s eventstore.Store) Option {
	return func(b *Builder) {
		if s != nil {
			b.events = s
		}
	}
}

// WithRenderer replaces the default markdown renderer.
func WithRenderer(r render.Renderer) Option {
	return func(b *Builder) {
		if r != nil {
			b.renderer = r
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a builder. When git lastmod enrichment is enabled and the
// content root is not inside a repository, the feature degrades to a logged
// warning rather than failing builds.
func New(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: metrics.NoopRecorder{},
		events:  eventstore.Nop{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.registry = registry.New(b.logger)

	if cfg.Git.Lastmod {
		lm, err := gitmeta.Open(cfg.Content.Root, b.logger)
		if err != nil {
			b.logger.Warn("Git lastmod enrichment unavailable", logfields.Error(err))
		} else {
			b.lastmod = lm.Time
		}
	}
	return b
}

// Registry exposes the cache registry so callers can register derived
// caches (navigation tree, version index) for tagged invalidation.
func (b *Builder) Registry() *registry.Registry { return b.registry }

// Build runs one complete build.
func (b *Builder) Build(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	res, err := b.run(ctx, opts)
	elapsed := time.Since(start)
	b.metrics.ObserveBuildDuration(elapsed)
	if err != nil {
		b.metrics.IncBuildOutcome("failed")
		return nil, err
	}
	res.Duration = elapsed
	b.metrics.IncBuildOutcome("success")

	b.logger.Info("Build complete",
		logfields.BuildID(res.BuildID),
		slog.Int("pages", res.PagesBuilt),
		slog.Int("assets", res.AssetsProcessed),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return res, nil
}

func (b *Builder) run(ctx context.Context, opts Options) (*Result, error) {
	detector := incremental.NewDetector(b.cfg, b.registry,
		incremental.WithMetrics(b.metrics),
		incremental.WithEvents(b.events),
		incremental.WithLogger(b.logger))

	cache, err := detector.Initialize(ctx, opts.Incremental)
	if err != nil {
		return nil, err
	}

	tree, err := discovery.Discover(ctx, b.cfg.Content.Root, discovery.Options{
		Workers: b.cfg.Build.Workers,
		Lazy:    b.cfg.Content.Lazy,
		Cache:   cache,
		Strict:  b.cfg.Strict(),
		Lastmod: b.lastmod,
		Logger:  b.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := detector.SetTree(tree); err != nil {
		return nil, err
	}

	work, err := detector.FindWorkEarly(ctx, opts.Verbose, opts.Forced, opts.NavChanged)
	if err != nil {
		return nil, err
	}

	renderer := b.renderer
	if renderer == nil {
		renderer = render.NewMarkdown(b.cfg.Content.Root, b.themeTemplate(), cache.Tracer(), b.logger)
	}

	var built []*content.Page
	var renderErrs error
	for _, page := range work.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := renderer.Render(ctx, page); err != nil {
			renderErrs = multierr.Append(renderErrs, err)
			continue
		}
		built = append(built, page)
	}
	if renderErrs != nil {
		return nil, sgerrors.Wrap(renderErrs, sgerrors.CategoryRender, sgerrors.SeverityError,
			"some pages failed to render")
	}

	processed, err := b.processAssets(work.Assets, cache.Tracer())
	if err != nil {
		return nil, err
	}

	// Full phase: this pipeline generates no derived pages itself, but the
	// pass still detects structural changes and invalidates derived caches.
	if _, err := detector.FindWork(ctx, opts.Verbose, nil); err != nil {
		return nil, err
	}

	if _, err := detector.CleanupOrphans(ctx); err != nil {
		return nil, err
	}
	if err := detector.SaveCache(ctx, built, processed); err != nil {
		return nil, err
	}

	return &Result{
		BuildID:         detector.BuildID(),
		PagesBuilt:      len(built),
		AssetsProcessed: len(processed),
		Summary:         work.Summary,
		Diagnostics:     tree.Diagnostics,
	}, nil
}

// processAssets copies changed assets into the output tree byte for byte.
// Image pipelines and bundling are downstream concerns.
//
// Every copy is recorded in the tracer so orphan cleanup can delete the
// output once the asset source disappears.
func (b *Builder) processAssets(assets []string, tracer *trace.Tracer) ([]string, error) {
	var processed []string
	for _, src := range assets {
		dst := incremental.OutputPathFor(src, b.cfg.Content.Root, b.cfg.Build.OutputDir)
		if err := copyFile(src, dst); err != nil {
			return nil, sgerrors.Wrap(err, sgerrors.CategoryFileSystem, sgerrors.SeverityError,
				"copy asset "+src)
		}
		tracer.Record(dst, []string{src})
		processed = append(processed, src)
	}
	return processed, nil
}

// themeTemplate points at the layout file every page depends on, when the
// theme provides one.
func (b *Builder) themeTemplate() string {
	if b.cfg.Content.ThemeDir == "" {
		return ""
	}
	tpl := filepath.Join(b.cfg.Content.ThemeDir, "single.html")
	if _, err := os.Stat(tpl); err != nil {
		return ""
	}
	return tpl
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
