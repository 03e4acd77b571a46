// Package daemon keeps a site continuously built: it watches the content
// tree, rebuilds incrementally on changes, optionally runs scheduled full
// rebuilds, and can broadcast rebuild summaries over NATS.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitegen/internal/build"
	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/content"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/watch"
)

// Daemon owns the watch loop and the build serialization: builds never
// overlap, batches arriving mid-build queue up as the next forced set.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	builder *build.Builder

	notifier  *Notifier
	scheduler gocron.Scheduler

	// fullRebuild requests from the scheduler, coalesced to one pending.
	fullRebuild chan struct{}
}

// New assembles a daemon around an existing builder.
func New(cfg *config.Config, builder *build.Builder, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{
		cfg:         cfg,
		logger:      logger,
		builder:     builder,
		fullRebuild: make(chan struct{}, 1),
	}

	if cfg.Watch.NATSUrl != "" {
		n, err := NewNotifier(cfg.Watch.NATSUrl, cfg.Watch.NATSSubject, logger)
		if err != nil {
			return nil, err
		}
		d.notifier = n
	}

	if cfg.Watch.FullRebuildEvery != "" {
		if err := d.setupScheduler(); err != nil {
			if d.notifier != nil {
				d.notifier.Close()
			}
			return nil, err
		}
	}
	return d, nil
}

func (d *Daemon) setupScheduler() error {
	interval, err := time.ParseDuration(d.cfg.Watch.FullRebuildEvery)
	if err != nil {
		return fmt.Errorf("invalid full rebuild interval %q: %w", d.cfg.Watch.FullRebuildEvery, err)
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(d.requestFullRebuild),
		gocron.WithName("periodic-full-rebuild"),
	)
	if err != nil {
		return fmt.Errorf("schedule periodic full rebuild: %w", err)
	}
	d.scheduler = s
	return nil
}

// requestFullRebuild is invoked by gocron; at most one request stays queued.
func (d *Daemon) requestFullRebuild() {
	select {
	case d.fullRebuild <- struct{}{}:
	default:
	}
}

// Run builds once, then loops on watcher batches until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	defer func() {
		if d.scheduler != nil {
			if err := d.scheduler.Shutdown(); err != nil {
				d.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}
		if d.notifier != nil {
			d.notifier.Close()
		}
	}()

	roots := []string{d.cfg.Content.Root}
	if d.cfg.Content.ThemeDir != "" {
		roots = append(roots, d.cfg.Content.ThemeDir)
	}
	debounce := time.Duration(d.cfg.Watch.DebounceMS) * time.Millisecond
	watcher, err := watch.New(roots, debounce, d.logger)
	if err != nil {
		return err
	}
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("Watcher stopped", logfields.Error(err))
		}
	}()

	if d.scheduler != nil {
		d.scheduler.Start()
	}

	// Initial build so the daemon starts from a consistent output tree.
	d.buildAndReport(ctx, build.Options{Incremental: true})

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Daemon stopping")
			return nil

		case <-d.fullRebuild:
			d.logger.Info("Scheduled full rebuild")
			d.buildAndReport(ctx, build.Options{Incremental: false})

		case batch, ok := <-watcher.Batches():
			if !ok {
				return nil
			}
			d.logger.Info("Change batch received",
				logfields.Count(len(batch.Paths)),
				slog.Bool("structural", batch.Structural))
			d.buildAndReport(ctx, build.Options{
				Incremental: true,
				Forced:      batch.Paths,
			})
		}
	}
}

func (d *Daemon) buildAndReport(ctx context.Context, opts build.Options) {
	res, err := d.builder.Build(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Daemon keeps running on build failures; the next change retries.
		d.logger.Error("Build failed", logfields.Error(err))
		return
	}

	for _, diag := range res.Diagnostics {
		d.logDiagnostic(diag)
	}
	if d.notifier != nil {
		if err := d.notifier.Publish(res); err != nil {
			d.logger.Warn("Rebuild notification failed", logfields.Error(err))
		}
	}
}

func (d *Daemon) logDiagnostic(diag content.Diagnostic) {
	if diag.Err != nil {
		d.logger.Warn(diag.Message, logfields.Path(diag.Path), logfields.Error(diag.Err))
		return
	}
	d.logger.Warn(diag.Message, logfields.Path(diag.Path))
}
