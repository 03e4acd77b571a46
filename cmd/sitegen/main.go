package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/sitegen/internal/build"
	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/content"
	"git.home.luguber.info/inful/sitegen/internal/daemon"
	"git.home.luguber.info/inful/sitegen/internal/discovery"
	"git.home.luguber.info/inful/sitegen/internal/eventstore"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"sitegen.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Full   bool   `short:"f" help:"Ignore the build cache and rebuild everything"`
		Events string `help:"SQLite file for the build event log (optional)"`
	} `cmd:"" help:"Build the site, rebuilding only what changed"`

	Discover struct {
		JSON bool `help:"Print the discovered tree as JSON"`
	} `cmd:"" help:"Discover and print the content tree without building"`

	Watch struct {
		Metrics string `help:"Address for the Prometheus metrics endpoint (optional), e.g. :9180"`
		Events  string `help:"SQLite file for the build event log (optional)"`
	} `cmd:"" help:"Watch the content tree and rebuild continuously"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", logfields.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exit int
	switch kctx.Command() {
	case "build":
		exit = runBuild(ctx, cfg)
	case "discover":
		exit = runDiscover(ctx, cfg)
	case "watch":
		exit = runWatch(ctx, cfg)
	default:
		slog.Error("Unknown command", slog.String("command", kctx.Command()))
		exit = 1
	}
	os.Exit(exit)
}

func runBuild(ctx context.Context, cfg *config.Config) int {
	opts := []build.Option{}
	if store, cleanup := openEvents(CLI.Build.Events); store != nil {
		defer cleanup()
		opts = append(opts, build.WithEvents(store))
	}

	builder := build.New(cfg, opts...)
	res, err := builder.Build(ctx, build.Options{
		Incremental: !CLI.Build.Full,
		Verbose:     CLI.Verbose,
	})
	if err != nil {
		slog.Error("Build failed", logfields.Error(err))
		return 1
	}

	for _, diag := range res.Diagnostics {
		logDiagnostic(diag)
	}
	printSummary(res)
	return 0
}

func runDiscover(ctx context.Context, cfg *config.Config) int {
	tree, err := discovery.Discover(ctx, cfg.Content.Root, discovery.Options{
		Workers: cfg.Build.Workers,
		Strict:  cfg.Strict(),
	})
	if err != nil {
		slog.Error("Discovery failed", logfields.Error(err))
		return 1
	}

	for _, diag := range tree.Diagnostics {
		logDiagnostic(diag)
	}

	if CLI.Discover.JSON {
		printTreeJSON(tree)
		return 0
	}
	for _, s := range tree.Sections {
		printSection(s, 0)
	}
	for _, p := range tree.RootPages {
		fmt.Printf("%s (root)\n", p.SourcePath)
	}
	fmt.Printf("\n%d pages, %d sections, %d assets\n",
		len(tree.Pages), len(tree.Flat), len(tree.Assets))
	return 0
}

func runWatch(ctx context.Context, cfg *config.Config) int {
	opts := []build.Option{}
	if store, cleanup := openEvents(CLI.Watch.Events); store != nil {
		defer cleanup()
		opts = append(opts, build.WithEvents(store))
	}
	if CLI.Watch.Metrics != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, build.WithMetrics(metrics.NewPrometheusRecorder(reg)))
		go serveMetrics(CLI.Watch.Metrics, reg)
	}

	d, err := daemon.New(cfg, build.New(cfg, opts...), slog.Default())
	if err != nil {
		slog.Error("Failed to start daemon", logfields.Error(err))
		return 1
	}
	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Daemon failed", logfields.Error(err))
		return 1
	}
	return 0
}

func openEvents(path string) (eventstore.Store, func()) {
	if path == "" {
		return nil, nil
	}
	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		slog.Warn("Event log unavailable, continuing without it", logfields.Error(err))
		return nil, nil
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("Event log close failed", logfields.Error(err))
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	slog.Info("Metrics endpoint listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Metrics endpoint failed", logfields.Error(err))
	}
}

func logDiagnostic(diag content.Diagnostic) {
	if diag.Err != nil {
		slog.Warn(diag.Message, logfields.Path(diag.Path), logfields.Error(diag.Err))
		return
	}
	slog.Warn(diag.Message, logfields.Path(diag.Path))
}

func printSummary(res *build.Result) {
	fmt.Printf("build %s: %d pages, %d assets in %s\n",
		res.BuildID, res.PagesBuilt, res.AssetsProcessed, res.Duration.Round(time.Millisecond))
	for _, c := range res.Summary.CascadeChanges {
		fmt.Printf("  %s\n", c)
	}
}

func printSection(s *content.Section, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s/ (%d pages)\n", indent, s.Name, len(s.Pages))
	for _, p := range s.Pages {
		fmt.Printf("%s  %s\n", indent, p.SourcePath)
	}
	for _, sub := range s.Subsections {
		printSection(sub, depth+1)
	}
}

func printTreeJSON(tree *discovery.Result) {
	type pageOut struct {
		Source  string         `json:"source"`
		Section string         `json:"section,omitempty"`
		Meta    map[string]any `json:"meta,omitempty"`
	}
	out := make([]pageOut, 0, len(tree.Pages))
	for _, p := range tree.Pages {
		po := pageOut{Source: p.SourcePath, Meta: p.Meta}
		if p.Section != nil {
			po.Section = p.Section.Name
		}
		out = append(out, po)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		slog.Error("Failed to encode tree", logfields.Error(err))
	}
}
