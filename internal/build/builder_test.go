package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitegen/internal/config"
	"git.home.luguber.info/inful/sitegen/internal/content"
	"git.home.luguber.info/inful/sitegen/internal/metrics"
	"git.home.luguber.info/inful/sitegen/internal/render"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Content.Root = filepath.Join(dir, "content")
	cfg.Build.OutputDir = filepath.Join(dir, "public")
	cfg.Cache.Path = filepath.Join(dir, ".sitegen", "cache.json")
	require.NoError(t, os.MkdirAll(cfg.Content.Root, 0o750))
	return cfg
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestBuildRendersSiteEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Content.Root, "docs", "_index.md"),
		"---\ntitle: Docs\n---\nwelcome\n")
	writeFile(t, filepath.Join(cfg.Content.Root, "docs", "guide.md"),
		"---\ntitle: Guide\n---\n# Guide\n")
	writeFile(t, filepath.Join(cfg.Content.Root, "docs", "logo.png"), "png-bytes")

	b := New(cfg)
	res, err := b.Build(context.Background(), Options{Incremental: true})
	require.NoError(t, err)

	require.Equal(t, 2, res.PagesBuilt)
	require.Equal(t, 1, res.AssetsProcessed)
	require.FileExists(t, filepath.Join(cfg.Build.OutputDir, "docs", "guide", "index.html"))
	require.FileExists(t, filepath.Join(cfg.Build.OutputDir, "docs", "index.html"))
	require.FileExists(t, filepath.Join(cfg.Build.OutputDir, "docs", "logo.png"))
	require.FileExists(t, cfg.Cache.Path)

	data, err := os.ReadFile(filepath.Join(cfg.Build.OutputDir, "docs", "guide", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(data), "<h1>Guide</h1>")
}

func TestSecondBuildIsIncremental(t *testing.T) {
	cfg := testConfig(t)
	guide := filepath.Join(cfg.Content.Root, "docs", "guide.md")
	writeFile(t, guide, "---\ntitle: Guide\n---\nv1\n")
	writeFile(t, filepath.Join(cfg.Content.Root, "docs", "other.md"),
		"---\ntitle: Other\n---\nbody\n")

	b := New(cfg)
	ctx := context.Background()
	_, err := b.Build(ctx, Options{Incremental: true})
	require.NoError(t, err)

	// Nothing changed: nothing rebuilds.
	res, err := b.Build(ctx, Options{Incremental: true})
	require.NoError(t, err)
	require.Zero(t, res.PagesBuilt)
	require.Zero(t, res.AssetsProcessed)

	// One edit rebuilds exactly one page.
	writeFile(t, guide, "---\ntitle: Guide\n---\nv2\n")
	res, err = b.Build(ctx, Options{Incremental: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.PagesBuilt)
	require.Equal(t, []string{guide}, res.Summary.ModifiedContent)
}

func TestRemovedSourceCleansOutput(t *testing.T) {
	cfg := testConfig(t)
	doomed := filepath.Join(cfg.Content.Root, "docs", "doomed.md")
	writeFile(t, doomed, "---\ntitle: Doomed\n---\nbody\n")
	writeFile(t, filepath.Join(cfg.Content.Root, "docs", "keeper.md"),
		"---\ntitle: Keeper\n---\nbody\n")

	b := New(cfg)
	ctx := context.Background()
	_, err := b.Build(ctx, Options{Incremental: true})
	require.NoError(t, err)

	doomedOut := filepath.Join(cfg.Build.OutputDir, "docs", "doomed", "index.html")
	require.FileExists(t, doomedOut)

	require.NoError(t, os.Remove(doomed))
	_, err = b.Build(ctx, Options{Incremental: true})
	require.NoError(t, err)
	require.NoFileExists(t, doomedOut)
	require.FileExists(t, filepath.Join(cfg.Build.OutputDir, "docs", "keeper", "index.html"))
}

func TestRemovedAssetCleansOutput(t *testing.T) {
	cfg := testConfig(t)
	logo := filepath.Join(cfg.Content.Root, "docs", "logo.png")
	writeFile(t, logo, "png-bytes")
	writeFile(t, filepath.Join(cfg.Content.Root, "docs", "guide.md"),
		"---\ntitle: Guide\n---\nbody\n")

	b := New(cfg)
	ctx := context.Background()
	_, err := b.Build(ctx, Options{Incremental: true})
	require.NoError(t, err)

	logoOut := filepath.Join(cfg.Build.OutputDir, "docs", "logo.png")
	require.FileExists(t, logoOut)

	require.NoError(t, os.Remove(logo))
	_, err = b.Build(ctx, Options{Incremental: true})
	require.NoError(t, err)
	require.NoFileExists(t, logoOut)
	require.FileExists(t, filepath.Join(cfg.Build.OutputDir, "docs", "guide", "index.html"))
}

type outcomeRecorder struct {
	metrics.NoopRecorder
	outcomes []string
}

func (r *outcomeRecorder) IncBuildOutcome(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, *content.Page) (*render.Output, error) {
	return nil, errors.New("render exploded")
}

func TestBuildOutcomeLabels(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Content.Root, "docs", "guide.md"),
		"---\ntitle: Guide\n---\nbody\n")

	rec := &outcomeRecorder{}
	b := New(cfg, WithMetrics(rec), WithRenderer(failingRenderer{}))
	_, err := b.Build(context.Background(), Options{Incremental: true})
	require.Error(t, err)
	require.Equal(t, []string{"failed"}, rec.outcomes)

	rec = &outcomeRecorder{}
	b = New(cfg, WithMetrics(rec))
	_, err = b.Build(context.Background(), Options{Incremental: true})
	require.NoError(t, err)
	require.Equal(t, []string{"success"}, rec.outcomes)
}

func TestForcedPathsDriveRebuild(t *testing.T) {
	cfg := testConfig(t)
	guide := filepath.Join(cfg.Content.Root, "docs", "guide.md")
	writeFile(t, guide, "---\ntitle: Guide\n---\nbody\n")

	b := New(cfg)
	ctx := context.Background()
	_, err := b.Build(ctx, Options{Incremental: true})
	require.NoError(t, err)

	// Unchanged on disk, but the watcher says it changed.
	res, err := b.Build(ctx, Options{Incremental: true, Forced: []string{guide}})
	require.NoError(t, err)
	require.Equal(t, 1, res.PagesBuilt)
}
