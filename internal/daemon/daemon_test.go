package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitegen/internal/build"
	"git.home.luguber.info/inful/sitegen/internal/config"
)

func daemonConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Content.Root = filepath.Join(dir, "content")
	cfg.Build.OutputDir = filepath.Join(dir, "public")
	cfg.Cache.Path = filepath.Join(dir, ".sitegen", "cache.json")
	cfg.Watch.DebounceMS = 50
	require.NoError(t, os.MkdirAll(cfg.Content.Root, 0o750))
	return cfg
}

func TestDaemonRebuildsOnChange(t *testing.T) {
	cfg := daemonConfig(t)
	guide := filepath.Join(cfg.Content.Root, "docs", "guide.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(guide), 0o750))
	require.NoError(t, os.WriteFile(guide, []byte("---\ntitle: Guide\n---\nv1\n"), 0o600))

	d, err := New(cfg, build.New(cfg), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	guideOut := filepath.Join(cfg.Build.OutputDir, "docs", "guide", "index.html")
	waitForContent(t, guideOut, "v1")

	require.NoError(t, os.WriteFile(guide, []byte("---\ntitle: Guide\n---\nv2\n"), 0o600))
	waitForContent(t, guideOut, "v2")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}
}

func waitForContent(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && strings.Contains(string(data), want) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("output %s never contained %q", path, want)
}

func TestInvalidFullRebuildIntervalFails(t *testing.T) {
	cfg := daemonConfig(t)
	cfg.Watch.FullRebuildEvery = "sometimes"

	_, err := New(cfg, build.New(cfg), nil)
	require.Error(t, err)
}

func TestFullRebuildRequestsCoalesce(t *testing.T) {
	cfg := daemonConfig(t)
	d, err := New(cfg, build.New(cfg), nil)
	require.NoError(t, err)

	d.requestFullRebuild()
	d.requestFullRebuild()
	d.requestFullRebuild()

	require.Len(t, d.fullRebuild, 1)
}
