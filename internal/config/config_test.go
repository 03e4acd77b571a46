package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "site:\n  title: Docs\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "content", cfg.Content.Root)
	require.Equal(t, "public", cfg.Build.OutputDir)
	require.Equal(t, ".sitegen/cache.json", cfg.Cache.Path)
	require.Greater(t, cfg.Build.Workers, 0)
	require.Equal(t, "sitegen.rebuilt", cfg.Watch.NATSSubject)
	require.True(t, cfg.Strict(), "strict validation is the default")
}

func TestLoadRejectsBadWorkers(t *testing.T) {
	path := writeConfig(t, "build:\n  workers: 100000\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SITEGEN_CONTENT_ROOT", "elsewhere")
	path := writeConfig(t, "site:\n  title: Docs\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "elsewhere", cfg.Content.Root)
}

func TestStrictToggle(t *testing.T) {
	path := writeConfig(t, "content:\n  root: content\n  strict_validation: false\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.Strict())
}

func TestSnapshotStability(t *testing.T) {
	a := &Config{Site: SiteConfig{Title: "Docs", Theme: "hex"}}
	a.applyDefaults()
	b := &Config{Site: SiteConfig{Title: "Docs", Theme: "hex"}}
	b.applyDefaults()

	require.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestSnapshotIgnoresWatchTuning(t *testing.T) {
	a := &Config{Site: SiteConfig{Title: "Docs"}}
	a.applyDefaults()
	b := &Config{Site: SiteConfig{Title: "Docs"}}
	b.applyDefaults()
	b.Watch.DebounceMS = 9999
	b.Watch.NATSUrl = "nats://elsewhere:4222"

	require.Equal(t, a.Snapshot(), b.Snapshot(),
		"watch tuning must not dirty the config fingerprint")
}

func TestSnapshotReactsToBuildAffectingFields(t *testing.T) {
	a := &Config{Site: SiteConfig{Title: "Docs"}}
	a.applyDefaults()

	themed := &Config{Site: SiteConfig{Title: "Docs", Theme: "other"}}
	themed.applyDefaults()
	require.NotEqual(t, a.Snapshot(), themed.Snapshot())

	nav := &Config{Site: SiteConfig{Title: "Docs"}}
	nav.applyDefaults()
	nav.Build.NavFields = []string{"title", "sidebar_label"}
	require.NotEqual(t, a.Snapshot(), nav.Snapshot())
}

func TestSnapshotNavFieldsOrderInsensitive(t *testing.T) {
	a := &Config{}
	a.applyDefaults()
	a.Build.NavFields = []string{"weight", "title"}

	b := &Config{}
	b.applyDefaults()
	b.Build.NavFields = []string{"title", "weight"}

	require.Equal(t, a.Snapshot(), b.Snapshot())
}
