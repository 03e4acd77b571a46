package config

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Snapshot computes a stable hash of build-affecting configuration fields.
// It is intentionally narrower than full serialization to avoid noisy full
// rebuilds when unrelated fields (watch debounce, NATS endpoints) change.
// Slice fields are order-insensitive (sorted prior to hashing). Callers
// should load the config through Load so defaults are applied before a
// snapshot is computed.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) {
		h.Write([]byte(strings.Join(parts, "=")))
		h.Write([]byte{0})
	}

	// Site essentials: all three affect every rendered page.
	w("site.title", c.Site.Title)
	w("site.base_url", c.Site.BaseURL)
	w("site.theme", c.Site.Theme)
	w("site.lang", c.Site.Lang)

	// Content shape
	w("content.root", c.Content.Root)
	w("content.theme_dir", c.Content.ThemeDir)

	// Build flags that change produced output or detection behavior
	w("build.output_dir", c.Build.OutputDir)
	if len(c.Build.NavFields) > 0 {
		nf := append([]string{}, c.Build.NavFields...)
		sort.Strings(nf)
		w("build.nav_fields", strings.Join(nf, ","))
	}

	// Git-derived metadata changes page output
	w("git.lastmod", strconv.FormatBool(c.Git.Lastmod))

	return hex.EncodeToString(h.Sum(nil))
}
