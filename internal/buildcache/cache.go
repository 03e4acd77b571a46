// Package buildcache persists what the previous build saw: per-file content
// hashes and mtimes, the active configuration fingerprint, and the effect
// graph recorded by the tracer. It is the only state that survives across
// builds; the content tree itself is rediscovered from scratch every time.
package buildcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitegen/internal/frontmatter"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/trace"
	"github.com/inful/mdfp"
)

// SchemaVersion identifies the persistence format. A cache written with any
// other version is discarded wholesale; there is no partial migration of
// unknown schemas.
const SchemaVersion = 2

// FileState is the stored record for one source file.
type FileState struct {
	Hash    string `json:"hash"`
	MTime   int64  `json:"mtime_unix_nano"`
	NavHash string `json:"nav_hash,omitempty"`
}

// document is the persisted cache layout.
type document struct {
	SchemaVersion     int                  `json:"schema_version"`
	ConfigFingerprint string               `json:"config_fingerprint"`
	FileHashes        map[string]FileState `json:"file_hashes"`
	EffectGraph       map[string][]string  `json:"effect_graph"`
}

// Cache is the durable record of the previous build. The loaded state is
// immutable input for the duration of a build; the staged state is written
// once by Save at the end of a successful build.
type Cache struct {
	path   string
	logger *slog.Logger

	prev   document
	cold   bool
	tracer *trace.Tracer

	staged map[string]FileState

	// memo of freshly computed file states for this build, so a path is
	// hashed at most once per build.
	current map[string]FileState
}

// Load reads the cache file at path. A missing file, unreadable content, or
// schema version mismatch yields a cold cache, never an error: cold caches
// simply cause a full rebuild.
func Load(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		path:    path,
		logger:  logger,
		tracer:  trace.New(),
		staged:  map[string]FileState{},
		current: map[string]FileState{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Build cache unreadable, treating as cold", logfields.Path(path), logfields.Error(err))
		}
		c.cold = true
		return c
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("Build cache corrupt, treating as cold", logfields.Path(path), logfields.Error(err))
		c.cold = true
		return c
	}
	if doc.SchemaVersion != SchemaVersion {
		logger.Info("Build cache schema mismatch, discarding",
			slog.Int("found", doc.SchemaVersion),
			slog.Int("want", SchemaVersion))
		c.cold = true
		return c
	}

	c.prev = doc
	c.tracer = trace.NewFromGraph(doc.EffectGraph)
	return c
}

// IsCold reports whether no usable prior state exists.
func (c *Cache) IsCold() bool { return c.cold }

// Discard drops all loaded prior state, forcing cold behavior for this
// build. Used when incremental builds are disabled: the next Save still
// writes a fresh cache so the build after this one can be incremental.
func (c *Cache) Discard() {
	c.prev = document{}
	c.tracer = trace.New()
	c.cold = true
}

// ValidateConfig reports whether the stored configuration fingerprint
// matches. This is a pure signal; the orchestrator decides what a mismatch
// means (registry invalidation tagged ConfigChanged).
func (c *Cache) ValidateConfig(fingerprint string) bool {
	if c.cold {
		return false
	}
	return c.prev.ConfigFingerprint == fingerprint
}

// Tracer returns the effect tracer restored from the previous build. New
// effects recorded into it are persisted by the next Save.
func (c *Cache) Tracer() *trace.Tracer { return c.tracer }

// IsChanged reports whether path differs from its recorded state. Unknown
// paths count as changed. The mtime fast path skips hashing when the stored
// mtime still matches.
func (c *Cache) IsChanged(path string) (bool, error) {
	prev, known := c.prev.FileHashes[path]
	if !known || c.cold {
		return true, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		// Vanished files are changed by definition.
		return true, nil //nolint:nilerr
	}
	if info.ModTime().UnixNano() == prev.MTime {
		c.current[path] = prev
		return false, nil
	}

	state, err := c.StateOf(path)
	if err != nil {
		return true, fmt.Errorf("hash %s: %w", path, err)
	}
	return state.Hash != prev.Hash, nil
}

// StateOf computes (and memoizes) the current hash and mtime of path.
//
// Markdown files hash through their content fingerprint over canonicalized
// frontmatter, so formatting-only rewrites of the frontmatter block (key
// order, quoting) do not dirty the page; other files hash their raw bytes.
func (c *Cache) StateOf(path string) (FileState, error) {
	if state, ok := c.current[path]; ok {
		return state, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileState{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FileState{}, err
	}

	state := FileState{
		Hash:  hashContent(path, data),
		MTime: info.ModTime().UnixNano(),
	}
	c.current[path] = state
	return state, nil
}

// PrevNavHash returns the stored navigation-metadata hash for path.
func (c *Cache) PrevNavHash(path string) (string, bool) {
	prev, ok := c.prev.FileHashes[path]
	if !ok || prev.NavHash == "" {
		return "", false
	}
	return prev.NavHash, true
}

// Knows reports whether path was known to the previous build at all.
func (c *Cache) Knows(path string) bool {
	_, ok := c.prev.FileHashes[path]
	return ok
}

// KnownPaths returns every path recorded by the previous build.
func (c *Cache) KnownPaths() []string {
	out := make([]string, 0, len(c.prev.FileHashes))
	for p := range c.prev.FileHashes {
		out = append(out, p)
	}
	return out
}

// Stage records the current state of path for the next Save. navHash may be
// empty for files that carry no navigation-relevant metadata.
func (c *Cache) Stage(path, navHash string) error {
	state, err := c.StateOf(path)
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	state.NavHash = navHash
	c.staged[path] = state
	return nil
}

// Save writes the cache document once, at the end of a successful build.
func (c *Cache) Save(configFingerprint string) error {
	doc := document{
		SchemaVersion:     SchemaVersion,
		ConfigFingerprint: configFingerprint,
		FileHashes:        c.staged,
		EffectGraph:       c.tracer.Graph(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal build cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write build cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace build cache: %w", err)
	}

	c.logger.Debug("Build cache saved", logfields.Path(c.path), logfields.Count(len(c.staged)))
	return nil
}

// hashContent hashes file bytes. Markdown goes through the markdown content
// fingerprint with its frontmatter re-serialized into canonical form, so key
// order and quoting style never influence the hash; anything else hashes raw
// bytes.
func hashContent(path string, data []byte) string {
	if strings.EqualFold(filepath.Ext(path), ".md") {
		fm, body, had, err := frontmatter.Split(data)
		if err == nil {
			canonical := ""
			if had {
				canonical, err = canonicalFrontmatter(fm)
			}
			if err == nil {
				return mdfp.CalculateFingerprintFromParts(canonical, string(body))
			}
		}
	}
	return mdfp.CalculateFingerprintFromParts("", string(data))
}

// canonicalFrontmatter parses a frontmatter block and re-serializes it with
// sorted keys, yielding the same bytes for semantically equal blocks.
func canonicalFrontmatter(fm []byte) (string, error) {
	fields, err := frontmatter.ParseYAML(fm)
	if err != nil {
		return "", err
	}
	serialized, err := frontmatter.SerializeYAML(fields)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(serialized), "\n"), nil
}
