// Package content holds the in-memory tree of sections and pages built by
// discovery: pure data plus hierarchy invariants, no I/O of its own.
//
// The forest is rebuilt from scratch on every build; only the build cache
// survives across builds. Identity of nodes is therefore defined by stable
// keys (source path for pages, directory path for sections) so that a node
// reconstructed in a later build compares equal to its prior incarnation.
package content

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// MetaCascade is the frontmatter key whose values propagate to descendants.
const MetaCascade = "cascade"

// MetaParseError marks a page whose frontmatter could not be parsed.
const MetaParseError = "_parse_error"

// Page is a single content file, or a synthetic page with no disk backing.
//
// Meta is mutable: cascade resolution writes inherited values into it. The
// body may be lazily loaded (see NewLazyPage) when a prior build proved the
// page unchanged.
type Page struct {
	SourcePath string // identity key; empty only for virtual pages
	OutputPath string
	Meta       map[string]any
	Version    string
	Lang       string
	Section    *Section // non-owning back-reference, nil for root-level pages

	body   []byte
	loader func() ([]byte, error)
	loaded bool
}

// NewPage creates a page with an eagerly loaded body.
func NewPage(sourcePath string, body []byte, meta map[string]any) *Page {
	if meta == nil {
		meta = map[string]any{}
	}
	return &Page{
		SourcePath: sourcePath,
		Meta:       meta,
		body:       body,
		loaded:     true,
	}
}

// NewLazyPage creates a page whose body is loaded on first access.
//
// The metadata must come from a verified cache entry: callers are responsible
// for proving the cached metadata still matches the file on disk before
// deferring the load.
func NewLazyPage(sourcePath string, meta map[string]any, loader func() ([]byte, error)) *Page {
	if meta == nil {
		meta = map[string]any{}
	}
	return &Page{
		SourcePath: sourcePath,
		Meta:       meta,
		loader:     loader,
	}
}

// Key returns the stable identity of the page. Two pages with the same key
// are the same page across builds, regardless of content.
func (p *Page) Key() string { return p.SourcePath }

// Equal reports identity equality (same source path).
func (p *Page) Equal(other *Page) bool {
	if other == nil {
		return false
	}
	return p.Key() == other.Key()
}

// Body returns the raw content, loading it lazily when deferred.
func (p *Page) Body() ([]byte, error) {
	if p.loaded {
		return p.body, nil
	}
	if p.loader == nil {
		p.loaded = true
		return nil, nil
	}
	body, err := p.loader()
	if err != nil {
		return nil, fmt.Errorf("lazy load %s: %w", p.SourcePath, err)
	}
	p.body = body
	p.loaded = true
	p.loader = nil
	return p.body, nil
}

// IsLoaded reports whether the body is materialized in memory.
func (p *Page) IsLoaded() bool { return p.loaded }

// Title returns the page title, falling back to the source filename.
func (p *Page) Title() string {
	if t, ok := p.Meta["title"].(string); ok && t != "" {
		return t
	}
	return TitleFromFilename(p.SourcePath)
}

// Weight returns the sort weight; pages without a weight sort last.
func (p *Page) Weight() float64 {
	return weightOf(p.Meta)
}

// Cascade returns the page's cascade map, or nil when it has none.
// An empty cascade map is returned as-is and is a no-op for resolution.
func (p *Page) Cascade() map[string]any {
	c, _ := p.Meta[MetaCascade].(map[string]any)
	return c
}

// IsIndex reports whether this file acts as a section index.
func (p *Page) IsIndex() bool {
	return IsIndexFile(p.SourcePath)
}

// IsIndexFile reports whether path names a section index file.
func IsIndexFile(path string) bool {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return base == "index" || base == "_index"
}

// IsUnderscoreIndex reports whether path is the `_index` flavor, which wins
// over plain `index` when both are present in one section.
func IsUnderscoreIndex(path string) bool {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return base == "_index"
}

// TitleFromFilename derives a human title from a source path, used when
// frontmatter supplies none (including synthesized metadata for pages whose
// frontmatter failed to parse).
func TitleFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.TrimSpace(base)
	if base == "" {
		return path
	}
	return strings.ToUpper(base[:1]) + base[1:]
}

func weightOf(meta map[string]any) float64 {
	switch w := meta["weight"].(type) {
	case int:
		return float64(w)
	case int64:
		return float64(w)
	case float64:
		return w
	case float32:
		return float64(w)
	default:
		return math.Inf(1)
	}
}
