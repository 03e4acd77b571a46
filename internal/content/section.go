package content

import (
	"fmt"
)

// Section is a content directory, or a virtual section with no disk backing
// (generated API docs, version containers).
//
// Lifecycle: created during discovery, mutated via AddPage/AddSubsection
// while discovery runs, sorted once afterwards, read-only during rendering.
type Section struct {
	Name string
	Path string // empty for virtual sections
	URL  string // identity disambiguator for virtual sections
	Meta map[string]any

	Index       *Page
	Pages       []*Page    // insertion order until SortRecursively runs
	Subsections []*Section // insertion order until SortRecursively runs
	Parent      *Section   // non-owning back-reference

	diags DiagnosticSink

	// sorted tracks whether Pages/Subsections reflect weight+title order.
	// Cleared by any mutation, set by SortRecursively.
	sorted bool
}

// NewSection creates a section backed by a content directory.
func NewSection(name, path string) *Section {
	return &Section{
		Name:  name,
		Path:  path,
		Meta:  map[string]any{},
		diags: NopSink,
	}
}

// NewVirtualSection creates a section with no disk backing. The URL
// participates in identity since virtual sections have no path.
func NewVirtualSection(name, url string) *Section {
	return &Section{
		Name:  name,
		URL:   url,
		Meta:  map[string]any{},
		diags: NopSink,
	}
}

// WithDiagnostics injects the diagnostics sink used for non-fatal problems
// such as index-file collisions.
func (s *Section) WithDiagnostics(sink DiagnosticSink) *Section {
	if sink != nil {
		s.diags = sink
	}
	return s
}

// Key returns the stable identity of the section. It does not change as
// pages or metadata mutate, which makes sections usable as map keys during
// incremental tracking.
func (s *Section) Key() string {
	if s.Path != "" {
		return s.Path
	}
	return "virtual:" + s.Name + "|" + s.URL
}

// Equal reports identity equality: same path, or same name+URL for virtual
// sections.
func (s *Section) Equal(other *Section) bool {
	if other == nil {
		return false
	}
	return s.Key() == other.Key()
}

// AddPage inserts a page into the section, wiring the back-reference and
// handling index-file disambiguation.
//
// When both index.md and _index.md exist, _index wins as the section index;
// the loser stays in Pages as a regular page and exactly one diagnostic is
// emitted. Cascade metadata is extracted from index pages only: regular
// pages never contribute cascade to their section.
func (s *Section) AddPage(p *Page) {
	p.Section = s
	s.sorted = false

	if !p.IsIndex() {
		s.Pages = append(s.Pages, p)
		return
	}

	if s.Index == nil {
		s.Index = p
		s.adoptCascade(p)
		return
	}

	// Collision: two index flavors in one section.
	if IsUnderscoreIndex(p.SourcePath) && !IsUnderscoreIndex(s.Index.SourcePath) {
		s.diags.Emit(Diagnostic{
			Path:    p.SourcePath,
			Message: fmt.Sprintf("section %q has both index and _index files; _index wins", s.Name),
		})
		demoted := s.Index
		s.Index = p
		s.adoptCascade(p)
		s.Pages = append(s.Pages, demoted)
		return
	}

	s.diags.Emit(Diagnostic{
		Path:    p.SourcePath,
		Message: fmt.Sprintf("section %q has both index and _index files; _index wins", s.Name),
	})
	s.Pages = append(s.Pages, p)
}

// adoptCascade pulls the cascade map from an index page's frontmatter into
// the section's own metadata.
func (s *Section) adoptCascade(index *Page) {
	if c := index.Cascade(); c != nil {
		s.Meta[MetaCascade] = c
	}
}

// AddSubsection inserts a child section and wires the parent back-reference.
func (s *Section) AddSubsection(child *Section) {
	child.Parent = s
	if child.diags == nil || child.diags == NopSink {
		child.diags = s.diags
	}
	s.Subsections = append(s.Subsections, child)
	s.sorted = false
}

// Cascade returns the section's cascade map, or nil when it has none.
func (s *Section) Cascade() map[string]any {
	c, _ := s.Meta[MetaCascade].(map[string]any)
	return c
}

// Weight returns the sort weight; sections without a weight sort last.
func (s *Section) Weight() float64 {
	return weightOf(s.Meta)
}

// Title returns the section title: index page title, metadata title, or name.
func (s *Section) Title() string {
	if s.Index != nil {
		return s.Index.Title()
	}
	if t, ok := s.Meta["title"].(string); ok && t != "" {
		return t
	}
	return s.Name
}

// AllPages returns every page in the section and its subtree, index pages
// included, in tree order.
func (s *Section) AllPages() []*Page {
	var out []*Page
	s.walkPages(&out)
	return out
}

func (s *Section) walkPages(out *[]*Page) {
	if s.Index != nil {
		*out = append(*out, s.Index)
	}
	*out = append(*out, s.Pages...)
	for _, sub := range s.Subsections {
		sub.walkPages(out)
	}
}
