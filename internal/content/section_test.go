package content

import (
	"testing"
)

func TestIndexCollisionUnderscoreWins(t *testing.T) {
	tests := []struct {
		name  string
		first string
		then  string
	}{
		{"underscore arrives second", "docs/index.md", "docs/_index.md"},
		{"underscore arrives first", "docs/_index.md", "docs/index.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var collector Collector
			s := NewSection("docs", "docs").WithDiagnostics(&collector)

			s.AddPage(newTestPage(tt.first, map[string]any{}))
			s.AddPage(newTestPage(tt.then, map[string]any{}))

			if s.Index == nil || !IsUnderscoreIndex(s.Index.SourcePath) {
				t.Fatalf("_index must win as index page, got %v", s.Index)
			}
			if len(collector.Diagnostics) != 1 {
				t.Errorf("expected exactly one diagnostic, got %d", len(collector.Diagnostics))
			}
			if len(s.Pages) != 1 {
				t.Errorf("losing index file should remain as a regular page, got %d pages", len(s.Pages))
			}
		})
	}
}

func TestIndexCascadeExtraction(t *testing.T) {
	s := NewSection("docs", "docs")
	s.AddPage(newTestPage("docs/_index.md", map[string]any{
		MetaCascade: map[string]any{"type": "doc"},
	}))

	c := s.Cascade()
	if c == nil || c["type"] != "doc" {
		t.Errorf("cascade not extracted from index page: %v", c)
	}
}

func TestRegularPageNeverContributesCascade(t *testing.T) {
	s := NewSection("docs", "docs")
	s.AddPage(newTestPage("docs/page.md", map[string]any{
		MetaCascade: map[string]any{"type": "doc"},
	}))

	if s.Cascade() != nil {
		t.Error("regular pages must not contribute cascade to their section")
	}
}

func TestSectionIdentityStableUnderMutation(t *testing.T) {
	s := NewSection("docs", "docs")
	key := s.Key()

	s.AddPage(newTestPage("docs/a.md", map[string]any{}))
	s.Meta["weight"] = 3

	if s.Key() != key {
		t.Errorf("section key changed under mutation: %q -> %q", key, s.Key())
	}
}

func TestVirtualSectionIdentity(t *testing.T) {
	a := NewVirtualSection("api", "/api/")
	b := NewVirtualSection("api", "/api/")
	c := NewVirtualSection("api", "/api/v2/")

	if !a.Equal(b) {
		t.Error("virtual sections with same name and URL must be equal")
	}
	if a.Equal(c) {
		t.Error("virtual sections with different URLs must differ")
	}
}

func TestPageIdentityAcrossContentChange(t *testing.T) {
	prior := NewPage("docs/guide.md", []byte("old body"), map[string]any{"title": "Old"})
	rebuilt := NewPage("docs/guide.md", []byte("completely new"), map[string]any{"title": "New"})

	if !prior.Equal(rebuilt) {
		t.Error("pages reconstructed with the same source path must compare equal")
	}
	if prior.Key() != rebuilt.Key() {
		t.Error("page key must be stable across content mutation")
	}
}

func TestLazyPageDefersLoad(t *testing.T) {
	loads := 0
	p := NewLazyPage("docs/big.md", map[string]any{"title": "Big"}, func() ([]byte, error) {
		loads++
		return []byte("loaded"), nil
	})

	if p.IsLoaded() {
		t.Fatal("lazy page must not be loaded at construction")
	}

	body, err := p.Body()
	if err != nil {
		t.Fatalf("Body failed: %v", err)
	}
	if string(body) != "loaded" {
		t.Errorf("body = %q", body)
	}

	if _, err := p.Body(); err != nil {
		t.Fatalf("second Body failed: %v", err)
	}
	if loads != 1 {
		t.Errorf("loader ran %d times, want 1", loads)
	}
}

func TestAllPagesWalksSubtree(t *testing.T) {
	root := NewSection("docs", "docs")
	root.AddPage(newTestPage("docs/_index.md", map[string]any{}))
	root.AddPage(newTestPage("docs/a.md", map[string]any{}))

	sub := NewSection("sub", "docs/sub")
	sub.AddPage(newTestPage("docs/sub/b.md", map[string]any{}))
	root.AddSubsection(sub)

	if got := len(root.AllPages()); got != 3 {
		t.Errorf("AllPages returned %d pages, want 3", got)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"docs/getting-started.md", "Getting started"},
		{"docs/api_reference.md", "Api reference"},
		{"docs/README.md", "README"},
	}
	for _, tt := range tests {
		if got := TitleFromFilename(tt.path); got != tt.want {
			t.Errorf("TitleFromFilename(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
