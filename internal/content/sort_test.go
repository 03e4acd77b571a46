package content

import (
	"testing"
)

func TestSortByWeightThenTitle(t *testing.T) {
	s := NewSection("docs", "docs")
	s.AddPage(newTestPage("docs/zeta.md", map[string]any{"title": "zeta"}))
	s.AddPage(newTestPage("docs/alpha.md", map[string]any{"title": "Alpha"}))
	s.AddPage(newTestPage("docs/heavy.md", map[string]any{"title": "Heavy", "weight": 10}))
	s.AddPage(newTestPage("docs/light.md", map[string]any{"title": "Light", "weight": 1}))

	s.SortRecursively()

	got := make([]string, 0, len(s.Pages))
	for _, p := range s.Pages {
		got = append(got, p.Title())
	}
	want := []string{"Light", "Heavy", "Alpha", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSortTitleTieBreakIsCaseInsensitive(t *testing.T) {
	s := NewSection("docs", "docs")
	s.AddPage(newTestPage("docs/b.md", map[string]any{"title": "banana"}))
	s.AddPage(newTestPage("docs/a.md", map[string]any{"title": "Apple"}))
	s.AddPage(newTestPage("docs/c.md", map[string]any{"title": "cherry"}))

	s.SortRecursively()

	if s.Pages[0].Title() != "Apple" || s.Pages[1].Title() != "banana" || s.Pages[2].Title() != "cherry" {
		t.Errorf("case-insensitive title order broken: %s, %s, %s",
			s.Pages[0].Title(), s.Pages[1].Title(), s.Pages[2].Title())
	}
}

func TestUnweightedSortsLast(t *testing.T) {
	s := NewSection("docs", "docs")
	s.AddPage(newTestPage("docs/nw.md", map[string]any{"title": "AAA no weight"}))
	s.AddPage(newTestPage("docs/w.md", map[string]any{"title": "ZZZ weighted", "weight": 999}))

	s.SortRecursively()

	if s.Pages[0].Title() != "ZZZ weighted" {
		t.Error("any weighted page must sort before unweighted ones")
	}
}

func TestSortRecursesIntoSubsections(t *testing.T) {
	root := NewSection("docs", "docs")
	sub := NewSection("sub", "docs/sub")
	root.AddSubsection(sub)
	sub.AddPage(newTestPage("docs/sub/b.md", map[string]any{"title": "B", "weight": 2}))
	sub.AddPage(newTestPage("docs/sub/a.md", map[string]any{"title": "A", "weight": 1}))

	root.SortRecursively()

	if sub.Pages[0].Title() != "A" {
		t.Error("subsection pages not sorted")
	}
}

func TestMutationInvalidatesSortedState(t *testing.T) {
	s := NewSection("docs", "docs")
	s.AddPage(newTestPage("docs/b.md", map[string]any{"title": "B", "weight": 2}))
	s.SortRecursively()

	s.AddPage(newTestPage("docs/a.md", map[string]any{"title": "A", "weight": 1}))
	s.SortRecursively()

	if s.Pages[0].Title() != "A" {
		t.Error("sort after mutation must re-order pages")
	}
}

func TestSectionSortByWeight(t *testing.T) {
	root := NewSection("root", "root")
	later := NewSection("later", "root/later")
	later.Meta["weight"] = 5
	first := NewSection("first", "root/first")
	first.Meta["weight"] = 1
	unweighted := NewSection("aaa", "root/aaa")

	root.AddSubsection(unweighted)
	root.AddSubsection(later)
	root.AddSubsection(first)

	root.SortRecursively()

	if root.Subsections[0].Name != "first" || root.Subsections[1].Name != "later" || root.Subsections[2].Name != "aaa" {
		t.Errorf("subsection order: %s, %s, %s",
			root.Subsections[0].Name, root.Subsections[1].Name, root.Subsections[2].Name)
	}
}
