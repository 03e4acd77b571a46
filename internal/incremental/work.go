package incremental

import (
	"sort"

	"git.home.luguber.info/inful/sitegen/internal/content"
	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

// ChangeSummary categorizes what triggered a rebuild, for human-readable
// reporting by the build driver.
type ChangeSummary struct {
	ModifiedContent   []string
	ModifiedAssets    []string
	ModifiedTemplates []string
	CascadeChanges    []string
}

// Empty reports whether nothing changed at all.
func (s ChangeSummary) Empty() bool {
	return len(s.ModifiedContent) == 0 &&
		len(s.ModifiedAssets) == 0 &&
		len(s.ModifiedTemplates) == 0 &&
		len(s.CascadeChanges) == 0
}

// Work is the outcome of one detection phase: the pages and assets that must
// be regenerated, plus the summary of why.
type Work struct {
	Pages   []*content.Page
	Assets  []string
	Summary ChangeSummary

	// Full marks a whole-site rebuild (cold cache, structural change).
	Full bool
}

// workSet accumulates the rebuild set during expansion. Expansion rules are
// additive only; nothing ever removes a page once seeded.
type workSet struct {
	pages   map[string]*content.Page // keyed by source path
	assets  sets.Set[string]
	summary ChangeSummary
}

func newWorkSet() *workSet {
	return &workSet{
		pages:  map[string]*content.Page{},
		assets: sets.New[string](),
	}
}

func (w *workSet) addPage(p *content.Page) bool {
	if p == nil {
		return false
	}
	if _, ok := w.pages[p.SourcePath]; ok {
		return false
	}
	w.pages[p.SourcePath] = p
	return true
}

func (w *workSet) hasPage(path string) bool {
	_, ok := w.pages[path]
	return ok
}

func (w *workSet) finish(full bool) *Work {
	pages := make([]*content.Page, 0, len(w.pages))
	for _, p := range w.pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].SourcePath < pages[j].SourcePath })

	return &Work{
		Pages:   pages,
		Assets:  sets.SortedStrings(w.assets),
		Summary: w.summary,
		Full:    full,
	}
}
