package content

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// newCaselessCollator builds the collator used for title tie-breaks.
// Collators are not safe for concurrent use; sorting runs on one goroutine
// after discovery, so each sort pass creates its own.
func newCaselessCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

// SortRecursively orders the section's pages and subsections in place by
// weight ascending (missing weight sorts last), tie-broken on
// case-insensitive title, then recurses root to leaf.
//
// Sorting is stable so equally weighted, equally titled entries keep
// insertion order. Runs once after discovery completes; re-running on an
// already sorted subtree is a cheap no-op.
func (s *Section) SortRecursively() {
	s.sortWith(newCaselessCollator())
}

func (s *Section) sortWith(coll *collate.Collator) {
	if !s.sorted {
		sort.SliceStable(s.Pages, func(i, j int) bool {
			return lessByWeightTitle(s.Pages[i].Weight(), s.Pages[j].Weight(), s.Pages[i].Title(), s.Pages[j].Title(), coll)
		})
		sort.SliceStable(s.Subsections, func(i, j int) bool {
			return lessByWeightTitle(s.Subsections[i].Weight(), s.Subsections[j].Weight(), s.Subsections[i].Title(), s.Subsections[j].Title(), coll)
		})
		s.sorted = true
	}
	for _, sub := range s.Subsections {
		sub.sortWith(coll)
	}
}

// SortForest sorts every tree in the forest.
func SortForest(sections []*Section) {
	coll := newCaselessCollator()
	for _, s := range sections {
		s.sortWith(coll)
	}
}

func lessByWeightTitle(wi, wj float64, ti, tj string, coll *collate.Collator) bool {
	if wi != wj {
		return wi < wj
	}
	return coll.CompareString(ti, tj) < 0
}
