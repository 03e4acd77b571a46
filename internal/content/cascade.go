package content

// ResolveCascade propagates cascade metadata from ancestor sections down to
// descendant pages.
//
// sections is the full flat list of tracked sections, in any order. A section
// is a cascade root when its parent is nil or its parent is absent from the
// tracked list (orphaned sections, typical of versioned content whose
// enclosing container is never registered). Orphaned sections receive only
// the root cascade, never values from the untracked parent.
//
// rootCascade is the cascade carried by a root-level page (one with no
// owning section); pass nil when there is none. It applies to every root.
//
// At each section the accumulated cascade applies to all pages except the
// section's own index page, and a page's own frontmatter value always wins
// over a cascade value for the same key. Values are assigned by reference,
// not deep-merged. Resolution is idempotent.
func ResolveCascade(sections []*Section, rootCascade map[string]any) {
	tracked := make(map[string]struct{}, len(sections))
	for _, s := range sections {
		tracked[s.Key()] = struct{}{}
	}

	for _, s := range sections {
		if s.Parent != nil {
			if _, ok := tracked[s.Parent.Key()]; ok {
				continue // reached via its parent
			}
		}
		applyCascade(s, rootCascade)
	}
}

func applyCascade(s *Section, inherited map[string]any) {
	merged := mergeCascade(inherited, s.Cascade())

	for _, p := range s.Pages {
		applyToPage(p, merged)
	}
	for _, sub := range s.Subsections {
		applyCascade(sub, merged)
	}
}

// mergeCascade unions parent and child cascades; child keys override
// same-named parent keys. Returns parent unchanged when the child
// contributes nothing, so empty cascades stay no-ops.
func mergeCascade(parent, child map[string]any) map[string]any {
	if len(child) == 0 {
		return parent
	}
	if len(parent) == 0 {
		return child
	}
	out := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

func applyToPage(p *Page, cascade map[string]any) {
	for k, v := range cascade {
		if _, own := p.Meta[k]; own {
			continue // page frontmatter is the final override layer
		}
		p.Meta[k] = v
	}
}
