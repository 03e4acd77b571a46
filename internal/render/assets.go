package render

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// asset-bearing attributes per element. Anchors are deliberately absent:
// links do not make a page depend on its target's bytes.
var assetAttrs = map[string]string{
	"img":    "src",
	"script": "src",
	"link":   "href",
	"source": "src",
	"video":  "src",
	"audio":  "src",
}

// AssetRefs scans rendered HTML for local asset references. External URLs,
// anchors and data URIs are skipped; duplicates collapse in document order.
func AssetRefs(doc []byte) []string {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		// Rendered output we produced ourselves; a parse failure just means
		// no asset tracking for this page.
		return nil
	}

	var refs []string
	seen := map[string]bool{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attr, ok := assetAttrs[n.Data]; ok {
				if ref := localRef(n, attr); ref != "" && !seen[ref] {
					seen[ref] = true
					refs = append(refs, ref)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return refs
}

func localRef(n *html.Node, attr string) string {
	for _, a := range n.Attr {
		if a.Key != attr {
			continue
		}
		v := strings.TrimSpace(a.Val)
		switch {
		case v == "",
			strings.HasPrefix(v, "#"),
			strings.HasPrefix(v, "data:"),
			strings.HasPrefix(v, "//"),
			strings.Contains(v, "://"):
			return ""
		}
		// Strip query and fragment; the file on disk is what matters.
		if i := strings.IndexAny(v, "?#"); i >= 0 {
			v = v[:i]
		}
		return v
	}
	return ""
}
