package buildcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DefaultNavFields is the frontmatter subset that affects rendered
// navigation. Themes can extend the list through configuration; a field
// listed here triggers section-wide rebuilds when it changes on a section
// index file, anything else does not.
var DefaultNavFields = []string{"title", "weight", "icon"}

// NavHash computes a stable hash over the navigation-relevant subset of a
// page's metadata. Missing fields contribute a fixed marker so that adding
// a field is distinguishable from an empty value.
func NavHash(meta map[string]any, fields []string) string {
	if len(fields) == 0 {
		fields = DefaultNavFields
	}
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{'='})
		if v, ok := meta[f]; ok {
			fmt.Fprintf(h, "%v", v)
		} else {
			h.Write([]byte{0xff})
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
