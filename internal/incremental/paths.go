package incremental

import (
	"path/filepath"
	"strings"
)

// OutputPathFor maps a content source path to its rendered output path.
//
// Markdown sources render to pretty URLs: content/docs/guide.md becomes
// <outputDir>/docs/guide/index.html, and section indexes (index.md or
// _index.md) render to their directory's index.html. Anything else keeps its
// relative location under the output directory.
func OutputPathFor(sourcePath, contentRoot, outputDir string) string {
	rel, err := filepath.Rel(contentRoot, sourcePath)
	if err != nil {
		rel = sourcePath
	}
	rel = filepath.ToSlash(rel)

	if !strings.EqualFold(filepath.Ext(rel), ".md") {
		return filepath.Join(outputDir, filepath.FromSlash(rel))
	}

	dir, file := filepath.Split(filepath.FromSlash(rel))
	base := strings.TrimSuffix(file, filepath.Ext(file))
	if base == "index" || base == "_index" {
		return filepath.Join(outputDir, dir, "index.html")
	}
	return filepath.Join(outputDir, dir, base, "index.html")
}
