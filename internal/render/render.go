// Package render is the boundary to the downstream rendering pipeline.
// Proper theming and templating live outside this codebase; the default
// renderer here turns markdown into HTML and, crucially, reports every input
// it touched back to the effect tracer so template and asset changes can be
// traced to their outputs on later builds.
package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"git.home.luguber.info/inful/sitegen/internal/content"
	sgerrors "git.home.luguber.info/inful/sitegen/internal/errors"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/trace"
)

// Output is the result of rendering one page.
type Output struct {
	Path string // output file path
	HTML []byte
	// Inputs are every file the render depended on: the source itself,
	// templates, referenced local assets.
	Inputs []string
}

// Renderer turns a page into its output file.
type Renderer interface {
	Render(ctx context.Context, page *content.Page) (*Output, error)
}

// Markdown renders page bodies with goldmark (GFM) and records effects into
// the tracer.
type Markdown struct {
	md       goldmark.Markdown
	tracer   *trace.Tracer
	logger   *slog.Logger
	root     string // content root, for resolving relative asset references
	template string // optional template file counted as a render input
}

// NewMarkdown creates the default renderer. tracer may be nil when effect
// recording is not wanted (e.g. one-shot discover runs); template is the
// path of the layout every page depends on, empty for none.
func NewMarkdown(root, template string, tracer *trace.Tracer, logger *slog.Logger) *Markdown {
	if logger == nil {
		logger = slog.Default()
	}
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		tracer:   tracer,
		logger:   logger,
		root:     root,
		template: template,
	}
}

// Render converts the page body to HTML, writes it to the page's output
// path, and records (output, inputs) in the tracer. Inputs are the source
// file, the template if any, and every local asset the rendered HTML
// references.
func (r *Markdown) Render(ctx context.Context, page *content.Page) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := page.Body()
	if err != nil {
		return nil, sgerrors.RenderFailed(page.SourcePath, err)
	}

	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return nil, sgerrors.RenderFailed(page.SourcePath, err)
	}
	html := r.wrap(page, buf.Bytes())

	inputs := []string{page.SourcePath}
	if r.template != "" {
		inputs = append(inputs, r.template)
	}
	for _, ref := range AssetRefs(html) {
		if resolved, ok := r.resolveAsset(page.SourcePath, ref); ok {
			inputs = append(inputs, resolved)
		}
	}

	if err := writeOutput(page.OutputPath, html); err != nil {
		return nil, sgerrors.RenderFailed(page.SourcePath, err)
	}
	if r.tracer != nil {
		r.tracer.Record(page.OutputPath, inputs)
	}

	r.logger.Debug("Page rendered",
		logfields.Page(page.SourcePath),
		logfields.Output(page.OutputPath))
	return &Output{Path: page.OutputPath, HTML: html, Inputs: inputs}, nil
}

// wrap produces the minimal page skeleton. Real themes replace this whole
// renderer via the Renderer interface.
func (r *Markdown) wrap(page *content.Page, body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!DOCTYPE html>\n<html><head><title>%s</title></head>\n<body>\n", page.Title())
	buf.Write(body)
	buf.WriteString("\n</body></html>\n")
	return buf.Bytes()
}

// resolveAsset maps an HTML asset reference to a file on disk, relative to
// the referencing source first, then to the content root. External URLs and
// misses resolve to nothing.
func (r *Markdown) resolveAsset(sourcePath, ref string) (string, bool) {
	candidates := []string{
		filepath.Join(filepath.Dir(sourcePath), filepath.FromSlash(ref)),
		filepath.Join(r.root, filepath.FromSlash(ref)),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
