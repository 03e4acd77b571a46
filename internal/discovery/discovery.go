// Package discovery walks the content root once per build and produces the
// fully populated section/page forest.
//
// File reading and frontmatter parsing fan out to a bounded worker pool;
// tree mutation happens on the calling goroutine after all workers finish,
// so no concurrent writers ever touch the tree.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitegen/internal/content"
	sgerrors "git.home.luguber.info/inful/sitegen/internal/errors"
	"git.home.luguber.info/inful/sitegen/internal/frontmatter"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// Versioned content containers: these underscore directories are walked even
// though underscore/hidden entries are normally skipped.
const (
	versionsDir = "_versions"
	sharedDir   = "_shared"
)

// ChangedChecker is what discovery needs from the build cache for lazy mode.
type ChangedChecker interface {
	IsChanged(path string) (bool, error)
}

// Options configures a discovery pass.
type Options struct {
	// Workers bounds the parse pool. Values below 1 fall back to a default
	// sized for I/O-bound work.
	Workers int
	// Lazy defers body loading for pages the cache proves unchanged.
	Lazy bool
	// Cache is consulted in lazy mode; may be nil.
	Cache ChangedChecker
	// Schemas validates frontmatter per section; may be empty.
	Schemas []Schema
	// Strict makes schema violations abort discovery instead of degrading
	// to diagnostics.
	Strict bool
	// Lastmod, when set, supplies a modification timestamp for pages that
	// do not set one in frontmatter (e.g. from git history).
	Lastmod func(path string) (time.Time, bool)
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is the outcome of one discovery pass.
type Result struct {
	// Sections are the cascade roots: top-level sections plus orphaned
	// sections from versioned content whose containers are untracked.
	Sections []*content.Section
	// Flat is every tracked section, nested included.
	Flat []*content.Section
	// Pages is the full flat page list, nested pages included.
	Pages []*content.Page
	// RootPages are pages directly under the content root; they own no
	// section but may carry a site-wide cascade.
	RootPages []*content.Page
	// Assets are non-content files found under the root.
	Assets []string
	// RootCascade is the merged cascade of the root-level pages.
	RootCascade map[string]any
	// Diagnostics are the non-fatal problems hit during the walk.
	Diagnostics []content.Diagnostic
}

// Discover walks root and builds the content forest. A missing root is not
// an error: sites without content build trivially, with a diagnostic.
//
// After the walk every section is sorted (weight, then case-insensitive
// title) and cascade metadata is resolved.
func Discover(ctx context.Context, root string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	collector := &content.Collector{}
	res := &Result{}

	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			collector.Emit(content.Diagnostic{
				Path:    root,
				Message: "content root does not exist; building empty site",
			})
			res.Diagnostics = collector.Diagnostics
			logger.Warn("Content root missing", logfields.Path(root))
			return res, nil
		}
		return nil, fmt.Errorf("stat content root %s: %w", root, err)
	}

	w := &walker{
		root:      root,
		opts:      opts,
		logger:    logger,
		collector: collector,
		visited:   map[string]struct{}{}, // per-pass symlink loop guard
		sections:  map[string]*content.Section{},
	}

	if err := w.walkRoot(); err != nil {
		return nil, err
	}

	if err := w.parseAll(ctx); err != nil {
		return nil, err
	}

	if err := w.insert(res); err != nil {
		return nil, err
	}

	content.SortForest(res.Sections)
	content.ResolveCascade(res.Flat, res.RootCascade)

	res.Diagnostics = collector.Diagnostics
	logger.Info("Content discovered",
		logfields.Path(root),
		slog.Int("sections", len(res.Flat)),
		slog.Int("pages", len(res.Pages)),
		slog.Int("assets", len(res.Assets)),
		slog.Int("diagnostics", len(res.Diagnostics)))
	return res, nil
}

// fileJob is one content file queued for parsing.
type fileJob struct {
	path       string
	sectionKey string // "" for root-level pages
	version    string
}

// parsedFile is the worker output for one file. Workers only read and
// parse; they never touch sections or pages.
type parsedFile struct {
	job  fileJob
	meta map[string]any
	body []byte
	lazy bool
	diag *content.Diagnostic
}

type walker struct {
	root      string
	opts      Options
	logger    *slog.Logger
	collector *content.Collector

	visited  map[string]struct{}
	sections map[string]*content.Section // key -> section, the tracked flat set
	topLevel []*content.Section
	jobs     []fileJob
	assets   []string

	results []parsedFile
}

// walkRoot builds the section skeleton and queues file jobs. It runs on the
// calling goroutine only.
func (w *walker) walkRoot() error {
	if !w.markVisited(w.root) {
		return fmt.Errorf("content root %s is a symlink loop", w.root)
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("read content root %s: %w", w.root, err)
	}

	for _, entry := range entries {
		path := filepath.Join(w.root, entry.Name())
		switch {
		case entry.IsDir() || isDirSymlink(path):
			w.walkTopDir(entry.Name(), path)
		case skipFile(entry.Name()):
			continue
		case isContentFile(entry.Name()):
			w.jobs = append(w.jobs, fileJob{path: path})
		default:
			w.assets = append(w.assets, path)
		}
	}
	return nil
}

func (w *walker) walkTopDir(name, path string) {
	switch {
	case name == versionsDir:
		w.walkVersions(path)
	case name == sharedDir:
		s := w.newSection("shared", path, "")
		w.topLevel = append(w.topLevel, s)
		w.walkSection(s, path, "")
	case skipDir(name):
		return
	default:
		s := w.newSection(name, path, "")
		w.topLevel = append(w.topLevel, s)
		w.walkSection(s, path, "")
	}
}

// walkVersions handles content/_versions/<version>/<section>/... The
// version container itself is never registered as a section, so the
// sections inside become orphaned cascade roots by construction.
func (w *walker) walkVersions(path string) {
	entries, err := os.ReadDir(path)
	if err != nil {
		w.emitUnreadable(path, err)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || skipDir(entry.Name()) {
			continue
		}
		version := entry.Name()
		versionPath := filepath.Join(path, version)
		// Untracked container: carries the parent pointer for its children
		// but stays out of the flat section list.
		container := content.NewSection(version, versionPath).WithDiagnostics(w.collector)

		subEntries, err := os.ReadDir(versionPath)
		if err != nil {
			w.emitUnreadable(versionPath, err)
			continue
		}
		for _, sub := range subEntries {
			subPath := filepath.Join(versionPath, sub.Name())
			switch {
			case sub.IsDir() || isDirSymlink(subPath):
				if skipDir(sub.Name()) {
					continue
				}
				s := w.newSection(sub.Name(), subPath, version)
				container.AddSubsection(s)
				// Orphaned: parent set, but container never tracked.
				w.topLevel = append(w.topLevel, s)
				w.walkSection(s, subPath, version)
			case skipFile(sub.Name()):
			case isContentFile(sub.Name()):
				w.jobs = append(w.jobs, fileJob{path: subPath, sectionKey: container.Key(), version: version})
			default:
				w.assets = append(w.assets, subPath)
			}
		}
	}
}

func (w *walker) walkSection(s *content.Section, path, version string) {
	if !w.markVisited(path) {
		w.collector.Emit(content.Diagnostic{
			Path:    path,
			Message: "symlink loop detected, skipping subtree",
			Err:     sgerrors.SymlinkLoop(path),
		})
		w.logger.Warn("Symlink loop, skipping", logfields.Path(path))
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		w.emitUnreadable(path, err)
		return
	}

	for _, entry := range entries {
		childPath := filepath.Join(path, entry.Name())
		switch {
		case entry.IsDir() || isDirSymlink(childPath):
			if skipDir(entry.Name()) {
				continue
			}
			child := w.newSection(entry.Name(), childPath, version)
			s.AddSubsection(child)
			w.walkSection(child, childPath, version)
		case skipFile(entry.Name()):
			continue
		case isContentFile(entry.Name()):
			w.jobs = append(w.jobs, fileJob{path: childPath, sectionKey: s.Key(), version: version})
		default:
			w.assets = append(w.assets, childPath)
		}
	}
}

func (w *walker) newSection(name, path, version string) *content.Section {
	s := content.NewSection(name, path).WithDiagnostics(w.collector)
	if version != "" {
		s.Meta["version"] = version
	}
	w.sections[s.Key()] = s
	return s
}

// markVisited resolves path through symlinks and records it in the per-pass
// visited set. Returns false when the resolved location was already walked
// (a loop) or cannot be resolved.
func (w *walker) markVisited(path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		// Self-referential symlinks fail resolution with ELOOP; treat as a
		// loop rather than an error so the rest of the tree still builds.
		return false
	}
	if _, seen := w.visited[resolved]; seen {
		return false
	}
	w.visited[resolved] = struct{}{}
	return true
}

func (w *walker) emitUnreadable(path string, err error) {
	w.collector.Emit(content.Diagnostic{
		Path:    path,
		Message: "directory not readable, skipping subtree",
		Err:     sgerrors.UnreadableDirectory(path, err),
	})
	w.logger.Warn("Unreadable directory, skipping", logfields.Path(path), logfields.Error(err))
}

// parseAll fans the queued jobs out to the bounded pool. The pool is scoped
// to this call: it finishes or the whole discovery fails.
func (w *walker) parseAll(ctx context.Context) error {
	workers := w.opts.Workers
	if workers < 1 {
		workers = 8
	}

	w.results = make([]parsedFile, len(w.jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range w.jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.results[i] = parseFile(job, w.opts)
			return nil
		})
	}
	return g.Wait()
}

// parseFile runs on a worker goroutine. It reads and parses one file and
// returns a self-contained result; the diagnostic (if any) is attached both
// here and in the page metadata so neither reporting channel is skipped.
func parseFile(job fileJob, opts Options) parsedFile {
	out := parsedFile{job: job}

	data, err := os.ReadFile(job.path)
	if err != nil {
		out.meta = synthesizeMeta(job.path, err)
		out.diag = &content.Diagnostic{
			Path:    job.path,
			Message: "content file not readable",
			Err:     err,
		}
		return out
	}

	meta, body, err := frontmatter.Parse(data)
	if err != nil {
		out.meta = synthesizeMeta(job.path, err)
		out.body = frontmatter.Recover(data)
		out.diag = &content.Diagnostic{
			Path:    job.path,
			Message: "frontmatter parse failed, metadata synthesized",
			Err:     sgerrors.FrontmatterBroken(job.path, err),
		}
		return out
	}

	out.meta = meta
	out.body = body

	if opts.Lazy && opts.Cache != nil {
		if changed, err := opts.Cache.IsChanged(job.path); err == nil && !changed {
			out.lazy = true
			out.body = nil
		}
	}

	if opts.Lastmod != nil {
		if _, set := meta["lastmod"]; !set {
			if ts, ok := opts.Lastmod(job.path); ok {
				meta["lastmod"] = ts
			}
		}
	}

	return out
}

// synthesizeMeta is the minimal metadata for a page whose frontmatter could
// not be parsed. The page is never silently dropped.
func synthesizeMeta(path string, cause error) map[string]any {
	return map[string]any{
		"title":                content.TitleFromFilename(path),
		content.MetaParseError: cause.Error(),
	}
}

// insert attaches parsed pages to their sections on the calling goroutine.
// Completion order of workers is irrelevant here; ordering is restored by
// the post-walk sort.
func (w *walker) insert(res *Result) error {
	var rootCascade map[string]any

	for _, p := range w.results {
		var page *content.Page
		if p.lazy {
			path := p.job.path
			page = content.NewLazyPage(path, p.meta, func() ([]byte, error) {
				data, err := os.ReadFile(path)
				if err != nil {
					return nil, err
				}
				_, body, _, err := frontmatter.Split(data)
				if err != nil {
					return frontmatter.Recover(data), nil
				}
				return body, nil
			})
		} else {
			page = content.NewPage(p.job.path, p.body, p.meta)
		}
		page.Version = p.job.version

		if p.diag != nil {
			w.collector.Emit(*p.diag)
		}

		if err := w.validateSchema(page); err != nil {
			if w.opts.Strict {
				return err
			}
			w.collector.Emit(content.Diagnostic{
				Path:    page.SourcePath,
				Message: "schema validation failed, proceeding with unvalidated metadata",
				Err:     err,
			})
		}

		if p.job.sectionKey == "" {
			res.RootPages = append(res.RootPages, page)
			if c := page.Cascade(); c != nil {
				rootCascade = mergeRootCascade(rootCascade, c)
			}
			res.Pages = append(res.Pages, page)
			continue
		}

		if s, ok := w.sections[p.job.sectionKey]; ok {
			s.AddPage(page)
		} else {
			// Version container pages: tracked nowhere, but still built.
			// Unlike true root pages their cascade is deliberately not
			// merged into RootCascade. The container is untracked, and an
			// untracked parent is never consulted as a cascade source, so
			// its metadata must not leak into the rest of the site.
			res.RootPages = append(res.RootPages, page)
		}
		res.Pages = append(res.Pages, page)
	}

	res.Sections = w.topLevel
	res.Flat = make([]*content.Section, 0, len(w.sections))
	for _, s := range w.sections {
		res.Flat = append(res.Flat, s)
	}
	res.Assets = w.assets
	res.RootCascade = rootCascade
	return nil
}

func (w *walker) validateSchema(page *content.Page) error {
	for _, schema := range w.opts.Schemas {
		if !schema.Matches(page.SourcePath) {
			continue
		}
		if err := schema.Validate(page.Meta); err != nil {
			return sgerrors.SchemaViolation(page.SourcePath, err)
		}
	}
	return nil
}

func mergeRootCascade(acc, c map[string]any) map[string]any {
	if acc == nil {
		acc = map[string]any{}
	}
	for k, v := range c {
		acc[k] = v
	}
	return acc
}

// skipDir reports whether a directory is hidden from discovery. Underscore
// directories are skipped except the recognized versioning containers,
// which the callers special-case before consulting this.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// skipFile reports whether a file is hidden from discovery. Underscore
// files are skipped except index files (_index.md).
func skipFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.HasPrefix(name, "_") {
		return !content.IsIndexFile(name)
	}
	return false
}

func isContentFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".md")
}

// isDirSymlink reports whether path is a symlink pointing at a directory.
func isDirSymlink(path string) bool {
	fi, err := os.Lstat(path)
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		return false
	}
	target, err := os.Stat(path)
	if err != nil {
		// Unresolvable symlink (possibly a self-loop); let the section walk
		// handle and report it.
		return true
	}
	return target.IsDir()
}
