package incremental

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitegen/internal/buildcache"
	"git.home.luguber.info/inful/sitegen/internal/content"
	"git.home.luguber.info/inful/sitegen/internal/eventstore"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/registry"
	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

// Frontmatter keys recognized by the explicit cross-page dependency pattern:
// a track overview page lists item ids, each item page declares its id.
const (
	metaTrackItems = "track_items"
	metaItemID     = "id"
)

// FindWorkEarly computes the rebuild set before generated pages exist.
//
// forced are paths the caller already knows changed (file watcher events);
// navChanged are section index paths the caller knows carry navigation
// changes and should expand unconditionally. All other change detection runs
// off the build cache's hash/mtime diff.
func (d *Detector) FindWorkEarly(ctx context.Context, verbose bool, forced, navChanged []string) (*Work, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}
	if d.tree == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()
	defer d.observe("early", start)

	if d.cache.IsCold() {
		work := d.everything("cache cold")
		d.metrics.AddPagesQueued(len(work.Pages))
		d.metrics.AddAssetsQueued(len(work.Assets))
		d.recordWork(ctx, "early", work)
		return work, nil
	}

	configChanged := !d.cache.ValidateConfig(d.cfg.Snapshot())
	if configChanged {
		// Derived global structures cannot be trusted across a config
		// change; page-level incrementalism below still applies.
		d.registry.InvalidateAll(registry.ReasonConfigChanged)
		d.metrics.IncRegistryInvalidation(string(registry.ReasonConfigChanged))
		d.logger.Info("Configuration changed, invalidating derived caches",
			logfields.BuildID(d.buildID),
			logfields.Reason(string(registry.ReasonConfigChanged)))
	}

	ws := newWorkSet()

	// 1. Seed: explicit paths plus cache diff.
	changed := d.seed(ws, forced)

	// Assets are a plain hash diff, independent of the cascade logic.
	d.seedAssets(ws)

	if !configChanged {
		// 2. Cascade expansion.
		d.expandCascade(ws, changed, verbose)
		// 3. Nav-metadata expansion.
		d.expandNav(ws, changed, navChanged, verbose)
		// 4. Template expansion.
		d.expandTemplates(ws, verbose)
		// 5. Explicit cross-page dependencies.
		d.expandTracked(ws, verbose)
	}

	// Keep the cascade note even on the short-circuit path so reporting
	// explains why derived structures rebuilt.
	if configChanged {
		ws.summary.CascadeChanges = append(ws.summary.CascadeChanges,
			"configuration changed: derived caches invalidated")
	}

	work := ws.finish(false)
	d.lastChanged = sets.SortedStrings(changed)
	d.metrics.AddPagesQueued(len(work.Pages))
	d.metrics.AddAssetsQueued(len(work.Assets))
	d.recordWork(ctx, "early", work)
	d.logger.Info("Early detection complete",
		logfields.BuildID(d.buildID),
		slog.Int("pages", len(work.Pages)),
		slog.Int("assets", len(work.Assets)))
	return work, nil
}

// recordWork logs the computed rebuild set to the event store.
func (d *Detector) recordWork(ctx context.Context, phase string, work *Work) {
	payload, _ := json.Marshal(map[string]any{
		"phase":   phase,
		"pages":   len(work.Pages),
		"assets":  len(work.Assets),
		"full":    work.Full,
		"summary": work.Summary,
	})
	if err := d.events.Append(ctx, d.buildID, eventstore.EventWorkComputed, payload, nil); err != nil {
		d.logger.Warn("Event log append failed", logfields.Error(err))
	}
}

// FindWork runs after generated pages (tag indexes, pagination, section
// auto-indexes) exist. It catches membership changes: a generated page must
// rebuild when pages it aggregates changed, even though the generated page
// itself has no changed source.
func (d *Detector) FindWork(ctx context.Context, verbose bool, generated []*content.Page) (*Work, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}
	if d.tree == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()
	defer d.observe("full", start)

	ws := newWorkSet()

	if d.cache.IsCold() {
		for _, p := range generated {
			ws.addPage(p)
		}
		work := ws.finish(true)
		d.recordWork(ctx, "full", work)
		return work, nil
	}

	if d.structuralChange() {
		d.registry.InvalidateAll(registry.ReasonStructuralChange)
		d.metrics.IncRegistryInvalidation(string(registry.ReasonStructuralChange))
		ws.summary.CascadeChanges = append(ws.summary.CascadeChanges,
			"content structure changed: pages added or removed")
		for _, p := range generated {
			ws.addPage(p)
		}
		d.logger.Info("Structural change detected, regenerating derived pages",
			logfields.BuildID(d.buildID),
			logfields.Reason(string(registry.ReasonStructuralChange)),
			logfields.Count(len(generated)))
		work := ws.finish(false)
		d.recordWork(ctx, "full", work)
		return work, nil
	}

	// Tracer-driven: a generated output rebuilds when any input it depended
	// on last time is among the changed sources.
	changed := sets.New(d.lastChanged...)
	affected := d.cache.Tracer().OutputsFor(changed)
	byOut := make(map[string]*content.Page, len(generated))
	for _, p := range generated {
		byOut[p.OutputPath] = p
	}
	for out := range affected {
		if p, ok := byOut[out]; ok && ws.addPage(p) {
			if verbose {
				d.logger.Debug("Generated page affected by changed input",
					logfields.Page(p.SourcePath), logfields.Output(out))
			}
		}
	}

	work := ws.finish(false)
	d.recordWork(ctx, "full", work)
	return work, nil
}

// everything returns the whole tree as the rebuild set.
func (d *Detector) everything(why string) *Work {
	ws := newWorkSet()
	for _, p := range d.tree.Pages {
		ws.addPage(p)
		ws.summary.ModifiedContent = append(ws.summary.ModifiedContent, p.SourcePath)
	}
	for _, a := range d.tree.Assets {
		ws.assets.Add(a)
		ws.summary.ModifiedAssets = append(ws.summary.ModifiedAssets, a)
	}
	ws.summary.CascadeChanges = append(ws.summary.CascadeChanges, "full rebuild: "+why)
	d.logger.Info("Full rebuild",
		logfields.BuildID(d.buildID),
		logfields.Reason(why),
		logfields.Count(len(d.tree.Pages)))
	return ws.finish(true)
}

// seed collects directly changed page sources: the forced list plus the
// cache's hash/mtime diff over the discovered tree. Returns the changed
// source set for the expansion rules.
func (d *Detector) seed(ws *workSet, forced []string) sets.Set[string] {
	changed := sets.New[string]()

	for _, path := range forced {
		p, ok := d.pageByPath[path]
		if !ok {
			continue
		}
		changed.Add(path)
		if ws.addPage(p) {
			ws.summary.ModifiedContent = append(ws.summary.ModifiedContent, path)
		}
	}

	for _, p := range d.tree.Pages {
		if changed.Has(p.SourcePath) {
			continue
		}
		isChanged, err := d.cache.IsChanged(p.SourcePath)
		if err != nil {
			d.logger.Warn("Change check failed, rebuilding page",
				logfields.Path(p.SourcePath), logfields.Error(err))
			isChanged = true
		}
		d.metrics.IncCacheOutcome(!isChanged)
		if !isChanged {
			continue
		}
		changed.Add(p.SourcePath)
		if ws.addPage(p) {
			ws.summary.ModifiedContent = append(ws.summary.ModifiedContent, p.SourcePath)
		}
	}

	return changed
}

// seedAssets queues assets whose bytes changed. Same hash/mtime mechanism as
// pages, no cascade involvement.
func (d *Detector) seedAssets(ws *workSet) {
	for _, a := range d.tree.Assets {
		isChanged, err := d.cache.IsChanged(a)
		if err != nil {
			d.logger.Warn("Asset change check failed, reprocessing",
				logfields.Path(a), logfields.Error(err))
			isChanged = true
		}
		d.metrics.IncCacheOutcome(!isChanged)
		if isChanged {
			ws.assets.Add(a)
			ws.summary.ModifiedAssets = append(ws.summary.ModifiedAssets, a)
		}
	}
}

// expandCascade widens the set for every changed page carrying a cascade
// key: all pages of the owning section's subtree, or the entire site when
// the page cascades from the root.
func (d *Detector) expandCascade(ws *workSet, changed sets.Set[string], verbose bool) {
	for path := range changed {
		p := d.pageByPath[path]
		if p == nil || p.Cascade() == nil {
			continue
		}

		if p.Section == nil {
			ws.summary.CascadeChanges = append(ws.summary.CascadeChanges,
				fmt.Sprintf("root cascade in %s: all pages rebuild", path))
			for _, q := range d.tree.Pages {
				ws.addPage(q)
			}
			if verbose {
				d.logger.Debug("Root cascade change, whole site queued", logfields.Page(path))
			}
			continue
		}

		affected := p.Section.AllPages()
		ws.summary.CascadeChanges = append(ws.summary.CascadeChanges,
			fmt.Sprintf("cascade in %s: %d pages under %s rebuild", path, len(affected), p.Section.Name))
		for _, q := range affected {
			ws.addPage(q)
		}
		if verbose {
			d.logger.Debug("Cascade change, section subtree queued",
				logfields.Page(path),
				logfields.Section(p.Section.Name),
				logfields.Count(len(affected)))
		}
	}
}

// expandNav widens the set for changed section index files whose
// navigation-relevant metadata subset actually differs from the cached hash.
// Non-nav frontmatter edits to an index file stay page-local.
func (d *Detector) expandNav(ws *workSet, changed sets.Set[string], navChanged []string, verbose bool) {
	forcedNav := sets.New(navChanged...)
	fields := d.cfg.Build.NavFields

	for path := range changed {
		p := d.pageByPath[path]
		if p == nil || !content.IsUnderscoreIndex(p.SourcePath) || p.Section == nil {
			continue
		}

		navDirty := forcedNav.Has(path)
		if !navDirty {
			prev, known := d.cache.PrevNavHash(path)
			if !known {
				navDirty = true
			} else {
				navDirty = buildcache.NavHash(p.Meta, fields) != prev
			}
		}
		if !navDirty {
			if verbose {
				d.logger.Debug("Index change without nav impact, no expansion", logfields.Page(path))
			}
			continue
		}

		siblings := p.Section.AllPages()
		ws.summary.CascadeChanges = append(ws.summary.CascadeChanges,
			fmt.Sprintf("navigation metadata in %s: %d pages in %s rebuild", path, len(siblings), p.Section.Name))
		for _, q := range siblings {
			ws.addPage(q)
		}
		if verbose {
			d.logger.Debug("Navigation metadata change, section queued",
				logfields.Page(path),
				logfields.Section(p.Section.Name),
				logfields.Count(len(siblings)))
		}
	}
}

// expandTemplates queues every page the tracer says depends on a changed
// theme template.
func (d *Detector) expandTemplates(ws *workSet, verbose bool) {
	changedTemplates := sets.New[string]()
	for _, tpl := range d.templateFiles() {
		isChanged, err := d.cache.IsChanged(tpl)
		if err != nil {
			d.logger.Warn("Template change check failed, treating as changed",
				logfields.Template(tpl), logfields.Error(err))
			isChanged = true
		}
		if isChanged {
			changedTemplates.Add(tpl)
			ws.summary.ModifiedTemplates = append(ws.summary.ModifiedTemplates, tpl)
		}
	}
	if changedTemplates.Len() == 0 {
		return
	}

	affected := d.cache.Tracer().OutputsFor(changedTemplates)
	count := 0
	for out := range affected {
		if p, ok := d.pageByOut[out]; ok && ws.addPage(p) {
			count++
			if verbose {
				d.logger.Debug("Page depends on changed template", logfields.Page(p.SourcePath))
			}
		}
	}
	d.logger.Info("Template change expansion",
		slog.Int("templates", changedTemplates.Len()),
		slog.Int("pages", count))
}

// expandTracked implements the closed list of explicit cross-page dependency
// patterns. Currently one pattern: a track overview page enumerating item
// pages by id pulls all its declared items into the set when the overview
// itself rebuilds.
func (d *Detector) expandTracked(ws *workSet, verbose bool) {
	var itemsByID map[string][]*content.Page

	for _, p := range d.tree.Pages {
		ids := trackItemIDs(p.Meta)
		if len(ids) == 0 || !ws.hasPage(p.SourcePath) {
			continue
		}
		if itemsByID == nil {
			itemsByID = indexItemIDs(d.tree.Pages)
		}
		for _, id := range ids {
			for _, item := range itemsByID[id] {
				if ws.addPage(item) && verbose {
					d.logger.Debug("Track item queued with its overview",
						logfields.Page(item.SourcePath),
						slog.String("overview", p.SourcePath))
				}
			}
		}
	}
}

// structuralChange reports whether the page source set differs from what the
// previous build recorded: new files appeared or known files vanished.
func (d *Detector) structuralChange() bool {
	current := sets.New[string]()
	for _, p := range d.tree.Pages {
		current.Add(p.SourcePath)
		if !d.cache.Knows(p.SourcePath) {
			return true
		}
	}
	for _, known := range d.cache.KnownPaths() {
		if !strings.EqualFold(filepath.Ext(known), ".md") {
			continue
		}
		if !current.Has(known) {
			return true
		}
	}
	return false
}

// templateFiles lists every file under the active theme directory. An absent
// or empty theme directory yields nothing.
func (d *Detector) templateFiles() []string {
	dir := d.cfg.Content.ThemeDir
	if dir == "" {
		return nil
	}
	var out []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if !entry.IsDir() {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		d.logger.Warn("Theme directory walk failed", logfields.Path(dir), logfields.Error(err))
	}
	return out
}

func trackItemIDs(meta map[string]any) []string {
	raw, ok := meta[metaTrackItems].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func indexItemIDs(pages []*content.Page) map[string][]*content.Page {
	out := map[string][]*content.Page{}
	for _, p := range pages {
		if id, ok := p.Meta[metaItemID].(string); ok && id != "" {
			out[id] = append(out[id], p)
		}
	}
	return out
}
