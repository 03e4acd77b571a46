package incremental

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitegen/internal/eventstore"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

// CleanupOrphans deletes output files whose source no longer exists in the
// freshly discovered tree. Driven by diffing the previous build's effect
// graph outputs against the current tree; outputs the tracer never recorded
// are left alone.
//
// Runs after a successful build. Deletion failures are logged and skipped,
// never fatal: a stale file is better than a failed build.
func (d *Detector) CleanupOrphans(ctx context.Context) (int, error) {
	if !d.initialized {
		return 0, ErrNotInitialized
	}
	if d.tree == nil {
		return 0, ErrNotInitialized
	}

	live := sets.New[string]()
	for _, p := range d.tree.Pages {
		live.Add(p.OutputPath)
	}
	for _, a := range d.tree.Assets {
		live.Add(OutputPathFor(a, d.cfg.Content.Root, d.cfg.Build.OutputDir))
	}

	removed := 0
	var removedPaths []string
	for out := range d.cache.Tracer().Outputs() {
		if live.Has(out) || !strings.HasPrefix(out, d.cfg.Build.OutputDir) {
			continue
		}
		if err := os.Remove(out); err != nil {
			if os.IsNotExist(err) {
				d.cache.Tracer().Forget(out)
				continue
			}
			// Keep the record so the next build retries the removal.
			d.logger.Warn("Orphaned output removal failed",
				logfields.Output(out), logfields.Error(err))
			continue
		}
		d.cache.Tracer().Forget(out)
		removed++
		removedPaths = append(removedPaths, out)
		d.logger.Debug("Orphaned output removed", logfields.Output(out))

		// Prune directories emptied by pretty-URL page removal.
		pruneEmptyDirs(filepath.Dir(out), d.cfg.Build.OutputDir)
	}

	if removed > 0 {
		payload, _ := json.Marshal(removedPaths)
		if err := d.events.Append(ctx, d.buildID, eventstore.EventOrphansCleaned, payload, nil); err != nil {
			d.logger.Warn("Event log append failed", logfields.Error(err))
		}
		d.logger.Info("Orphaned outputs cleaned",
			logfields.BuildID(d.buildID), logfields.Count(removed))
	}
	return removed, nil
}

// pruneEmptyDirs removes dir and its now-empty ancestors, stopping at the
// output root.
func pruneEmptyDirs(dir, stop string) {
	for dir != stop && strings.HasPrefix(dir, stop) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
