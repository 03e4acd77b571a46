// Package watch monitors the content tree and the theme directory for
// changes, coalescing event bursts into batched change sets.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitegen/internal/logfields"
	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

// Batch is one debounced set of changed paths.
type Batch struct {
	// Paths are the changed files, deduplicated.
	Paths []string
	// Structural is set when files or directories were created, removed or
	// renamed, so the consumer knows the tree shape may have changed.
	Structural bool
}

// Watcher watches directory trees recursively and emits debounced batches.
// fsnotify does not watch recursively by itself, so every subdirectory is
// added individually and newly created directories are picked up from
// create events.
type Watcher struct {
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	roots    []string
	debounce time.Duration

	batches chan Batch
}

// New creates a watcher over the given root directories. debounce bounds the
// quiet window before a batch is emitted.
func New(roots []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		logger:   logger,
		watcher:  fsw,
		roots:    roots,
		debounce: debounce,
		batches:  make(chan Batch, 1),
	}

	for _, root := range roots {
		if root == "" {
			continue
		}
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Batches delivers debounced change sets. Closed when Run returns.
func (w *Watcher) Batches() <-chan Batch { return w.batches }

// Run pumps fsnotify events until ctx is cancelled. Blocking; run it in its
// own goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.batches)
	defer w.watcher.Close()

	w.logger.Info("Watching for changes",
		slog.Int("roots", len(w.roots)),
		logfields.DurationMS(float64(w.debounce.Milliseconds())))

	pending := sets.New[string]()
	structural := false
	var timer *time.Timer
	var fire <-chan time.Time

	flush := func() {
		if pending.Len() == 0 && !structural {
			return
		}
		batch := Batch{Paths: sets.SortedStrings(pending), Structural: structural}
		pending = sets.New[string]()
		structural = false
		select {
		case w.batches <- batch:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if skip(event.Name) {
				continue
			}

			if event.Op.Has(fsnotify.Create) {
				// New directories need their own watches; their contents
				// arrive as further events.
				if err := w.addRecursive(event.Name); err == nil {
					structural = true
				}
			}
			if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				structural = true
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				pending.Add(event.Name)
			}
			if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				pending.Add(event.Name)
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			flush()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", logfields.Error(err))
		}
	}
}

// addRecursive watches path and every directory below it. Regular files are
// covered by their parent directory's watch.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if !entry.IsDir() {
			return nil
		}
		if skip(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// skip filters editor noise and hidden paths out of the change stream.
func skip(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && base != "." {
		return true
	}
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".tmp"):
		return true
	}
	return false
}
