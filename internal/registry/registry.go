// Package registry provides a table of named derived caches (navigation
// cache, version-page index, ...) that can be invalidated en masse by a
// tagged reason. The registry is scoped to one build session and passed
// explicitly; it is not ambient global state.
package registry

import (
	"log/slog"

	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// Reason tags why an invalidation happened; caches may react differently
// per reason.
type Reason string

const (
	ReasonConfigChanged    Reason = "config_changed"
	ReasonStructuralChange Reason = "structural_change"
	ReasonTemplateChanged  Reason = "template_changed"
	ReasonShutdown         Reason = "shutdown"
)

// Invalidatable is implemented by derived caches registered here.
type Invalidatable interface {
	Invalidate(reason Reason)
}

// Registry is the per-build table of named caches. Single-threaded: caches
// register during setup and invalidation happens during detection, both on
// the build goroutine.
type Registry struct {
	logger *slog.Logger
	caches map[string]Invalidatable
	epoch  uint64
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		caches: map[string]Invalidatable{},
	}
}

// Register adds (or replaces) a named cache.
func (r *Registry) Register(name string, cache Invalidatable) {
	r.caches[name] = cache
}

// Deregister removes a named cache if present.
func (r *Registry) Deregister(name string) {
	delete(r.caches, name)
}

// Epoch returns the current invalidation epoch. Derived caches can remember
// the epoch they were computed at and treat a moved epoch as stale without
// being individually invalidated.
func (r *Registry) Epoch() uint64 { return r.epoch }

// InvalidateAll invalidates every registered cache and bumps the epoch.
func (r *Registry) InvalidateAll(reason Reason) {
	r.epoch++
	for name, cache := range r.caches {
		cache.Invalidate(reason)
		r.logger.Debug("Cache invalidated", logfields.CacheName(name), logfields.Reason(string(reason)))
	}
}

// Invalidate invalidates one named cache and bumps the epoch. Unknown names
// are ignored.
func (r *Registry) Invalidate(name string, reason Reason) {
	cache, ok := r.caches[name]
	if !ok {
		return
	}
	r.epoch++
	cache.Invalidate(reason)
	r.logger.Debug("Cache invalidated", logfields.CacheName(name), logfields.Reason(string(reason)))
}
