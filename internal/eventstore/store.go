// Package eventstore keeps an append-only log of build events for
// troubleshooting incremental decisions after the fact.
package eventstore

import (
	"context"
	"time"
)

// Event types recorded per build.
const (
	EventBuildStarted   = "build_started"
	EventWorkComputed   = "work_computed"
	EventPagesRendered  = "pages_rendered"
	EventCacheSaved     = "cache_saved"
	EventOrphansCleaned = "orphans_cleaned"
)

// Event is one recorded build event.
type Event struct {
	ID        int64             `json:"id"`
	BuildID   string            `json:"build_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Store is the append-only event log.
type Store interface {
	Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)
	GetByType(ctx context.Context, eventType string, limit int) ([]Event, error)
	Close() error
}

// Nop discards all events; used when no event log is configured.
type Nop struct{}

func (Nop) Append(context.Context, string, string, []byte, map[string]string) error {
	return nil
}
func (Nop) GetByBuildID(context.Context, string) ([]Event, error)  { return nil, nil }
func (Nop) GetByType(context.Context, string, int) ([]Event, error) { return nil, nil }
func (Nop) Close() error                                            { return nil }
