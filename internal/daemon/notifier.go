package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitegen/internal/build"
	"git.home.luguber.info/inful/sitegen/internal/logfields"
)

// Notifier broadcasts rebuild summaries over NATS so downstream consumers
// (search indexers, CDN purgers, live-reload bridges) learn what changed
// without polling the output tree.
type Notifier struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// rebuildMessage is the published wire format.
type rebuildMessage struct {
	BuildID           string    `json:"build_id"`
	Timestamp         time.Time `json:"timestamp"`
	PagesBuilt        int       `json:"pages_built"`
	AssetsProcessed   int       `json:"assets_processed"`
	ModifiedContent   []string  `json:"modified_content,omitempty"`
	ModifiedAssets    []string  `json:"modified_assets,omitempty"`
	ModifiedTemplates []string  `json:"modified_templates,omitempty"`
	CascadeChanges    []string  `json:"cascade_changes,omitempty"`
}

// NewNotifier connects to NATS. Connection failures are fatal at daemon
// startup; once connected, nats.go reconnects on its own.
func NewNotifier(url, subject string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	logger.Info("Rebuild notifier connected",
		slog.String("url", url),
		slog.String("subject", subject))
	return &Notifier{conn: conn, subject: subject, logger: logger}, nil
}

// Publish sends one rebuild summary.
func (n *Notifier) Publish(res *build.Result) error {
	msg := rebuildMessage{
		BuildID:           res.BuildID,
		Timestamp:         time.Now().UTC(),
		PagesBuilt:        res.PagesBuilt,
		AssetsProcessed:   res.AssetsProcessed,
		ModifiedContent:   res.Summary.ModifiedContent,
		ModifiedAssets:    res.Summary.ModifiedAssets,
		ModifiedTemplates: res.Summary.ModifiedTemplates,
		CascadeChanges:    res.Summary.CascadeChanges,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal rebuild message: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish rebuild message: %w", err)
	}
	n.logger.Debug("Rebuild notification published",
		logfields.BuildID(res.BuildID),
		slog.String("subject", n.subject))
	return nil
}

// Close drains and closes the connection.
func (n *Notifier) Close() {
	if err := n.conn.Drain(); err != nil {
		n.logger.Warn("NATS drain failed", logfields.Error(err))
	}
}
