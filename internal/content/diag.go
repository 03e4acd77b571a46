package content

import "go.uber.org/multierr"

// Diagnostic is a non-fatal problem found while building or walking the tree.
type Diagnostic struct {
	Path    string
	Message string
	Err     error
}

// DiagnosticSink receives non-fatal diagnostics. Tree nodes hold an
// explicitly injected sink (defaulting to a no-op), never a global.
type DiagnosticSink interface {
	Emit(d Diagnostic)
}

type nopSink struct{}

func (nopSink) Emit(Diagnostic) {}

// NopSink discards all diagnostics.
var NopSink DiagnosticSink = nopSink{}

// Collector accumulates diagnostics for build-wide summary reporting.
// Single-threaded: tree mutation and discovery insertion happen on one
// goroutine, so no locking here.
type Collector struct {
	Diagnostics []Diagnostic
}

func (c *Collector) Emit(d Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

// Err returns all collected diagnostic errors combined, or nil when none of
// the diagnostics carried an error.
func (c *Collector) Err() error {
	var err error
	for _, d := range c.Diagnostics {
		if d.Err != nil {
			err = multierr.Append(err, d.Err)
		}
	}
	return err
}
