package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPath       = "path"
	KeySection    = "section"
	KeyPage       = "page"
	KeyTemplate   = "template"
	KeyOutput     = "output"
	KeyBuildID    = "build_id"
	KeyReason     = "reason"
	KeyCacheName  = "cache"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Section(s string) slog.Attr       { return slog.String(KeySection, s) }
func Page(p string) slog.Attr          { return slog.String(KeyPage, p) }
func Template(t string) slog.Attr      { return slog.String(KeyTemplate, t) }
func Output(o string) slog.Attr        { return slog.String(KeyOutput, o) }
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Reason(r string) slog.Attr        { return slog.String(KeyReason, r) }
func CacheName(n string) slog.Attr     { return slog.String(KeyCacheName, n) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
