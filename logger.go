package camquad

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled reports false so callers skip attribute formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can race with capture and draw goroutines.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for camquad and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent logger.
//
// Log levels used by camquad:
//   - [slog.LevelDebug]: per-frame diagnostics (draw skipped, resize, cache flush)
//   - [slog.LevelInfo]: lifecycle events (adapter selected, session started)
//   - [slog.LevelWarn]: dropped work (failed frame conversion, missing drawable)
//
// Example:
//
//	camquad.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Sub-packages (capture, texcache,
// renderer) call this to share one configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
