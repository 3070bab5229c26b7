// Package logging provides the shared logger for all volrender packages.
// By default the engine produces no log output; host applications call
// SetLogger to enable it.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely,
// making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by the engine and all its packages.
// Pass nil to restore the default silent behavior. Safe for concurrent use.
//
// Levels used by the engine:
//   - slog.LevelDebug: per-stage diagnostics (batch sizes, kernel timings)
//   - slog.LevelInfo: lifecycle events (volume loaded, preset switched)
//   - slog.LevelWarn: non-fatal issues (degraded slice ordering, an organ
//     excluded from a multi-organ segmentation)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the currently configured logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
