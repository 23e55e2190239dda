package testutil

import "log/slog"

// DiscardLogger returns a logger that drops all output. Components taking
// the internal/log alias can use log.NewNop directly; this exists for call
// sites that want plain *slog.Logger.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
