package logger

import "log/slog"

// NewNope creates a logger that discards everything. Used as the default
// when logging is not configured.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
