package logger

import (
	"log/slog"
	"os"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level written to stdout (debug, info, warn, error).
	Level slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// New creates a JSON logger writing to stdout with optional context
// extractors applied to every record.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level,
	})
	return slog.New(NewLogHandlerDecorator(handler, extractors...))
}
