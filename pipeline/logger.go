package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Logger wraps slog.Logger with pipeline-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", path),
	}
}

// LogPass logs the outcome of one block-parallel pass.
func (l *Logger) LogPass(ctx context.Context, op, output string, stats *Stats, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"output", output,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, op+" completed",
		"output", output,
		"blocks", stats.Blocks,
		"written", stats.Written,
		"bytes", humanize.Bytes(stats.Bytes),
		"elapsed", elapsed.Round(time.Millisecond),
	)
}

// LogLevel logs a produced scale level.
func (l *Logger) LogLevel(ctx context.Context, output string, dimensions []int64, factors []int) {
	l.InfoContext(ctx, "scale level written",
		"output", output,
		"dimensions", dimensions,
		"downsamplingFactors", factors,
	)
}
