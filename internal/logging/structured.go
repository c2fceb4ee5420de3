package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// InitStructured reconfigures the operational logger.
// format is "text" (default) or "json". Output always goes to w, or to
// stderr when w is nil: stdout carries the MCP protocol stream.
func InitStructured(w io.Writer, format, level string) error {
	if w == nil {
		w = os.Stderr
	}
	SetLevelFromString(level)

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	opLogger.Store(slog.New(handler).With("service", "orkl"))
	return nil
}

// OpWithTrace returns the operational logger annotated with trace ids
// when they are known.
func OpWithTrace(traceID, spanID string) *slog.Logger {
	l := opLogger.Load()
	if traceID == "" {
		return l
	}
	args := []any{"trace_id", traceID}
	if spanID != "" {
		args = append(args, "span_id", spanID)
	}
	return l.With(args...)
}
