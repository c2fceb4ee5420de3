package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	opLogger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// Op returns the operational logger used for server lifecycle and
// diagnostics. Per-call API records go through the request Logger instead.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetLevel changes the operational log level.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" (any case)
// to a slog level.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetLevelFromString sets the level from its name. Unknown names leave the
// current level unchanged.
func SetLevelFromString(level string) {
	if l, ok := ParseLevel(level); ok {
		logLevel.Set(l)
	}
}

// DebugEnabled reports whether debug records are currently emitted.
func DebugEnabled() bool {
	return logLevel.Level() <= slog.LevelDebug
}
