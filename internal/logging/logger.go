package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestLog is one record per ORKL API call, whether it was served from
// the cache or went over the network.
type RequestLog struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	Method     string    `json:"method"`
	Endpoint   string    `json:"endpoint"`
	CacheKey   string    `json:"cache_key,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	WaitMs     int64     `json:"rate_limit_wait_ms,omitempty"`
	FromCache  bool      `json:"from_cache,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// NewRequestID returns a fresh id for a RequestLog.
func NewRequestID() string {
	return uuid.NewString()
}

// Logger writes RequestLog records as a human-readable console line and,
// optionally, as JSON lines to a file.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	console io.Writer
}

var defaultLogger = &Logger{}

// Default returns the process-wide request logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput appends JSON records to the file at path.
func (l *Logger) SetOutput(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open request log: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	return nil
}

// SetConsole sets where console lines go. nil disables console output.
func (l *Logger) SetConsole(w io.Writer) {
	l.mu.Lock()
	l.console = w
	l.mu.Unlock()
}

// Log writes entry. Timestamp and RequestID are filled in when empty.
func (l *Logger) Log(entry *RequestLog) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.RequestID == "" {
		entry.RequestID = NewRequestID()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.console != nil {
		status := "ok"
		if !entry.Success {
			status = "fail"
		}
		extra := ""
		if entry.FromCache {
			extra += " [cached]"
		}
		if entry.WaitMs > 0 {
			extra += fmt.Sprintf(" [waited:%dms]", entry.WaitMs)
		}
		fmt.Fprintf(l.console, "[request] %s %s %s %s %d %dms%s\n",
			status, entry.RequestID, entry.Method, entry.Endpoint, entry.StatusCode, entry.DurationMs, extra)
		if entry.Error != "" {
			fmt.Fprintf(l.console, "[request]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, err := json.Marshal(entry)
		if err != nil {
			return
		}
		if _, err := l.file.Write(append(data, '\n')); err != nil {
			Op().Warn("write request log failed", "error", err)
		}
	}
}

// Close closes the request log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
