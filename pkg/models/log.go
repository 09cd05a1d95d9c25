package models

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel is the severity of a captured log entry.
type LogLevel string

const (
	LogLevelLog   LogLevel = "log"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelDebug LogLevel = "debug"
)

// ClearEntryID is the ID of the sentinel entry broadcast when the log buffer is cleared.
const ClearEntryID = "clear"

// LogLevels lists every level in display order.
var LogLevels = []LogLevel{LogLevelLog, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelDebug}

// ParseLogLevel converts a case-insensitive level name into a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	l := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range LogLevels {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// LogEntry is a single captured diagnostic message.
type LogEntry struct {
	ID        string    `json:"id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Args      []any     `json:"args"`
	Timestamp time.Time `json:"timestamp"`
	Stack     string    `json:"stack,omitempty"`
}

// ClearEntry returns the sentinel entry used to tell listeners the buffer was cleared.
// It is never stored.
func ClearEntry() LogEntry {
	return LogEntry{
		ID:        ClearEntryID,
		Level:     LogLevelLog,
		Message:   "",
		Args:      []any{},
		Timestamp: time.Now(),
	}
}

// IsClear reports whether e is the clear sentinel.
func (e LogEntry) IsClear() bool {
	return e.ID == ClearEntryID
}

// Clone returns a copy of e that shares no mutable state with it.
func (e LogEntry) Clone() LogEntry {
	c := e
	if e.Args != nil {
		c.Args = make([]any, len(e.Args))
		copy(c.Args, e.Args)
	}
	return c
}
