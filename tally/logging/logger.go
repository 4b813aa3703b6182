package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EnvLevel sets the minimum level written by loggers built with NewLogger.
const EnvLevel = "STRAVATALLY_LOG_LEVEL"

// LogLevel represents the log level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

func (l LogLevel) rank() int {
	switch l {
	case LogLevelDebug:
		return 0
	case LogLevelInfo:
		return 1
	case LogLevelWarn:
		return 2
	case LogLevelError:
		return 3
	}
	return 1
}

// ParseLevel accepts a level name in any case. Unknown names yield INFO and false.
func ParseLevel(s string) (LogLevel, bool) {
	switch l := LogLevel(strings.ToUpper(strings.TrimSpace(s))); l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return l, true
	case "WARNING":
		return LogLevelWarn, true
	}
	return LogLevelInfo, false
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     LogLevel          `json:"level"`
	Message   string            `json:"message"`
	Service   string            `json:"service"`
	RunID     string            `json:"run_id"`
	Operation string            `json:"operation,omitempty"`
	Error     string            `json:"error,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Logger is a structured JSON-lines logger scoped to one run.
type Logger struct {
	out      io.Writer
	closer   io.Closer
	mu       sync.Mutex
	service  string
	runID    string
	minLevel LogLevel
	now      func() time.Time

	// partial holds an unterminated line handed to Write.
	partial []byte
}

// NewLogger creates a logger appending to logPath. The minimum level comes
// from $STRAVATALLY_LOG_LEVEL, defaulting to INFO.
func NewLogger(logPath, service string) (*Logger, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(file, service)
	l.closer = file
	if raw := os.Getenv(EnvLevel); raw != "" {
		level, ok := ParseLevel(raw)
		if !ok {
			l.Warnf("unknown %s %q, using %s", EnvLevel, raw, level)
		}
		l.minLevel = level
	}
	return l, nil
}

// New creates a logger writing to out with a fresh run id.
func New(out io.Writer, service string) *Logger {
	return &Logger{
		out:      out,
		service:  service,
		runID:    uuid.NewString(),
		minLevel: LogLevelInfo,
		now:      time.Now,
	}
}

// RunID identifies every entry written by this logger.
func (l *Logger) RunID() string {
	return l.runID
}

// SetLevel changes the minimum level written.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// Close flushes any partial line and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	partial := l.partial
	l.partial = nil
	l.mu.Unlock()
	if len(partial) > 0 {
		l.logLine(partial)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer != nil {
		err := l.closer.Close()
		l.closer = nil
		return err
	}
	return nil
}

func (l *Logger) log(level LogLevel, message, operation string, err error, fields map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level.rank() < l.minLevel.rank() {
		return
	}

	entry := LogEntry{
		Timestamp: l.now().UTC(),
		Level:     level,
		Message:   message,
		Service:   l.service,
		RunID:     l.runID,
		Operation: operation,
		Fields:    fields,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	jsonData, marshalErr := json.Marshal(entry)
	if marshalErr != nil {
		_, _ = fmt.Fprintf(l.out, "{\"timestamp\":%q,\"level\":%q,\"message\":%q,\"service\":%q,\"run_id\":%q}\n",
			entry.Timestamp.Format(time.RFC3339), level, message, l.service, l.runID)
		return
	}
	_, _ = fmt.Fprintln(l.out, string(jsonData))
}

// Debug logs a debug message.
func (l *Logger) Debug(message string) {
	l.log(LogLevelDebug, message, "", nil, nil)
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}

// Info logs an info message.
func (l *Logger) Info(message string) {
	l.log(LogLevelInfo, message, "", nil, nil)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// InfoWithOperation logs an info message with operation context and fields.
func (l *Logger) InfoWithOperation(operation, message string, fields map[string]string) {
	l.log(LogLevelInfo, message, operation, nil, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string) {
	l.log(LogLevelWarn, message, "", nil, nil)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(message string, err error) {
	l.log(LogLevelError, message, "", err, nil)
}

// ErrorWithOperation logs an error message with operation context.
func (l *Logger) ErrorWithOperation(operation, message string, err error) {
	l.log(LogLevelError, message, operation, err, nil)
}

// Write lets the logger stand behind the standard log package. Each line is
// one entry; a leading "DEBUG:", "INFO:", "WARN:" or "ERROR:" sets its level,
// anything else is INFO.
func (l *Logger) Write(p []byte) (int, error) {
	l.mu.Lock()
	l.partial = append(l.partial, p...)
	var lines [][]byte
	for {
		idx := bytes.IndexByte(l.partial, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, append([]byte(nil), l.partial[:idx]...))
		l.partial = l.partial[idx+1:]
	}
	l.mu.Unlock()

	for _, line := range lines {
		l.logLine(line)
	}
	return len(p), nil
}

func (l *Logger) logLine(line []byte) {
	text := strings.TrimSpace(string(line))
	if text == "" {
		return
	}
	level := LogLevelInfo
	if prefix, rest, ok := strings.Cut(text, ":"); ok {
		if parsed, known := ParseLevel(prefix); known && !strings.ContainsAny(prefix, " \t") {
			level = parsed
			text = strings.TrimSpace(rest)
		}
	}
	l.log(level, text, "", nil, nil)
}
