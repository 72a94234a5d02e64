// Package log provides structured logging for appreg.
// Entries are written as "timestamp [LEVEL] [category] message key=value ..."
// lines and additionally fanned out on a pub/sub broker so that long-running
// commands (serve --watch) can surface build logs to their subscribers.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sciworks/appreg/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level. Unknown values default to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Category groups related log messages.
type Category string

const (
	CatRegistry Category = "registry" // registry build pipeline
	CatResolve  Category = "resolve"  // release specifier resolution
	CatGit      Category = "git"      // git snapshot operations
	CatFetch    Category = "fetch"    // repository fetching
	CatCache    Category = "cache"    // clone cache
	CatScan     Category = "scan"     // app metadata/environment scanning
	CatSchema   Category = "schema"   // JSON-schema validation
	CatConfig   Category = "config"   // configuration loading
	CatServe    Category = "serve"    // preview server and file watcher
	CatWebsite  Category = "website"  // HTML page generation
)

// Logger provides leveled, categorized logging.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	writer   io.Writer
	enabled  bool
	minLevel Level
	broker   *pubsub.Broker[string]
}

var (
	defaultLogger *Logger
	initMu        sync.Mutex
)

// Init initializes the global logger writing to w. It is a no-op if the
// logger was already initialized.
func Init(w io.Writer) {
	initMu.Lock()
	defer initMu.Unlock()
	if defaultLogger != nil {
		return
	}
	defaultLogger = &Logger{
		writer:   w,
		enabled:  true,
		minLevel: LevelInfo,
		broker:   pubsub.NewBroker[string](),
	}
}

// InitFile redirects the global logger to append to the file at path.
// Returns a cleanup function that closes the file.
func InitFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	initMu.Lock()
	defaultLogger = &Logger{
		file:     f,
		writer:   f,
		enabled:  true,
		minLevel: LevelDebug,
		broker:   pubsub.NewBroker[string](),
	}
	initMu.Unlock()

	return func() { _ = f.Close() }, nil
}

// ensure lazily initializes the default logger so that library code can log
// before the CLI has run its setup.
func ensure() *Logger {
	initMu.Lock()
	defer initMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = &Logger{
			writer:   os.Stderr,
			enabled:  true,
			minLevel: LevelInfo,
			broker:   pubsub.NewBroker[string](),
		}
	}
	return defaultLogger
}

// SetEnabled toggles logging on or off.
func SetEnabled(enabled bool) {
	l := ensure()
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// SetMinLevel sets the minimum level that will be written.
func SetMinLevel(level Level) {
	l := ensure()
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value appended as a field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	log(LevelError, cat, msg, fields...)
}

func log(level Level, cat Category, msg string, fields ...any) {
	l := ensure()

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.minLevel {
		return
	}

	timestamp := time.Now().Format("2006-01-02T15:04:05")
	entry := fmt.Sprintf("%s [%s] [%s] %s", timestamp, level, cat, msg)

	for i := 0; i+1 < len(fields); i += 2 {
		entry += fmt.Sprintf(" %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		entry += fmt.Sprintf(" %v=<missing>", fields[len(fields)-1])
	}
	entry += "\n"

	if l.writer != nil {
		_, _ = l.writer.Write([]byte(entry))
	}

	if l.broker != nil {
		l.broker.Publish(pubsub.LogEntryEvent, entry)
	}
}

// LogEvent is a pubsub event containing a formatted log entry.
type LogEvent = pubsub.Event[string]

// Subscribe returns a channel of log entries. The subscription ends when ctx
// is cancelled.
func Subscribe(ctx context.Context) <-chan LogEvent {
	return ensure().broker.Subscribe(ctx)
}
