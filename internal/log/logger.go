package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mutex  sync.RWMutex
	logger *slog.Logger
)

// ParseLevel converts a level name to a slog level. Unknown names fall back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to w. Format "text" selects the text handler, anything else JSON.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup initializes the global logger on stderr and installs it as the slog default.
func Setup(level, format string) *slog.Logger {
	l := New(os.Stderr, level, format)

	mutex.Lock()
	logger = l
	mutex.Unlock()

	slog.SetDefault(l)
	return l
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	mutex.RLock()
	l := logger
	mutex.RUnlock()

	if l == nil {
		return Setup("INFO", "json")
	}
	return l
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// WithComponent returns a logger with the component field set.
func WithComponent(base *slog.Logger, name string) *slog.Logger {
	return orDefault(base).With(slog.String("component", name))
}

// WithPlugin returns a logger with the plugin field set.
func WithPlugin(base *slog.Logger, name string) *slog.Logger {
	return orDefault(base).With(slog.String("plugin", name))
}

// WithService returns a logger with the service field set.
func WithService(base *slog.Logger, name string) *slog.Logger {
	return orDefault(base).With(slog.String("service", name))
}

// WithDataset returns a logger with the dataset and file fields set.
func WithDataset(base *slog.Logger, datasetID, file string) *slog.Logger {
	return orDefault(base).With(slog.String("dataset", datasetID), slog.String("file", file))
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Get()
	}
	return l
}
