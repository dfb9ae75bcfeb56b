package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level      string `json:"level" yaml:"level" default:"info"`
	Output     string `json:"output" yaml:"output" default:"stdout"` // "stdout", "stderr", or file path
	Component  string `json:"component" yaml:"component" default:"trader"`
	JSONFormat bool   `json:"json_format" yaml:"json_format"`
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// ParseLevel converts a string to a zerolog level, defaulting to info
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New creates a logger from the given configuration
func New(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = &Config{}
	}
	return NewWithWriter(cfg, openOutput(cfg.Output))
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(cfg *Config, w io.Writer) zerolog.Logger {
	if !cfg.JSONFormat {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("service", cfg.Component)
	}
	return ctx.Logger()
}

func openOutput(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return os.Stdout
	}
	return file
}

// Default returns the process-wide logger
func Default() zerolog.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger
func SetDefault(l zerolog.Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// WithComponent returns a child of the default logger tagged with component
func WithComponent(component string) zerolog.Logger {
	return Component(Default(), component)
}

// Component tags l with a component name
func Component(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// Nop returns a disabled logger, used by tests and optional collaborators
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
