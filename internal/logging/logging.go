// Package logging holds the process-wide diagnostic logger. Firewall
// decisions are recorded separately by the logger collaborators; this
// logger only carries operational diagnostics on stderr.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	root zerolog.Logger
)

// Get returns the root diagnostic logger, initializing it on first use
// from the SCFW_LOG_LEVEL environment variable (default: warn).
func Get() *zerolog.Logger {
	once.Do(func() {
		root = New(os.Stderr, os.Getenv("SCFW_LOG_LEVEL"))
	})
	return &root
}

// New builds a console logger writing to w at the given level string.
func New(w io.Writer, level string) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(cw).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}
