// Package debug provides category-based debug logging for authgate and
// configures the process-wide slog handler.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via AUTHGATE_DEBUG env or config
//   - Levels (HOW MUCH detail): controlled via AUTHGATE_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log("strategies", "strategy consulted", "strategy", name)
//	if debug.Enabled("auth") { /* expensive formatting */ }
//
// Categories: auth, strategies, replay, credentials, transport, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE. At TRACE the signing strategies
// log the normalized strings they MAC, which is what you need when a client
// and the server disagree on a signature.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// categories holds the set of enabled debug categories.
// Access is read-only after Init(), so no synchronization needed.
var categories map[string]bool

func init() {
	// Initialize from environment for immediate availability.
	// Can be re-initialized later via Init() with config values.
	categories = parseCategories(os.Getenv("AUTHGATE_DEBUG"))
}

// Options configures the logging setup.
type Options struct {
	Categories string // comma-separated debug categories
	Level      string // TRACE, DEBUG, INFO, WARN, ERROR
	Format     string // "text" (default) or "json"
}

// Init configures the debug system and installs the default slog logger
// writing to stderr. Environment variables override the options.
func Init(opts Options) {
	initTo(os.Stderr, opts)
}

func initTo(w io.Writer, opts Options) {
	cats := os.Getenv("AUTHGATE_DEBUG")
	if cats == "" {
		cats = opts.Categories
	}
	categories = parseCategories(cats)

	level := os.Getenv("AUTHGATE_LOG_LEVEL")
	if level == "" {
		level = opts.Level
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(h))
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
// Only visible when AUTHGATE_LOG_LEVEL=TRACE.
func Trace(category string, msg string, args ...any) {
	if !TraceIsEnabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(context.Background(), LevelTrace)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}
