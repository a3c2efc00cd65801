package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// workflowAttrs maps workflow environment variables onto log attributes.
var workflowAttrs = []struct {
	env, key string
}{
	{"GITHUB_REPOSITORY", "repository"},
	{"GITHUB_RUN_ID", "run_id"},
	{"GITHUB_JOB", "job"},
}

// NewLogger constructs a *slog.Logger writing to stdout.
// Supported levels: debug, info, warn, error.
// Supported formats: text (default), json.
func NewLogger(level, format string) (*slog.Logger, error) {
	return newLogger(os.Stdout, level, format, os.Getenv)
}

func newLogger(w io.Writer, level, format string, getenv func(string) string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}
	// The runner prefixes every line with its own timestamp.
	if getenv("GITHUB_ACTIONS") == "true" {
		opts.ReplaceAttr = dropTime
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	args := []any{"component", "backport-action"}
	for _, attr := range workflowAttrs {
		if v := strings.TrimSpace(getenv(attr.env)); v != "" {
			args = append(args, attr.key, v)
		}
	}
	return slog.New(handler).With(args...), nil
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", level)
	}
}
