package main

import (
	"fmt"
	"io"
	"log/slog"

	charmlog "github.com/charmbracelet/log"

	"github.com/toolhub/ghapp-mcp/internal/config"
)

// newLogger builds the process logger. Everything goes to w (stderr in
// practice) since stdout may carry the stdio protocol.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	switch cfg.Format {
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	case "text":
		h := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
		})
		return slog.New(h), nil
	default:
		return nil, &config.Error{Key: "GHAPP_LOG_FORMAT", Reason: fmt.Sprintf("unsupported log format %q", cfg.Format)}
	}
}
