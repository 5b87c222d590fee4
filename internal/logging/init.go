package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Handler formats.
const (
	JSON = "json"
	Text = "text"
	Tint = "tint"
)

// NewLogger builds a logger writing to w in the given format and level,
// wrapped in a CorrelationHandler.
func NewLogger(w io.Writer, format, levelName string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("could not parse log level: %v", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch format {
	case JSON:
		handler = slog.NewJSONHandler(w, opts)
	case Text:
		handler = slog.NewTextHandler(w, opts)
	case Tint:
		handler = tint.NewHandler(w, &tint.Options{Level: level})
	default:
		return nil, fmt.Errorf("unknown logging format: %s", format)
	}
	return slog.New(NewCorrelationHandler(handler)), nil
}

// Initialize installs the process-wide default logger on stderr. Stdout is
// left to command output and the MCP stdio transport.
func Initialize(format, levelName string) error {
	logger, err := NewLogger(os.Stderr, format, levelName)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
