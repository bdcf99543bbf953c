package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. LOG_FORMAT picks the handler
// explicitly ("json" or "pretty"); when it is unset, production gets JSON
// and every other environment gets the text handler. Production omits
// source locations and debug records.
func NewLogger(cfg *Config) *slog.Logger {
	format := ""
	production := false
	if cfg != nil {
		format = cfg.LogFormat
		production = cfg.IsProduction()
	}

	opts := &slog.HandlerOptions{AddSource: true}
	if production {
		opts = &slog.HandlerOptions{Level: slog.LevelInfo}
	}

	if format == "json" || (format == "" && production) {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
