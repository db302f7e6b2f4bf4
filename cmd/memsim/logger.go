package main

import (
	"io"
	"log/slog"
)

// logger discards all output unless --verbose is set.
var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func initLogger(enabled bool, w io.Writer) {
	if !enabled {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
