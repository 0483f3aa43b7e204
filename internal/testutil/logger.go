package testutil

import (
	"io"
	"log/slog"
)

// DiscardLogger returns a logger that drops everything. Use it where a
// store or orchestrator requires a logger but the test does not inspect
// log output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
