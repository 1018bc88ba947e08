package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the default text logger. Verbose mode drops the level
// down to debug, which also turns on per-request fetch logging.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
