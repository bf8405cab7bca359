// Package logging builds the per-run logger. Log level is a per-run value
// threaded through context, not process-global state.
package logging

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yavdl/yavdl/internal/types"
)

// Config controls logger construction for one run.
type Config struct {
	// Quiet limits output to warnings and errors.
	Quiet bool
	// Verbose enables debug output. Ignored when Quiet is set.
	Verbose bool
	// Console renders human-readable output instead of JSON lines.
	Console bool
}

// New constructs the run logger, tagged with a fresh run id.
func New(w io.Writer, cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case cfg.Quiet:
		level = zerolog.WarnLevel
	case cfg.Verbose:
		level = zerolog.DebugLevel
	}
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
}

// WithVideo returns a context whose logger carries the video id.
func WithVideo(ctx context.Context, id types.VideoID) context.Context {
	logger := zerolog.Ctx(ctx).With().Str("video_id", string(id)).Logger()
	return logger.WithContext(ctx)
}
