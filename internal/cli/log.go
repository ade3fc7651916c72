package cli

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// newLogger returns a human-readable logger on w at level.
func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.TimeOnly,
	}

	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}
