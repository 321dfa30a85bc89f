package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. An unknown level falls back to info
// and is returned as an error after the logger is usable.
func Init(level string, pretty bool) error {
	return InitWriter(os.Stdout, level, pretty)
}

func InitWriter(w io.Writer, level string, pretty bool) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	log.Logger = zerolog.New(w).Level(lvl).With().
		Timestamp().
		Caller().
		Logger()
	return err
}
