// Package logx configures the process-wide zerolog logger.
package logx

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if file[i] == '/' {
				short = file[i+1:]
				break
			}
		}
		// Pad to 28 characters for alignment.
		return fmt.Sprintf("%-28s", fmt.Sprintf("%s:%d", short, line))
	}
}

// New returns a zerolog logger configured per the logging section of the
// service config: "console" gives a human-readable development writer,
// anything else (including "json" and "") gives structured output suitable
// for log aggregation.
func New(level, format string) zerolog.Logger {
	var w zerolog.ConsoleWriter
	var logger zerolog.Logger

	switch strings.ToLower(format) {
	case "console":
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(w).With().Timestamp().Caller().Logger()
	default:
		logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
	}

	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		logger = logger.Level(lvl)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	return logger
}

// NewLogger returns a console logger at info level, for tools (cmd/*) that
// need a logger before configuration has been loaded.
func NewLogger() zerolog.Logger {
	return New("info", "console")
}
