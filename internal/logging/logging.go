// Package logging centralizes zerolog setup so every component receives
// the same constructor-injected *zerolog.Logger* rather than reaching for
// a package-level global (Design Note "Process-wide state... no globals"),
// generalizing the teacher's single log.Println call site
// (cmd/server/main.go) into structured, leveled logging.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to w (os.Stderr in production, a
// buffer in tests) at the given level name ("debug", "info", "warn",
// "error"; unrecognized names fall back to "info"). pretty selects the
// human-readable console writer over the production JSON encoding.
func New(w io.Writer, levelName string, pretty bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default builds a production JSON logger writing to os.Stderr at info
// level, for callers that have not yet parsed a --debug flag.
func Default() zerolog.Logger {
	return New(os.Stderr, "info", false)
}
