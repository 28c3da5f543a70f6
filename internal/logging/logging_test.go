package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_JSONLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", false)

	log.Info().Msg("should be filtered")
	assert.Empty(t, buf.String())

	log.Warn().Msg("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "not-a-level", false)

	log.Info().Msg("visible at info")
	assert.Contains(t, buf.String(), "visible at info")
}

func TestNew_PrettyModeWritesConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", true)

	log.Info().Msg("pretty printed")
	assert.Contains(t, buf.String(), "pretty printed")
}
