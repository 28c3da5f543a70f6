package contextlib

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowrun/internal/model"
)

func TestStdio_StdinReadsLineAtATime(t *testing.T) {
	s := NewStdio(strings.NewReader("first\nsecond\n"), &bytes.Buffer{}, &bytes.Buffer{})

	out, hasOutput, runAgain, err := s.Stdin(nil)
	require.NoError(t, err)
	assert.True(t, hasOutput)
	assert.True(t, runAgain)
	assert.Equal(t, "first", out)

	out, _, _, err = s.Stdin(nil)
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestStdio_StdinStopsAtEOF(t *testing.T) {
	s := NewStdio(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	_, hasOutput, runAgain, err := s.Stdin(nil)
	require.NoError(t, err)
	assert.False(t, hasOutput)
	assert.False(t, runAgain)
}

func TestStdio_StdoutWritesLine(t *testing.T) {
	var out bytes.Buffer
	s := NewStdio(strings.NewReader(""), &out, &bytes.Buffer{})

	_, hasOutput, runAgain, err := s.Stdout([]model.Value{"hello"})
	require.NoError(t, err)
	assert.False(t, hasOutput)
	assert.True(t, runAgain)
	assert.Equal(t, "hello\n", out.String())
}

func TestStdio_StderrWritesLine(t *testing.T) {
	var errOut bytes.Buffer
	s := NewStdio(strings.NewReader(""), &bytes.Buffer{}, &errOut)

	_, _, _, err := s.Stderr([]model.Value{42.0})
	require.NoError(t, err)
	assert.Equal(t, "42\n", errOut.String())
}

func TestFileIO_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	f := NewFileIO(dir)

	_, hasOutput, runAgain, err := f.Write([]model.Value{"out.txt", "hello world"})
	require.NoError(t, err)
	assert.False(t, hasOutput)
	assert.True(t, runAgain)

	out, hasOutput, runAgain, err := f.Read([]model.Value{"out.txt"})
	require.NoError(t, err)
	assert.True(t, hasOutput)
	assert.True(t, runAgain)
	assert.Equal(t, "hello world", out)
}

func TestFileIO_RejectsPathEscape(t *testing.T) {
	f := NewFileIO(t.TempDir())
	_, _, _, err := f.Write([]model.Value{"../escape.txt", "x"})
	assert.Error(t, err)
}

func TestFileIO_ReadMissingFileErrors(t *testing.T) {
	f := NewFileIO(t.TempDir())
	_, hasOutput, _, err := f.Read([]model.Value{"missing.txt"})
	assert.Error(t, err)
	assert.False(t, hasOutput)
}

func TestImageBuffer_EncodesOnLastScanline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")
	b := NewImageBuffer(2, 2, path)

	white := []any{255.0, 255.0, 255.0, 255.0}
	black := []any{0.0, 0.0, 0.0, 255.0}
	row := []any{white, black}

	_, hasOutput, runAgain, err := b.Accumulate([]model.Value{row})
	require.NoError(t, err)
	assert.False(t, hasOutput)
	assert.True(t, runAgain)
	_, err = os.Stat(path)
	assert.Error(t, err) // not flushed yet, one scanline remains

	_, hasOutput, runAgain, err = b.Accumulate([]model.Value{row})
	require.NoError(t, err)
	assert.False(t, hasOutput)
	assert.False(t, runAgain)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestImageBuffer_WrongScanlineWidthErrors(t *testing.T) {
	b := NewImageBuffer(3, 1, filepath.Join(t.TempDir(), "out.png"))
	_, _, runAgain, err := b.Accumulate([]model.Value{[]any{[]any{1.0, 1.0, 1.0, 1.0}}})
	assert.Error(t, err)
	assert.True(t, runAgain)
}
