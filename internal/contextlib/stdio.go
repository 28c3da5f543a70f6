// Package contextlib implements the built-in context:// functions named as
// examples in spec.md §1 ("stdio, file I/O, image output, etc.") and
// supplemented here as concrete, minimal implementations (SPEC_FULL.md
// §4.12). Every function in this package is registered against a
// provider.ContextLoader and runs only on the single-threaded context
// executor (spec §4.7), so none of it needs its own locking for the
// sequencing the spec promises - only for state a caller might read
// concurrently from outside that executor (Design Note "Context
// implementations that need to mutate process state... must do so behind
// their own internal synchronization").
package contextlib

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"flowrun/internal/model"
)

// Stdio wraps a reader/writer pair so stdio.stdin/stdout/stderr can be
// pointed at os.Stdin/Stdout/Stderr in production and at buffers in tests.
type Stdio struct {
	mu     sync.Mutex
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
}

// NewStdio builds a Stdio context collaborator.
func NewStdio(in io.Reader, out, errOut io.Writer) *Stdio {
	return &Stdio{in: bufio.NewReader(in), out: out, errOut: errOut}
}

// Stdin reads one line (without its trailing newline) per call and emits it
// as the output string; it runs again forever until the reader is
// exhausted, at which point it stops (RunAgain=false) with no output.
func (s *Stdio) Stdin(inputs []model.Value) (model.Value, bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := s.in.ReadString('\n')
	if err != nil && line == "" {
		return nil, false, false, nil
	}
	line = trimNewline(line)
	return line, true, true, nil
}

// Stdout writes inputs[0] (stringified) followed by a newline, emitting no
// output of its own.
func (s *Stdio) Stdout(inputs []model.Value) (model.Value, bool, bool, error) {
	return s.write(s.out, inputs)
}

// Stderr writes inputs[0] (stringified) followed by a newline to the error
// stream, emitting no output of its own.
func (s *Stdio) Stderr(inputs []model.Value) (model.Value, bool, bool, error) {
	return s.write(s.errOut, inputs)
}

func (s *Stdio) write(w io.Writer, inputs []model.Value) (model.Value, bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(inputs) == 0 {
		return nil, false, true, nil
	}
	if _, err := fmt.Fprintln(w, stringify(inputs[0])); err != nil {
		return nil, false, true, err
	}
	return nil, false, true, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func stringify(v model.Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
