package flowstdlib

import "flowrun/internal/model"

// Take passes its single input through unchanged, up to n times (closed
// over at construction), then stops generating further jobs - the
// terminator used by the Fibonacci scenario (spec §8) to bound an otherwise
// infinitely self-feeding add loop. n <= 0 means unbounded.
func Take(n int) model.ImplementationFunc {
	taken := 0
	return func(inputs []model.Value) (model.Value, bool, bool, error) {
		taken++
		runAgain := n <= 0 || taken < n
		return inputs[0], true, runAgain, nil
	}
}
