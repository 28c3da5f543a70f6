// Package flowstdlib implements the small set of native data functions
// exercised by the end-to-end scenarios in spec.md §8 (Echo, Adder,
// Fibonacci), supplementing original_source/flowstdlib with Go
// implementations wired behind the lib:// scheme (SPEC_FULL.md §4.13).
package flowstdlib

import "flowrun/internal/model"

// Add sums its two numeric inputs and runs again forever (a Fibonacci-style
// flow feeds its output back into one of its own inputs via a loopback
// connection).
func Add(inputs []model.Value) (model.Value, bool, bool, error) {
	a, _ := inputs[0].(float64)
	b, _ := inputs[1].(float64)
	return a + b, true, true, nil
}
