package model

import "flowrun/internal/value"

// SourceKind distinguishes where an OutputConnection reads its value from:
// either the function's own output (optionally at a JSON-pointer sub-path),
// or a loopback from one of its own inputs (used for flow-input fan-out,
// spec §4.4.1.a).
type SourceKind int

const (
	// SourceOutput reads from the function's output value, at Path (""
	// for the whole value).
	SourceOutput SourceKind = iota
	// SourceInput reads from one of the function's own inputs, by index -
	// the loopback pattern used by flow-input fan-outs.
	SourceInput
)

// Source names where an OutputConnection takes its value from.
type Source struct {
	Kind SourceKind
	// Path is a JSON-pointer sub-path into the output value; only
	// meaningful when Kind == SourceOutput.
	Path string
	// InputIndex is the function's own input to read from; only
	// meaningful when Kind == SourceInput.
	InputIndex int
}

// OutputConnection is the typed edge described in spec §3 (component C3):
// a value emitted by Source is delivered to DestinationFunctionID's
// DestinationInputIndex, in DestinationFlowID, with the array-order
// adaptation implied by the destination input's own array_order/generic
// (the router recomputes the Conversion at delivery time - ArrayOrderDelta
// here is carried for manifest round-tripping and diagnostics only, per
// spec §3's literal field list).
type OutputConnection struct {
	Source                  Source `json:"source"`
	DestinationFunctionID   int    `json:"to_fn"`
	DestinationInputIndex   int    `json:"to_input"`
	DestinationFlowID       string `json:"to_flow"`
	ArrayOrderDelta         int    `json:"array_order_delta"`
	DestinationGeneric      bool   `json:"generic_dst"`
	Priority                int    `json:"priority"`
}

// Implementation is the capability every function implementation variant
// (native, WASM, context) exposes to the executor (spec §4.7, Design Note
// "Polymorphic implementations"). RunAgain=false means the function should
// transition to Completed and never be dispatched again.
type Implementation interface {
	Run(inputs []value.Value) (output value.Value, hasOutput bool, runAgain bool, err error)
}

// ImplementationFunc adapts a plain function to Implementation.
type ImplementationFunc func(inputs []value.Value) (value.Value, bool, bool, error)

// Run implements Implementation.
func (f ImplementationFunc) Run(inputs []value.Value) (value.Value, bool, bool, error) {
	return f(inputs)
}

// RuntimeFunction is a node in the flow graph (spec §3, component C2): it
// owns its Inputs, the ImplementationLocation URL resolved at load time to
// an ImplementationHandle, and the OutputConnections fanning its result out
// to downstream inputs. Constructed during manifest load; its Inputs are
// cleared only on debugger reset; it is destroyed only at coordinator
// shutdown (spec §3 RuntimeFunction lifecycle).
type RuntimeFunction struct {
	ID                     int
	FlowID                 string
	ImplementationLocation string
	Inputs                 []*InputQueue
	OutputConnections      []OutputConnection
	ImplementationHandle   Implementation
}

// TakeInputSet takes one value from every input, in input-index order. The
// caller (run-state / coordinator) must already have verified every input
// has a value; TakeInputSet panics if called when any input is empty,
// mirroring spec §4.1 "take() fails if empty" since this is an internal
// precondition violation, not an expected runtime outcome.
func (f *RuntimeFunction) TakeInputSet() []value.Value {
	set := make([]value.Value, len(f.Inputs))
	for i, in := range f.Inputs {
		v, ok := in.Take()
		if !ok {
			panic("flowrun: TakeInputSet called with an empty input")
		}
		set[i] = v
	}
	return set
}

// InputsSatisfied reports whether every input currently holds at least one
// value (spec §4.2 Waiting->Ready transition precondition).
func (f *RuntimeFunction) InputsSatisfied() bool {
	for _, in := range f.Inputs {
		if in.Count() == 0 {
			return false
		}
	}
	return true
}

// ResetInputs clears every input queue - called only on debugger reset.
func (f *RuntimeFunction) ResetInputs() {
	for _, in := range f.Inputs {
		in.Clear()
	}
}
