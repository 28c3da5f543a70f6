// Package router implements the value router (component C9, spec §4.4/§4.5):
// given a completed function's input set and output value, it resolves every
// OutputConnection's source, applies the array-order adaptation rule, pushes
// the result into the destination input, and records a Block when the
// destination input's single-value buffer is now occupied and the
// destination isn't already scheduled to drain it.
package router

import (
	"github.com/rs/zerolog"

	"flowrun/internal/blockset"
	"flowrun/internal/model"
	"flowrun/internal/runstate"
	"flowrun/internal/value"
)

// Router fans a completed function's result out to downstream inputs.
type Router struct {
	rs  *runstate.RunState
	log zerolog.Logger
}

// New constructs a Router over rs. log records dropped (type-incompatible)
// values at debug level (spec §7 error kind 4, not fatal); the router does
// not notify the debugger of a drop.
func New(rs *runstate.RunState, log zerolog.Logger) *Router {
	return &Router{rs: rs, log: log.With().Str("component", "router").Logger()}
}

// Route delivers source's result to every one of its OutputConnections
// (spec §4.4 step 1), then re-checks both the destination functions and the
// source function itself for new readiness (step 2-3). inputSet is the
// value set the job consumed - needed to resolve Input(i) loopback sources
// even when hasOutput is false.
func (r *Router) Route(source *model.RuntimeFunction, inputSet []value.Value, output value.Value, hasOutput bool) {
	for _, oc := range source.OutputConnections {
		src, ok := resolveSource(oc.Source, inputSet, output, hasOutput)
		if !ok {
			continue
		}

		dest := r.rs.Function(oc.DestinationFunctionID)
		if dest == nil {
			continue
		}
		destInput := dest.Inputs[oc.DestinationInputIndex]

		pushed := destInput.Push(oc.Priority, src)
		if !pushed {
			r.log.Debug().
				Int("from_fn", source.ID).
				Int("to_fn", dest.ID).
				Int("to_input", oc.DestinationInputIndex).
				Msg("value dropped: incompatible array-order adaptation")
			continue
		}

		r.rs.ReconcileAfterRouting(dest.ID)

		if dest.ID == source.ID {
			// Self-blocks are forbidden (spec §4.3); loopback connections to
			// one's own input never gate the sender.
			continue
		}
		destState := r.rs.State(dest.ID)
		if destState&(runstate.Ready|runstate.Running) != 0 {
			// Destination is already scheduled to drain this value; no
			// back-pressure needed.
			continue
		}
		r.rs.AddBlock(blockset.Block{
			BlockedFunctionID:  source.ID,
			BlockedFlowID:      source.FlowID,
			BlockingFunctionID: dest.ID,
			BlockingFlowID:     dest.FlowID,
			BlockingInputIndex: oc.DestinationInputIndex,
		})
	}

	r.rs.ReconcileAfterRouting(source.ID)
}

func resolveSource(src model.Source, inputSet []value.Value, output value.Value, hasOutput bool) (value.Value, bool) {
	switch src.Kind {
	case model.SourceInput:
		if src.InputIndex < 0 || src.InputIndex >= len(inputSet) {
			return nil, false
		}
		return inputSet[src.InputIndex], true
	default: // model.SourceOutput
		if !hasOutput {
			return nil, false
		}
		return value.Pointer(output, src.Path)
	}
}
