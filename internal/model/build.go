package model

import "github.com/pkg/errors"

// Resolver turns a function's implementation_location URL into a callable
// Implementation and reports whether it must run on the context executor
// (scheme context://, spec §4.6). It is supplied by the provider package so
// that model stays free of URL-scheme/loader knowledge (spec §1 "the
// library manifest loader and WASM loader... are deliberately out of
// scope").
type Resolver func(location string) (impl Implementation, isContext bool, err error)

// BuildFunctionTable decodes a FlowManifest's serialized functions into live
// RuntimeFunctions, resolving each implementation_location via resolve
// (spec §4.8 step 2). The function table is the single owner of every
// RuntimeFunction (Design Note "Graph cycles"); OutputConnections reference
// destinations only by integer function_id/input_index, never by pointer.
func BuildFunctionTable(manifest *FlowManifest, resolve Resolver) ([]*RuntimeFunction, error) {
	table := make([]*RuntimeFunction, len(manifest.Functions))
	for i, mf := range manifest.Functions {
		impl, _, err := resolve(mf.ImplementationLocation)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving implementation for function #%d (%s)", mf.ID, mf.ImplementationLocation)
		}

		inputs := make([]*InputQueue, len(mf.Inputs))
		for j, mi := range mf.Inputs {
			inputs[j] = NewInputQueue(mi.ArrayOrder, mi.Generic, mi.Initializer, mi.FlowInitializer)
		}

		conns := make([]OutputConnection, len(mf.OutputConnections))
		for j, mc := range mf.OutputConnections {
			src, err := DecodeSource(mc.Source)
			if err != nil {
				return nil, errors.Wrapf(err, "function #%d connection #%d", mf.ID, j)
			}
			conns[j] = OutputConnection{
				Source:                src,
				DestinationFunctionID: mc.ToFunctionID,
				DestinationInputIndex: mc.ToInputIndex,
				DestinationFlowID:     mc.ToFlowID,
				ArrayOrderDelta:       mc.ArrayOrderDelta,
				DestinationGeneric:    mc.GenericDest,
				Priority:              mc.Priority,
			}
		}

		table[i] = &RuntimeFunction{
			ID:                     mf.ID,
			FlowID:                 mf.FlowID,
			ImplementationLocation: mf.ImplementationLocation,
			Inputs:                 inputs,
			OutputConnections:      conns,
			ImplementationHandle:   impl,
		}
	}
	return table, nil
}

// IsContextLocation reports whether a location URL uses the context://
// scheme (spec §4.6, §6).
func IsContextLocation(location string) bool {
	return len(location) >= len("context://") && location[:len("context://")] == "context://"
}
