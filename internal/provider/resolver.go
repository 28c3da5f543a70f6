package provider

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"flowrun/internal/model"
)

// Resolver builds a model.Resolver dispatching by the implementation
// location's scheme (spec §4.8 step 2):
//
//	lib://...     -> lib.Resolve
//	context://... -> ctx.Resolve (always runs on the context executor)
//	anything else -> wasm.Load (a bare relative path to a WASM module,
//	                 spec §6's "relative file -> WASM loader collaborator"),
//	                 unless preferNative is set and lib has a native
//	                 registration for that exact location (spec §6's
//	                 "native-library preference" flag)
func Resolver(lib *LibraryLoader, ctx *ContextLoader, wasm *WasmLoader, preferNative bool) model.Resolver {
	return func(location string) (model.Implementation, bool, error) {
		switch {
		case strings.HasPrefix(location, "lib://"):
			impl, err := lib.Resolve(context.Background(), location)
			return impl, false, err
		case strings.HasPrefix(location, "context://"):
			impl, err := ctx.Resolve(location)
			return impl, true, err
		case location == "":
			return nil, false, errors.New("empty implementation_location")
		default:
			if preferNative {
				if impl, ok := lib.NativeOverride(location); ok {
					return impl, false, nil
				}
			}
			impl, err := wasm.Load(context.Background(), location)
			return impl, false, err
		}
	}
}
