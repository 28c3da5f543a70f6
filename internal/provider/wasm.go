package provider

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"

	"flowrun/internal/model"
)

// defaultMemoryLimitPages caps a module's linear memory at 16 MiB (256
// pages of 64 KiB) per call, enforcing spec §6's "host... enforces a
// per-call memory limit".
const defaultMemoryLimitPages = 256

// WasmLoader compiles and instantiates WASM modules implementing the
// alloc/run_wasm ABI (spec §6): "module exports alloc(size) -> ptr and
// run_wasm(ptr, len) -> out_len; host serialises inputs as JSON into ptr,
// calls run_wasm, deserialises output from the same buffer." Compiled
// modules are cached and instantiated once per path (shared, read-only
// handle across workers - Design Note "Shared library implementations");
// wazero's compiled-module cache makes repeated instantiation cheap if a
// module is ever reloaded.
type WasmLoader struct {
	runtime          wazero.Runtime
	memoryLimitPages uint32
	log              zerolog.Logger

	mu      sync.Mutex
	modules map[string]model.Implementation
}

// NewWasmLoader builds a WasmLoader. memoryLimitPages <= 0 uses
// defaultMemoryLimitPages.
func NewWasmLoader(ctx context.Context, memoryLimitPages uint32, log zerolog.Logger) *WasmLoader {
	if memoryLimitPages == 0 {
		memoryLimitPages = defaultMemoryLimitPages
	}
	cfg := wazero.NewRuntimeConfig().WithMemoryLimitPages(memoryLimitPages)
	return &WasmLoader{
		runtime:          wazero.NewRuntimeWithConfig(ctx, cfg),
		memoryLimitPages: memoryLimitPages,
		log:              log.With().Str("component", "wasm_loader").Logger(),
		modules:          make(map[string]model.Implementation),
	}
}

// Close releases every compiled module and the underlying runtime.
func (w *WasmLoader) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

// Load compiles and instantiates the module at path (a local filesystem
// path; remote WASM fetch is out of scope, spec §1), returning an
// Implementation that marshals inputs to JSON, invokes the alloc/run_wasm
// ABI, and unmarshals the result.
func (w *WasmLoader) Load(ctx context.Context, path string) (model.Implementation, error) {
	w.mu.Lock()
	if impl, ok := w.modules[path]; ok {
		w.mu.Unlock()
		return impl, nil
	}
	w.mu.Unlock()

	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading WASM module %q", path)
	}
	compiled, err := w.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling WASM module %q", path)
	}
	mod, err := w.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "instantiating WASM module %q", path)
	}

	alloc := mod.ExportedFunction("alloc")
	runWasm := mod.ExportedFunction("run_wasm")
	if alloc == nil || runWasm == nil {
		return nil, errors.Errorf("WASM module %q does not export alloc/run_wasm", path)
	}

	var callMu sync.Mutex
	impl := model.ImplementationFunc(func(inputs []model.Value) (model.Value, bool, bool, error) {
		callMu.Lock()
		defer callMu.Unlock()

		in, err := json.Marshal(inputs)
		if err != nil {
			return nil, false, true, errors.Wrap(err, "marshaling WASM inputs")
		}

		ptrResults, err := alloc.Call(ctx, uint64(len(in)))
		if err != nil {
			return nil, false, true, errors.Wrapf(err, "WASM alloc(%d) failed", len(in))
		}
		ptr := uint32(ptrResults[0])

		if !mod.Memory().Write(ptr, in) {
			return nil, false, true, errors.Errorf("WASM module %q: writing %d bytes at 0x%x out of memory bounds", path, len(in), ptr)
		}

		runResults, err := runWasm.Call(ctx, uint64(ptr), uint64(len(in)))
		if err != nil {
			return nil, false, true, errors.Wrap(err, "WASM run_wasm call failed")
		}
		outLen := uint32(runResults[0])

		out, ok := mod.Memory().Read(ptr, outLen)
		if !ok {
			return nil, false, true, errors.Errorf("WASM module %q: reading %d bytes at 0x%x out of memory bounds", path, outLen, ptr)
		}

		return decodeWasmResult(out)
	})

	w.mu.Lock()
	w.modules[path] = impl
	w.mu.Unlock()
	return impl, nil
}

// wasmEnvelope mirrors serde's default external-tagging of a Rust
// `Result<(Option<Value>, RunAgain), Error>` (_examples/original_source
// /flowmacro/src/lib.rs:192, the `Implementation::run` signature every
// flow_function macro expands to, and the `run_wasm` wrapper at line 162
// that JSON-serializes its return value verbatim): exactly one of Ok/Err
// is present. Ok carries the (Option<Value>, RunAgain) tuple as a
// 2-element JSON array; Err carries the guest's error.
type wasmEnvelope struct {
	Ok  json.RawMessage `json:"Ok"`
	Err json.RawMessage `json:"Err"`
}

// decodeWasmResult decodes the bytes run_wasm left in the shared buffer
// into the same (value, hasOutput, runAgain, err) shape every other
// Implementation returns, so a guest's Err(...)/RunAgain=false is
// propagated faithfully instead of masked as a successful, always-rerunning
// call (spec.md §8 scenario 5: a failing WASM function must become
// Completed with one execution error, not loop forever).
func decodeWasmResult(out []byte) (model.Value, bool, bool, error) {
	var env wasmEnvelope
	if err := json.Unmarshal(out, &env); err != nil {
		return nil, false, true, errors.Wrap(err, "unmarshaling WASM result envelope")
	}

	if len(env.Err) > 0 {
		return nil, false, false, errors.New(wasmErrorMessage(env.Err))
	}
	if len(env.Ok) == 0 {
		return nil, false, true, errors.New("WASM result envelope has neither Ok nor Err")
	}

	var tuple [2]json.RawMessage
	if err := json.Unmarshal(env.Ok, &tuple); err != nil {
		return nil, false, true, errors.Wrap(err, "unmarshaling WASM (Option<Value>, RunAgain) tuple")
	}

	var runAgain bool
	if err := json.Unmarshal(tuple[1], &runAgain); err != nil {
		return nil, false, true, errors.Wrap(err, "unmarshaling WASM RunAgain flag")
	}

	if string(tuple[0]) == "null" {
		return nil, false, runAgain, nil
	}
	var value model.Value
	if err := json.Unmarshal(tuple[0], &value); err != nil {
		return nil, false, true, errors.Wrap(err, "unmarshaling WASM output value")
	}
	return value, true, runAgain, nil
}

// wasmErrorMessage unwraps an Err payload that serialized as a plain JSON
// string (the common case for a Display-derived error); any other shape is
// reported as its raw JSON text rather than dropped.
func wasmErrorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
