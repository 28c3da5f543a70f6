package provider

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"flowrun/internal/model"
)

// LibraryLoader resolves lib://<lib-name>/<path> locations against a
// colon/comma-separated search path of directories or URLs (spec §6), the
// way a compiler/library-manifest loader would - but here it only loads
// the already-built manifest, never compiles a library from source (spec
// §1 "library... loaders' internal resolution logic... deliberately out of
// scope").
type LibraryLoader struct {
	searchPath []string
	fetcher    *ManifestProvider
	wasm       *WasmLoader
	log        zerolog.Logger

	mu        sync.Mutex
	manifests map[string]*model.LibraryManifest // lib name -> decoded manifest
	native    map[string]model.Implementation    // symbol -> handle
	factories []nativeFactory                    // symbol-prefix -> parameterized handle
}

// nativeFactory builds a native Implementation from the part of a symbol
// after its registered prefix, for native functions parameterized by the
// manifest itself (e.g. "flowstdlib.take.5" encoding Take's N).
type nativeFactory struct {
	prefix string
	build  func(rest string) (model.Implementation, error)
}

// NewLibraryLoader splits searchPath on ':' or ',' (spec §6
// "colon/comma separated directories/URLs").
func NewLibraryLoader(searchPath string, fetcher *ManifestProvider, wasm *WasmLoader, log zerolog.Logger) *LibraryLoader {
	return &LibraryLoader{
		searchPath: splitSearchPath(searchPath),
		fetcher:    fetcher,
		wasm:       wasm,
		log:        log.With().Str("component", "library_loader").Logger(),
		manifests:  make(map[string]*model.LibraryManifest),
		native:     make(map[string]model.Implementation),
	}
}

func splitSearchPath(raw string) []string {
	raw = strings.ReplaceAll(raw, ",", ":")
	var out []string
	for _, p := range strings.Split(raw, ":") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RegisterNative registers a native function implementation under symbol,
// for resolution when a library's Locators map tags it {Native: symbol}.
func (l *LibraryLoader) RegisterNative(symbol string, impl model.Implementation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.native[symbol] = impl
}

// RegisterNativeFactory registers a builder for native symbols matching
// prefix; build receives the symbol's remainder (e.g. registering prefix
// "flowstdlib.take." lets a manifest target "flowstdlib.take.5" build a
// Take(5) handle) and is invoked fresh on every Resolve call, since a
// factory's handle may carry call-scoped state (Take's own call counter).
func (l *LibraryLoader) RegisterNativeFactory(prefix string, build func(rest string) (model.Implementation, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories = append(l.factories, nativeFactory{prefix: prefix, build: build})
}

// Resolve looks up location (a full "lib://lib-name/path" string) in the
// named library's manifest, loading the manifest on first use from each
// search-path entry in order.
func (l *LibraryLoader) Resolve(ctx context.Context, location string) (model.Implementation, error) {
	libName, _, err := splitLibLocation(location)
	if err != nil {
		return nil, err
	}

	manifest, base, err := l.loadManifest(ctx, libName)
	if err != nil {
		return nil, err
	}

	locator, ok := manifest.Locators[location]
	if !ok {
		return nil, errors.Errorf("library %q has no locator for %q", libName, location)
	}

	switch locator.Kind {
	case model.LocatorNative:
		return l.resolveNative(libName, locator.Target)
	case model.LocatorWasm:
		return l.wasm.Load(ctx, path.Join(base, locator.Target))
	default:
		return nil, errors.Errorf("library %q: locator %q has unknown kind", libName, locator.Target)
	}
}

// NativeOverride looks up a native registration keyed directly by location
// (a bare relative path, not a lib:// symbol) - the mechanism the
// --native/FLOWR_NATIVE flag uses to prefer an in-process implementation
// over compiling and instantiating a WASM module for the same location.
func (l *LibraryLoader) NativeOverride(location string) (model.Implementation, bool) {
	impl, err := l.resolveNative("", location)
	return impl, err == nil
}

// resolveNative looks up symbol directly first, then against every
// registered factory prefix.
func (l *LibraryLoader) resolveNative(libName, symbol string) (model.Implementation, error) {
	l.mu.Lock()
	impl, ok := l.native[symbol]
	factories := l.factories
	l.mu.Unlock()
	if ok {
		return impl, nil
	}

	for _, f := range factories {
		if rest, ok := strings.CutPrefix(symbol, f.prefix); ok {
			return f.build(rest)
		}
	}
	return nil, errors.Errorf("library %q: no native symbol registered for %q", libName, symbol)
}

func (l *LibraryLoader) loadManifest(ctx context.Context, libName string) (*model.LibraryManifest, string, error) {
	l.mu.Lock()
	if m, ok := l.manifests[libName]; ok {
		l.mu.Unlock()
		return m, path.Dir(m.LibURL), nil
	}
	l.mu.Unlock()

	var lastErr error
	for _, base := range l.searchPath {
		url := fmt.Sprintf("%s/%s/manifest.json", strings.TrimSuffix(base, "/"), libName)
		b, err := l.fetcher.Fetch(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		m, err := model.DecodeLibraryManifest(b)
		if err != nil {
			return nil, "", errors.Wrapf(err, "decoding library manifest for %q at %q", libName, url)
		}
		if m.LibURL == "" {
			m.LibURL = url
		}
		l.mu.Lock()
		l.manifests[libName] = m
		l.mu.Unlock()
		l.log.Debug().Str("lib", libName).Str("url", url).Msg("library manifest loaded")
		return m, path.Dir(url), nil
	}
	if lastErr == nil {
		lastErr = errors.Errorf("empty library search path")
	}
	return nil, "", errors.Wrapf(lastErr, "resolving library %q against search path %v", libName, l.searchPath)
}

// splitLibLocation parses "lib://lib-name/rest/of/path" into ("lib-name",
// "rest/of/path").
func splitLibLocation(location string) (libName, rest string, err error) {
	const prefix = "lib://"
	if !strings.HasPrefix(location, prefix) {
		return "", "", errors.Errorf("not a lib:// location: %q", location)
	}
	trimmed := strings.TrimPrefix(location, prefix)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", errors.Errorf("malformed lib:// location: %q", location)
	}
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}
