package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowrun/internal/model"
)

const mathManifest = `{
  "lib_url": "lib://math",
  "metadata": {"name": "math"},
  "locators": {
    "lib://math/add": {"Native": "math.add"}
  }
}`

func TestLibraryLoader_ResolvesNativeLocator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/math/manifest.json" {
			w.Write([]byte(mathManifest))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	l := NewLibraryLoader(srv.URL, fetcher, nil, zerolog.Nop())

	var called bool
	l.RegisterNative("math.add", model.ImplementationFunc(func(in []model.Value) (model.Value, bool, bool, error) {
		called = true
		return nil, false, false, nil
	}))

	impl, err := l.Resolve(context.Background(), "lib://math/add")
	require.NoError(t, err)
	require.NotNil(t, impl)

	_, _, _, _ = impl.Run(nil)
	assert.True(t, called)
}

func TestLibraryLoader_UnregisteredNativeSymbolErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mathManifest))
	}))
	defer srv.Close()

	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	l := NewLibraryLoader(srv.URL, fetcher, nil, zerolog.Nop())

	_, err := l.Resolve(context.Background(), "lib://math/add")
	assert.Error(t, err)
}

func TestLibraryLoader_UnknownFunctionLocatorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mathManifest))
	}))
	defer srv.Close()

	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	l := NewLibraryLoader(srv.URL, fetcher, nil, zerolog.Nop())

	_, err := l.Resolve(context.Background(), "lib://math/subtract")
	assert.Error(t, err)
}

func TestLibraryLoader_SearchPathFallsThroughOnMiss(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer empty.Close()
	real := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mathManifest))
	}))
	defer real.Close()

	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	l := NewLibraryLoader(empty.URL+","+real.URL, fetcher, nil, zerolog.Nop())
	l.RegisterNative("math.add", model.ImplementationFunc(func(in []model.Value) (model.Value, bool, bool, error) {
		return nil, false, false, nil
	}))

	impl, err := l.Resolve(context.Background(), "lib://math/add")
	require.NoError(t, err)
	assert.NotNil(t, impl)
}

func TestLibraryLoader_NotALibLocationErrors(t *testing.T) {
	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	l := NewLibraryLoader("", fetcher, nil, zerolog.Nop())

	_, err := l.Resolve(context.Background(), "context://stdio/stdout")
	assert.Error(t, err)
}

func TestLibraryLoader_NativeFactoryBuildsFromSymbolRemainder(t *testing.T) {
	takeManifest := `{
	  "lib_url": "lib://flowstdlib",
	  "metadata": {"name": "flowstdlib"},
	  "locators": {
	    "lib://flowstdlib/data/take/5": {"Native": "flowstdlib.take.5"}
	  }
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(takeManifest))
	}))
	defer srv.Close()

	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	l := NewLibraryLoader(srv.URL, fetcher, nil, zerolog.Nop())

	var builtWith string
	l.RegisterNativeFactory("flowstdlib.take.", func(rest string) (model.Implementation, error) {
		builtWith = rest
		return model.ImplementationFunc(func(in []model.Value) (model.Value, bool, bool, error) {
			return nil, false, false, nil
		}), nil
	})

	impl, err := l.Resolve(context.Background(), "lib://flowstdlib/data/take/5")
	require.NoError(t, err)
	require.NotNil(t, impl)
	assert.Equal(t, "5", builtWith)
}

func TestLibraryLoader_NativeFactoryMismatchedPrefixErrors(t *testing.T) {
	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	l := NewLibraryLoader("", fetcher, nil, zerolog.Nop())
	l.RegisterNativeFactory("flowstdlib.take.", func(rest string) (model.Implementation, error) {
		t.Fatal("build should not be called for a non-matching prefix")
		return nil, nil
	})

	_, err := l.resolveNative("flowstdlib", "flowstdlib.split")
	assert.Error(t, err)
}

func TestLibraryLoader_NativeOverrideLooksUpByBareLocation(t *testing.T) {
	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	l := NewLibraryLoader("", fetcher, nil, zerolog.Nop())
	l.RegisterNative("math/add.wasm", model.ImplementationFunc(func(in []model.Value) (model.Value, bool, bool, error) {
		return nil, false, false, nil
	}))

	impl, ok := l.NativeOverride("math/add.wasm")
	assert.True(t, ok)
	assert.NotNil(t, impl)

	_, ok = l.NativeOverride("math/missing.wasm")
	assert.False(t, ok)
}

func TestSplitSearchPath_AcceptsColonOrComma(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitSearchPath("a:b,c"))
	assert.Equal(t, []string(nil), splitSearchPath(""))
}
