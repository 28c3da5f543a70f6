package provider

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowrun/internal/model"
)

func TestResolver_DispatchesContextLocationAndMarksIsContext(t *testing.T) {
	ctxLoader := NewContextLoader(zerolog.Nop())
	ctxLoader.Register("stdio/stdout", model.ImplementationFunc(func(in []model.Value) (model.Value, bool, bool, error) {
		return nil, false, true, nil
	}))

	resolve := Resolver(nil, ctxLoader, nil, false)
	impl, isContext, err := resolve("context://stdio/stdout")
	require.NoError(t, err)
	assert.True(t, isContext)
	assert.NotNil(t, impl)
}

func TestResolver_DispatchesLibLocation(t *testing.T) {
	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	lib := NewLibraryLoader("", fetcher, nil, zerolog.Nop())

	resolve := Resolver(lib, nil, nil, false)
	_, isContext, err := resolve("lib://math/add")
	assert.False(t, isContext)
	assert.Error(t, err) // no search path configured, expected to fail to resolve
}

func TestResolver_EmptyLocationErrors(t *testing.T) {
	resolve := Resolver(nil, nil, nil, false)
	_, _, err := resolve("")
	assert.Error(t, err)
}

func TestResolver_PreferNativeOverridesBarePathBeforeWasm(t *testing.T) {
	fetcher := NewManifestProvider(time.Second, zerolog.Nop())
	lib := NewLibraryLoader("", fetcher, nil, zerolog.Nop())
	lib.RegisterNative("math/add.wasm", model.ImplementationFunc(func(in []model.Value) (model.Value, bool, bool, error) {
		return nil, false, true, nil
	}))

	resolve := Resolver(lib, nil, nil, true)
	impl, isContext, err := resolve("math/add.wasm")
	require.NoError(t, err)
	assert.False(t, isContext)
	assert.NotNil(t, impl)
}
