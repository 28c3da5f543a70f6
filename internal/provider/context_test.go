package provider

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowrun/internal/model"
)

func TestContextLoader_ResolvesRegisteredBuiltin(t *testing.T) {
	c := NewContextLoader(zerolog.Nop())
	c.Register("stdio/stdout", model.ImplementationFunc(func(in []model.Value) (model.Value, bool, bool, error) {
		return nil, false, true, nil
	}))

	impl, err := c.Resolve("context://stdio/stdout")
	require.NoError(t, err)
	assert.NotNil(t, impl)
}

func TestContextLoader_UnregisteredKeyErrors(t *testing.T) {
	c := NewContextLoader(zerolog.Nop())
	_, err := c.Resolve("context://stdio/stdout")
	assert.Error(t, err)
}

func TestContextLoader_NonContextLocationErrors(t *testing.T) {
	c := NewContextLoader(zerolog.Nop())
	_, err := c.Resolve("lib://math/add")
	assert.Error(t, err)
}
