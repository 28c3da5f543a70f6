package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWasmResult_OkWithValueAndRunAgain(t *testing.T) {
	value, hasOutput, runAgain, err := decodeWasmResult([]byte(`{"Ok":[42,true]}`))
	require.NoError(t, err)
	assert.True(t, hasOutput)
	assert.True(t, runAgain)
	assert.Equal(t, float64(42), value)
}

func TestDecodeWasmResult_OkWithNoneValueStopsRunning(t *testing.T) {
	value, hasOutput, runAgain, err := decodeWasmResult([]byte(`{"Ok":[null,false]}`))
	require.NoError(t, err)
	assert.False(t, hasOutput)
	assert.False(t, runAgain)
	assert.Nil(t, value)
}

func TestDecodeWasmResult_ErrBecomesExecutionErrorWithoutRunAgain(t *testing.T) {
	value, hasOutput, runAgain, err := decodeWasmResult([]byte(`{"Err":"boom"}`))
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.False(t, hasOutput)
	assert.False(t, runAgain)
	assert.Nil(t, value)
}

func TestDecodeWasmResult_ErrWithStructuredPayloadKeepsRawText(t *testing.T) {
	_, _, runAgain, err := decodeWasmResult([]byte(`{"Err":{"code":7,"message":"bad input"}}`))
	require.Error(t, err)
	assert.False(t, runAgain)
	assert.Contains(t, err.Error(), "bad input")
}

func TestDecodeWasmResult_NeitherOkNorErrIsAnError(t *testing.T) {
	_, hasOutput, runAgain, err := decodeWasmResult([]byte(`{}`))
	require.Error(t, err)
	assert.False(t, hasOutput)
	assert.True(t, runAgain)
}

func TestDecodeWasmResult_MalformedEnvelopeIsAnError(t *testing.T) {
	_, _, _, err := decodeWasmResult([]byte(`not json`))
	require.Error(t, err)
}
