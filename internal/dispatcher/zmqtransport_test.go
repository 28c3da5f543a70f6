//go:build zmq

package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowrun/internal/model"
)

func TestResultWire_RoundTripsOutputValue(t *testing.T) {
	r := model.JobResult{
		JobID:      "j1",
		FunctionID: 3,
		FlowID:     "f1",
		Output:     map[string]any{"n": float64(7)},
		HasOutput:  true,
		RunAgain:   true,
	}

	w := resultWire{r.JobID, r.FunctionID, r.FlowID, r.Output, r.HasOutput, r.RunAgain, errString(r.Err)}
	got := w.toJobResult()

	assert.Equal(t, r.Output, got.Output)
	assert.True(t, got.HasOutput)
	assert.True(t, got.RunAgain)
	assert.NoError(t, got.Err)
}

func TestResultWire_PreservesErrAlongsideNoOutput(t *testing.T) {
	r := model.JobResult{JobID: "j2", Err: assert.AnError}

	w := resultWire{r.JobID, r.FunctionID, r.FlowID, r.Output, r.HasOutput, r.RunAgain, errString(r.Err)}
	got := w.toJobResult()

	require.Error(t, got.Err)
	assert.Equal(t, assert.AnError.Error(), got.Err.Error())
	assert.Nil(t, got.Output)
	assert.False(t, got.HasOutput)
}
