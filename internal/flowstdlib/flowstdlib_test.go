package flowstdlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowrun/internal/model"
)

func TestAdd_SumsAndRunsAgain(t *testing.T) {
	out, hasOutput, runAgain, err := Add([]model.Value{2.0, 3.0})
	require.NoError(t, err)
	assert.True(t, hasOutput)
	assert.True(t, runAgain)
	assert.Equal(t, 5.0, out)
}

func TestSplit_TwoWordTextSplitsInMiddle(t *testing.T) {
	out, hasOutput, runAgain, err := Split([]model.Value{"some text", " "})
	require.NoError(t, err)
	assert.True(t, hasOutput)
	assert.True(t, runAgain)

	m := out.(map[string]any)
	assert.Equal(t, []any{"some", "text"}, m["partial"])
	assert.Equal(t, 1, m["delta"])
	assert.Equal(t, 0, m["token-count"])
	assert.NotContains(t, m, "token")
}

func TestSplit_HyphenatedTailYieldsOneTokenAndOnePartial(t *testing.T) {
	out, _, _, err := Split([]model.Value{"the quick brown fox-jumped-over-the-lazy-dog", " "})
	require.NoError(t, err)

	m := out.(map[string]any)
	assert.Equal(t, []any{"the quick brown"}, m["partial"])
	assert.Equal(t, "fox-jumped-over-the-lazy-dog", m["token"])
	assert.Equal(t, 1, m["token-count"])
	assert.Equal(t, 0, m["delta"])
}

func TestSplit_NoSeparatorYieldsWholeTextAsToken(t *testing.T) {
	out, _, _, err := Split([]model.Value{"the-quick-brown-fox-jumped-over-the-lazy-dog", " "})
	require.NoError(t, err)

	m := out.(map[string]any)
	assert.NotContains(t, m, "partial")
	assert.Equal(t, "the-quick-brown-fox-jumped-over-the-lazy-dog", m["token"])
	assert.Equal(t, -1, m["delta"])
}

func TestSplit_BlankStringYieldsNoPartialNoToken(t *testing.T) {
	out, _, _, err := Split([]model.Value{"   ", " "})
	require.NoError(t, err)

	m := out.(map[string]any)
	assert.NotContains(t, m, "partial")
	assert.NotContains(t, m, "token")
	assert.Equal(t, 0, m["token-count"])
	assert.Equal(t, -1, m["delta"])
}

func TestSplit_NonStringInputProducesNoOutput(t *testing.T) {
	_, hasOutput, runAgain, err := Split([]model.Value{42.0, " "})
	require.NoError(t, err)
	assert.False(t, hasOutput)
	assert.True(t, runAgain)
}

func TestTake_StopsAfterNCalls(t *testing.T) {
	take := Take(2)

	_, hasOutput, runAgain, err := take.Run([]model.Value{1.0})
	require.NoError(t, err)
	assert.True(t, hasOutput)
	assert.True(t, runAgain)

	_, hasOutput, runAgain, err = take.Run([]model.Value{2.0})
	require.NoError(t, err)
	assert.True(t, hasOutput)
	assert.False(t, runAgain)
}

func TestTake_ZeroMeansUnbounded(t *testing.T) {
	take := Take(0)
	for i := 0; i < 5; i++ {
		_, _, runAgain, err := take.Run([]model.Value{float64(i)})
		require.NoError(t, err)
		assert.True(t, runAgain)
	}
}
