package runstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowrun/internal/blockset"
	"flowrun/internal/model"
)

func noopImpl() model.Implementation {
	return model.ImplementationFunc(func(in []model.Value) (model.Value, bool, bool, error) {
		return nil, false, true, nil
	})
}

func fn(id int, flow string, inputs ...*model.InputQueue) *model.RuntimeFunction {
	return &model.RuntimeFunction{ID: id, FlowID: flow, Inputs: inputs, ImplementationHandle: noopImpl()}
}

func TestInitializeAll_MarksSatisfiedFunctionsReady(t *testing.T) {
	a := fn(0, "root", model.NewInputQueue(0, false, &model.InputInitializer{Kind: model.Once, Value: 1.0}, nil))
	b := fn(1, "root", model.NewInputQueue(0, false, nil, nil))

	rs := New([]*model.RuntimeFunction{a, b})
	rs.InitializeAll()

	id, ok := rs.NextReady()
	require.True(t, ok)
	assert.Equal(t, 0, id)

	_, ok = rs.NextReady()
	assert.False(t, ok, "function with an unsatisfied input must not be ready")
}

func TestDispatch_RemovesFromReadyAndTracksBusyFlow(t *testing.T) {
	a := fn(0, "flowA", model.NewInputQueue(0, false, &model.InputInitializer{Kind: model.Once, Value: 1.0}, nil))
	rs := New([]*model.RuntimeFunction{a})
	rs.InitializeAll()

	id, ok := rs.NextReady()
	require.True(t, ok)
	rs.Dispatch(id)
	_ = a.TakeInputSet()

	assert.True(t, rs.State(0).String() != "")
	assert.Equal(t, 1, rs.NumRunning())
	assert.False(t, rs.IsIdle("flowA"))
}

func TestCompleteJob_RunAgainFalseCompletes(t *testing.T) {
	a := fn(0, "flowA", model.NewInputQueue(0, false, &model.InputInitializer{Kind: model.Once, Value: 1.0}, nil))
	rs := New([]*model.RuntimeFunction{a})
	rs.InitializeAll()
	id, _ := rs.NextReady()
	rs.Dispatch(id)
	a.TakeInputSet()

	rs.CompleteJob(id, false)
	snap := rs.Snapshot()
	assert.True(t, snap.States[0]&Completed != 0)
	assert.Equal(t, 0, rs.NumRunning())
	assert.True(t, rs.IsIdle("flowA"), "flow must go idle once its only function completes")
}

func TestCompleteJob_RunAgainTrueReadyAgainIfRefilled(t *testing.T) {
	in := model.NewInputQueue(0, false, &model.InputInitializer{Kind: model.Always, Value: 1.0}, nil)
	a := fn(0, "flowA", in)
	rs := New([]*model.RuntimeFunction{a})
	rs.InitializeAll()
	id, _ := rs.NextReady()
	rs.Dispatch(id)
	a.TakeInputSet()

	// Simulate the router/initializer refilling input 0 before CompleteJob
	// (Always fires on flow-idle, which happens as part of CompleteJob's
	// busy-flow recompute, so push manually here to isolate the assertion).
	in.Push(0, 5.0)
	rs.CompleteJob(id, true)

	_, ok := rs.NextReady()
	assert.True(t, ok, "function should be ready again since its input was refilled")
}

func TestAddBlock_RemovesReadyFunctionFromQueue(t *testing.T) {
	a := fn(0, "flowA", model.NewInputQueue(0, false, &model.InputInitializer{Kind: model.Once, Value: 1.0}, nil))
	rs := New([]*model.RuntimeFunction{a})
	rs.InitializeAll()

	rs.AddBlock(blockset.Block{BlockedFunctionID: 0, BlockedFlowID: "flowA", BlockingFunctionID: 1, BlockingFlowID: "flowA", BlockingInputIndex: 0})

	_, ok := rs.NextReady()
	assert.False(t, ok, "blocked function must not be dispatched")
}

func TestSelfBlockIsDropped(t *testing.T) {
	a := fn(0, "flowA", model.NewInputQueue(0, false, &model.InputInitializer{Kind: model.Once, Value: 1.0}, nil))
	rs := New([]*model.RuntimeFunction{a})
	rs.InitializeAll()

	rs.AddBlock(blockset.Block{BlockedFunctionID: 0, BlockingFunctionID: 0})

	_, ok := rs.NextReady()
	assert.True(t, ok, "self-block must be dropped, not prevent dispatch")
}

func TestQuiescent(t *testing.T) {
	a := fn(0, "flowA", model.NewInputQueue(0, false, nil, nil))
	rs := New([]*model.RuntimeFunction{a})
	assert.True(t, rs.Quiescent())
}

func TestCheckInvariants_CleanStateHasNoViolations(t *testing.T) {
	a := fn(0, "flowA", model.NewInputQueue(0, false, &model.InputInitializer{Kind: model.Once, Value: 1.0}, nil))
	rs := New([]*model.RuntimeFunction{a})
	rs.InitializeAll()
	violations := rs.CheckInvariants("job-1")
	assert.Empty(t, violations)
}

func TestReset_ClearsEverything(t *testing.T) {
	a := fn(0, "flowA", model.NewInputQueue(0, false, &model.InputInitializer{Kind: model.Once, Value: 1.0}, nil))
	rs := New([]*model.RuntimeFunction{a})
	rs.InitializeAll()
	rs.Reset()

	assert.Equal(t, Waiting, rs.State(0))
	_, ok := rs.NextReady()
	assert.False(t, ok)
}
