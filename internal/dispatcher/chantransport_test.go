package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowrun/internal/model"
)

func TestSendJob_AcceptsUntilCapacityThenRejects(t *testing.T) {
	tr := NewChanTransport(1, 1, 1)
	defer tr.Close()

	assert.True(t, tr.SendJob(model.Job{JobID: "a"}))
	assert.False(t, tr.SendJob(model.Job{JobID: "b"}), "job-source at capacity must reject, not block")
}

func TestRecvJob_ReturnsInOrder(t *testing.T) {
	tr := NewChanTransport(2, 1, 1)
	defer tr.Close()

	require.True(t, tr.SendJob(model.Job{JobID: "a"}))
	ctx := context.Background()
	j, ok := tr.RecvJob(ctx)
	require.True(t, ok)
	assert.Equal(t, "a", j.JobID)
}

func TestRecvJob_UnblocksOnContextCancel(t *testing.T) {
	tr := NewChanTransport(1, 1, 1)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := tr.RecvJob(ctx)
	assert.False(t, ok)
}

func TestContextJobs_SeparateFromRegularJobs(t *testing.T) {
	tr := NewChanTransport(1, 1, 1)
	defer tr.Close()

	require.True(t, tr.SendContextJob(model.Job{JobID: "ctx1", IsContext: true}))
	assert.True(t, tr.SendJob(model.Job{JobID: "job1"}), "context queue must not consume job-source capacity")

	ctx := context.Background()
	j, ok := tr.RecvContextJob(ctx)
	require.True(t, ok)
	assert.Equal(t, "ctx1", j.JobID)
}

func TestResult_RoundTrips(t *testing.T) {
	tr := NewChanTransport(1, 1, 1)
	defer tr.Close()

	require.NoError(t, tr.SendResult(model.JobResult{JobID: "r1", HasOutput: true}))
	res, ok := tr.RecvResult(context.Background())
	require.True(t, ok)
	assert.Equal(t, "r1", res.JobID)
}

func TestControl_BroadcastsWithoutBlockingOnSlowReader(t *testing.T) {
	tr := NewChanTransport(1, 1, 1)
	defer tr.Close()

	for i := 0; i < 100; i++ {
		tr.Control(ControlShutdown)
	}

	select {
	case sig := <-tr.Signals():
		assert.Equal(t, ControlShutdown, sig)
	default:
		t.Fatal("expected at least one signal delivered")
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	tr := NewChanTransport(1, 1, 1)
	assert.NotPanics(t, func() {
		tr.Close()
		tr.Close()
	})
}
