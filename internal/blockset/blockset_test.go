package blockset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysIdle(string) bool { return true }

func TestAdd_DropsSelfBlock(t *testing.T) {
	s := New()
	s.Add(Block{BlockedFunctionID: 1, BlockingFunctionID: 1})
	assert.Equal(t, 0, s.Count())
}

func TestAdd_AndIsBlocked(t *testing.T) {
	s := New()
	s.Add(Block{BlockedFunctionID: 1, BlockingFunctionID: 2, BlockingInputIndex: 0})
	assert.True(t, s.IsBlocked(1))
	assert.False(t, s.IsBlocked(2))
}

func TestConsume_SameFlowRemovesImmediately(t *testing.T) {
	s := New()
	s.Add(Block{BlockedFunctionID: 1, BlockedFlowID: "f", BlockingFunctionID: 2, BlockingFlowID: "f", BlockingInputIndex: 0})
	unblocked := s.Consume(2, 0, alwaysIdle)
	assert.Equal(t, []int{1}, unblocked)
	assert.False(t, s.IsBlocked(1))
}

func TestConsume_CrossFlowNotIdleDefers(t *testing.T) {
	s := New()
	s.Add(Block{BlockedFunctionID: 1, BlockedFlowID: "outer", BlockingFunctionID: 2, BlockingFlowID: "inner", BlockingInputIndex: 0})

	notIdle := func(string) bool { return false }
	unblocked := s.Consume(2, 0, notIdle)
	assert.Empty(t, unblocked)
	assert.True(t, s.IsBlocked(1), "block must remain until the blocking flow goes idle")
	assert.True(t, s.HasPending("inner"))
}

func TestReleasePending_UnblocksDeferredBlocks(t *testing.T) {
	s := New()
	s.Add(Block{BlockedFunctionID: 1, BlockedFlowID: "outer", BlockingFunctionID: 2, BlockingFlowID: "inner", BlockingInputIndex: 0})
	s.Consume(2, 0, func(string) bool { return false })
	require.True(t, s.HasPending("inner"))

	unblocked := s.ReleasePending("inner")
	assert.Equal(t, []int{1}, unblocked)
	assert.False(t, s.IsBlocked(1))
	assert.False(t, s.HasPending("inner"))
}

func TestConsume_OnlyMatchingBlockingInputRemoved(t *testing.T) {
	s := New()
	s.Add(Block{BlockedFunctionID: 1, BlockedFlowID: "f", BlockingFunctionID: 2, BlockingFlowID: "f", BlockingInputIndex: 0})
	s.Add(Block{BlockedFunctionID: 3, BlockedFlowID: "f", BlockingFunctionID: 2, BlockingFlowID: "f", BlockingInputIndex: 1})

	unblocked := s.Consume(2, 0, alwaysIdle)
	assert.Equal(t, []int{1}, unblocked)
	assert.True(t, s.IsBlocked(3))
}

func TestDoubleBlockedRequiresBothUnblocks(t *testing.T) {
	s := New()
	s.Add(Block{BlockedFunctionID: 1, BlockedFlowID: "f", BlockingFunctionID: 2, BlockingFlowID: "f", BlockingInputIndex: 0})
	s.Add(Block{BlockedFunctionID: 1, BlockedFlowID: "f", BlockingFunctionID: 3, BlockingFlowID: "f", BlockingInputIndex: 0})

	s.Consume(2, 0, alwaysIdle)
	assert.True(t, s.IsBlocked(1), "still blocked by function 3")

	s.Consume(3, 0, alwaysIdle)
	assert.False(t, s.IsBlocked(1))
}
