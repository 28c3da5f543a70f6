// Package runstate implements the per-function state machine and the
// global ready/running/blocked indexes described in spec §3/§4.2
// (component C5): the heart of the scheduler. A single coordinator
// goroutine owns a *RunState exclusively (spec §5 "Scheduling model") - its
// own methods are not safe for concurrent use by multiple callers, by
// design; the mutex it holds only guards against the debugger goroutine
// reading a consistent snapshot concurrently (spec §4.9).
package runstate

import (
	"sort"
	"sync"

	"flowrun/internal/blockset"
	"flowrun/internal/model"
)

// RunState owns the function table and the four indexes named in spec §3:
// ready (FIFO), running (multiset), blocks (via blockset.Set), and
// busy_flows (flow_id -> set(function_id)), plus pending_unblocks (owned by
// the embedded blockset.Set).
type RunState struct {
	mu sync.Mutex

	functions   map[int]*model.RuntimeFunction
	flowMembers map[string][]int
	states      map[int]FunctionState

	ready      []int
	readySet   map[int]bool
	running    map[int]int
	blocks     *blockset.Set
	busyFlows  map[string]map[int]bool
	dispatches uint64
}

// New constructs a RunState over functions. Every function starts Waiting.
func New(functions []*model.RuntimeFunction) *RunState {
	rs := &RunState{
		functions:   make(map[int]*model.RuntimeFunction, len(functions)),
		flowMembers: make(map[string][]int),
		states:      make(map[int]FunctionState, len(functions)),
		readySet:    make(map[int]bool),
		running:     make(map[int]int),
		blocks:      blockset.New(),
		busyFlows:   make(map[string]map[int]bool),
	}
	for _, f := range functions {
		rs.functions[f.ID] = f
		rs.states[f.ID] = Waiting
		rs.flowMembers[f.FlowID] = append(rs.flowMembers[f.FlowID], f.ID)
	}
	return rs
}

// Function returns the RuntimeFunction for id.
func (rs *RunState) Function(id int) *model.RuntimeFunction {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.functions[id]
}

// State returns the current FunctionState flags for id.
func (rs *RunState) State(id int) FunctionState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.states[id]
}

// NumFunctions returns the size of the function table.
func (rs *RunState) NumFunctions() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.functions)
}

// InitializeAll runs Input.Init(firstTime=true, flowIdle=true) on every
// input of every function (spec §4.8 step 3) and marks every function whose
// inputs are now satisfied as Ready (step 4).
func (rs *RunState) InitializeAll() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	ids := rs.sortedIDsLocked()
	for _, id := range ids {
		f := rs.functions[id]
		for _, in := range f.Inputs {
			in.Init(true, true)
		}
	}
	for _, id := range ids {
		rs.markReadyIfEligibleLocked(id)
	}
}

func (rs *RunState) sortedIDsLocked() []int {
	ids := make([]int, 0, len(rs.functions))
	for id := range rs.functions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// NextReady dequeues and returns the function id that has been Ready the
// longest (spec §4.2 "Deterministic dispatch order... FIFO by when they
// became Ready"). Returns (0, false) if nothing is Ready.
func (rs *RunState) NextReady() (int, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.ready) == 0 {
		return 0, false
	}
	id := rs.ready[0]
	rs.ready = rs.ready[1:]
	delete(rs.readySet, id)
	return id, true
}

// Dispatch transitions id from Ready to Running: it is removed from the
// ready queue (already done by NextReady) and the Running flag plus
// in-flight counter are set (spec §4.2 "Ready: dispatched -> Running").
// Every input's Consume-on-take bookkeeping (spec §4.3) is also applied
// here; the caller takes the function's InputSet right after Dispatch.
func (rs *RunState) Dispatch(id int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.states[id] &^= Ready
	rs.states[id] |= Running
	rs.running[id]++
	rs.dispatches++
	rs.recomputeBusyLocked(id)

	f := rs.functions[id]
	for inputIdx := range f.Inputs {
		unblocked := rs.blocks.Consume(id, inputIdx, rs.isIdleLocked)
		for _, u := range unblocked {
			rs.markReadyIfEligibleLocked(u)
		}
	}
}

// Dispatches returns the total number of jobs dispatched so far.
func (rs *RunState) Dispatches() uint64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.dispatches
}

// CompleteJob processes the end of one in-flight job for id (spec §4.2
// "Running: result returns..."). When runAgain is false the function
// transitions to Completed and is never reconsidered. Otherwise its
// readiness is re-evaluated (it may already have fresh input values queued
// by the router/initializers). Router-driven delivery to downstream inputs
// and block creation happen separately, via AddBlock/ReconcileAfterRouting,
// before or after CompleteJob as the coordinator's processing order
// dictates (spec §4.4).
func (rs *RunState) CompleteJob(id int, runAgain bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.running[id] > 0 {
		rs.running[id]--
	}
	if rs.running[id] == 0 {
		rs.states[id] &^= Running
	}
	if !runAgain {
		rs.states[id] = Completed
		rs.removeFromReadyLocked(id)
		rs.recomputeBusyLocked(id)
		return
	}
	rs.recomputeBusyLocked(id)
	rs.markReadyIfEligibleLocked(id)
}

// AddBlock records a Block (spec §4.3/§4.4.1.d): the sender named by
// b.BlockedFunctionID must not be dispatched again until the block is
// removed. If the sender was Ready, it loses readiness immediately (spec
// §4.2 "Ready/Running: destination input becomes full -> add Block; Ready
// loses readiness").
func (rs *RunState) AddBlock(b blockset.Block) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.blocks.Add(b)
	if b.BlockedFunctionID == b.BlockingFunctionID {
		return
	}
	rs.states[b.BlockedFunctionID] |= Blocked
	rs.removeFromReadyLocked(b.BlockedFunctionID)
	rs.recomputeBusyLocked(b.BlockedFunctionID)
}

// ReconcileAfterRouting re-evaluates id's readiness after the router has
// pushed output values into downstream/loopback inputs and possibly
// recorded new blocks against it (spec §4.4 step 2-3: "Re-check the
// completed function... transition to Ready" and "Update busy_flows").
func (rs *RunState) ReconcileAfterRouting(id int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.markReadyIfEligibleLocked(id)
	rs.recomputeBusyLocked(id)
}

// markReadyIfEligibleLocked enqueues id if every input is satisfied and it
// is not named as blocked by any live Block, and it is not Completed (spec
// §4.2 Waiting->Ready transition).
func (rs *RunState) markReadyIfEligibleLocked(id int) {
	if rs.states[id].has(Completed) {
		return
	}
	f := rs.functions[id]
	if f == nil {
		return
	}

	blocked := rs.blocks.IsBlocked(id)
	if blocked {
		rs.states[id] |= Blocked
	} else {
		rs.states[id] &^= Blocked
	}

	if !f.InputsSatisfied() || blocked {
		rs.removeFromReadyLocked(id)
		rs.recomputeBusyLocked(id)
		return
	}

	rs.states[id] &^= Waiting
	rs.states[id] |= Ready
	if !rs.readySet[id] {
		rs.ready = append(rs.ready, id)
		rs.readySet[id] = true
	}
	rs.recomputeBusyLocked(id)
}

func (rs *RunState) removeFromReadyLocked(id int) {
	rs.states[id] &^= Ready
	if !rs.readySet[id] {
		return
	}
	delete(rs.readySet, id)
	out := rs.ready[:0]
	for _, v := range rs.ready {
		if v != id {
			out = append(out, v)
		}
	}
	rs.ready = out
}

// recomputeBusyLocked maintains busy_flows[f.FlowID] membership for id:
// present iff id is Ready or has in-flight jobs (spec §4.2 "Busy flow
// tracking"). A transition from present to absent that empties the flow's
// set triggers idle processing (spec §4.2 "Termination"/"process any
// pending_unblocks... reapply Always flow-initializers").
func (rs *RunState) recomputeBusyLocked(id int) {
	f := rs.functions[id]
	if f == nil {
		return
	}
	shouldBeBusy := rs.states[id].has(Ready) || rs.running[id] > 0
	set, ok := rs.busyFlows[f.FlowID]
	present := ok && set[id]

	switch {
	case shouldBeBusy && !present:
		if !ok {
			set = make(map[int]bool)
			rs.busyFlows[f.FlowID] = set
		}
		set[id] = true
	case !shouldBeBusy && present:
		delete(set, id)
		if len(set) == 0 {
			delete(rs.busyFlows, f.FlowID)
			rs.onFlowIdleLocked(f.FlowID)
		}
	}
}

// onFlowIdleLocked implements spec §4.2's idle-transition side effects:
// release deferred pending-unblocks owned by this flow, and re-fire Always
// flow-initializers for every function belonging to it.
func (rs *RunState) onFlowIdleLocked(flowID string) {
	unblocked := rs.blocks.ReleasePending(flowID)
	for _, id := range unblocked {
		rs.markReadyIfEligibleLocked(id)
	}

	for _, id := range rs.flowMembers[flowID] {
		f := rs.functions[id]
		if f == nil || rs.states[id].has(Completed) {
			continue
		}
		refilled := false
		for _, in := range f.Inputs {
			if in.Init(false, true) {
				refilled = true
			}
		}
		if refilled {
			rs.markReadyIfEligibleLocked(id)
		}
	}
}

func (rs *RunState) isIdleLocked(flowID string) bool {
	set, ok := rs.busyFlows[flowID]
	return !ok || len(set) == 0
}

// IsIdle reports whether flowID currently has no Ready or Running member.
func (rs *RunState) IsIdle(flowID string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.isIdleLocked(flowID)
}

// NumReady, NumRunning report the sizes of the two live-work indexes (the
// coordinator's termination check itself uses Quiescent).
func (rs *RunState) NumReady() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.ready)
}

func (rs *RunState) NumRunning() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	total := 0
	for _, n := range rs.running {
		total += n
	}
	return total
}

// Quiescent reports whether the run has no more work: no Ready function, no
// in-flight job, and no deferred pending-unblock left to fire (spec §4.2
// "Termination").
func (rs *RunState) Quiescent() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.ready) == 0 && rs.totalRunningLocked() == 0 && len(rs.busyFlows) == 0
}

func (rs *RunState) totalRunningLocked() int {
	total := 0
	for _, n := range rs.running {
		total += n
	}
	return total
}

// Blocks exposes the underlying block set, for the router and for
// invariant checks.
func (rs *RunState) Blocks() *blockset.Set { return rs.blocks }

// Reset clears every function's inputs and state back to Waiting (spec §3
// RuntimeFunction lifecycle "inputs cleared only on debugger reset", §4.2
// "any: debugger reset -> Waiting").
func (rs *RunState) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for id, f := range rs.functions {
		f.ResetInputs()
		rs.states[id] = Waiting
	}
	rs.ready = nil
	rs.readySet = make(map[int]bool)
	rs.running = make(map[int]int)
	rs.blocks = blockset.New()
	rs.busyFlows = make(map[string]map[int]bool)
	rs.dispatches = 0
}

// Snapshot is a point-in-time, debugger/invariant-facing view of the run
// state (spec §4.9 "surfaces enough state... to render the situation
// without copying private structures" - this IS the copy handed out, the
// live indexes themselves stay private).
type Snapshot struct {
	States    map[int]FunctionState
	Ready     []int
	Running   map[int]int
	Blocks    []blockset.Block
	BusyFlows map[string][]int
	Dispatches uint64
}

// Snapshot returns a Snapshot of the current indexes.
func (rs *RunState) Snapshot() Snapshot {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	states := make(map[int]FunctionState, len(rs.states))
	for k, v := range rs.states {
		states[k] = v
	}
	ready := make([]int, len(rs.ready))
	copy(ready, rs.ready)
	running := make(map[int]int, len(rs.running))
	for k, v := range rs.running {
		if v > 0 {
			running[k] = v
		}
	}
	busy := make(map[string][]int, len(rs.busyFlows))
	for flow, set := range rs.busyFlows {
		ids := make([]int, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		busy[flow] = ids
	}
	return Snapshot{
		States:     states,
		Ready:      ready,
		Running:    running,
		Blocks:     rs.blocks.All(),
		BusyFlows:  busy,
		Dispatches: rs.dispatches,
	}
}
