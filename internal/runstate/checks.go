package runstate

import "fmt"

// CheckInvariants runs the quantified invariants from spec §8 and returns a
// human-readable violation string for each one that fails (empty slice
// means all held). It never panics - per spec §7 error kind 5, invariant
// violations are "reported to debugger with a dump; process continues
// unless the debugger aborts." jobID correlates the report with whatever
// dispatch/result triggered this check.
func (rs *RunState) CheckInvariants(jobID string) []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var violations []string
	violate := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf("[job %s] "+format, append([]any{jobID}, args...)...))
	}

	for id, f := range rs.functions {
		st := rs.states[id]

		if st.has(Ready) {
			set := rs.busyFlows[f.FlowID]
			if set == nil || !set[id] {
				violate("function %d is Ready but missing from busy_flows[%s]", id, f.FlowID)
			}
			for i, in := range f.Inputs {
				if in.Count() == 0 {
					violate("function %d is Ready but input %d is empty", id, i)
				}
			}
			if rs.blocks.IsBlocked(id) {
				violate("function %d is Ready but a Block names it as blocked", id)
			}
		}

		if st.has(Blocked) {
			if !rs.blocks.IsBlocked(id) {
				violate("function %d is flagged Blocked but no Block names it", id)
			}
			if rs.readySet[id] {
				violate("function %d is Blocked but also present in the ready queue", id)
			}
		}

		if st.has(Completed) {
			if st&^Completed != 0 {
				violate("function %d is Completed but also holds other state flags (%s)", id, st)
			}
			for _, b := range rs.blocks.All() {
				if b.BlockedFunctionID == id || b.BlockingFunctionID == id {
					violate("function %d is Completed but still appears in a Block", id)
				}
			}
		}
	}

	for _, b := range rs.blocks.All() {
		if b.BlockedFunctionID == b.BlockingFunctionID {
			violate("self-block recorded for function %d", b.BlockedFunctionID)
			continue
		}
		blockingFn := rs.functions[b.BlockingFunctionID]
		if blockingFn == nil {
			continue
		}
		inputCount := 0
		if b.BlockingInputIndex < len(blockingFn.Inputs) {
			inputCount = blockingFn.Inputs[b.BlockingInputIndex].Count()
		}
		if inputCount == 0 && !rs.blocks.HasPending(b.BlockingFlowID) {
			violate("block on function %d: blocking input %d/%d is empty and flow %s has no pending unblock recorded",
				b.BlockedFunctionID, b.BlockingFunctionID, b.BlockingInputIndex, b.BlockingFlowID)
		}
	}

	for _, flowID := range rs.blocks.PendingFlows() {
		if _, ok := rs.busyFlows[flowID]; !ok {
			violate("pending_unblocks has entry for flow %s which is not in busy_flows", flowID)
		}
	}

	if len(rs.ready) == 0 && rs.totalRunningLocked() == 0 && len(rs.blocks.PendingFlows()) != 0 {
		violate("no ready/running work remains but pending_unblocks is non-empty: %v", rs.blocks.PendingFlows())
	}

	return violations
}
