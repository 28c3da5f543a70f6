// Package debugger implements the optional breakpoint collaborator (C10,
// spec §4.9): a no-op by default, or a line-oriented CLI client modeled on
// the original runtime's CliRuntimeClient event loop (original_source
// flowr/src/cli/cli_client.rs), which blocks on stdin for a command and
// prints coordinator state to stdout rather than exchanging structured
// messages over a socket.
package debugger

import "flowrun/internal/runstate"

// Command is what get_command returns, naming the debugger's next action
// (spec §4.9).
type Command int

const (
	// Continue resumes normal dispatch; the coordinator calls get_command
	// again after the next job result.
	Continue Command = iota
	// Step is handled like Continue: dispatch proceeds up to
	// max_parallel_jobs and get_command is called again after the next job
	// result; dispatch is not limited to a single job.
	Step
	// Reset empties ready, clears every input, and restarts the
	// coordinator's submission loop at step 3 (spec §4.8).
	Reset
	// Inspect requests a state dump without altering the run; the
	// coordinator calls get_command again immediately after.
	Inspect
	// Break pauses the loop until a later get_command returns something
	// other than Break.
	Break
	// Exit terminates the submission early, equivalent to a control-channel
	// cancellation.
	Exit
)

// Protocol is the collaborator interface spec §4.9 assigns to the
// coordinator. Every hook may block - the coordinator calls these on its own
// goroutine, never concurrently with itself, so a hook blocking on stdin is
// safe. Absent (release-mode) debugging uses NoOp, which never blocks.
type Protocol interface {
	OnJobDispatch(functionID int, flowID string)
	OnJobComplete(functionID int, flowID string, hasOutput bool)
	OnJobError(functionID int, flowID string, err error)
	OnBlockCreated(blockedFn, blockingFn int)
	OnFlowUnblock(flowID string)
	OnValueSent(fromFn, toFn, toInput int)
	// GetCommand is called after every job result that is routed (and
	// again for each Inspect or Break it returns); it receives a Snapshot to render and returns the next
	// Command (spec §4.9 "may block for user input").
	GetCommand(snap runstate.Snapshot) Command
}

// NoOp implements Protocol as a set of no-ops returning Continue, matching
// spec §4.9 "If absent (release mode), calls are no-ops."
type NoOp struct{}

func (NoOp) OnJobDispatch(int, string)               {}
func (NoOp) OnJobComplete(int, string, bool)         {}
func (NoOp) OnJobError(int, string, error)           {}
func (NoOp) OnBlockCreated(int, int)                 {}
func (NoOp) OnFlowUnblock(string)                    {}
func (NoOp) OnValueSent(int, int, int)               {}
func (NoOp) GetCommand(runstate.Snapshot) Command    { return Continue }

var _ Protocol = NoOp{}
