package model

import "flowrun/internal/value"

// Job is one scheduled invocation of a function with a specific input set
// (spec §3, component C8/C6). JobID is a UUID string assigned by the
// coordinator at dispatch time.
type Job struct {
	JobID                string
	FunctionID           int
	FlowID               string
	InputSet             []value.Value
	ImplementationHandle Implementation
	OutputConnections    []OutputConnection
	Priority             int
	// IsContext marks a job whose implementation_location scheme is
	// context://, routing it to the single-threaded context executor
	// (spec §4.6).
	IsContext bool
}

// JobResult is what the executor sends back on the results-sink (spec §3).
// Exactly one of (Err != nil) or the Ok fields is meaningful: Err carries a
// failed job's message; otherwise Output/HasOutput/RunAgain describe the
// successful outcome. RunAgain=false means the function transitions to
// Completed and is never dispatched again.
type JobResult struct {
	JobID      string
	FunctionID int
	FlowID     string
	Output     value.Value
	HasOutput  bool
	RunAgain   bool
	Err        error
}

// Submission is the request to run one flow manifest to completion (spec
// §3, §6).
type Submission struct {
	ManifestURL     string
	MaxParallelJobs int
	DebugEnabled    bool
}

// TerminationStatus reports why a submission's loop stopped (SPEC_FULL.md
// §4.8).
type TerminationStatus int

const (
	// TerminatedCompleted means the run reached quiescence normally.
	TerminatedCompleted TerminationStatus = iota
	// TerminatedCancelled means a control-channel cancellation was
	// observed (spec §5).
	TerminatedCancelled
	// TerminatedError means a fatal dispatch/load error aborted the loop
	// (spec §7 error kinds 1-2).
	TerminatedError
)

func (s TerminationStatus) String() string {
	switch s {
	case TerminatedCancelled:
		return "cancelled"
	case TerminatedError:
		return "error"
	default:
		return "completed"
	}
}

// FlowEnd is emitted once a submission's loop stops (spec §4.8 step 6).
type FlowEnd struct {
	Status        TerminationStatus
	JobsProcessed uint64
	ExecutionErrs int
}
