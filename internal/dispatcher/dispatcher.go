// Package dispatcher implements the four-queue transport described in spec
// §4.6 (component C6): job-source, context-job-source, results-sink and
// control, each a back-pressured MPMC queue. The coordinator only ever talks
// to the Transport interface, so a ZeroMQ-backed implementation can stand in
// for the default in-process one without the coordinator noticing (see
// zmqtransport.go, built only with the "zmq" build tag).
package dispatcher

import (
	"context"
	"errors"

	"flowrun/internal/model"
)

// ControlSignal is sent on the control endpoint for out-of-band events (spec
// §4.6 "control: out-of-band signals (shutdown, reset)").
type ControlSignal int

const (
	// ControlShutdown asks the coordinator to stop the submission; it
	// cancels the current pass, which then reports TerminatedCancelled.
	ControlShutdown ControlSignal = iota
	// ControlReset asks the coordinator to restart the submission from
	// step 3 of §4.8 (a debugger-initiated reset).
	ControlReset
)

// ErrClosed is returned by Transport methods once Close has been called.
var ErrClosed = errors.New("dispatcher: transport closed")

// Transport is the collaborator contract spec §4.6 assigns to the
// dispatcher: job/context-job/result/control queues with back-pressure.
// send_job is non-blocking - max_parallel_jobs is enforced by the
// coordinator, not the transport (spec §4.6 "Contracts").
type Transport interface {
	// SendJob enqueues a regular job. Returns false (no error) if the
	// job-source queue is full, never blocking here; the coordinator treats
	// a rejected job as fatal and ends the run with TerminatedError.
	SendJob(j model.Job) (accepted bool)
	// SendContextJob enqueues a context:// job onto the single-consumer
	// context-job-source.
	SendContextJob(j model.Job) (accepted bool)
	// RecvJob blocks the calling executor worker until a regular job is
	// available or ctx is cancelled.
	RecvJob(ctx context.Context) (model.Job, bool)
	// RecvContextJob blocks the context executor until a context job is
	// available or ctx is cancelled.
	RecvContextJob(ctx context.Context) (model.Job, bool)
	// SendResult posts a job result to the results-sink.
	SendResult(r model.JobResult) error
	// RecvResult returns the next available result, or (zero, false) if
	// ctx is cancelled before one arrives (spec §4.6 "recv_result(timeout)
	// returns the next result or times out").
	RecvResult(ctx context.Context) (model.JobResult, bool)
	// Control posts a signal on the control endpoint without blocking; each
	// signal is received by one reader of Signals().
	Control(sig ControlSignal)
	// Signals exposes the control channel for the coordinator to select on.
	Signals() <-chan ControlSignal
	// Close tears down every endpoint; subsequent Send* calls return
	// ErrClosed.
	Close()
}
