// Package coordinator implements the submission loop (component C8, spec
// §4.8): the single goroutine that owns the run-state, dispatches Ready
// functions onto the dispatcher up to max_parallel_jobs, routes each result
// through the value router, and drives the optional debugger.
package coordinator

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"flowrun/internal/debugger"
	"flowrun/internal/dispatcher"
	"flowrun/internal/model"
	"flowrun/internal/router"
	"flowrun/internal/runstate"
	"flowrun/internal/value"
)

// controlOutcome is what a control-channel signal (spec §4.6's "control:
// out-of-band signals (shutdown, reset)") did to the iteration just
// cancelled, so Run can tell a genuine ctx cancellation from the dispatcher
// control endpoint apart from one.
type controlOutcome int

const (
	controlNone controlOutcome = iota
	controlShutdown
	controlReset
)

// Metrics are the Prometheus collectors a Coordinator updates over a
// submission's lifetime, grounded on the teacher's Welford latency/queue
// counters (internal/sched/sched.go `metrics()`) but expressed as proper
// prometheus.Collector types per spec §2's "metrics if feature enabled".
type Metrics struct {
	JobsDispatched prometheus.Counter
	JobsCompleted  prometheus.Counter
	JobsErrored    prometheus.Counter
	// ValuesDropped is registered alongside the others, but nothing
	// increments it: the router logs a dropped value without counting it.
	ValuesDropped prometheus.Counter
}

// NewMetrics registers a fresh Metrics set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{Name: "flowrun_jobs_dispatched_total", Help: "Jobs sent to the dispatcher."}),
		JobsCompleted:  prometheus.NewCounter(prometheus.CounterOpts{Name: "flowrun_jobs_completed_total", Help: "Jobs that returned a non-error result."}),
		JobsErrored:    prometheus.NewCounter(prometheus.CounterOpts{Name: "flowrun_jobs_errored_total", Help: "Jobs that returned an error result."}),
		ValuesDropped:  prometheus.NewCounter(prometheus.CounterOpts{Name: "flowrun_values_dropped_total", Help: "Output values dropped by an incompatible array-order adaptation."}),
	}
	if reg != nil {
		reg.MustRegister(m.JobsDispatched, m.JobsCompleted, m.JobsErrored, m.ValuesDropped)
	}
	return m
}

// Coordinator ties together RunState (C5), a dispatcher.Transport (C6), and
// a router.Router (C9) to drive one submission to completion (spec §4.8).
type Coordinator struct {
	rs        *runstate.RunState
	transport dispatcher.Transport
	router    *router.Router
	debug     debugger.Protocol
	log       zerolog.Logger
	metrics   *Metrics

	maxParallelJobs int
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithDebugger attaches a debugger.Protocol; the zero Coordinator uses
// debugger.NoOp.
func WithDebugger(d debugger.Protocol) Option { return func(c *Coordinator) { c.debug = d } }

// WithMetrics attaches a Metrics set; without this option, metric updates
// are skipped entirely (spec's metrics toggle, §6).
func WithMetrics(m *Metrics) Option { return func(c *Coordinator) { c.metrics = m } }

// New constructs a Coordinator over functions (already resolved via
// model.BuildFunctionTable), maxParallelJobs (spec §4.8 step 5's
// outstanding_jobs cap; values < 1 are treated as 1).
func New(functions []*model.RuntimeFunction, transport dispatcher.Transport, maxParallelJobs int, log zerolog.Logger, opts ...Option) *Coordinator {
	if maxParallelJobs < 1 {
		maxParallelJobs = 1
	}
	c := &Coordinator{
		rs:              runstate.New(functions),
		transport:       transport,
		maxParallelJobs: maxParallelJobs,
		log:             log.With().Str("component", "coordinator").Logger(),
		debug:           debugger.NoOp{},
	}
	c.router = router.New(c.rs, c.log)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunState exposes the underlying run-state, for tests and for a debugger
// UI driven from outside the submission loop.
func (c *Coordinator) RunState() *runstate.RunState { return c.rs }

// Run executes spec §4.8 steps 3-6: initialise every input, mark the
// initially-satisfied functions Ready, then loop dispatch/receive/route
// until quiescent, cancelled, or a reset arrives - either from the attached
// debugger.Protocol's command, or out-of-band on the dispatcher's control
// endpoint (spec §4.6 "control: out-of-band signals (shutdown, reset)"),
// which any holder of the Transport can use to request a reset or shutdown
// without waiting for the loop's next per-result debug checkpoint.
func (c *Coordinator) Run(ctx context.Context) (model.FlowEnd, error) {
	for {
		iterCtx, cancel := context.WithCancel(ctx)
		outcome := make(chan controlOutcome, 1)
		watchDone := make(chan struct{})
		go c.watchControl(iterCtx, cancel, outcome, watchDone)

		end, resetRequested, err := c.runOnce(iterCtx)
		cancel()
		<-watchDone

		select {
		case o := <-outcome:
			if o == controlReset {
				// cancelling iterCtx to interrupt runOnce's blocking recv
				// makes it report TerminatedCancelled; a reset is not a
				// cancellation, so reclassify before Run restarts it.
				resetRequested = true
				if end.Status == model.TerminatedCancelled {
					end.Status = model.TerminatedCompleted
				}
			}
			// controlShutdown needs no reclassification: runOnce already
			// reports TerminatedCancelled once iterCtx.Err() != nil, which
			// is exactly what an out-of-band shutdown is.
		default:
		}

		if err != nil || !resetRequested {
			return end, err
		}
		c.log.Info().Msg("reset requested: restarting submission")
		c.rs.Reset()
	}
}

// watchControl cancels the per-iteration ctx when either a shutdown or
// reset signal arrives on the dispatcher's control endpoint, recording
// which one on outcome so Run can react after runOnce unblocks. It returns
// (closing watchDone) once ctx is done for any reason, including the
// iteration's own normal completion.
func (c *Coordinator) watchControl(ctx context.Context, cancel context.CancelFunc, outcome chan<- controlOutcome, watchDone chan<- struct{}) {
	defer close(watchDone)
	select {
	case <-ctx.Done():
		return
	case sig, ok := <-c.transport.Signals():
		if !ok {
			return
		}
		switch sig {
		case dispatcher.ControlShutdown:
			c.log.Info().Msg("control: shutdown signal received")
			outcome <- controlShutdown
		case dispatcher.ControlReset:
			c.log.Info().Msg("control: reset signal received")
			outcome <- controlReset
		}
		cancel()
	}
}

// runOnce runs one pass of the loop in spec §4.8 step 5 from a freshly
// initialised (or just-reset) run-state. It returns resetRequested=true when
// the debugger asked for a Reset, so Run can restart at step 3 without
// rebuilding the function table (spec §4.8 "restarts at step 3").
func (c *Coordinator) runOnce(ctx context.Context) (model.FlowEnd, bool, error) {
	c.rs.InitializeAll()

	inflight := make(map[string][]value.Value)
	outstanding := 0
	var processed uint64
	var execErrs int

	for {
		for outstanding < c.maxParallelJobs {
			id, ok := c.rs.NextReady()
			if !ok {
				break
			}
			f := c.rs.Function(id)
			c.rs.Dispatch(id)
			inputSet := f.TakeInputSet()

			jobID := uuid.NewString()
			inflight[jobID] = inputSet
			job := model.Job{
				JobID:                jobID,
				FunctionID:           f.ID,
				FlowID:               f.FlowID,
				InputSet:             inputSet,
				ImplementationHandle: f.ImplementationHandle,
				OutputConnections:    f.OutputConnections,
				IsContext:            model.IsContextLocation(f.ImplementationLocation),
			}

			var sent bool
			if job.IsContext {
				sent = c.transport.SendContextJob(job)
			} else {
				sent = c.transport.SendJob(job)
			}
			if !sent {
				return model.FlowEnd{Status: model.TerminatedError, JobsProcessed: processed, ExecutionErrs: execErrs},
					false, errors.Errorf("dispatcher rejected job for function %d: queue at capacity", f.ID)
			}

			c.debug.OnJobDispatch(f.ID, f.FlowID)
			if c.metrics != nil {
				c.metrics.JobsDispatched.Inc()
			}
			outstanding++
		}

		if outstanding == 0 && c.rs.Quiescent() {
			return model.FlowEnd{Status: model.TerminatedCompleted, JobsProcessed: processed, ExecutionErrs: execErrs}, false, nil
		}

		result, ok := c.transport.RecvResult(ctx)
		if !ok {
			if ctx.Err() != nil {
				return model.FlowEnd{Status: model.TerminatedCancelled, JobsProcessed: processed, ExecutionErrs: execErrs}, false, nil
			}
			return model.FlowEnd{Status: model.TerminatedError, JobsProcessed: processed, ExecutionErrs: execErrs},
				false, errors.New("dispatcher results-sink closed unexpectedly")
		}
		outstanding--
		processed++
		resultInputSet := inflight[result.JobID]
		delete(inflight, result.JobID)

		if result.Err != nil {
			execErrs++
			c.debug.OnJobError(result.FunctionID, result.FlowID, result.Err)
			if c.metrics != nil {
				c.metrics.JobsErrored.Inc()
			}
			c.rs.CompleteJob(result.FunctionID, false)
			continue
		}

		c.rs.CompleteJob(result.FunctionID, result.RunAgain)
		c.debug.OnJobComplete(result.FunctionID, result.FlowID, result.HasOutput)
		if c.metrics != nil {
			c.metrics.JobsCompleted.Inc()
		}

		src := c.rs.Function(result.FunctionID)
		if src != nil {
			c.router.Route(src, resultInputSet, result.Output, result.HasOutput)
		}

		if cmd := c.maybeDebug(); cmd == debugger.Reset {
			return model.FlowEnd{Status: model.TerminatedCompleted, JobsProcessed: processed, ExecutionErrs: execErrs}, true, nil
		} else if cmd == debugger.Exit {
			return model.FlowEnd{Status: model.TerminatedCancelled, JobsProcessed: processed, ExecutionErrs: execErrs}, false, nil
		}
	}
}

// maybeDebug asks the debugger for its next command when debugging is
// active (a non-NoOp Protocol was attached). debugger.NoOp always returns
// Continue without blocking, so this call is cheap when debugging is off.
// Inspect and Break do not resume the loop: the debugger is asked again
// until it returns another command.
func (c *Coordinator) maybeDebug() debugger.Command {
	cmd := c.debug.GetCommand(c.rs.Snapshot())
	for cmd == debugger.Inspect || cmd == debugger.Break {
		cmd = c.debug.GetCommand(c.rs.Snapshot())
	}
	return cmd
}
