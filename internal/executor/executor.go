// Package executor implements the worker pool (component C7, spec §4.7):
// N general worker goroutines draining the job-source, plus one
// single-threaded context executor draining the context-job-source so that
// context function side effects (stdio, file writes) stay ordered. Neither
// executor interprets a result - a panic or Err is forwarded verbatim as a
// failed JobResult, never crashing the worker (spec §4.7 "Failure mode").
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"flowrun/internal/dispatcher"
	"flowrun/internal/model"
)

// Pool owns the general worker goroutines and the single context-executor
// goroutine, grounded on the teacher's sched.Pool.Start worker loop
// (internal/sched/sched.go) - the same "loop pulling from a shared queue
// until told to stop" shape, generalized from HTTP task closures to
// Implementation.Run invocations.
type Pool struct {
	transport dispatcher.Transport
	log       zerolog.Logger
	workers   int

	wg sync.WaitGroup
}

// New constructs a Pool of workers workers (minimum 1) reading from
// transport.
func New(transport dispatcher.Transport, workers int, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{transport: transport, workers: workers, log: log.With().Str("component", "executor").Logger()}
}

// Start launches the general workers and the context executor. It returns
// immediately; call Wait to block until ctx is cancelled and every worker
// has returned.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
	p.wg.Add(1)
	go p.runContextWorker(ctx)
}

// Wait blocks until every worker goroutine has returned (i.e. ctx was
// cancelled and RecvJob/RecvContextJob unblocked).
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()
	for {
		job, ok := p.transport.RecvJob(ctx)
		if !ok {
			return
		}
		log.Debug().Str("job_id", job.JobID).Int("function_id", job.FunctionID).Msg("job received")
		result := runJob(job)
		if err := p.transport.SendResult(result); err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("failed to post result")
		}
	}
}

// runContextWorker is identical to runWorker except it is never started more
// than once and it drains only the context-job-source, preserving
// side-effect ordering for context:// implementations (spec §4.7 "Context
// executor is identical but single-threaded").
func (p *Pool) runContextWorker(ctx context.Context) {
	defer p.wg.Done()
	log := p.log.With().Str("worker", "context").Logger()
	for {
		job, ok := p.transport.RecvContextJob(ctx)
		if !ok {
			return
		}
		log.Debug().Str("job_id", job.JobID).Int("function_id", job.FunctionID).Msg("context job received")
		result := runJob(job)
		if err := p.transport.SendResult(result); err != nil {
			log.Error().Err(err).Str("job_id", job.JobID).Msg("failed to post result")
		}
	}
}

// runJob invokes job's implementation, recovering from a panic and
// converting it to an Err result - the executor forwards results verbatim
// and never interprets them (spec §4.7).
func runJob(job model.Job) (result model.JobResult) {
	result = model.JobResult{JobID: job.JobID, FunctionID: job.FunctionID, FlowID: job.FlowID}
	defer func() {
		if rec := recover(); rec != nil {
			result.Err = fmt.Errorf("panic in function %d: %v", job.FunctionID, rec)
			result.HasOutput = false
			result.RunAgain = true
		}
	}()

	if job.ImplementationHandle == nil {
		result.Err = fmt.Errorf("function %d has no resolved implementation", job.FunctionID)
		return result
	}

	output, hasOutput, runAgain, err := job.ImplementationHandle.Run(job.InputSet)
	result.Output = output
	result.HasOutput = hasOutput
	result.RunAgain = runAgain
	result.Err = err
	return result
}
