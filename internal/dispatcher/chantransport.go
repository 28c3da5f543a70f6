package dispatcher

import (
	"context"
	"sync"

	"flowrun/internal/model"
)

// ChanTransport is the default Transport, grounded on the teacher's
// three-priority channel pool: here the "priorities" are the four logical
// endpoints (job, context-job, result, control) rather than job priority
// classes, but the non-blocking-send / select-with-default back-pressure
// idiom is the same one the teacher's sched.Pool uses for its queues.
type ChanTransport struct {
	jobs        chan model.Job
	contextJobs chan model.Job
	results     chan model.JobResult
	control     chan ControlSignal

	closeOnce sync.Once
}

// NewChanTransport builds a ChanTransport with the given queue capacities.
// jobCap/contextCap/resultCap of 0 fall back to 1 (an unbuffered queue would
// make SendJob always reject when no worker is mid-receive, defeating
// back-pressure's purpose of smoothing bursts rather than rejecting them).
func NewChanTransport(jobCap, contextCap, resultCap int) *ChanTransport {
	if jobCap <= 0 {
		jobCap = 1
	}
	if contextCap <= 0 {
		contextCap = 1
	}
	if resultCap <= 0 {
		resultCap = 1
	}
	return &ChanTransport{
		jobs:        make(chan model.Job, jobCap),
		contextJobs: make(chan model.Job, contextCap),
		results:     make(chan model.JobResult, resultCap),
		control:     make(chan ControlSignal, 8),
	}
}

func (t *ChanTransport) SendJob(j model.Job) bool {
	select {
	case t.jobs <- j:
		return true
	default:
		return false
	}
}

func (t *ChanTransport) SendContextJob(j model.Job) bool {
	select {
	case t.contextJobs <- j:
		return true
	default:
		return false
	}
}

func (t *ChanTransport) RecvJob(ctx context.Context) (model.Job, bool) {
	select {
	case j, ok := <-t.jobs:
		return j, ok
	case <-ctx.Done():
		return model.Job{}, false
	}
}

func (t *ChanTransport) RecvContextJob(ctx context.Context) (model.Job, bool) {
	select {
	case j, ok := <-t.contextJobs:
		return j, ok
	case <-ctx.Done():
		return model.Job{}, false
	}
}

func (t *ChanTransport) SendResult(r model.JobResult) error {
	select {
	case t.results <- r:
		return nil
	default:
		// results-sink is sized generously relative to max_parallel_jobs by
		// the coordinator; a full sink here means a caller bug, not a
		// transient condition worth silently dropping, so block instead of
		// rejecting.
		t.results <- r
		return nil
	}
}

func (t *ChanTransport) RecvResult(ctx context.Context) (model.JobResult, bool) {
	select {
	case r, ok := <-t.results:
		return r, ok
	case <-ctx.Done():
		return model.JobResult{}, false
	}
}

func (t *ChanTransport) Control(sig ControlSignal) {
	select {
	case t.control <- sig:
	default:
		// A slow/absent reader must never block the sender of a
		// shutdown/reset signal.
	}
}

func (t *ChanTransport) Signals() <-chan ControlSignal { return t.control }

func (t *ChanTransport) Close() {
	t.closeOnce.Do(func() {
		close(t.jobs)
		close(t.contextJobs)
		close(t.results)
		close(t.control)
	})
}
