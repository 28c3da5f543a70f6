//go:build zmq

package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	zmq "github.com/pebbe/zmq4"

	"flowrun/internal/model"
)

// ZMQTransport is an optional Transport backed by ZeroMQ PUSH/PULL sockets
// (spec §4.6 "Implementations MAY use in-process channels or ZeroMQ-style
// sockets; the coordinator is agnostic"). Built only with `-tags zmq`, since
// it requires the libzmq shared library at link time - the default build
// stays dependency-free via ChanTransport.
//
// Jobs and context-jobs each get their own PUSH/PULL pair so a single-
// threaded context executor can bind its own socket without competing with
// the general worker pool; results share a third pair; control uses a
// PUB/SUB pair whose single subscriber feeds the Signals() channel.
type ZMQTransport struct {
	ctx *zmq.Context

	jobPush, jobPull          *zmq.Socket
	contextPush, contextPull  *zmq.Socket
	resultPush, resultPull    *zmq.Socket
	controlPub, controlSub    *zmq.Socket
	controlCh                 chan ControlSignal
	closeOnce                 sync.Once

	// handles resolves a job's ImplementationHandle by function id on the
	// receiving side. A Go interface value can't cross a byte socket, and
	// ZMQTransport only ever connects sockets within one process (addresses
	// are inproc://), so jobs travel as jobWire (no handle) and the
	// receiving worker looks the handle up here instead.
	mu      sync.RWMutex
	handles map[int]model.Implementation
}

// NewZMQTransport binds the four inproc:// endpoint pairs rooted at
// namespace (e.g. "flowrun-<submission-id>"), isolating concurrent
// submissions from each other's sockets.
func NewZMQTransport(namespace string) (*ZMQTransport, error) {
	zctx, err := zmq.NewContext()
	if err != nil {
		return nil, err
	}
	t := &ZMQTransport{ctx: zctx, controlCh: make(chan ControlSignal, 8), handles: make(map[int]model.Implementation)}

	pairs := []struct {
		push, pull **zmq.Socket
		addr       string
	}{
		{&t.jobPush, &t.jobPull, "inproc://" + namespace + "-jobs"},
		{&t.contextPush, &t.contextPull, "inproc://" + namespace + "-ctx"},
		{&t.resultPush, &t.resultPull, "inproc://" + namespace + "-results"},
	}
	for _, p := range pairs {
		push, err := zctx.NewSocket(zmq.PUSH)
		if err != nil {
			return nil, err
		}
		if err := push.Bind(p.addr); err != nil {
			return nil, err
		}
		pull, err := zctx.NewSocket(zmq.PULL)
		if err != nil {
			return nil, err
		}
		if err := pull.Connect(p.addr); err != nil {
			return nil, err
		}
		*p.push, *p.pull = push, pull
	}

	pub, err := zctx.NewSocket(zmq.PUB)
	if err != nil {
		return nil, err
	}
	if err := pub.Bind("inproc://" + namespace + "-control"); err != nil {
		return nil, err
	}
	sub, err := zctx.NewSocket(zmq.SUB)
	if err != nil {
		return nil, err
	}
	if err := sub.Connect("inproc://" + namespace + "-control"); err != nil {
		return nil, err
	}
	if err := sub.SetSubscribe(""); err != nil {
		return nil, err
	}
	t.controlPub, t.controlSub = pub, sub

	go t.pumpControl()
	return t, nil
}

func (t *ZMQTransport) pumpControl() {
	for {
		msg, err := t.controlSub.RecvBytes(0)
		if err != nil {
			return
		}
		var sig ControlSignal
		if json.Unmarshal(msg, &sig) == nil {
			select {
			case t.controlCh <- sig:
			default:
			}
		}
	}
}

// jobWire is a Job stripped of its ImplementationHandle - see the handles
// registry comment on ZMQTransport.
type jobWire struct {
	JobID             string                     `json:"job_id"`
	FunctionID        int                        `json:"function_id"`
	FlowID            string                     `json:"flow_id"`
	InputSet          []interface{}              `json:"input_set"`
	OutputConnections []model.OutputConnection   `json:"output_connections"`
	Priority          int                        `json:"priority"`
	IsContext         bool                       `json:"is_context"`
}

func toWire(j model.Job) jobWire {
	return jobWire{j.JobID, j.FunctionID, j.FlowID, j.InputSet, j.OutputConnections, j.Priority, j.IsContext}
}

func (t *ZMQTransport) fromWire(w jobWire) model.Job {
	t.mu.RLock()
	handle := t.handles[w.FunctionID]
	t.mu.RUnlock()
	return model.Job{
		JobID: w.JobID, FunctionID: w.FunctionID, FlowID: w.FlowID,
		InputSet: w.InputSet, OutputConnections: w.OutputConnections,
		Priority: w.Priority, IsContext: w.IsContext, ImplementationHandle: handle,
	}
}

// RegisterHandle makes handle resolvable by functionID on the receiving end
// of RecvJob/RecvContextJob. Must be called before the coordinator starts
// sending jobs for that function.
func (t *ZMQTransport) RegisterHandle(functionID int, handle model.Implementation) {
	t.mu.Lock()
	t.handles[functionID] = handle
	t.mu.Unlock()
}

func (t *ZMQTransport) SendJob(j model.Job) bool {
	b, err := json.Marshal(toWire(j))
	if err != nil {
		return false
	}
	return t.jobPush.SendBytes(b, zmq.DONTWAIT) == nil
}

func (t *ZMQTransport) SendContextJob(j model.Job) bool {
	b, err := json.Marshal(toWire(j))
	if err != nil {
		return false
	}
	return t.contextPush.SendBytes(b, zmq.DONTWAIT) == nil
}

func (t *ZMQTransport) RecvJob(ctx context.Context) (model.Job, bool) {
	return t.recvJob(ctx, t.jobPull)
}

func (t *ZMQTransport) RecvContextJob(ctx context.Context) (model.Job, bool) {
	return t.recvJob(ctx, t.contextPull)
}

func (t *ZMQTransport) recvJob(ctx context.Context, sock *zmq.Socket) (model.Job, bool) {
	type result struct {
		j  model.Job
		ok bool
	}
	out := make(chan result, 1)
	go func() {
		b, err := sock.RecvBytes(0)
		if err != nil {
			out <- result{}
			return
		}
		var w jobWire
		if json.Unmarshal(b, &w) != nil {
			out <- result{}
			return
		}
		out <- result{t.fromWire(w), true}
	}()
	select {
	case r := <-out:
		return r.j, r.ok
	case <-ctx.Done():
		return model.Job{}, false
	}
}

func (t *ZMQTransport) SendResult(r model.JobResult) error {
	b, err := json.Marshal(resultWire{r.JobID, r.FunctionID, r.FlowID, r.Output, r.HasOutput, r.RunAgain, errString(r.Err)})
	if err != nil {
		return err
	}
	return t.resultPush.SendBytes(b, 0)
}

func (t *ZMQTransport) RecvResult(ctx context.Context) (model.JobResult, bool) {
	type result struct {
		r  model.JobResult
		ok bool
	}
	out := make(chan result, 1)
	go func() {
		b, err := t.resultPull.RecvBytes(0)
		if err != nil {
			out <- result{}
			return
		}
		var w resultWire
		if json.Unmarshal(b, &w) != nil {
			out <- result{}
			return
		}
		out <- result{w.toJobResult(), true}
	}()
	select {
	case r := <-out:
		return r.r, r.ok
	case <-ctx.Done():
		return model.JobResult{}, false
	}
}

func (t *ZMQTransport) Control(sig ControlSignal) {
	b, _ := json.Marshal(sig)
	_ = t.controlPub.SendBytes(b, zmq.DONTWAIT)
}

func (t *ZMQTransport) Signals() <-chan ControlSignal { return t.controlCh }

func (t *ZMQTransport) Close() {
	t.closeOnce.Do(func() {
		for _, s := range []*zmq.Socket{
			t.jobPush, t.jobPull, t.contextPush, t.contextPull,
			t.resultPush, t.resultPull, t.controlPub, t.controlSub,
		} {
			if s != nil {
				_ = s.Close()
			}
		}
		_ = t.ctx.Term()
	})
}

// resultWire is the JSON-on-the-wire shape for a JobResult: errors cross the
// socket as a plain string, since error values don't round-trip through
// encoding/json.
type resultWire struct {
	JobID      string      `json:"job_id"`
	FunctionID int         `json:"function_id"`
	FlowID     string      `json:"flow_id"`
	Output     model.Value `json:"output,omitempty"`
	HasOutput  bool        `json:"has_output"`
	RunAgain   bool        `json:"run_again"`
	Err        string      `json:"err,omitempty"`
}

func (w resultWire) toJobResult() model.JobResult {
	r := model.JobResult{JobID: w.JobID, FunctionID: w.FunctionID, FlowID: w.FlowID, Output: w.Output, HasOutput: w.HasOutput, RunAgain: w.RunAgain}
	if w.Err != "" {
		r.Err = errors.New(w.Err)
	}
	return r
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
