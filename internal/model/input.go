package model

import (
	"sync"

	"flowrun/internal/value"
)

// InitKind distinguishes the two InputInitializer flavors (spec §3).
type InitKind int

const (
	// Once applies its value only on the first activation of the
	// containing flow.
	Once InitKind = iota
	// Always applies its value on first activation and on every
	// subsequent transition of the containing flow to idle.
	Always
)

func (k InitKind) String() string {
	if k == Always {
		return "always"
	}
	return "once"
}

// InputInitializer pairs an InitKind with the Value it supplies.
type InputInitializer struct {
	Kind  InitKind    `json:"kind"`
	Value value.Value `json:"value"`
}

// InputQueue is the per-input, priority-ordered multi-queue described in
// spec §3/§4.1 (component C1). Values are stored in a map from priority to
// a FIFO slice; Take always drains the numerically smallest non-empty
// priority first, and within one priority, in insertion order.
type InputQueue struct {
	mu sync.Mutex

	// ArrayOrder is the nominal array nesting depth this input expects.
	ArrayOrder int
	// Generic, if true, accepts any value without adaptation.
	Generic bool
	// Initializer fires directly on this input.
	Initializer *InputInitializer
	// FlowInitializer is propagated from a containing flow's input.
	FlowInitializer *InputInitializer

	queues map[int][]value.Value
	count  int
}

// NewInputQueue constructs an InputQueue with the given adaptation
// parameters and optional initializers.
func NewInputQueue(arrayOrder int, generic bool, initializer, flowInitializer *InputInitializer) *InputQueue {
	return &InputQueue{
		ArrayOrder:      arrayOrder,
		Generic:         generic,
		Initializer:     initializer,
		FlowInitializer: flowInitializer,
		queues:          make(map[int][]value.Value),
	}
}

// Push applies the adaptation rule (spec §4.5) to v given this input's
// array_order/generic settings, and enqueues the resulting value(s) at
// priority. Returns false if the value was incompatible and dropped (no
// error - spec §4.4.1.c).
func (q *InputQueue) Push(priority int, v value.Value) bool {
	conv := value.Adaptation(v, q.ArrayOrder, q.Generic)
	if conv == value.ConvertIncompatible {
		return false
	}
	for _, out := range value.Apply(v, conv) {
		q.pushRaw(priority, out)
	}
	return true
}

// PushArray enqueues each of values directly at priority, without running
// the adaptation rule again - used by callers (the router) that already
// serialized an array into individual element pushes.
func (q *InputQueue) PushArray(priority int, values []value.Value) {
	for _, v := range values {
		q.pushRaw(priority, v)
	}
}

func (q *InputQueue) pushRaw(priority int, v value.Value) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[priority] = append(q.queues[priority], v)
	q.count++
}

// Take removes and returns the oldest value at the numerically smallest
// non-empty priority. Returns (nil, false) if the queue is empty.
func (q *InputQueue) Take() (value.Value, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil, false
	}
	best := 0
	found := false
	for p := range q.queues {
		if !found || p < best {
			best = p
			found = true
		}
	}
	vals := q.queues[best]
	v := vals[0]
	if len(vals) == 1 {
		delete(q.queues, best)
	} else {
		q.queues[best] = vals[1:]
	}
	q.count--
	return v, true
}

// Count returns the total number of values queued across all priorities.
func (q *InputQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Clear empties the queue - used only on debugger reset (spec §3
// RuntimeFunction lifecycle).
func (q *InputQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues = make(map[int][]value.Value)
	q.count = 0
}

// Init applies this input's Initializer and FlowInitializer according to
// the Once/Always rule (spec §3, Open Question 3 in SPEC_FULL.md): a Once
// initializer fires only when firstTime is true; an Always initializer
// fires when firstTime is true or when flowIdle is true. Returns whether
// any value was pushed.
func (q *InputQueue) Init(firstTime, flowIdle bool) bool {
	fired := false
	for _, init := range [...]*InputInitializer{q.Initializer, q.FlowInitializer} {
		if init == nil {
			continue
		}
		switch init.Kind {
		case Once:
			if firstTime {
				q.Push(1, value.Clone(init.Value))
				fired = true
			}
		case Always:
			if firstTime || flowIdle {
				q.Push(1, value.Clone(init.Value))
				fired = true
			}
		}
	}
	return fired
}
