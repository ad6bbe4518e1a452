// Package query tracks the lifecycle of asynchronous fetches and mutations as
// observable state with a retained last-good value.
//
// Every call is tagged with a sequence number when it starts. Only the most
// recently started call may move the query's state; a call that settles after a
// newer one has started is stale and does not change State or Err. Load results
// from stale calls are discarded. Mutation reducers are always applied, because
// they are deltas against the current value rather than snapshots of it.
package query

import (
	"context"
	"sync"

	"github.com/uwscope/scope-web-sub000/internal/platform/observe"
)

// State is the lifecycle position of a query.
type State int

const (
	Idle State = iota
	Pending
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Reducer derives a new value from the current one.
type Reducer[T any] func(current T) T

// Query holds the state of the latest started call and the last fulfilled value.
type Query[T any] struct {
	observe.Subject

	mu      sync.RWMutex
	state   State
	value   T
	err     error
	started uint64
}

// New returns an idle query holding initial as its value.
func New[T any](initial T) *Query[T] {
	return &Query[T]{value: initial}
}

// Run starts a call that produces a whole new value. The query enters Pending,
// runs fn, and settles with its result unless a newer call has started. The
// caller always receives fn's own result.
func (q *Query[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	seq := q.begin()
	v, err := fn(ctx)

	q.mu.Lock()
	current := seq == q.started
	if current {
		if err != nil {
			q.state = Rejected
			q.err = err
		} else {
			q.state = Fulfilled
			q.err = nil
			q.value = v
		}
	}
	q.mu.Unlock()

	if current {
		q.Notify()
	}
	return v, err
}

// Mutate starts a call whose result is a reducer over the current value. The
// reducer, when non-nil, is applied even if the call is stale or failed; the
// state transition only happens for the latest call. It returns the value after
// the reducer ran.
func (q *Query[T]) Mutate(ctx context.Context, fn func(context.Context) (Reducer[T], error)) (T, error) {
	seq := q.begin()
	reduce, err := fn(ctx)

	q.mu.Lock()
	changed := false
	if reduce != nil {
		q.value = reduce(q.value)
		changed = true
	}
	if seq == q.started {
		changed = true
		if err != nil {
			q.state = Rejected
			q.err = err
		} else {
			q.state = Fulfilled
			q.err = nil
		}
	}
	v := q.value
	q.mu.Unlock()

	if changed {
		q.Notify()
	}
	return v, err
}

// Seed settles the query as Fulfilled with v without running anything. It
// supersedes any call in flight.
func (q *Query[T]) Seed(v T) {
	q.mu.Lock()
	q.started++
	q.state = Fulfilled
	q.err = nil
	q.value = v
	q.mu.Unlock()
	q.Notify()
}

// Fail settles the query as Rejected with err, keeping the retained value.
func (q *Query[T]) Fail(err error) {
	q.mu.Lock()
	q.started++
	q.state = Rejected
	q.err = err
	q.mu.Unlock()
	q.Notify()
}

// Begin marks the query Pending on behalf of work tracked elsewhere, such as a
// batched load that will later Seed or Fail it.
func (q *Query[T]) Begin() {
	q.begin()
}

func (q *Query[T]) begin() uint64 {
	q.mu.Lock()
	q.started++
	seq := q.started
	q.state = Pending
	q.mu.Unlock()
	q.Notify()
	return seq
}

func (q *Query[T]) State() State {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.state
}

// Pending reports whether the latest call is still running.
func (q *Query[T]) Pending() bool { return q.State() == Pending }

// Done reports whether the latest call has settled either way.
func (q *Query[T]) Done() bool {
	s := q.State()
	return s == Fulfilled || s == Rejected
}

// Err returns the last rejection reason. It is cleared only by a successful call.
func (q *Query[T]) Err() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.err
}

// Value returns the retained value, which survives later Pending and Rejected
// transitions.
func (q *Query[T]) Value() T {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.value
}
