// Package queue implements the strict FIFO, at-most-one-in-flight delivery
// queue between Policy and a sink.Sink — spec §4.4.
package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/echovox/echovox/pkg/sink"
	"github.com/echovox/echovox/pkg/types"
)

// DefaultSettleDelay is the fixed pause after a sink completion before the
// next queued utterance is dispatched, preventing sink backends from
// coalescing adjacent utterances. Not configurable, per spec.
const DefaultSettleDelay = 100 * time.Millisecond

// Queue is a strict FIFO of admitted utterances with at most one dispatched
// to the sink at a time. The dispatch loop is the single goroutine that ever
// calls the sink's Deliver — the same role the teacher's audio mixer's dispatch
// goroutine plays, minus the priority heap and preemption: this queue never
// reorders or interrupts, it only advances head-first.
//
// Safe for concurrent use.
type Queue struct {
	sink sink.Sink

	// OnDeliveryError, if set, is invoked (on whichever goroutine runs the
	// sink's completion callback) when a sink completion reports a non-nil
	// error. It never blocks queue
	// advancement — completions are treated identically to success for
	// advancement purposes.
	OnDeliveryError func(utterance types.Utterance, err error)

	mu       sync.Mutex
	pending  []types.Utterance
	inFlight bool
	current  *types.Utterance
	gen      uint64 // incremented by Cancel to invalidate stale completions

	notify chan struct{}
	done   chan struct{}
	closeOnce sync.Once
}

// New creates a Queue that delivers to s. The dispatch loop starts
// immediately; call Close to stop it.
func New(s sink.Sink) *Queue {
	q := &Queue{
		sink:   s,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.dispatchLoop()
	return q
}

// Enqueue appends utterance to the tail of the queue. O(1) and non-blocking.
// If nothing is in flight, it wakes the dispatch loop to pop and dispatch
// the head immediately.
func (q *Queue) Enqueue(utterance types.Utterance) {
	q.mu.Lock()
	q.pending = append(q.pending, utterance)
	idle := !q.inFlight
	q.mu.Unlock()

	if idle {
		q.wake()
	}
}

// HasText reports whether text is already present among pending utterances
// or the one currently in flight — used by Policy's queue-dedup check
// (spec §4.3 step 2).
func (q *Queue) HasText(text string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil && q.current.Text == text {
		return true
	}
	for _, u := range q.pending {
		if u.Text == text {
			return true
		}
	}
	return false
}

// Status reports whether an utterance is in flight and how many are pending.
func (q *Queue) Status() (inFlight bool, pending int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight, len(q.pending)
}

// Cancel invokes the sink's Cancel affordance (if anything is in flight),
// drops all pending utterances, and clears in-flight state. A completion
// callback for the cancelled utterance that fires after this call is
// ignored.
func (q *Queue) Cancel() {
	q.mu.Lock()
	wasInFlight := q.inFlight
	q.pending = nil
	q.inFlight = false
	q.current = nil
	q.gen++
	q.mu.Unlock()

	if wasInFlight {
		q.sink.Cancel()
	}
}

// Close stops the dispatch loop. Idempotent.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) dispatchLoop() {
	for {
		select {
		case <-q.done:
			return
		case <-q.notify:
			q.dispatchHead()
		}
	}
}

// dispatchHead pops the queue's head and hands it to the sink, unless
// something is already in flight or the queue is empty.
func (q *Queue) dispatchHead() {
	q.mu.Lock()
	if q.inFlight || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	u := q.pending[0]
	q.pending = q.pending[1:]
	q.inFlight = true
	q.current = &u
	gen := q.gen
	q.mu.Unlock()

	q.sink.Deliver(u.Text, u.VoiceHint, u.Prosody, func(err error) {
		q.onCompletion(gen, u, err)
	})
}

func (q *Queue) onCompletion(gen uint64, utterance types.Utterance, err error) {
	q.mu.Lock()
	if gen != q.gen {
		// Stale completion from an utterance that Cancel already discarded.
		q.mu.Unlock()
		return
	}
	q.inFlight = false
	q.current = nil
	hasPending := len(q.pending) > 0
	q.mu.Unlock()

	if err != nil {
		slog.Warn("sink delivery failed", "utterance_id", utterance.ID, "err", err)
		if q.OnDeliveryError != nil {
			q.OnDeliveryError(utterance, err)
		}
	}

	if hasPending {
		time.AfterFunc(DefaultSettleDelay, q.wake)
	}
}
