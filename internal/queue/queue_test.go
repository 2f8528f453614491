package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/echovox/echovox/pkg/sink"
	"github.com/echovox/echovox/pkg/types"
)

// recordingSink is a minimal sink.Sink test double that records Deliver
// calls and lets the test control completion timing manually.
type recordingSink struct {
	mu         sync.Mutex
	delivered  []string
	onComplete func(error)
	cancels    int
}

func (s *recordingSink) Deliver(text, voiceHint string, prosody types.Prosody, onComplete sink.CompletionFunc) {
	s.mu.Lock()
	s.delivered = append(s.delivered, text)
	s.onComplete = onComplete
	s.mu.Unlock()
}

func (s *recordingSink) Cancel() {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
}

func (s *recordingSink) ListVoices() []string { return nil }

func (s *recordingSink) complete(err error) {
	s.mu.Lock()
	cb := s.onComplete
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (s *recordingSink) deliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestEnqueueDispatchesImmediatelyWhenIdle(t *testing.T) {
	s := &recordingSink{}
	q := New(s)
	defer q.Close()

	q.Enqueue(types.Utterance{Text: "hello"})
	waitFor(t, func() bool { return s.deliveredCount() == 1 })
}

func TestAtMostOneInFlight(t *testing.T) {
	s := &recordingSink{}
	q := New(s)
	defer q.Close()

	q.Enqueue(types.Utterance{Text: "a"})
	q.Enqueue(types.Utterance{Text: "b"})
	q.Enqueue(types.Utterance{Text: "c"})

	waitFor(t, func() bool { return s.deliveredCount() == 1 })
	time.Sleep(20 * time.Millisecond)
	if s.deliveredCount() != 1 {
		t.Fatalf("expected only 1 delivered while first is in flight, got %d", s.deliveredCount())
	}
	inFlight, pending := q.Status()
	if !inFlight || pending != 2 {
		t.Fatalf("expected inFlight=true pending=2, got inFlight=%v pending=%d", inFlight, pending)
	}
}

func TestOrderPreservation(t *testing.T) {
	s := &recordingSink{}
	q := New(s)
	defer q.Close()

	q.Enqueue(types.Utterance{Text: "a"})
	q.Enqueue(types.Utterance{Text: "b"})

	waitFor(t, func() bool { return s.deliveredCount() == 1 })
	s.complete(nil)

	waitFor(t, func() bool { return s.deliveredCount() == 2 })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered[0] != "a" || s.delivered[1] != "b" {
		t.Fatalf("expected FIFO order [a b], got %v", s.delivered)
	}
}

func TestCancelClearsQueueAndIgnoresStaleCompletion(t *testing.T) {
	s := &recordingSink{}
	q := New(s)
	defer q.Close()

	q.Enqueue(types.Utterance{Text: "a"})
	q.Enqueue(types.Utterance{Text: "b"})
	waitFor(t, func() bool { return s.deliveredCount() == 1 })

	q.Cancel()

	inFlight, pending := q.Status()
	if inFlight || pending != 0 {
		t.Fatalf("expected empty queue after cancel, got inFlight=%v pending=%d", inFlight, pending)
	}
	if s.cancels != 1 {
		t.Fatalf("expected sink Cancel called once, got %d", s.cancels)
	}

	// A completion for the cancelled utterance arriving late must not revive it.
	s.complete(nil)
	time.Sleep(20 * time.Millisecond)
	inFlight, pending = q.Status()
	if inFlight || pending != 0 {
		t.Fatalf("expected stale completion ignored, got inFlight=%v pending=%d", inFlight, pending)
	}
}

func TestHasTextChecksPendingAndInFlight(t *testing.T) {
	s := &recordingSink{}
	q := New(s)
	defer q.Close()

	q.Enqueue(types.Utterance{Text: "in-flight"})
	waitFor(t, func() bool { return s.deliveredCount() == 1 })
	q.Enqueue(types.Utterance{Text: "pending"})

	if !q.HasText("in-flight") {
		t.Error("expected HasText true for in-flight utterance")
	}
	if !q.HasText("pending") {
		t.Error("expected HasText true for pending utterance")
	}
	if q.HasText("nope") {
		t.Error("expected HasText false for unknown text")
	}
}
