// Package mock provides a test double for the sink.Sink interface.
//
// Use Sink to feed controlled completion behaviour to consumers and to
// verify that the correct text and prosody are passed to the backend.
//
//	s := &mock.Sink{Voices: []string{"alice", "bob"}}
//	s.Deliver("hello", "alice", types.Prosody{Rate: 1}, func(err error) {})
package mock

import (
	"sync"

	"github.com/echovox/echovox/pkg/sink"
	"github.com/echovox/echovox/pkg/types"
)

// DeliverCall records a single invocation of Deliver.
type DeliverCall struct {
	Text      string
	VoiceHint string
	Prosody   types.Prosody
}

// Sink is a mock implementation of sink.Sink.
type Sink struct {
	mu sync.Mutex

	// Voices is returned by ListVoices.
	Voices []string

	// AutoComplete, when true (as set by NewAutoComplete), synchronously
	// invokes the onComplete callback passed to Deliver with CompleteErr.
	// When false (the zero value), completion is driven manually via
	// Complete.
	AutoComplete bool

	// CompleteErr is the error passed to onComplete when AutoComplete is true.
	CompleteErr error

	// DeliverCalls records every call to Deliver in order.
	DeliverCalls []DeliverCall

	// CancelCalls counts calls to Cancel.
	CancelCalls int

	pending sink.CompletionFunc
}

// NewAutoComplete returns a Sink that completes every Deliver call
// immediately and successfully — the common case for policy/queue tests
// that don't care about delivery timing.
func NewAutoComplete() *Sink {
	return &Sink{AutoComplete: true}
}

// Deliver records the call. If AutoComplete is set, it invokes onComplete
// immediately with CompleteErr; otherwise the callback is stashed for a
// later call to Complete.
func (s *Sink) Deliver(text, voiceHint string, prosody types.Prosody, onComplete sink.CompletionFunc) {
	s.mu.Lock()
	s.DeliverCalls = append(s.DeliverCalls, DeliverCall{Text: text, VoiceHint: voiceHint, Prosody: prosody})
	auto := s.AutoComplete
	err := s.CompleteErr
	if !auto {
		s.pending = onComplete
	}
	s.mu.Unlock()

	if auto && onComplete != nil {
		onComplete(err)
	}
}

// Complete invokes the callback stashed by the most recent Deliver call,
// when AutoComplete is false. A no-op if no call is pending.
func (s *Sink) Complete(err error) {
	s.mu.Lock()
	cb := s.pending
	s.pending = nil
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Cancel records the call.
func (s *Sink) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CancelCalls++
	s.pending = nil
}

// ListVoices returns Voices.
func (s *Sink) ListVoices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Voices
}

// Reset clears all recorded calls. Thread-safe.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeliverCalls = nil
	s.CancelCalls = 0
	s.pending = nil
}

// Ensure Sink implements sink.Sink at compile time.
var _ sink.Sink = (*Sink)(nil)
