// Package sink defines the adapter interface between the queue's dispatch
// loop and a concrete speech backend (a browser tab, a local TTS command, or
// a test double).
package sink

import "github.com/echovox/echovox/pkg/types"

// CompletionFunc is invoked exactly once per [Sink.Deliver] call, either when
// the utterance finishes playing or when delivery fails. err is nil on
// success. It may be called from any goroutine: internal/queue guards its
// state with a mutex and wakes its own dispatch loop.
type CompletionFunc func(err error)

// Sink delivers a single utterance at a time to a speech backend. The queue
// guarantees at most one outstanding Deliver call per Sink at any time; a
// Sink implementation does not need its own internal queuing.
type Sink interface {
	// Deliver begins speaking text with the given prosody and voice hint.
	// It must not block past enqueuing the work; completion is reported
	// asynchronously via onComplete.
	Deliver(text string, voiceHint string, prosody types.Prosody, onComplete CompletionFunc)

	// Cancel aborts any in-flight Deliver call. Its completion callback, if
	// it fires after Cancel returns, is ignored by the queue. Cancel on an
	// idle sink is a no-op.
	Cancel()

	// ListVoices returns the backend's available voice identifiers, as an
	// advisory listing. internal/health does not call it; its readiness
	// check uses an adapter's Connected method instead.
	ListVoices() []string
}
