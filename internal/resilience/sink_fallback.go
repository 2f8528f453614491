package resilience

import (
	"fmt"
	"log/slog"

	"github.com/echovox/echovox/pkg/sink"
	"github.com/echovox/echovox/pkg/types"
)

// FallbackSink implements [sink.Sink] with automatic failover across multiple
// sink backends — e.g. falling back from the browser sink to oscmd when no
// browser tab is connected. Each backend has its own circuit breaker.
type FallbackSink struct {
	group *FallbackGroup[sink.Sink]
}

var _ sink.Sink = (*FallbackSink)(nil)

// NewFallbackSink creates a [FallbackSink] with primary as the preferred
// backend.
func NewFallbackSink(primary sink.Sink, primaryName string, cfg FallbackConfig) *FallbackSink {
	return &FallbackSink{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional sink as a fallback, tried after the
// primary and any previously added fallbacks.
func (f *FallbackSink) AddFallback(name string, s sink.Sink) {
	f.group.AddFallback(name, s)
}

// Deliver tries each sink in registration order, skipping any whose circuit
// breaker is open. If a sink's completion reports an error, the breaker
// records the failure and delivery falls through to the next sink; onComplete
// only fires once a sink succeeds or every sink has been exhausted.
func (f *FallbackSink) Deliver(text, voiceHint string, prosody types.Prosody, onComplete sink.CompletionFunc) {
	f.deliverFrom(0, text, voiceHint, prosody, onComplete)
}

func (f *FallbackSink) deliverFrom(i int, text, voiceHint string, prosody types.Prosody, onComplete sink.CompletionFunc) {
	entries := f.group.entries
	if i >= len(entries) {
		if onComplete != nil {
			onComplete(fmt.Errorf("%w: no sinks available", ErrAllFailed))
		}
		return
	}

	entry := &entries[i]
	if !entry.breaker.Allow() {
		slog.Debug("skipping sink (circuit open)", "sink", entry.name)
		f.deliverFrom(i+1, text, voiceHint, prosody, onComplete)
		return
	}

	entry.value.Deliver(text, voiceHint, prosody, func(err error) {
		entry.breaker.Record(err)
		if err != nil {
			slog.Warn("sink failed, trying next", "sink", entry.name, "error", err)
			f.deliverFrom(i+1, text, voiceHint, prosody, onComplete)
			return
		}
		if onComplete != nil {
			onComplete(nil)
		}
	})
}

// Cancel forwards cancellation to every registered sink. FallbackSink does
// not track which entry is currently in flight, so adapters with nothing
// in flight must treat Cancel as a no-op — all of echovox's sink adapters do.
func (f *FallbackSink) Cancel() {
	for i := range f.group.entries {
		f.group.entries[i].value.Cancel()
	}
}

// ListVoices returns the voices advertised by the first sink whose circuit
// breaker is not open and which reports at least one voice.
func (f *FallbackSink) ListVoices() []string {
	for i := range f.group.entries {
		entry := &f.group.entries[i]
		if entry.breaker.State() == StateOpen {
			continue
		}
		if voices := entry.value.ListVoices(); len(voices) > 0 {
			return voices
		}
	}
	return nil
}
