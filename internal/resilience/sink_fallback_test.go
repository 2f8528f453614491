package resilience

import (
	"errors"
	"testing"

	sinkmock "github.com/echovox/echovox/pkg/sink/mock"
	"github.com/echovox/echovox/pkg/types"
)

func TestFallbackSink_Deliver_PrimarySuccess(t *testing.T) {
	primary := sinkmock.NewAutoComplete()
	secondary := sinkmock.NewAutoComplete()

	fs := NewFallbackSink(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fs.AddFallback("secondary", secondary)

	var gotErr error
	done := make(chan struct{})
	fs.Deliver("hello", "v1", types.Prosody{Rate: 1}, func(err error) {
		gotErr = err
		close(done)
	})
	<-done

	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if len(primary.DeliverCalls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.DeliverCalls))
	}
	if len(secondary.DeliverCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.DeliverCalls))
	}
}

func TestFallbackSink_Deliver_Failover(t *testing.T) {
	primary := &sinkmock.Sink{AutoComplete: true, CompleteErr: errors.New("primary down")}
	secondary := sinkmock.NewAutoComplete()

	fs := NewFallbackSink(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fs.AddFallback("secondary", secondary)

	var gotErr error
	done := make(chan struct{})
	fs.Deliver("hello", "", types.Prosody{}, func(err error) {
		gotErr = err
		close(done)
	})
	<-done

	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if len(primary.DeliverCalls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.DeliverCalls))
	}
	if len(secondary.DeliverCalls) != 1 {
		t.Fatalf("secondary called %d times, want 1", len(secondary.DeliverCalls))
	}
}

func TestFallbackSink_Deliver_AllFail(t *testing.T) {
	primary := &sinkmock.Sink{AutoComplete: true, CompleteErr: errors.New("primary down")}
	secondary := &sinkmock.Sink{AutoComplete: true, CompleteErr: errors.New("secondary down")}

	fs := NewFallbackSink(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fs.AddFallback("secondary", secondary)

	var gotErr error
	done := make(chan struct{})
	fs.Deliver("hello", "", types.Prosody{}, func(err error) {
		gotErr = err
		close(done)
	})
	<-done

	if !errors.Is(gotErr, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", gotErr)
	}
}

func TestFallbackSink_Deliver_SkipsOpenCircuit(t *testing.T) {
	primary := &sinkmock.Sink{AutoComplete: true, CompleteErr: errors.New("primary down")}
	secondary := sinkmock.NewAutoComplete()

	fs := NewFallbackSink(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	fs.AddFallback("secondary", secondary)

	// First call trips the primary's breaker (MaxFailures: 1) and falls
	// through to secondary.
	done := make(chan struct{})
	fs.Deliver("first", "", types.Prosody{}, func(err error) { close(done) })
	<-done

	// Second call should skip primary entirely since its breaker is open.
	done2 := make(chan struct{})
	fs.Deliver("second", "", types.Prosody{}, func(err error) { close(done2) })
	<-done2

	if len(primary.DeliverCalls) != 1 {
		t.Fatalf("primary called %d times, want 1 (breaker should skip second call)", len(primary.DeliverCalls))
	}
	if len(secondary.DeliverCalls) != 2 {
		t.Fatalf("secondary called %d times, want 2", len(secondary.DeliverCalls))
	}
}

func TestFallbackSink_ListVoices_Failover(t *testing.T) {
	primary := &sinkmock.Sink{Voices: nil}
	secondary := &sinkmock.Sink{Voices: []string{"alice", "bob"}}

	fs := NewFallbackSink(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fs.AddFallback("secondary", secondary)

	voices := fs.ListVoices()
	if len(voices) != 2 || voices[0] != "alice" {
		t.Fatalf("got %v, want [alice bob]", voices)
	}
}

func TestFallbackSink_Cancel_ForwardsToAll(t *testing.T) {
	primary := sinkmock.NewAutoComplete()
	secondary := sinkmock.NewAutoComplete()

	fs := NewFallbackSink(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fs.AddFallback("secondary", secondary)

	fs.Cancel()

	if primary.CancelCalls != 1 || secondary.CancelCalls != 1 {
		t.Fatalf("CancelCalls = %d/%d, want 1/1", primary.CancelCalls, secondary.CancelCalls)
	}
}
