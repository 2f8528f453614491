package browser

import (
	"testing"

	"github.com/echovox/echovox/pkg/types"
)

func TestDeliverWithoutConnectionReportsError(t *testing.T) {
	s := New()
	var gotErr error
	done := make(chan struct{})
	s.Deliver("hello", "alice", types.Prosody{}, func(err error) {
		gotErr = err
		close(done)
	})
	<-done
	if gotErr != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", gotErr)
	}
}

func TestConnectedFalseInitially(t *testing.T) {
	s := New()
	if s.Connected() {
		t.Fatal("expected Connected() false before any handshake")
	}
}

func TestListVoicesEmptyInitially(t *testing.T) {
	s := New()
	if voices := s.ListVoices(); voices != nil {
		t.Fatalf("expected nil voices initially, got %v", voices)
	}
}

func TestCancelWithoutConnectionIsNoOp(t *testing.T) {
	s := New()
	s.Cancel() // must not panic
}
