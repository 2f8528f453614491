// Package browser implements a sink.Sink that delivers utterances to a
// connected browser tab over a WebSocket, where the actual speechSynthesis
// call happens. It is one of the two companion sink adapters named by the
// spec as "expected companion deliverables."
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/echovox/echovox/pkg/sink"
	"github.com/echovox/echovox/pkg/types"
)

// wireMessage is the JSON envelope exchanged with the browser page over the
// WebSocket connection, in both directions.
type wireMessage struct {
	Type string `json:"type"` // "speak", "cancel", "ack", "voices"

	// speak fields
	ID        string        `json:"id,omitempty"`
	Text      string        `json:"text,omitempty"`
	VoiceHint string        `json:"voiceHint,omitempty"`
	Prosody   types.Prosody `json:"prosody,omitempty"`

	// ack fields
	Error string `json:"error,omitempty"`

	// voices fields
	Voices []string `json:"voices,omitempty"`
}

// ErrNotConnected is returned implicitly (via onComplete) when Deliver is
// called with no browser tab currently connected.
var ErrNotConnected = errors.New("browser: no tab connected")

// Sink implements sink.Sink by forwarding each utterance as a JSON message
// to whichever browser tab is currently connected over WebSocket, and
// waiting for a matching "ack" message to report completion.
//
// Only one browser tab is tracked at a time; a new connection replaces the
// previous one. The queue guarantees at most one Deliver call outstanding,
// so Sink needs to correlate at most one pending completion at any time.
type Sink struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	connCtx  context.Context
	connStop context.CancelFunc
	voices   []string
	pendID   string
	pendDone sink.CompletionFunc

	nextID atomic.Uint64
}

// New returns a Sink with no browser tab connected yet. Call Handler to
// obtain the http.Handler that accepts the connection.
func New() *Sink {
	return &Sink{}
}

// Handler returns an http.Handler that upgrades the request to a WebSocket
// and serves it as this Sink's browser connection. Typically mounted at a
// path like "/echovox/ws".
func (s *Sink) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *Sink) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("browser sink: accept failed", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close(websocket.StatusNormalClosure, "replaced by new connection")
		s.connStop()
	}
	s.conn = conn
	s.connCtx = ctx
	s.connStop = cancel
	s.mu.Unlock()

	slog.Info("browser sink: tab connected")
	s.readLoop(ctx, conn)
}

func (s *Sink) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("browser sink: malformed message", "err", err)
			continue
		}
		switch msg.Type {
		case "ack":
			s.handleAck(msg)
		case "voices":
			s.mu.Lock()
			s.voices = msg.Voices
			s.mu.Unlock()
		}
	}
}

func (s *Sink) handleAck(msg wireMessage) {
	s.mu.Lock()
	if msg.ID != s.pendID || s.pendDone == nil {
		s.mu.Unlock()
		return
	}
	done := s.pendDone
	s.pendDone = nil
	s.pendID = ""
	s.mu.Unlock()

	var err error
	if msg.Error != "" {
		err = errors.New(msg.Error)
	}
	done(err)
}

// Deliver sends text to the connected browser tab and waits for its ack.
// If no tab is connected, onComplete is invoked immediately with
// ErrNotConnected.
func (s *Sink) Deliver(text, voiceHint string, prosody types.Prosody, onComplete sink.CompletionFunc) {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	if conn == nil {
		s.mu.Unlock()
		if onComplete != nil {
			onComplete(ErrNotConnected)
		}
		return
	}
	id := fmt.Sprintf("%d", s.nextID.Add(1))
	s.pendID = id
	s.pendDone = onComplete
	s.mu.Unlock()

	payload, err := json.Marshal(wireMessage{
		Type:      "speak",
		ID:        id,
		Text:      text,
		VoiceHint: voiceHint,
		Prosody:   prosody,
	})
	if err != nil {
		s.completeWithError(id, fmt.Errorf("browser: marshal: %w", err))
		return
	}

	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		s.completeWithError(id, fmt.Errorf("browser: write: %w", err))
	}
}

func (s *Sink) completeWithError(id string, err error) {
	s.mu.Lock()
	if s.pendID != id || s.pendDone == nil {
		s.mu.Unlock()
		return
	}
	done := s.pendDone
	s.pendDone = nil
	s.pendID = ""
	s.mu.Unlock()
	done(err)
}

// Cancel sends a cancel message to the connected tab, if any, and discards
// any pending completion so a late ack is ignored.
func (s *Sink) Cancel() {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.pendID = ""
	s.pendDone = nil
	s.mu.Unlock()

	if conn == nil {
		return
	}
	payload, _ := json.Marshal(wireMessage{Type: "cancel"})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

// ListVoices returns the voice list last reported by the connected tab via
// a "voices" message, or nil if none has been reported yet.
func (s *Sink) ListVoices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voices
}

// Connected reports whether a browser tab is currently connected. Used by
// internal/health as a readiness signal.
func (s *Sink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

var _ sink.Sink = (*Sink)(nil)
