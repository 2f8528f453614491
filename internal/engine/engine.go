// Package engine wires the classifier, humanizer, policy, and queue stages
// into the public facade — spec §4.5. Construction never fails on bad
// config; no internal error is ever returned to a caller of the public
// operations, matching the error-handling contract of §7.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echovox/echovox/internal/classify"
	"github.com/echovox/echovox/internal/config"
	"github.com/echovox/echovox/internal/hooks"
	"github.com/echovox/echovox/internal/humanize"
	"github.com/echovox/echovox/internal/observe"
	"github.com/echovox/echovox/internal/policy"
	"github.com/echovox/echovox/internal/queue"
	"github.com/echovox/echovox/pkg/sink"
	"github.com/echovox/echovox/pkg/types"
)

// defaultTestMessage is spoken by Test when called with no text.
const defaultTestMessage = "This is a test narration from echovox."

// connectionAware is satisfied by sink adapters (pkg/sink/browser) that know
// whether they currently have a live backend attached. Adapters that don't
// implement it are always considered ready once constructed.
type connectionAware interface {
	Connected() bool
}

// Engine is the public facade described by spec §4.5. It owns the config
// snapshot, the policy ledger, and the delivery queue — the "single logical
// execution context" of spec §5 — behind a mutex, since unlike the
// JavaScript original Go has no single-threaded event loop to rely on.
type Engine struct {
	mu  sync.Mutex
	cfg config.Config

	humanizer     *humanize.Humanizer
	bareHumanizer *humanize.Humanizer // no pattern rules; used when Humanize.Enabled is false
	ledger        *policy.Ledger
	queue         *queue.Queue
	sink          sink.Sink
	metrics       *observe.Metrics
	hookInstaller *hooks.Installer
	hookFuncs     []hooks.HookFunc
	now           func() time.Time
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithSink injects the sink adapter. Without one, the engine still
// classifies and admits faults (and records ledger admissions) but never
// dispatches — spec §7's "sink absent/not ready" case.
func WithSink(s sink.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithHumanizer overrides the default pattern-rule humanizer.
func WithHumanizer(h *humanize.Humanizer) Option {
	return func(e *Engine) { e.humanizer = h }
}

// WithMetrics overrides the default (global) metrics instance, chiefly for
// tests that want an isolated meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHookFuncs registers the fault-source hooks installed when
// Config.AutoSetup is true. cmd/echovox registers none; embedding programs
// supply their own.
func WithHookFuncs(fns ...hooks.HookFunc) Option {
	return func(e *Engine) { e.hookFuncs = append(e.hookFuncs, fns...) }
}

// WithClock overrides the engine's time source. Exists for deterministic
// cooldown tests; production callers should never need it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New constructs an Engine from cfg. Per spec §4.5, construction never fails
// for bad config and unknown options are ignored — config validation
// belongs to internal/config.Load, not here.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:           cfg,
		ledger:        policy.NewLedger(),
		bareHumanizer: humanize.New(humanize.WithRules(nil)),
		now:           time.Now,
	}
	for _, o := range opts {
		o(e)
	}

	// ── 1. Humanizer ──────────────────────────────────────────────────────
	if e.humanizer == nil {
		e.humanizer = humanize.New()
	}

	// ── 2. Metrics ────────────────────────────────────────────────────────
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}

	// ── 3. Delivery queue ─────────────────────────────────────────────────
	// Only constructed when a sink was supplied; handleFault degrades to
	// "admit but don't dispatch" otherwise (spec §7).
	if e.sink != nil {
		e.queue = queue.New(e.sink)
		e.queue.OnDeliveryError = e.onDeliveryError
	}

	// ── 4. Fault-source hooks ─────────────────────────────────────────────
	if cfg.AutoSetup && len(e.hookFuncs) > 0 {
		e.hookInstaller = hooks.NewInstaller()
		if err := e.hookInstaller.InstallAll(ctx, e, e.hookFuncs...); err != nil {
			return nil, fmt.Errorf("engine: install hooks: %w", err)
		}
	}

	return e, nil
}

// sinkReady reports whether the sink is both present and (for adapters that
// track a live backend connection) currently connected.
func (e *Engine) sinkReady() bool {
	if e.sink == nil {
		return false
	}
	if ca, ok := e.sink.(connectionAware); ok {
		return ca.Connected()
	}
	return true
}

// HandleFault classifies, humanizes, and applies policy to fault, enqueuing
// it for delivery on admission. Returns synchronously; never panics or
// returns an error to the caller (internal failures are logged).
func (e *Engine) HandleFault(fault types.Fault) {
	ctx := context.Background()

	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	classification, dropped := classify.Classify(fault, classify.Options{NormalizeKind: cfg.NormalizeKindTags})
	e.metrics.RecordFaultReceived(ctx, classification.Kind)
	if dropped {
		e.metrics.RecordDropped(ctx, "always_ignore")
		slog.Debug("fault dropped: always-ignore pattern", "fault", fault.String())
		return
	}

	text, ok := e.humanizeText(fault, classification, cfg)
	if !ok {
		e.metrics.RecordDropped(ctx, "humanize_failed")
		slog.Debug("fault dropped: humanization failed and fallback disabled", "fault", fault.String())
		return
	}

	classification.StableKey = classify.StableKeyFor(classification.Kind, text)
	e.admitAndDeliver(ctx, text, classification, cfg)
}

// humanizeText renders fault to its spoken text, applying cfg.FallbackToRaw
// if the humanizer panics. A renderer panic is the Go analogue of the
// spec's "Humanizer threw" error taxonomy entry.
func (e *Engine) humanizeText(fault types.Fault, classification types.Classification, cfg config.Config) (text string, ok bool) {
	h := e.humanizer
	if !cfg.Humanize.Enabled {
		h = e.bareHumanizer
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("humanizer panicked", "recovered", r)
			if cfg.FallbackToRaw {
				text = e.bareHumanizer.Humanize(fault, classification, humanize.Options{
					MaxMessageLength: cfg.MaxMessageLength,
				})
				ok = true
			} else {
				ok = false
			}
		}
	}()

	text = h.Humanize(fault, classification, humanize.Options{
		MaxMessageLength: cfg.MaxMessageLength,
		IncludeLocation:  cfg.Humanize.Enabled && cfg.Humanize.IncludeLocation,
	})
	ok = true
	return
}

// Speak treats text as a pre-humanized utterance, bypassing the classifier
// and humanizer entirely, but still subject to policy — spec §4.5.
func (e *Engine) Speak(text string) {
	ctx := context.Background()
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	classification := types.Classification{
		Kind:     types.KindError,
		Severity: types.SeverityNormal,
	}
	classification.StableKey = classify.StableKeyFor(classification.Kind, text)
	e.admitAndDeliver(ctx, text, classification, cfg)
}

// Test is like Speak but defaults text to a fixed smoke-test message,
// for exercising a sink end-to-end without a real fault source.
func (e *Engine) Test(text string) {
	if text == "" {
		text = defaultTestMessage
	}
	e.Speak(text)
}

// ledgerMaxAgeMultiplier is the number of cooldown periods a ledger entry
// may go untouched before Prune removes it (spec §3, supplemented feature).
const ledgerMaxAgeMultiplier = 10

// admitAndDeliver runs the policy admission check and, on admit, enqueues
// the utterance for the queue's single-consumer dispatch loop.
func (e *Engine) admitAndDeliver(ctx context.Context, text string, classification types.Classification, cfg config.Config) {
	now := e.now()
	maxAge := time.Duration(cfg.CooldownMs) * time.Millisecond * ledgerMaxAgeMultiplier
	if maxAge > 0 {
		e.ledger.Prune(now, maxAge)
	}

	utterance := types.Utterance{
		ID:             uuid.NewString(),
		Text:           text,
		Classification: classification,
		AdmittedAt:     now,
		VoiceHint:      cfg.Voice.Hint,
		Prosody: types.Prosody{
			Rate:   cfg.Voice.Rate,
			Pitch:  cfg.Voice.Pitch,
			Volume: cfg.Voice.Volume,
		},
	}

	isDuplicate := func(string) bool { return false }
	if e.queue != nil {
		isDuplicate = e.queue.HasText
	}

	admitted, reason := policy.Evaluate(e.ledger, utterance, now, cfg, isDuplicate)
	if !admitted {
		e.metrics.RecordDropped(ctx, reason)
		slog.Debug("fault dropped", "reason", reason, "text", text)
		return
	}
	e.metrics.RecordAdmitted(ctx)

	if e.queue == nil || !e.sinkReady() {
		e.metrics.RecordDropped(ctx, "sink_not_ready")
		slog.Debug("utterance dropped post-admission: sink not ready", "utterance_id", utterance.ID)
		return
	}

	e.queue.Enqueue(utterance)
}

// onDeliveryError is wired as the queue's OnDeliveryError hook — spec §7's
// "sink delivery failure: trace at warn, advance the queue as if
// successful" (the queue already advances regardless; this just records the
// metric and log line).
func (e *Engine) onDeliveryError(utterance types.Utterance, err error) {
	e.metrics.RecordSinkDelivery(context.Background(), 0, err)
	slog.Warn("sink delivery failed", "utterance_id", utterance.ID, "err", err)
}

// Enable atomically sets Config.Enabled to true. Idempotent.
func (e *Engine) Enable() {
	e.mu.Lock()
	e.cfg.Enabled = true
	e.mu.Unlock()
}

// Disable atomically sets Config.Enabled to false and cancels the queue.
// Idempotent; repeated calls always leave the queue empty.
func (e *Engine) Disable() {
	e.mu.Lock()
	e.cfg.Enabled = false
	e.mu.Unlock()

	if e.queue != nil {
		e.queue.Cancel()
	}
}

// ClearQueue cancels the queue, discarding pending and in-flight utterances,
// without touching the policy ledger.
func (e *Engine) ClearQueue() {
	if e.queue != nil {
		e.queue.Cancel()
	}
}

// UpdateConfig deep-merges partial into the current config and swaps it in
// atomically. Unknown keys are structurally impossible (see
// internal/config.PartialConfig) so they're ignored by construction.
// In-flight or already-pending utterances are not retroactively
// re-evaluated — spec §4.5.
func (e *Engine) UpdateConfig(partial config.PartialConfig) {
	e.mu.Lock()
	old := e.cfg
	merged := config.Merge(e.cfg, partial)
	e.cfg = merged
	e.mu.Unlock()

	diff := config.Diff(&old, &merged)
	slog.Info("config updated",
		"enabled_changed", diff.EnabledChanged,
		"sink_changed", diff.SinkChanged,
		"cooldown_changed", diff.CooldownChanged,
		"filters_changed", diff.FiltersChanged,
	)
}

// Status reports the engine's current operating state — spec §4.5's
// getStatus.
type Status struct {
	Enabled   bool
	SinkReady bool
	InFlight  bool
	Pending   int
	Config    config.Config
}

// GetStatus returns a snapshot of the engine's current state.
func (e *Engine) GetStatus() Status {
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	var inFlight bool
	var pending int
	if e.queue != nil {
		inFlight, pending = e.queue.Status()
	}

	return Status{
		Enabled:   cfg.Enabled,
		SinkReady: e.sinkReady(),
		InFlight:  inFlight,
		Pending:   pending,
		Config:    cfg,
	}
}

// Close detaches fault hooks and stops the delivery queue. Per spec §9, the
// engine detaches hooks before releasing the sink.
func (e *Engine) Close() {
	if e.hookInstaller != nil {
		e.hookInstaller.Uninstall()
	}
	if e.queue != nil {
		e.queue.Close()
	}
}
