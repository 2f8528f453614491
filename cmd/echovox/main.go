// Command echovox is the CLI entry point for the fault-narration engine. It
// loads a YAML config, wires a sink adapter, and either fires a single
// synthetic test utterance or reads newline-delimited JSON faults from
// stdin — the smoke-test harness named by SPEC_FULL.md's supplemented
// features, adapted from the teacher's flag/signal/logger wiring.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/echovox/echovox/internal/config"
	"github.com/echovox/echovox/internal/engine"
	"github.com/echovox/echovox/internal/health"
	"github.com/echovox/echovox/internal/observe"
	"github.com/echovox/echovox/internal/resilience"
	"github.com/echovox/echovox/pkg/sink"
	"github.com/echovox/echovox/pkg/sink/browser"
	"github.com/echovox/echovox/pkg/sink/mock"
	"github.com/echovox/echovox/pkg/sink/oscmd"
	"github.com/echovox/echovox/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	test := flag.Bool("test", false, "fire a single synthetic test utterance through the sink and exit")
	watchConfig := flag.Bool("watch-config", false, "poll the config file for changes and apply them live")
	fallbackSinks := flag.String("fallback-sink", "", "comma-separated sink names tried in order when the primary sink (config.sink.name) fails, e.g. \"oscmd\"")
	flag.Parse()

	// ── Load configuration ───────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "echovox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "echovox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("echovox starting",
		"config", *configPath,
		"sink", cfg.Sink.Name,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "echovox"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Sink registry ─────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinSinks(reg)

	primary, err := reg.CreateSink(cfg.Sink)
	if err != nil {
		slog.Error("failed to create sink", "name", cfg.Sink.Name, "err", err)
		return 1
	}

	rawSinks := []sink.Sink{primary}
	s := primary
	if *fallbackSinks != "" {
		names := strings.Split(*fallbackSinks, ",")
		group := resilience.NewFallbackSink(primary, cfg.Sink.Name, resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{},
		})
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			fb, err := reg.CreateSink(config.SinkConfig{Name: name})
			if err != nil {
				slog.Error("failed to create fallback sink", "name", name, "err", err)
				return 1
			}
			group.AddFallback(name, fb)
			rawSinks = append(rawSinks, fb)
		}
		s = group
		slog.Info("fallback sink chain configured", "primary", cfg.Sink.Name, "fallbacks", *fallbackSinks)
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	eng, err := engine.New(ctx, *cfg, engine.WithSink(s))
	if err != nil {
		slog.Error("failed to construct engine", "err", err)
		return 1
	}
	defer eng.Close()

	// ── Config hot-reload ─────────────────────────────────────────────────────
	if *watchConfig {
		watcher, err := config.NewWatcher(*configPath, func(old, newCfg *config.Config) {
			partial := config.PartialConfig{
				Enabled:       &newCfg.Enabled,
				CooldownMs:    &newCfg.CooldownMs,
				Humanize:      &newCfg.Humanize,
				FallbackToRaw: &newCfg.FallbackToRaw,
				Filters:       &newCfg.Filters,
			}
			eng.UpdateConfig(partial)
		})
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer watcher.Stop()
		slog.Info("watching config file for changes", "path", *configPath)
	}

	// ── HTTP server (health/ready/metrics, and the browser sink's websocket) ──
	if cfg.Server.ListenAddr != "" {
		srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: buildMux(rawSinks)}
		go func() {
			slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if *test {
		eng.Test("")
		slog.Info("test utterance sent — waiting briefly for delivery")
		time.Sleep(2 * time.Second)
		return 0
	}

	slog.Info("reading newline-delimited JSON faults from stdin — Ctrl+C to stop")
	go readFaultsFromStdin(ctx, eng)

	<-ctx.Done()
	slog.Info("shutdown signal received, goodbye")
	return 0
}

// ── Sink registry ───────────────────────────────────────────────────────────

// registerBuiltinSinks registers the three sink adapters this codebase ships
// under the names [config.ValidSinkNames] lists.
func registerBuiltinSinks(reg *config.Registry) {
	reg.RegisterSink("mock", func(config.SinkConfig) (sink.Sink, error) {
		return mock.NewAutoComplete(), nil
	})
	reg.RegisterSink("browser", func(config.SinkConfig) (sink.Sink, error) {
		return browser.New(), nil
	})
	reg.RegisterSink("oscmd", func(config.SinkConfig) (sink.Sink, error) {
		return oscmd.New()
	})
}

// ── Stdin fault reader ──────────────────────────────────────────────────────

// stdinFault is the JSON-line shape accepted on stdin, mirroring
// [types.Fault]'s exported fields.
type stdinFault struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Stack   string `json:"stack"`
}

func readFaultsFromStdin(ctx context.Context, eng *engine.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		var sf stdinFault
		if err := json.Unmarshal([]byte(line), &sf); err != nil {
			slog.Warn("stdin: malformed fault line", "err", err)
			continue
		}
		eng.HandleFault(types.Fault{Message: sf.Message, Kind: sf.Kind, Stack: sf.Stack})
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		slog.Warn("stdin: read error", "err", err)
	}
}

// ── HTTP endpoints ───────────────────────────────────────────────────────────

// buildMux wires /healthz, /readyz, /metrics, and (for the browser sink
// only) the websocket endpoint the browser page connects to. rawSinks holds
// the unwrapped adapters actually in use — when the engine's sink is a
// [resilience.FallbackSink] composite, neither the Connected() health probe
// nor the browser websocket handler can be reached through the composite
// directly, so both are looked up in rawSinks instead.
func buildMux(rawSinks []sink.Sink) *http.ServeMux {
	mux := http.NewServeMux()

	var checkers []health.Checker
	for _, rs := range rawSinks {
		if c, ok := rs.(interface{ Connected() bool }); ok {
			checkers = append(checkers, health.SinkChecker("sink", c))
			break
		}
	}
	healthHandler := health.New(checkers...)
	healthHandler.Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	for _, rs := range rawSinks {
		if bs, ok := rs.(*browser.Sink); ok {
			mux.Handle("/echovox/ws", bs.Handler())
			break
		}
	}

	return mux
}

// ── Logger ───────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogLevelDebug:
		lvl = slog.LevelDebug
	case config.LogLevelWarn:
		lvl = slog.LevelWarn
	case config.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
