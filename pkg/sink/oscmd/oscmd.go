// Package oscmd implements a sink.Sink that shells out to the host
// operating system's command-line speech synthesizer. It is one of the two
// companion sink adapters named by the spec as "expected companion
// deliverables" — useful for smoke-testing and headless CLI use where no
// browser tab is available.
package oscmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/echovox/echovox/pkg/sink"
	"github.com/echovox/echovox/pkg/types"
)

// platform abstracts the OS-specific command lines so Sink itself stays
// platform-agnostic.
type platform interface {
	speakCmd(ctx context.Context, text, voiceHint string, prosody types.Prosody) *exec.Cmd
	listVoicesCmd(ctx context.Context) *exec.Cmd
	parseVoices(output string) []string
}

// New returns a Sink using the command-line synthesizer appropriate for
// runtime.GOOS: "say" on darwin, "espeak" on linux, PowerShell's SAPI on
// windows. Returns an error if no known synthesizer is available for GOOS.
func New() (*Sink, error) {
	p, err := platformFor(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	return &Sink{platform: p}, nil
}

func platformFor(goos string) (platform, error) {
	switch goos {
	case "darwin":
		return macOSPlatform{}, nil
	case "linux":
		return linuxPlatform{}, nil
	case "windows":
		return windowsPlatform{}, nil
	default:
		return nil, fmt.Errorf("oscmd: unsupported GOOS %q", goos)
	}
}

// Sink implements sink.Sink by running the platform's speech command as a
// subprocess, one at a time.
type Sink struct {
	platform platform

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Deliver runs the platform speech command for text. onComplete fires when
// the subprocess exits (success or failure).
func (s *Sink) Deliver(text, voiceHint string, prosody types.Prosody, onComplete sink.CompletionFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	cmd := s.platform.speakCmd(ctx, text, voiceHint, prosody)

	go func() {
		err := cmd.Run()

		s.mu.Lock()
		if s.cancel != nil {
			s.cancel = nil
		}
		s.mu.Unlock()

		if ctx.Err() != nil {
			// Cancelled — the queue already discarded this completion.
			return
		}
		if err != nil {
			err = fmt.Errorf("oscmd: speak command: %w", err)
		}
		if onComplete != nil {
			onComplete(err)
		}
	}()
}

// Cancel kills the in-flight speech subprocess, if any.
func (s *Sink) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// ListVoices runs the platform's voice-listing command and parses its
// output. Returns nil on any error — voice listing is advisory.
func (s *Sink) ListVoices() []string {
	cmd := s.platform.listVoicesCmd(context.Background())
	if cmd == nil {
		return nil
	}
	out, err := cmd.Output()
	if err != nil {
		slog.Warn("oscmd: list voices failed", "err", err)
		return nil
	}
	return s.platform.parseVoices(string(out))
}

var _ sink.Sink = (*Sink)(nil)

// ---- darwin: `say` ----

type macOSPlatform struct{}

func (macOSPlatform) speakCmd(ctx context.Context, text, voiceHint string, prosody types.Prosody) *exec.Cmd {
	args := []string{}
	if voiceHint != "" {
		args = append(args, "-v", voiceHint)
	}
	if prosody.Rate > 0 {
		// `say -r` takes words per minute; 175 wpm is the macOS default at rate 1.0.
		wpm := int(175 * prosody.Rate)
		args = append(args, "-r", strconv.Itoa(wpm))
	}
	args = append(args, text)
	return exec.CommandContext(ctx, "say", args...)
}

func (macOSPlatform) listVoicesCmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, "say", "-v", "?")
}

func (macOSPlatform) parseVoices(output string) []string {
	var voices []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			voices = append(voices, fields[0])
		}
	}
	return voices
}

// ---- linux: `espeak` ----

type linuxPlatform struct{}

func (linuxPlatform) speakCmd(ctx context.Context, text, voiceHint string, prosody types.Prosody) *exec.Cmd {
	args := []string{}
	if voiceHint != "" {
		args = append(args, "-v", voiceHint)
	}
	if prosody.Rate > 0 {
		// espeak -s takes words per minute; 175 wpm is its approximate default.
		wpm := int(175 * prosody.Rate)
		args = append(args, "-s", strconv.Itoa(wpm))
	}
	if prosody.Pitch > 0 {
		// espeak -p takes 0-99; map the 1.0-centered multiplier onto that range.
		pitch := int(50 * prosody.Pitch)
		args = append(args, "-p", strconv.Itoa(pitch))
	}
	args = append(args, text)
	return exec.CommandContext(ctx, "espeak", args...)
}

func (linuxPlatform) listVoicesCmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, "espeak", "--voices")
}

func (linuxPlatform) parseVoices(output string) []string {
	var voices []string
	lines := strings.Split(output, "\n")
	for _, line := range lines[1:] { // skip header row
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}
	return voices
}

// ---- windows: PowerShell SAPI ----

type windowsPlatform struct{}

func (windowsPlatform) speakCmd(ctx context.Context, text, voiceHint string, prosody types.Prosody) *exec.Cmd {
	script := fmt.Sprintf(
		`Add-Type -AssemblyName System.Speech; $s = New-Object System.Speech.Synthesis.SpeechSynthesizer; $s.Rate = %d; $s.Speak('%s')`,
		sapiRate(prosody.Rate), strings.ReplaceAll(text, "'", "''"),
	)
	return exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
}

func (windowsPlatform) listVoicesCmd(ctx context.Context) *exec.Cmd {
	script := `Add-Type -AssemblyName System.Speech; $s = New-Object System.Speech.Synthesis.SpeechSynthesizer; $s.GetInstalledVoices() | ForEach-Object { $_.VoiceInfo.Name }`
	return exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
}

func (windowsPlatform) parseVoices(output string) []string {
	var voices []string
	for _, line := range strings.Split(output, "\n") {
		if v := strings.TrimSpace(line); v != "" {
			voices = append(voices, v)
		}
	}
	return voices
}

// sapiRate maps the 1.0-centered rate multiplier onto SAPI's -10..10 scale.
func sapiRate(rate float64) int {
	if rate <= 0 {
		rate = 1.0
	}
	r := int((rate - 1.0) * 10)
	if r < -10 {
		r = -10
	}
	if r > 10 {
		r = 10
	}
	return r
}
