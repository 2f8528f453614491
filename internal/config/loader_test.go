package config_test

import (
	"strings"
	"testing"

	"github.com/echovox/echovox/internal/config"
)

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{LogLevel: "verbose"}}
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestValidateRejectsNegativeCooldown(t *testing.T) {
	cfg := &config.Config{CooldownMs: -1}
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected error for negative cooldown_ms")
	}
}

func TestValidateRejectsVolumeOutOfRange(t *testing.T) {
	cfg := &config.Config{Voice: config.VoiceConfig{Volume: 1.5}}
	if err := config.Validate(cfg); err == nil {
		t.Fatal("expected error for out-of-range volume")
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := config.Load("/nonexistent/path/to/echovox.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromReaderPropagatesDecodeError(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("enabled: [this is not a bool\n"))
	if err == nil {
		t.Fatal("expected decode error")
	}
}
