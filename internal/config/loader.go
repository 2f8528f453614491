package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ValidSinkNames lists the sink adapters this codebase ships. Used by
// [Validate] to warn about unrecognised sink names.
var ValidSinkNames = []string{"browser", "oscmd", "mock"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields with the engine's documented
// defaults, mirroring the spec's "construction never fails for bad config"
// guarantee — a config with nothing set still produces a usable engine.
func applyDefaults(cfg *Config) {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 200
	}
	if cfg.CooldownMs == 0 {
		cfg.CooldownMs = 3000
	}
	if cfg.Voice.Rate == 0 {
		cfg.Voice.Rate = 1.0
	}
	if cfg.Voice.Pitch == 0 {
		cfg.Voice.Pitch = 1.0
	}
	if cfg.Voice.Volume == 0 {
		cfg.Voice.Volume = 1.0
	}
	if cfg.Sink.Name == "" {
		cfg.Sink.Name = "mock"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogLevelInfo
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.MaxMessageLength < 0 {
		errs = append(errs, fmt.Errorf("max_message_length %d must not be negative", cfg.MaxMessageLength))
	}
	if cfg.CooldownMs < 0 {
		errs = append(errs, fmt.Errorf("cooldown_ms %d must not be negative", cfg.CooldownMs))
	}
	if cfg.Voice.Volume < 0 || cfg.Voice.Volume > 1 {
		errs = append(errs, fmt.Errorf("voice.volume %.2f is out of range [0, 1]", cfg.Voice.Volume))
	}

	validateSinkName(cfg.Sink.Name)

	return errors.Join(errs...)
}

// validateSinkName logs a warning if name is non-empty and not found in
// [ValidSinkNames].
func validateSinkName(name string) {
	if name == "" {
		return
	}
	for _, known := range ValidSinkNames {
		if known == name {
			return
		}
	}
	slog.Warn("unknown sink name — may be a typo or third-party adapter",
		"name", name,
		"known", ValidSinkNames,
	)
}
