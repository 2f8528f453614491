// Package config provides the configuration schema, loader, and sink
// registry for the echovox fault-narration engine.
package config

// Config is the root configuration structure for echovox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`

	// Enabled gates whether Policy ever admits an utterance. See the
	// engine facade's Enable/Disable operations.
	Enabled bool `yaml:"enabled"`

	Sink             SinkConfig      `yaml:"sink"`
	Voice            VoiceConfig     `yaml:"voice"`
	MaxMessageLength int             `yaml:"max_message_length"`
	CooldownMs       int64           `yaml:"cooldown_ms"`
	Humanize         HumanizeConfig  `yaml:"humanize"`
	FallbackToRaw    bool            `yaml:"fallback_to_raw"`
	Filters          FiltersConfig   `yaml:"filters"`
	Debug            bool            `yaml:"debug"`

	// AutoSetup installs the host fault hooks (throw/rejection/uncaught) at
	// construction time when true.
	AutoSetup bool `yaml:"auto_setup"`

	// NormalizeKindTags opts into fuzzy-matching a host-reported kind tag
	// against the known kind vocabulary (e.g. "ReferenceErr" ->
	// "ReferenceError") before it reaches severity classification and the
	// kind filter. Off by default: per spec §4.1, unknown tags are
	// preserved verbatim, and the kind filter and severity rules match on
	// exact kind membership.
	NormalizeKindTags bool `yaml:"normalize_kind_tags"`
}

// ServerConfig holds logging and metrics/health listen settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the metrics/health HTTP server listens
	// on (e.g., ":9090"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a validated slog level name.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised level names.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// SinkConfig selects and configures the sink adapter used to deliver
// utterances. Name is looked up in a [Registry].
type SinkConfig struct {
	// Name selects the registered sink implementation (e.g., "browser", "oscmd", "mock").
	Name string `yaml:"name"`

	// Options holds adapter-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// VoiceConfig specifies the default speech parameters applied to utterances
// that don't carry their own hint.
type VoiceConfig struct {
	// Hint names a preferred voice or language tag. Advisory — sinks are
	// free to ignore it or substitute the closest match.
	Hint string `yaml:"hint"`

	// Rate is the speaking rate multiplier (1.0 = default).
	Rate float64 `yaml:"rate"`

	// Pitch is the pitch multiplier (1.0 = default).
	Pitch float64 `yaml:"pitch"`

	// Volume is in [0, 1].
	Volume float64 `yaml:"volume"`
}

// HumanizeConfig controls the humanizer stage.
type HumanizeConfig struct {
	// Enabled runs the fault through the humanizer's pattern rules. When
	// false, only truncation and the cleaned raw message are used (no
	// pattern rules, no appended location).
	Enabled bool `yaml:"enabled"`

	// IncludeLocation appends stack-derived file/line info when no pattern
	// rule matched.
	IncludeLocation bool `yaml:"include_location"`
}

// FiltersConfig controls Policy's filter checks (spec §4.3 steps 5-7).
type FiltersConfig struct {
	// IgnorePatterns: any case-insensitive substring match drops the utterance.
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// OnlyPatterns, if non-empty, requires at least one case-insensitive
	// substring match; otherwise the utterance is dropped.
	OnlyPatterns []string `yaml:"only_patterns"`

	// ErrorKinds, if non-empty, requires the utterance's kind to be a member.
	ErrorKinds []string `yaml:"error_kinds"`
}
