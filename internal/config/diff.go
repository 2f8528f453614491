package config

import "slices"

// ConfigDiff describes what changed between two configs. Used by the
// engine facade to log what an UpdateConfig call actually changed.
type ConfigDiff struct {
	EnabledChanged     bool
	NewEnabled         bool
	SinkChanged        bool
	NewSinkName        string
	VoiceChanged       bool
	FiltersChanged     bool
	CooldownChanged    bool
	NewCooldownMs      int64
	LogLevelChanged    bool
	NewLogLevel        LogLevel
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Enabled != new.Enabled {
		d.EnabledChanged = true
		d.NewEnabled = new.Enabled
	}
	if old.Sink.Name != new.Sink.Name {
		d.SinkChanged = true
		d.NewSinkName = new.Sink.Name
	}
	if old.Voice != new.Voice {
		d.VoiceChanged = true
	}
	if !filtersEqual(old.Filters, new.Filters) {
		d.FiltersChanged = true
	}
	if old.CooldownMs != new.CooldownMs {
		d.CooldownChanged = true
		d.NewCooldownMs = new.CooldownMs
	}
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	return d
}

func filtersEqual(a, b FiltersConfig) bool {
	return slices.Equal(a.IgnorePatterns, b.IgnorePatterns) &&
		slices.Equal(a.OnlyPatterns, b.OnlyPatterns) &&
		slices.Equal(a.ErrorKinds, b.ErrorKinds)
}
