package config

// PartialConfig is the input to [Merge]: every field is a pointer, and only
// non-nil fields are applied. This is how the engine facade's UpdateConfig
// operation satisfies "unknown keys ignored" and "deep-merge" without a
// map[string]any option bag — a field simply absent from the partial leaves
// the base value untouched.
type PartialConfig struct {
	Enabled           *bool
	Sink              *SinkConfig
	Voice             *VoiceConfig
	MaxMessageLength  *int
	CooldownMs        *int64
	Humanize          *HumanizeConfig
	FallbackToRaw     *bool
	Filters           *FiltersConfig
	Debug             *bool
	AutoSetup         *bool
	NormalizeKindTags *bool
}

// Merge deep-merges partial onto base and returns the result, leaving base
// unmodified. Server settings are deliberately not mergeable via
// PartialConfig — they're process-lifetime settings applied only at
// construction; a config file reload does not change them.
func Merge(base Config, partial PartialConfig) Config {
	merged := base

	if partial.Enabled != nil {
		merged.Enabled = *partial.Enabled
	}
	if partial.Sink != nil {
		merged.Sink = *partial.Sink
	}
	if partial.Voice != nil {
		merged.Voice = *partial.Voice
	}
	if partial.MaxMessageLength != nil {
		merged.MaxMessageLength = *partial.MaxMessageLength
	}
	if partial.CooldownMs != nil {
		merged.CooldownMs = *partial.CooldownMs
	}
	if partial.Humanize != nil {
		merged.Humanize = *partial.Humanize
	}
	if partial.FallbackToRaw != nil {
		merged.FallbackToRaw = *partial.FallbackToRaw
	}
	if partial.Filters != nil {
		merged.Filters = *partial.Filters
	}
	if partial.Debug != nil {
		merged.Debug = *partial.Debug
	}
	if partial.AutoSetup != nil {
		merged.AutoSetup = *partial.AutoSetup
	}
	if partial.NormalizeKindTags != nil {
		merged.NormalizeKindTags = *partial.NormalizeKindTags
	}

	return merged
}
