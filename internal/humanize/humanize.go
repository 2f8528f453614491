// Package humanize rewrites a raw Fault into a short, spoken-friendly
// sentence using an ordered, extensible pattern-rule table, falling back to
// stack-derived location info and then to a generic cleaner.
//
// The pattern-rule registry (see rules.go) is the package's main
// extensibility seam: construct a [Humanizer] with [WithRules] to splice in
// additional domain-specific rules ahead of (or instead of) the built-ins.
package humanize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/echovox/echovox/pkg/types"
)

// stackFrameRe extracts a "file:line" location from the first stack frame
// that contains one, tolerating both "at fn (path:line:col)" and
// "at path:line:col" V8-style frames.
var stackFrameRe = regexp.MustCompile(`([^\s()]+):(\d+):\d+`)

// Options configures a [Humanizer] call. It deliberately carries only the
// fields the humanizer itself needs, rather than the engine's full Config,
// so this package has no dependency on internal/config.
type Options struct {
	// MaxMessageLength bounds the result in Unicode code points. Zero or
	// negative disables truncation.
	MaxMessageLength int

	// IncludeLocation appends " in <file> at line <n>" derived from
	// Fault.Stack when no pattern rule matched. Default behaviour (the
	// caller should default this to true) mirrors the spec's "default on".
	IncludeLocation bool
}

// Humanizer rewrites Faults into sentences using an ordered rule table.
// A zero-value Humanizer is not usable; construct one with [New].
type Humanizer struct {
	rules []Rule
}

// Option configures a Humanizer at construction time.
type Option func(*Humanizer)

// WithRules replaces the rule table entirely. Use append(DefaultRules(),
// extra...) to add rules after the built-ins, or prepend to take priority
// over them.
func WithRules(rules []Rule) Option {
	return func(h *Humanizer) { h.rules = rules }
}

// New creates a Humanizer with the built-in rule table (see [DefaultRules]),
// overridable via [Option] values.
func New(opts ...Option) *Humanizer {
	h := &Humanizer{rules: DefaultRules()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Humanize produces a short sentence for fault given its classification.
// It returns only a string, matching the spec's contract of
// "humanize(fault, classification, config) → string"; a renderer panic is
// not recovered here but by the caller (see internal/engine, which applies
// Config.FallbackToRaw around this call).
func (h *Humanizer) Humanize(fault types.Fault, classification types.Classification, opts Options) string {
	message := fault.Message
	if message == "" {
		message = fault.String()
	}

	for _, rule := range h.rules {
		if ok, groups := rule.matches(message, classification.Kind); ok {
			return truncate(rule.Render(groups), opts.MaxMessageLength)
		}
	}

	if opts.IncludeLocation && fault.Stack != "" {
		if loc, ok := topFrameLocation(fault.Stack); ok {
			return truncate(fmt.Sprintf("%s in %s at line %s", clean(message), loc.file, loc.line), opts.MaxMessageLength)
		}
	}

	return truncate(clean(message), opts.MaxMessageLength)
}

type location struct {
	file string
	line string
}

// topFrameLocation extracts the basename and line number of the first stack
// frame that carries a recognisable "path:line:col" suffix.
func topFrameLocation(stack string) (location, bool) {
	m := stackFrameRe.FindStringSubmatch(stack)
	if m == nil {
		return location{}, false
	}
	path := m[1]
	line := m[2]

	base := path
	if idx := strings.LastIndexAny(base, "/\\"); idx >= 0 {
		base = base[idx+1:]
	}
	return location{file: base, line: line}, true
}

// truncate bounds s to maxLen code points, appending "..." within the budget
// when truncation occurs. maxLen <= 0 disables truncation.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	const ellipsis = "..."
	if maxLen <= utf8.RuneCountInString(ellipsis) {
		// Budget too small even for the ellipsis alone — hard-truncate with
		// no ellipsis rather than exceed the budget.
		runes := []rune(s)
		return string(runes[:maxLen])
	}
	runes := []rune(s)
	return string(runes[:maxLen-utf8.RuneCountInString(ellipsis)]) + ellipsis
}
