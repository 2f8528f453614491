package humanize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/echovox/echovox/pkg/types"
)

// Matcher decides whether a rule applies to a raw fault message and extracts
// any capture groups the renderer needs.
type Matcher interface {
	// Match reports whether s satisfies the matcher. When it does, groups[0]
	// is the full matched text and groups[1:] are capture groups (empty for
	// matchers that don't capture).
	Match(s string) (ok bool, groups []string)
}

// regexMatcher matches via a compiled regular expression.
type regexMatcher struct{ re *regexp.Regexp }

func (m regexMatcher) Match(s string) (bool, []string) {
	groups := m.re.FindStringSubmatch(s)
	if groups == nil {
		return false, nil
	}
	return true, groups
}

// MatchRegex builds a Matcher from a regular expression pattern. Panics on an
// invalid pattern — intended for use with compile-time-known patterns in
// DefaultRules or caller-supplied static rules, never with user input.
func MatchRegex(pattern string) Matcher {
	return regexMatcher{re: regexp.MustCompile(pattern)}
}

// substringMatcher matches via a case-insensitive substring test.
type substringMatcher struct{ needle string }

func (m substringMatcher) Match(s string) (bool, []string) {
	if strings.Contains(strings.ToLower(s), strings.ToLower(m.needle)) {
		return true, []string{s}
	}
	return false, nil
}

// MatchSubstring builds a Matcher that tests for a case-insensitive substring.
func MatchSubstring(needle string) Matcher {
	return substringMatcher{needle: needle}
}

// Rule is one entry in the humanizer's pattern-rule registry: a matcher and/or
// a bound fault kind, paired with a renderer that turns a match into a
// sentence.
//
// Matching semantics (spec: "the first rule whose matcher applies against the
// message, or whose bound kind equals the fault's kind, wins"):
//
//   - Matcher set, Kind unset: matches when the matcher matches the message.
//   - Kind set, Matcher unset: matches when the fault's kind equals Kind —
//     a catch-all for that kind, regardless of message content.
//   - Both set: matches only when both the matcher and the kind agree — used
//     for patterns that are only meaningful for a specific kind (e.g. "X is
//     not defined" is only rendered as a reference error for ReferenceError
//     faults).
type Rule struct {
	Matcher Matcher
	Kind    types.FaultKind
	Render  func(groups []string) string
}

func (r Rule) matches(message string, kind types.FaultKind) (bool, []string) {
	var matcherOK bool
	var groups []string
	if r.Matcher != nil {
		matcherOK, groups = r.Matcher.Match(message)
	}
	kindOK := r.Kind != "" && r.Kind == kind

	switch {
	case r.Matcher != nil && r.Kind != "":
		return matcherOK && kindOK, groups
	case r.Matcher != nil:
		return matcherOK, groups
	case r.Kind != "":
		return kindOK, nil
	default:
		return false, nil
	}
}

// DefaultRules returns the built-in pattern rule set, in priority order. It
// returns a fresh slice on every call so callers are free to splice
// additional rules in without mutating a shared default.
func DefaultRules() []Rule {
	return []Rule{
		{
			Matcher: MatchRegex(`([\w.$\[\]]+)\s+is not a function`),
			Render: func(g []string) string {
				return fmt.Sprintf("%s is not a function. Check if it's properly imported or defined.", g[1])
			},
		},
		{
			// Legacy V8 form: Cannot read property 'P' of O
			Matcher: MatchRegex(`Cannot read property '([^']+)' of (\S+)`),
			Render: func(g []string) string {
				return fmt.Sprintf("Cannot read property %s. The %s might be null or undefined.", g[1], g[2])
			},
		},
		{
			// Modern V8 form: Cannot read properties of O (reading 'P')
			Matcher: MatchRegex(`Cannot read propert(?:y|ies) of (\S+) \(reading '([^']+)'\)`),
			Render: func(g []string) string {
				return fmt.Sprintf("Cannot read property %s of %s. Check if the object exists.", g[2], g[1])
			},
		},
		{
			Matcher: MatchRegex(`Unexpected token (\S+) in JSON at position (\d+)`),
			Render: func(g []string) string {
				return fmt.Sprintf("JSON syntax error at position %s. Unexpected %s.", g[2], g[1])
			},
		},
		{
			Matcher: MatchRegex(`Unexpected token (\S+)`),
			Render: func(g []string) string {
				return fmt.Sprintf("Syntax error: unexpected %s. Check for missing brackets, commas, or quotes.", g[1])
			},
		},
		{
			Matcher: MatchSubstring("Module not found"),
			Render: func(g []string) string {
				return "Module not found. Check your import path and make sure the package is installed."
			},
		},
		{
			Matcher: MatchSubstring("Failed to fetch"),
			Render: func(g []string) string {
				return "Network error: Failed to fetch data. Check your internet connection or API endpoint."
			},
		},
		{
			Matcher: MatchSubstring("Objects are not valid as a React child"),
			Render: func(g []string) string {
				return "React error: Cannot render an object directly. Use JSON.stringify or render object properties individually."
			},
		},
		{
			Matcher: MatchSubstring("Invalid hook call"),
			Render: func(g []string) string {
				return "React hook error: Hooks can only be called at the top level of function components."
			},
		},
		{
			Matcher: MatchSubstring("Assignment to constant variable"),
			Render: func(g []string) string {
				return "Cannot reassign a constant variable. Use let or var for variables that need to change."
			},
		},
		{
			Matcher: MatchRegex(`(\S+) is not defined`),
			Kind:    types.KindReferenceError,
			Render: func(g []string) string {
				return fmt.Sprintf("Reference error: %s is not defined. Check spelling and scope.", g[1])
			},
		},
		{
			Kind: types.KindTypeError,
			Render: func(g []string) string {
				return "Type error: Operation performed on wrong data type. Check your variable types."
			},
		},
		{
			Kind: types.KindRangeError,
			Render: func(g []string) string {
				return "Range error: Value is outside the allowed range."
			},
		},
	}
}
