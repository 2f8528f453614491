package humanize

import (
	"regexp"
	"strings"
)

var (
	// bundlerSchemeRe strips "<scheme>:///…!" prefixes left behind by bundler
	// module wrappers (e.g. "webpack-internal:///./src/App.js!").
	bundlerSchemeRe = regexp.MustCompile(`[a-zA-Z][\w+.-]*:///[^\s!]*!`)

	// dotSlashRe strips "./" path tokens.
	dotSlashRe = regexp.MustCompile(`\./`)

	// nodeModulesPathRe matches any whitespace-free token that contains
	// "node_modules", to be replaced wholesale with "dependency".
	nodeModulesPathRe = regexp.MustCompile(`\S*node_modules\S*`)

	// bracketRe collapses {}[] to spaces.
	bracketRe = regexp.MustCompile(`[{}\[\]]`)

	// punctuationRe collapses remaining non-word, non-space punctuation to
	// spaces, leaving letters, digits, and whitespace intact.
	punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

	// whitespaceRe collapses runs of whitespace (including newlines) to a
	// single space.
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// clean strips bundler-path noise, collapses punctuation, and normalizes
// whitespace. It is applied to the message whenever no pattern rule matched,
// including before a stack-derived location is appended.
func clean(s string) string {
	s = bundlerSchemeRe.ReplaceAllString(s, "")
	s = dotSlashRe.ReplaceAllString(s, "")
	s = nodeModulesPathRe.ReplaceAllString(s, "dependency")
	s = bracketRe.ReplaceAllString(s, " ")
	s = punctuationRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
