// Package classify maps a raw Fault to a (kind, severity) pair and computes
// the stable per-utterance rate-limiting key once the final humanized text
// is known. It is pure: given the same fault, config, and humanized text it
// always produces the same result.
package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/echovox/echovox/pkg/types"
)

// AlwaysIgnorePatterns are case-insensitive substrings that cause an
// unconditional drop regardless of config, before humanization ever runs.
// They are still classified with [types.SeverityWarning] so severity-aware
// consumers can observe that a (suppressed) fault occurred.
var AlwaysIgnorePatterns = []string{
	"ResizeObserver loop limit exceeded",
	"Non-Error promise rejection captured with value",
	"Loading chunk",
	"ChunkLoadError",
}

// criticalSubstrings trigger critical severity regardless of kind.
var criticalSubstrings = []string{
	"module not found",
	"failed to fetch",
}

// knownKinds is the vocabulary used for fuzzy kind normalization.
var knownKinds = []types.FaultKind{
	types.KindTypeError,
	types.KindReferenceError,
	types.KindSyntaxError,
	types.KindRangeError,
	types.KindModuleError,
	types.KindError,
}

// kindFuzzyThreshold is the minimum Jaro-Winkler similarity required to
// normalize a host-reported kind tag (e.g. "typeerror", "TypeErr") to its
// canonical spelling. Below this threshold the tag is preserved verbatim,
// per the spec's "unknown tags are preserved verbatim."
const kindFuzzyThreshold = 0.92

// Options configures Classify. Like humanize.Options, it carries only the
// fields this package needs rather than the engine's whole Config.
type Options struct {
	// NormalizeKind enables fuzzy kind-tag normalization against the known
	// kind vocabulary. Off by default: per spec §4.1, unknown kind tags are
	// preserved verbatim and severity/kind-filter checks match on exact
	// kind membership. Engine wiring surfaces this as
	// Config.NormalizeKindTags, opt-in.
	NormalizeKind bool
}

// Classify assigns a kind and severity to fault. The returned
// Classification.StableKey is left empty — compute it once the final
// humanized text is known via [StableKeyFor]. dropped is true when fault
// matches an always-ignore pattern and must never reach the Humanizer.
func Classify(fault types.Fault, opts Options) (classification types.Classification, dropped bool) {
	message := fault.Message
	if message == "" {
		message = fault.String()
	}

	kind := fault.Kind
	if kind == "" {
		kind = types.KindError
	} else if opts.NormalizeKind {
		kind = normalizeKind(kind)
	}

	if matchesAny(message, AlwaysIgnorePatterns) {
		return types.Classification{Kind: kind, Severity: types.SeverityWarning}, true
	}

	severity := types.SeverityNormal
	switch {
	case kind == types.KindReferenceError || kind == types.KindSyntaxError:
		severity = types.SeverityCritical
	case matchesAny(message, criticalSubstrings):
		severity = types.SeverityCritical
	}

	return types.Classification{Kind: kind, Severity: severity}, false
}

// StableKeyFor computes the deterministic rate-limiting key from the final
// humanized text and kind. Sharing a StableKey across faults that humanize
// to the same sentence — even from different raw messages — keeps per-error
// rate-limiting in sync with what the user actually hears.
func StableKeyFor(kind types.FaultKind, humanizedText string) string {
	sum := sha256.Sum256([]byte(kind + "\x00" + humanizedText))
	return hex.EncodeToString(sum[:])[:16]
}

func matchesAny(message string, patterns []string) bool {
	lower := strings.ToLower(message)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// normalizeKind fuzzy-matches kind against the known kind vocabulary using
// Jaro-Winkler similarity, the same algorithm (and library) the transcript
// pipeline uses to correct misheard entity names. A host that reports
// "typeerror" or "TypeErr" is normalized to "TypeError"; anything below
// threshold is returned unchanged so genuinely novel kinds survive intact.
func normalizeKind(kind types.FaultKind) types.FaultKind {
	best := kind
	bestScore := 0.0
	lower := strings.ToLower(kind)
	for _, known := range knownKinds {
		score := matchr.JaroWinkler(lower, strings.ToLower(known), false)
		if score > bestScore {
			bestScore = score
			best = known
		}
	}
	if bestScore >= kindFuzzyThreshold {
		return best
	}
	return kind
}
