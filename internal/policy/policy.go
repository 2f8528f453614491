// Package policy decides admit/drop for a candidate utterance given
// cooldown, filter, and frequency state — spec §4.3.
package policy

import (
	"strings"
	"time"

	"github.com/echovox/echovox/internal/config"
	"github.com/echovox/echovox/pkg/types"
)

// maxCooldownMultiplier is the saturation point for the per-key escalating
// cooldown: effective cooldown grows with repetition up to this multiple of
// the base cooldown.
const maxCooldownMultiplier = 5

// IsDuplicate reports whether text is already present among pending
// utterances. The engine facade supplies this by closing over the queue's
// current contents, keeping policy decoupled from the queue's storage.
type IsDuplicate func(text string) bool

// Drop reasons returned by [Evaluate], named to match the "reason" attribute
// on the echovox.utterances.dropped metric.
const (
	ReasonDisabled       = "disabled"
	ReasonDuplicate      = "duplicate"
	ReasonGlobalCooldown = "global_cooldown"
	ReasonKeyCooldown    = "key_cooldown"
	ReasonIgnoreFilter   = "ignore_filter"
	ReasonKindFilter     = "kind_filter"
	ReasonAllowlist      = "allowlist"
)

// Admit implements the spec's ordered admission checks. Any failure returns
// false without mutating ledger. On true, it atomically records the
// admission in ledger.
func Admit(ledger *Ledger, utterance types.Utterance, now time.Time, cfg config.Config, isDuplicate IsDuplicate) bool {
	admitted, _ := Evaluate(ledger, utterance, now, cfg, isDuplicate)
	return admitted
}

// Evaluate runs the same ordered admission checks as [Admit] but additionally
// reports why a candidate was dropped, for callers (the engine facade's
// metrics) that want to attribute drops by reason. reason is empty when
// admitted is true.
func Evaluate(ledger *Ledger, utterance types.Utterance, now time.Time, cfg config.Config, isDuplicate IsDuplicate) (admitted bool, reason string) {
	// 1. config.enabled must be true.
	if !cfg.Enabled {
		return false, ReasonDisabled
	}

	// 2. Textual dedup against pending utterances.
	if isDuplicate != nil && isDuplicate(utterance.Text) {
		return false, ReasonDuplicate
	}

	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	// 3. Global cooldown.
	if ledger.hasGlobal {
		if now.Sub(ledger.globalLastAdmittedAt) < time.Duration(cfg.CooldownMs)*time.Millisecond {
			return false, ReasonGlobalCooldown
		}
	}

	key := utterance.Classification.StableKey

	// 4. Per-key escalating cooldown.
	n := ledger.admitCount(key)
	multiplier := n
	if multiplier > maxCooldownMultiplier {
		multiplier = maxCooldownMultiplier
	}
	effective := time.Duration(cfg.CooldownMs) * time.Millisecond * time.Duration(multiplier)
	if n > 0 && now.Sub(ledger.lastAdmittedAt(key)) < effective {
		return false, ReasonKeyCooldown
	}

	// 5. Ignore filter.
	if matchesAnyFold(utterance.Text, cfg.Filters.IgnorePatterns) {
		return false, ReasonIgnoreFilter
	}

	// 6. Kind filter.
	if len(cfg.Filters.ErrorKinds) > 0 && !containsFold(cfg.Filters.ErrorKinds, utterance.Classification.Kind) {
		return false, ReasonKindFilter
	}

	// 7. Allowlist.
	if len(cfg.Filters.OnlyPatterns) > 0 && !matchesAnyFold(utterance.Text, cfg.Filters.OnlyPatterns) {
		return false, ReasonAllowlist
	}

	ledger.recordAdmit(key, now)
	return true, ""
}

func matchesAnyFold(text string, patterns []string) bool {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
