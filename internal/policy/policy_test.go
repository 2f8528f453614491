package policy

import (
	"testing"
	"time"

	"github.com/echovox/echovox/internal/config"
	"github.com/echovox/echovox/pkg/types"
)

func baseConfig() config.Config {
	return config.Config{Enabled: true, CooldownMs: 5000}
}

func utteranceWithKey(key, text string) types.Utterance {
	return types.Utterance{Text: text, Classification: types.Classification{StableKey: key}}
}

func noDuplicates(string) bool { return false }

func TestAdmitRequiresEnabled(t *testing.T) {
	ledger := NewLedger()
	cfg := baseConfig()
	cfg.Enabled = false
	if Admit(ledger, utteranceWithKey("k", "x"), time.Unix(0, 0), cfg, noDuplicates) {
		t.Fatal("expected drop when disabled")
	}
}

func TestAdmitRejectsQueueDuplicate(t *testing.T) {
	ledger := NewLedger()
	cfg := baseConfig()
	isDup := func(text string) bool { return text == "dup" }
	if Admit(ledger, utteranceWithKey("k", "dup"), time.Unix(0, 0), cfg, isDup) {
		t.Fatal("expected drop for queue-pending duplicate text")
	}
}

func TestGlobalCooldownScenario(t *testing.T) {
	// spec §8 scenario 2, cooldownMs=5000.
	ledger := NewLedger()
	cfg := baseConfig()
	t0 := time.Unix(0, 0)

	if !Admit(ledger, utteranceWithKey("a", "fault A"), t0, cfg, noDuplicates) {
		t.Fatal("expected fault A admitted at t=0")
	}

	t100 := t0.Add(100 * time.Millisecond)
	if Admit(ledger, utteranceWithKey("b", "fault B"), t100, cfg, noDuplicates) {
		t.Fatal("expected fault B dropped at t=100 due to global cooldown")
	}

	t5001 := t0.Add(5001 * time.Millisecond)
	if !Admit(ledger, utteranceWithKey("b", "fault B"), t5001, cfg, noDuplicates) {
		t.Fatal("expected fault B admitted at t=5001")
	}
}

func TestPerKeyEscalationScenario(t *testing.T) {
	// spec §8 scenario 3, cooldownMs=5000.
	ledger := NewLedger()
	cfg := baseConfig()
	u := utteranceWithKey("k", "repeated fault")

	times := []int{0, 5100, 15200, 30300}
	for i, ms := range times {
		ts := time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)
		if !Admit(ledger, u, ts, cfg, noDuplicates) {
			t.Fatalf("admission %d at t=%d expected to succeed", i+1, ms)
		}
	}

	fifth := time.Unix(0, 0).Add(45400 * time.Millisecond)
	if Admit(ledger, u, fifth, cfg, noDuplicates) {
		t.Fatal("expected fifth admission at t=45400 to be dropped")
	}
}

func TestIgnoreFilterDrops(t *testing.T) {
	ledger := NewLedger()
	cfg := baseConfig()
	cfg.Filters.IgnorePatterns = []string{"noisy"}
	u := utteranceWithKey("k", "This is a Noisy warning")
	if Admit(ledger, u, time.Unix(0, 0), cfg, noDuplicates) {
		t.Fatal("expected drop via ignore filter")
	}
}

func TestKindFilterRequiresMembership(t *testing.T) {
	ledger := NewLedger()
	cfg := baseConfig()
	cfg.Filters.ErrorKinds = []string{"TypeError"}
	u := types.Utterance{Text: "x", Classification: types.Classification{StableKey: "k", Kind: "RangeError"}}
	if Admit(ledger, u, time.Unix(0, 0), cfg, noDuplicates) {
		t.Fatal("expected drop: kind not in allowed set")
	}
	u.Classification.Kind = "TypeError"
	if !Admit(ledger, u, time.Unix(0, 0), cfg, noDuplicates) {
		t.Fatal("expected admit: kind in allowed set")
	}
}

func TestOnlyPatternsRequiresMatch(t *testing.T) {
	ledger := NewLedger()
	cfg := baseConfig()
	cfg.Filters.OnlyPatterns = []string{"critical"}
	drop := utteranceWithKey("k1", "a minor hiccup")
	if Admit(ledger, drop, time.Unix(0, 0), cfg, noDuplicates) {
		t.Fatal("expected drop: no allowlist match")
	}
	admit := utteranceWithKey("k2", "a CRITICAL failure")
	if !Admit(ledger, admit, time.Unix(0, 0), cfg, noDuplicates) {
		t.Fatal("expected admit: allowlist match (case-insensitive)")
	}
}

func TestAdmitDoesNotMutateLedgerOnDrop(t *testing.T) {
	ledger := NewLedger()
	cfg := baseConfig()
	cfg.Enabled = false
	Admit(ledger, utteranceWithKey("k", "x"), time.Unix(0, 0), cfg, noDuplicates)
	if ledger.Len() != 0 {
		t.Fatalf("expected ledger untouched on drop, got %d entries", ledger.Len())
	}
}

func TestEvaluateReportsReason(t *testing.T) {
	ledger := NewLedger()
	cfg := baseConfig()
	cfg.Enabled = false

	admitted, reason := Evaluate(ledger, utteranceWithKey("k", "x"), time.Unix(0, 0), cfg, noDuplicates)
	if admitted {
		t.Fatal("expected drop when disabled")
	}
	if reason != ReasonDisabled {
		t.Fatalf("reason = %q, want %q", reason, ReasonDisabled)
	}

	cfg.Enabled = true
	admitted, reason = Evaluate(ledger, utteranceWithKey("k2", "y"), time.Unix(0, 0), cfg, noDuplicates)
	if !admitted {
		t.Fatalf("expected admit, got reason %q", reason)
	}
	if reason != "" {
		t.Fatalf("reason = %q, want empty on admit", reason)
	}
}
