package policy

import "testing"

func TestEvaluateNoRuleAccepts(t *testing.T) {
	cfg := &RelayConfig{}
	d := Evaluate(cfg, "main", false, "")
	if !d.Accepted {
		t.Fatalf("expected accept with no rule, got reject: %s", d.Reason)
	}
}

func TestEvaluateRequireSignedRejectsUnverified(t *testing.T) {
	cfg := &RelayConfig{Git: GitConfig{BranchRules: BranchRulesConfig{
		Default: &BranchRule{RequireSigned: true},
	}}}
	d := Evaluate(cfg, "main", false, "")
	if d.Accepted {
		t.Fatal("expected reject for unverified commit on a requireSigned branch")
	}
	if d.Reason == "" {
		t.Fatal("expected a non-empty rejection reason")
	}
}

func TestEvaluateAllowUnsignedOverridesRequireSigned(t *testing.T) {
	cfg := &RelayConfig{Git: GitConfig{BranchRules: BranchRulesConfig{
		Default: &BranchRule{RequireSigned: true, AllowUnsigned: true},
	}}}
	d := Evaluate(cfg, "main", false, "")
	if !d.Accepted {
		t.Fatalf("expected allowUnsigned to win, got reject: %s", d.Reason)
	}
}

func TestEvaluateAllowedKeysRejectsUnlistedSigner(t *testing.T) {
	cfg := &RelayConfig{Git: GitConfig{BranchRules: BranchRulesConfig{
		Branches: []NamedBranchRule{
			{Name: "release", BranchRule: BranchRule{
				RequireSigned: true,
				AllowedKeys:   []string{"SHA256:approved-key-only"},
			}},
		},
	}}}

	d := Evaluate(cfg, "release", true, "SHA256:some-other-key")
	if d.Accepted {
		t.Fatal("expected reject for a verified but non-allowlisted key")
	}

	d = Evaluate(cfg, "release", true, "SHA256:approved-key-only")
	if !d.Accepted {
		t.Fatalf("expected accept for allowlisted key, got reject: %s", d.Reason)
	}
}

func TestResolveRuleFallsBackToDefault(t *testing.T) {
	def := &BranchRule{RequireSigned: true}
	cfg := &RelayConfig{Git: GitConfig{BranchRules: BranchRulesConfig{
		Default: def,
		Branches: []NamedBranchRule{
			{Name: "main", BranchRule: BranchRule{AllowUnsigned: true}},
		},
	}}}

	if r := ResolveRule(cfg, "main"); r == nil || !r.AllowUnsigned {
		t.Fatalf("expected branch-specific rule for main, got %+v", r)
	}
	if r := ResolveRule(cfg, "feature/x"); r != def {
		t.Fatalf("expected default rule for unmatched branch, got %+v", r)
	}
}
