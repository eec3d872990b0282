package policy

import "github.com/relayhq/relay/internal/globmatch"

// Decision is the outcome of evaluating a branch-protection rule against a
// commit (spec.md section 4.2).
type Decision struct {
	Accepted bool
	Reason   string // empty when Accepted
}

func accept() Decision { return Decision{Accepted: true} }

func reject(reason string) Decision { return Decision{Accepted: false, Reason: reason} }

// ResolveRule finds the rule that applies to branch: an exact name match
// under git.branchRules.branches, falling back to git.branchRules.default.
// A nil return means no rule is configured for this branch.
func ResolveRule(cfg *RelayConfig, branch string) *BranchRule {
	if cfg == nil {
		return nil
	}
	for _, nb := range cfg.Git.BranchRules.Branches {
		if nb.Name == branch {
			rule := nb.BranchRule
			return &rule
		}
	}
	return cfg.Git.BranchRules.Default
}

// Evaluate decides whether a commit may land on branch, given whether its
// signature verified and, if so, the identifier of the key that signed it
// (the HTTP write path passes the signer key's repo-relative path), which
// allowedKeys patterns are matched against.
//
// Precedence (spec.md section 4.2): no rule configured -> Accept. Otherwise,
// allowUnsigned always wins over requireSigned — an operator who set both
// on the same rule gets the more permissive behavior, not an error. When
// requireSigned is set and allowUnsigned is not, an unverified commit is
// rejected, and (if allowedKeys is non-empty) a verified key must match one
// of its glob patterns.
func Evaluate(cfg *RelayConfig, branch string, verified bool, signerKeyFingerprint string) Decision {
	rule := ResolveRule(cfg, branch)
	if rule == nil {
		return accept()
	}
	if rule.AllowUnsigned {
		return accept()
	}
	if !rule.RequireSigned {
		return accept()
	}
	if !verified {
		return reject("branch requires a signed commit (requireSigned)")
	}
	if len(rule.AllowedKeys) > 0 && !globmatch.MatchAny(rule.AllowedKeys, signerKeyFingerprint) {
		return reject("signing key is not in allowedKeys")
	}
	return accept()
}
