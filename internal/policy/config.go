// Package policy implements the Policy Engine (SPEC_FULL.md section 4.2):
// parsing .relay.yaml and resolving branch-protection rules, evaluated
// natively before any hook script runs.
package policy

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RelayConfig is the recognized-keys subset of .relay.yaml (SPEC_FULL.md
// section 6). Parsed with the full gopkg.in/yaml.v3 grammar — contrast with
// the sandbox's deliberately minimal utils.parseYaml (section 4.4).
type RelayConfig struct {
	Name        string       `yaml:"name"`
	Version     string       `yaml:"version"`
	Description string       `yaml:"description"`
	Server      ServerConfig `yaml:"server"`
	Git         GitConfig    `yaml:"git"`
	Quota       QuotaConfig  `yaml:"quota"`
}

type ServerConfig struct {
	Hooks map[string]HookPath `yaml:"hooks"`
}

type HookPath struct {
	Path string `yaml:"path"`
}

type GitConfig struct {
	BranchRules BranchRulesConfig `yaml:"branchRules"`
	AutoPush    AutoPushConfig    `yaml:"autoPush"`
	GitHub      GitHubConfig      `yaml:"github"`
}

type BranchRulesConfig struct {
	Default  *BranchRule       `yaml:"default"`
	Branches []NamedBranchRule `yaml:"branches"`
}

type NamedBranchRule struct {
	Name       string `yaml:"name"`
	BranchRule `yaml:",inline"`
}

// BranchRule is one resolved branch-protection rule (SPEC_FULL.md 4.2).
type BranchRule struct {
	RequireSigned bool     `yaml:"requireSigned"`
	AllowUnsigned bool     `yaml:"allowUnsigned"`
	AllowedKeys   []string `yaml:"allowedKeys"`
}

type AutoPushConfig struct {
	Branches        []string `yaml:"branches"`
	OriginList      []string `yaml:"originList"`
	DebounceSeconds int      `yaml:"debounceSeconds"`
}

type GitHubConfig struct {
	Enabled bool     `yaml:"enabled"`
	Path    string   `yaml:"path"`
	Events  []string `yaml:"events"`
}

type QuotaConfig struct {
	Bytes int64 `yaml:"bytes"`
}

// Parse parses .relay.yaml content. An empty document yields a zero-value
// RelayConfig, which ResolveRule treats as "no rule configured".
func Parse(data []byte) (*RelayConfig, error) {
	var cfg RelayConfig
	if len(data) == 0 {
		return &cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("policy: parse .relay.yaml: %w", err)
	}
	return &cfg, nil
}

// HookPathFor returns the configured script path for a hook kind, and
// whether one was configured at all (spec.md section 4.3).
func (c *RelayConfig) HookPathFor(kind string) (string, bool) {
	if c == nil || c.Server.Hooks == nil {
		return "", false
	}
	h, ok := c.Server.Hooks[kind]
	if !ok || h.Path == "" {
		return "", false
	}
	return h.Path, true
}
