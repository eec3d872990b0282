package blobstore

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// rawIpfsConfig mirrors ipfs.yaml's on-disk shape (spec.md section 6):
// collections.<name>: [{field: str, type?: str}].
type rawIpfsConfig struct {
	Collections map[string][]struct {
		Field string `yaml:"field"`
		Type  string `yaml:"type"`
	} `yaml:"collections"`
}

// ParseIpfsConfig parses ipfs.yaml into the flattened field-name-per-
// collection shape the Blob Watcher consults.
func ParseIpfsConfig(data []byte) (*IpfsConfig, error) {
	if len(data) == 0 {
		return &IpfsConfig{Collections: map[string][]string{}}, nil
	}
	var raw rawIpfsConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("blobstore: parse ipfs.yaml: %w", err)
	}
	cfg := &IpfsConfig{Collections: map[string][]string{}}
	for name, fields := range raw.Collections {
		for _, f := range fields {
			cfg.Collections[name] = append(cfg.Collections[name], f.Field)
		}
	}
	return cfg, nil
}
