package rule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/siftledger/sift/internal/common"
)

// recognized is the set of keys accepted in a rule definition.
var recognized = func() map[string]bool {
	m := make(map[string]bool, len(fieldOrder))
	for _, field := range fieldOrder {
		m[field] = true
	}
	return m
}()

// Parse decodes a YAML rule set. The two default accounts and the rules
// key are required; an empty rules list is fine, a missing one is not.
// Unknown keys inside rule entries are dropped for forward compatibility
// unless strict is set, in which case they fail the load.
func Parse(data []byte, strict bool) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty rule set", common.ErrInvalidConfig)
	}

	cfg := &Config{}
	if v, ok := raw["default_method_account"]; ok {
		cfg.DefaultMethodAccount = formatScalar(v)
	}
	if v, ok := raw["default_target_account"]; ok {
		cfg.DefaultTargetAccount = formatScalar(v)
	}

	rawRules, ok := raw["rules"]
	if !ok {
		return nil, fmt.Errorf("%w: no rules key", common.ErrInvalidConfig)
	}

	entries, ok := rawRules.([]any)
	if !ok && rawRules != nil {
		return nil, fmt.Errorf("%w: rules must be a list", common.ErrInvalidConfig)
	}

	for i, entry := range entries {
		def, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: rule %d is not a mapping", common.ErrInvalidConfig, i)
		}
		if strict {
			for key := range def {
				if !recognized[key] {
					return nil, fmt.Errorf("%w: rule %d has unknown key %q", common.ErrInvalidConfig, i, key)
				}
			}
		}
		cfg.Rules = append(cfg.Rules, def)
	}

	return cfg, nil
}

// LoadFile reads and parses a rule-set file.
func LoadFile(path string, strict bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set %s: %w", path, err)
	}
	cfg, err := Parse(data, strict)
	if err != nil {
		return nil, fmt.Errorf("rule set %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds an engine straight from a rule-set file.
func Load(path string, strict bool) (*Engine, error) {
	cfg, err := LoadFile(path, strict)
	if err != nil {
		return nil, err
	}
	return NewEngine(cfg)
}
