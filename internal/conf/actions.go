package conf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ActionOverride carries per-action configuration supplied at registration
// time: triggersless knobs like cooldown, access lists and concurrency.
type ActionOverride struct {
	CooldownSeconds  int      `yaml:"cooldown_seconds"`
	Whitelist        []string `yaml:"whitelist"`
	Blacklist        []string `yaml:"blacklist"`
	UserWhitelist    []string `yaml:"user_whitelist"`
	ConcurrencyLimit int      `yaml:"concurrency_limit"`
	Active           *bool    `yaml:"active"`
}

// ActionsConfig maps action keys to their configured overrides.
type ActionsConfig struct {
	Actions map[string]ActionOverride `yaml:"actions"`
}

// LoadActionOverrides loads per-action overrides from a YAML file. A
// missing path is not an error: it yields an empty config.
func LoadActionOverrides(path string) (*ActionsConfig, error) {
	if path == "" {
		return &ActionsConfig{Actions: map[string]ActionOverride{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ActionsConfig{Actions: map[string]ActionOverride{}}, nil
		}
		return nil, fmt.Errorf("read actions config: %w", err)
	}

	var cfg ActionsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse actions config: %w", err)
	}
	if cfg.Actions == nil {
		cfg.Actions = map[string]ActionOverride{}
	}
	return &cfg, nil
}

// For returns the override for one action key, if configured.
func (c *ActionsConfig) For(key string) (ActionOverride, bool) {
	o, ok := c.Actions[key]
	return o, ok
}
