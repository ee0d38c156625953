package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy pairs a request ceiling with a sliding window length.
// Policies are immutable once the limiter is constructed; hot reload
// is the caller's concern, not this package's.
type Policy struct {
	Name   string
	Max    int64
	Window time.Duration
}

// DefaultPolicies is the static policy table applied when no override
// file is configured.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"auth":    {Name: "auth", Max: 5, Window: 15 * time.Minute},
		"api":     {Name: "api", Max: 100, Window: 15 * time.Minute},
		"chat":    {Name: "chat", Max: 10, Window: time.Minute},
		"uploads": {Name: "uploads", Max: 10, Window: time.Hour},
	}
}

type policyFileEntry struct {
	Max    int64  `yaml:"max"`
	Window string `yaml:"window"`
}

// LoadPolicies returns the default policy table, merged with overrides
// from the YAML file at path when path is non-empty. File entries
// replace or add whole policies; they cannot delete defaults.
func LoadPolicies(path string) (map[string]Policy, error) {
	policies := DefaultPolicies()
	if path == "" {
		return policies, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var entries map[string]policyFileEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	for name, e := range entries {
		if e.Max <= 0 {
			return nil, fmt.Errorf("policy %q: max must be positive, got %d", name, e.Max)
		}
		window, err := time.ParseDuration(e.Window)
		if err != nil {
			return nil, fmt.Errorf("policy %q: invalid window %q: %w", name, e.Window, err)
		}
		if window <= 0 {
			return nil, fmt.Errorf("policy %q: window must be positive, got %s", name, window)
		}
		policies[name] = Policy{Name: name, Max: e.Max, Window: window}
	}

	return policies, nil
}
