// Package preset holds the named timing/nudge configurations a session can
// be started with. It is a pure lookup table, grounded on the
// small-config-struct-loaded-from-YAML shape of
// runtime/persistence/yaml/yaml_prompt.go, simplified to the three
// built-in presets this domain recognizes plus an optional on-disk override
// file for local customization.
package preset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is an immutable timing/nudge configuration.
type Preset struct {
	Name        string `yaml:"name"`
	PrepMs      int64  `yaml:"prepMs"`
	CodingMs    int64  `yaml:"codingMs"`
	SilentMs    int64  `yaml:"silentMs"`
	NudgeBudget int    `yaml:"nudgeBudget"`
}

const (
	Standard     = "standard"
	HighPressure = "high_pressure"
	NoAssistance = "no_assistance"
)

var builtin = map[string]Preset{
	Standard:     {Name: Standard, PrepMs: 300_000, CodingMs: 2_100_000, SilentMs: 300_000, NudgeBudget: 3},
	HighPressure: {Name: HighPressure, PrepMs: 180_000, CodingMs: 1_500_000, SilentMs: 180_000, NudgeBudget: 1},
	NoAssistance: {Name: NoAssistance, PrepMs: 300_000, CodingMs: 2_100_000, SilentMs: 300_000, NudgeBudget: 0},
}

// Registry resolves preset names to configurations. Construct one with
// NewRegistry; the zero value resolves no presets.
type Registry struct {
	presets map[string]Preset
}

// NewRegistry returns a Registry seeded with the three built-in presets.
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Preset, len(builtin))}
	for name, p := range builtin {
		r.presets[name] = p
	}
	return r
}

// LoadOverrides reads a YAML file of the form `{presets: [...]}` and merges
// it into the registry, replacing any built-in preset of the same name and
// adding any new ones. It is the registry's only mutation path, intended to
// run once at startup.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided config path
	if err != nil {
		return fmt.Errorf("read preset overrides: %w", err)
	}
	var doc struct {
		Presets []Preset `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse preset overrides: %w", err)
	}
	for _, p := range doc.Presets {
		if p.Name == "" {
			return fmt.Errorf("preset override missing name")
		}
		r.presets[p.Name] = p
	}
	return nil
}

// ErrUnknownPreset is returned by Get when name is not registered.
type ErrUnknownPreset struct{ Name string }

func (e ErrUnknownPreset) Error() string {
	return fmt.Sprintf("unknown preset: %q", e.Name)
}

// Get returns the named preset.
func (r *Registry) Get(name string) (Preset, error) {
	p, ok := r.presets[name]
	if !ok {
		return Preset{}, ErrUnknownPreset{Name: name}
	}
	return p, nil
}

// Names returns all registered preset names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	return names
}
