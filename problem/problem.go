// Package problem is the Problem Registry: a catalog of interview problems
// loaded from a bundled YAML file, with a deterministic picker. Grounded
// directly on runtime/persistence/yaml/yaml_prompt.go's file-parse-then-cache
// shape, adapted from prompt configs to problem catalog entries and from a
// file-search convention to a single go:embed'd catalog file, since only a
// shape is required here, not a particular loading mechanism.
package problem

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog/problems.yaml
var defaultCatalogFS embed.FS

// Problem is an immutable catalog entry.
type Problem struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Difficulty  string `yaml:"difficulty" json:"difficulty"`
}

type catalogDoc struct {
	Problems []Problem `yaml:"problems"`
}

// Registry holds a loaded problem catalog and a deterministic picker
// cursor. Open Question #1 (decided in SPEC_FULL.md): problems are picked
// by deterministic round-robin over catalog order, not randomly, so runs
// and tests are reproducible without seeding a PRNG.
type Registry struct {
	mu       sync.Mutex
	problems []Problem
	byID     map[string]Problem
	cursor   uint64
}

// NewRegistry loads the bundled catalog.
func NewRegistry() (*Registry, error) {
	data, err := defaultCatalogFS.ReadFile("catalog/problems.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded problem catalog: %w", err)
	}
	return newRegistryFromYAML(data)
}

// NewRegistryFromYAML loads a catalog from an arbitrary YAML document,
// following the same schema as the embedded catalog. Useful for operators
// who want to practice against their own problem set.
func NewRegistryFromYAML(data []byte) (*Registry, error) {
	return newRegistryFromYAML(data)
}

func newRegistryFromYAML(data []byte) (*Registry, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse problem catalog: %w", err)
	}
	if len(doc.Problems) == 0 {
		return nil, fmt.Errorf("problem catalog is empty")
	}
	byID := make(map[string]Problem, len(doc.Problems))
	for _, p := range doc.Problems {
		if p.ID == "" {
			return nil, fmt.Errorf("problem catalog entry missing id")
		}
		byID[p.ID] = p
	}
	return &Registry{problems: doc.Problems, byID: byID}, nil
}

// ErrUnknownProblem is returned by Get when id is not in the catalog.
type ErrUnknownProblem struct{ ID string }

func (e ErrUnknownProblem) Error() string {
	return fmt.Sprintf("unknown problem: %q", e.ID)
}

// Get returns the problem with the given id.
func (r *Registry) Get(id string) (Problem, error) {
	p, ok := r.byID[id]
	if !ok {
		return Problem{}, ErrUnknownProblem{ID: id}
	}
	return p, nil
}

// PickProblem returns the next problem in deterministic round-robin order.
func (r *Registry) PickProblem() Problem {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := int(r.cursor % uint64(len(r.problems)))
	r.cursor++
	return r.problems[idx]
}

// All returns every problem in the catalog, in catalog order.
func (r *Registry) All() []Problem {
	cp := make([]Problem, len(r.problems))
	copy(cp, r.problems)
	return cp
}
