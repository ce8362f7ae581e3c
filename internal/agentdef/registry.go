// Package agentdef resolves agent names to their definitions.
//
// Discovery and parsing of agent definition files is owned by the host
// tool; this package defines the Registry contract the dispatcher needs
// plus two small implementations: an in-memory registry for embedding
// callers and tests, and a single-file YAML registry so the CLI can run
// end to end.
package agentdef

import (
	"fmt"
	"sync"

	"github.com/ShayCichocki/subtask/pkg/models"
)

// Definition is one resolved agent configuration.
type Definition struct {
	// Name is the agent's unique name within its scope.
	Name string `yaml:"name"`
	// Model is the worker model override, if any.
	Model string `yaml:"model,omitempty"`
	// Tools is the tool allowlist passed to the worker, if any.
	Tools []string `yaml:"tools,omitempty"`
	// SystemPrompt is appended to the worker's system prompt, if any.
	SystemPrompt string `yaml:"system_prompt,omitempty"`
	// Scope is where the definition came from.
	Scope models.Scope `yaml:"scope,omitempty"`
}

// Registry resolves agent names against a lookup scope.
type Registry interface {
	// Resolve returns the definition for name within scope.
	// Returns an error if no definition matches.
	Resolve(name string, scope models.Scope) (*Definition, error)

	// List returns all definitions visible in scope.
	List(scope models.Scope) []*Definition
}

// StaticRegistry is a thread-safe in-memory Registry.
type StaticRegistry struct {
	mu   sync.RWMutex
	defs []*Definition
}

// NewStaticRegistry creates a registry holding the given definitions.
func NewStaticRegistry(defs ...*Definition) *StaticRegistry {
	r := &StaticRegistry{}
	for _, d := range defs {
		r.Add(d)
	}
	return r
}

// Add registers a definition. Definitions without a scope default to
// project scope.
func (r *StaticRegistry) Add(d *Definition) {
	if d.Scope == "" {
		d.Scope = models.ScopeProject
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = append(r.defs, d)
}

// Resolve returns the definition for name within scope. Project
// definitions shadow user definitions under ScopeAll.
func (r *StaticRegistry) Resolve(name string, scope models.Scope) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var userMatch *Definition
	for _, d := range r.defs {
		if d.Name != name {
			continue
		}
		switch d.Scope {
		case models.ScopeProject:
			if scope == models.ScopeProject || scope == models.ScopeAll || scope == "" {
				return d, nil
			}
		case models.ScopeUser:
			if scope == models.ScopeUser {
				return d, nil
			}
			if scope == models.ScopeAll || scope == "" {
				userMatch = d
			}
		}
	}
	if userMatch != nil {
		return userMatch, nil
	}
	return nil, fmt.Errorf("Unknown agent: %s", name)
}

// List returns all definitions visible in scope.
func (r *StaticRegistry) List(scope models.Scope) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		if scope == models.ScopeAll || scope == "" || d.Scope == scope {
			out = append(out, d)
		}
	}
	return out
}

// Verify StaticRegistry implements Registry at compile time.
var _ Registry = (*StaticRegistry)(nil)
