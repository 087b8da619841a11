package plugin

import (
	"fmt"
	"sync"

	preflighterrors "github.com/preflight-sh/preflight/pkg/errors"
)

// RequirementFactory builds a requirement instance for an environment
// variable, from project-file options or an empty map for variables
// discovered during expansion.
type RequirementFactory func(envVar string, options map[string]any) (Requirement, error)

// Kind describes one requirement family: how to recognize a variable that
// belongs to it, how to build the requirement, and which providers can
// satisfy it. A Kind with a nil CanHandle is the fallback used when no
// other kind claims a variable.
type Kind struct {
	Name      string
	CanHandle func(envVar string, options map[string]any) bool
	New       RequirementFactory
	Providers []string
}

// Registry maps environment-variable names to requirement kinds and
// resolves their candidate providers. Lookup is deterministic: kinds are
// consulted in registration order and the first match wins.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	kinds     []Kind
	fallback  *Kind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// RegisterProvider adds a provider implementation under its name.
func (r *Registry) RegisterProvider(p Provider) error {
	if p == nil {
		return preflighterrors.NewProviderError("", fmt.Errorf("provider is nil"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		return preflighterrors.NewProviderError("", fmt.Errorf("provider has no name"))
	}
	if _, exists := r.providers[name]; exists {
		return preflighterrors.NewProviderError(name, fmt.Errorf("provider already registered"))
	}

	r.providers[name] = p
	return nil
}

// Provider retrieves a provider by name.
func (r *Registry) Provider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, preflighterrors.NewProviderError(name, fmt.Errorf("no provider registered"))
	}
	return p, nil
}

// RegisterKind adds a requirement kind. A kind without a CanHandle
// predicate becomes the fallback; only one fallback may be registered.
func (r *Registry) RegisterKind(k Kind) error {
	if k.Name == "" {
		return preflighterrors.NewProviderError("", fmt.Errorf("kind has no name"))
	}
	if k.New == nil {
		return preflighterrors.NewProviderError(k.Name, fmt.Errorf("kind has no factory"))
	}
	if len(k.Providers) == 0 {
		return preflighterrors.NewProviderError(k.Name, fmt.Errorf("kind names no providers"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.kinds {
		if existing.Name == k.Name {
			return preflighterrors.NewProviderError(k.Name, fmt.Errorf("kind already registered"))
		}
	}
	if r.fallback != nil && r.fallback.Name == k.Name {
		return preflighterrors.NewProviderError(k.Name, fmt.Errorf("kind already registered"))
	}

	if k.CanHandle == nil {
		if r.fallback != nil {
			return preflighterrors.NewProviderError(k.Name, fmt.Errorf("fallback kind already registered (%s)", r.fallback.Name))
		}
		r.fallback = &k
		return nil
	}

	r.kinds = append(r.kinds, k)
	return nil
}

// NewPair builds a requirement of the named kind and resolves its
// providers. Used when the project file states the kind explicitly.
func (r *Registry) NewPair(kindName, envVar string, options map[string]any) (Pair, error) {
	r.mu.RLock()
	kind, ok := r.kindByName(kindName)
	r.mu.RUnlock()
	if !ok {
		return Pair{}, preflighterrors.NewProviderError(kindName, fmt.Errorf("no requirement kind registered"))
	}
	return r.buildPair(kind, envVar, options)
}

// FindByEnvVar synthesizes a requirement for a variable discovered at
// runtime, consulting kinds in registration order and falling back to the
// default kind. An unclaimable variable is a validation error; the
// expander treats it as fatal.
func (r *Registry) FindByEnvVar(envVar string, options map[string]any) (Pair, error) {
	if options == nil {
		options = map[string]any{}
	}

	r.mu.RLock()
	var kind Kind
	found := false
	for _, k := range r.kinds {
		if k.CanHandle(envVar, options) {
			kind = k
			found = true
			break
		}
	}
	if !found && r.fallback != nil {
		kind = *r.fallback
		found = true
	}
	r.mu.RUnlock()

	if !found {
		return Pair{}, preflighterrors.NewValidationError(envVar, "no requirement kind can satisfy this variable", nil)
	}
	return r.buildPair(kind, envVar, options)
}

func (r *Registry) kindByName(name string) (Kind, bool) {
	for _, k := range r.kinds {
		if k.Name == name {
			return k, true
		}
	}
	if r.fallback != nil && r.fallback.Name == name {
		return *r.fallback, true
	}
	return Kind{}, false
}

func (r *Registry) buildPair(kind Kind, envVar string, options map[string]any) (Pair, error) {
	req, err := kind.New(envVar, options)
	if err != nil {
		return Pair{}, err
	}

	providers := make([]Provider, 0, len(kind.Providers))
	for _, name := range kind.Providers {
		p, err := r.Provider(name)
		if err != nil {
			return Pair{}, err
		}
		providers = append(providers, p)
	}
	return Pair{Requirement: req, Providers: providers}, nil
}
