package enrich

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// PluginFactory builds a plugin from its Base and resolved options. The
// options map holds every declared varname, coerced to its dtype.
type PluginFactory func(base *Base, options map[string]any) (ScoringPlugin, error)

// Registration describes one scoring plugin kind.
type Registration struct {
	Name        string
	Description string
	// Options returns a fresh declaration of the plugin's options.
	Options func() *OptionCollection
	Factory PluginFactory
}

// Registry maps plugin names to registrations.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Registration
}

// DefaultRegistry is the process-wide registry used by the CLI.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: map[string]Registration{}}
}

// Register adds reg. Names are case-insensitive and must be unique; the
// declared options must be valid.
func (r *Registry) Register(reg Registration) error {
	name := strings.ToLower(strings.TrimSpace(reg.Name))
	if name == "" {
		return fmt.Errorf("enrich: plugin name must not be empty")
	}
	if reg.Factory == nil {
		return fmt.Errorf("enrich: plugin %q has no factory", reg.Name)
	}
	if reg.Options != nil {
		if err := reg.Options().Err(); err != nil {
			return fmt.Errorf("enrich: plugin %q options: %w", reg.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("enrich: plugin %q already registered", reg.Name)
	}
	reg.Name = name
	r.plugins[name] = reg
	return nil
}

// Names returns the registered plugin names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.plugins[strings.ToLower(strings.TrimSpace(name))]
	return reg, ok
}

// OptionsFor returns the option declaration of the named plugin.
func (r *Registry) OptionsFor(name string) (*OptionCollection, error) {
	reg, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	if reg.Options == nil {
		return NewOptionCollection(), nil
	}
	return reg.Options(), nil
}

// New builds the named plugin on handle. Options are resolved against the
// plugin's declaration before the factory runs.
func (r *Registry) New(name string, handle any, options any, opts ...BaseOption) (ScoringPlugin, error) {
	reg, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
	}
	base, err := NewBase(reg.Name, handle, opts...)
	if err != nil {
		return nil, err
	}
	collection := NewOptionCollection()
	if reg.Options != nil {
		collection = reg.Options()
	}
	resolved, err := ResolveOptions(reg.Name, collection, options)
	if err != nil {
		return nil, err
	}
	plugin, err := reg.Factory(base, resolved)
	if err != nil {
		return nil, fmt.Errorf("enrich: build plugin %q: %w", reg.Name, err)
	}
	return plugin, nil
}
