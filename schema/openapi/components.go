package openapi

import (
	"fmt"
	"regexp"
)

// componentRegistry collects named option schemas for the components section.
// Names are sanitised and made unique in registration order.
type componentRegistry struct {
	entries   map[string]map[string]any
	usedNames map[string]struct{}
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		entries:   map[string]map[string]any{},
		usedNames: map[string]struct{}{},
	}
}

// register stores schema under a unique name derived from nameHint and
// returns its $ref.
func (r *componentRegistry) register(nameHint string, schema map[string]any) string {
	name := r.uniqueName(nameHint)
	r.entries[name] = schema
	return fmt.Sprintf("#/components/schemas/%s", name)
}

func (r *componentRegistry) uniqueName(name string) string {
	safe := sanitizeComponentName(name)
	if safe == "" {
		safe = "Schema"
	}
	if _, exists := r.usedNames[safe]; !exists {
		r.usedNames[safe] = struct{}{}
		return safe
	}
	suffix := 1
	for {
		candidate := fmt.Sprintf("%s%d", safe, suffix)
		if _, exists := r.usedNames[candidate]; !exists {
			r.usedNames[candidate] = struct{}{}
			return candidate
		}
		suffix++
	}
}

func (r *componentRegistry) componentsMap() map[string]any {
	if len(r.entries) == 0 {
		return nil
	}
	out := make(map[string]any, len(r.entries))
	for name, schema := range r.entries {
		out[name] = schema
	}
	return out
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = componentNameRegexp.ReplaceAllString(name, "_")
	name = trimUnderscores(name)
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func trimUnderscores(input string) string {
	start := 0
	for start < len(input) && input[start] == '_' {
		start++
	}
	end := len(input)
	for end > start && input[end-1] == '_' {
		end--
	}
	return input[start:end]
}
