package enrich

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-enrich/store"
)

// Function represents a callable exposed to where-expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry stores custom functions keyed by lower-cased name.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]Function),
	}
}

// Register stores fn under name guarding against duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("enrich: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("enrich: function name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("enrich: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]Function, len(r.functions)),
	}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("enrich: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("enrich: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns registered function names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MathFunctions returns a registry with the numeric helpers scoring filters
// commonly need: log, log2, log10, sqrt and abs.
func MathFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	unary := map[string]func(float64) float64{
		"log":   math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"sqrt":  math.Sqrt,
		"abs":   math.Abs,
	}
	for name, op := range unary {
		fn := op
		label := name
		_ = r.Register(name, func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("enrich: %s expects 1 argument, got %d", label, len(args))
			}
			x, ok := store.ToFloat(args[0])
			if !ok {
				return nil, fmt.Errorf("enrich: %s expects a number, got %T", label, args[0])
			}
			return fn(x), nil
		})
	}
	return r
}
