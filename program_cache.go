package enrich

import "sync"

// ProgramCache stores compiled expression programs keyed by engine-prefixed
// expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapProgramCache is an unbounded, concurrency-safe ProgramCache.
type MapProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewProgramCache returns an empty MapProgramCache.
func NewProgramCache() *MapProgramCache {
	return &MapProgramCache{programs: map[string]any{}}
}

func (c *MapProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.programs[key]
	return v, ok
}

func (c *MapProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs[key] = value
}

// Len reports how many programs are cached.
func (c *MapProgramCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}
