package enrich

import (
	"context"
	"slices"

	"github.com/goliatone/go-enrich/store"
)

// DefaultChunkSize bounds the rows held per chunk during selections.
const DefaultChunkSize = 100000

// StoreManager is the capability a scoring plugin needs from its handle: a
// shared table store plus the labels and chunking it was configured with.
type StoreManager interface {
	CheckStore(ctx context.Context, key string) bool
	Store() *store.TableStore
	ChunkSize() int
	Labels() []string
}

// TimepointProvider is implemented by managers that know their timepoints.
type TimepointProvider interface {
	Timepoints() []int
}

// Manager is a standalone StoreManager for experiment-level stores that are
// not owned by a single library.
type Manager struct {
	name       string
	store      *store.TableStore
	chunkSize  int
	labels     []string
	timepoints []int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithChunkSize sets the selection chunk size. Non-positive values keep the default.
func WithChunkSize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

// WithLabels sets the labels, dropping duplicates.
func WithLabels(labels ...string) ManagerOption {
	return func(m *Manager) {
		for _, label := range labels {
			if label != "" && !slices.Contains(m.labels, label) {
				m.labels = append(m.labels, label)
			}
		}
	}
}

// WithTimepoints sets the timepoints, sorted and deduplicated.
func WithTimepoints(tps ...int) ManagerOption {
	return func(m *Manager) {
		m.timepoints = slices.Compact(slices.Sorted(slices.Values(tps)))
	}
}

// WithManagerName names the manager in logs.
func WithManagerName(name string) ManagerOption {
	return func(m *Manager) {
		m.name = name
	}
}

// NewManager wraps ts. The store is shared, not owned: closing it is the
// caller's job.
func NewManager(ts *store.TableStore, opts ...ManagerOption) *Manager {
	m := &Manager{store: ts, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Name returns the configured name.
func (m *Manager) Name() string { return m.name }

// CheckStore reports whether key holds a table. Lookup failures read as absent.
func (m *Manager) CheckStore(ctx context.Context, key string) bool {
	if m.store == nil {
		return false
	}
	ok, err := m.store.Exists(ctx, key)
	return err == nil && ok
}

func (m *Manager) Store() *store.TableStore { return m.store }

func (m *Manager) ChunkSize() int { return m.chunkSize }

func (m *Manager) Labels() []string { return slices.Clone(m.labels) }

func (m *Manager) Timepoints() []int { return slices.Clone(m.timepoints) }
