// Package library implements sequencing libraries: the configure, calculate
// and serialize lifecycle that turns a counts file into filtered counts in a
// shared table store.
package library

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/store"
)

// Library is the lifecycle every sequencing library implements. Libraries
// are also store managers, so scoring plugins can run on them directly.
type Library interface {
	enrich.StoreManager
	Name() string
	Kind() string
	Timepoint() int
	Configure(cfg any) error
	Calculate(ctx context.Context) error
	Serialize() map[string]any
}

// Constructor builds an unconfigured library of one kind.
type Constructor func(ts *store.TableStore, opts ...Option) Library

var kinds = map[string]Constructor{
	KindIdOnly: func(ts *store.TableStore, opts ...Option) Library {
		return NewIdOnlySeqLib(ts, opts...)
	},
}

// Kinds returns the supported library kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for kind := range kinds {
		out = append(out, kind)
	}
	slices.Sort(out)
	return out
}

// New builds an unconfigured library of kind.
func New(kind string, ts *store.TableStore, opts ...Option) (Library, error) {
	ctor, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("library: unknown kind %q (supported: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return ctor(ts, opts...), nil
}

// DetectKind infers the library kind of a settings mapping: an explicit
// "kind" entry wins, then the presence of an "identifiers" section.
func DetectKind(raw map[string]any) (string, error) {
	if kind, ok := raw["kind"].(string); ok && kind != "" {
		return kind, nil
	}
	if _, ok := raw["identifiers"]; ok {
		return KindIdOnly, nil
	}
	return "", fmt.Errorf("library: cannot infer kind of %v", raw["name"])
}
