package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"

	"github.com/goliatone/go-enrich/pkg/activity"
	"github.com/goliatone/go-enrich/store"
)

// ScoringPlugin computes scores from counts held in a shared store. Plugins
// reach the store only through the mediated methods on Base.
type ScoringPlugin interface {
	Name() string
	ComputeScores(ctx context.Context) error
	RowApply(row store.Record) (store.Record, error)
}

// Base carries the identity and store handle of one scoring plugin run and
// implements existence-checked store access on its behalf.
type Base struct {
	name      string
	runID     string
	manager   StoreManager
	evaluator Evaluator
	functions *FunctionRegistry
	logger    *slog.Logger
	hooks     activity.Hooks
	emitter   *activity.Emitter
	actor     string
}

// BaseOption configures a Base.
type BaseOption func(*Base)

// WithEvaluator selects the engine used to compile where-expressions.
func WithEvaluator(e Evaluator) BaseOption {
	return func(b *Base) {
		b.evaluator = e
	}
}

// WithFunctionRegistry exposes extra functions to where-expressions compiled
// by the default evaluator. It has no effect when WithEvaluator is also used.
func WithFunctionRegistry(registry *FunctionRegistry) BaseOption {
	return func(b *Base) {
		if registry != nil {
			b.functions = registry.Clone()
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) BaseOption {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) BaseOption {
	return func(b *Base) {
		if id != "" {
			b.runID = id
		}
	}
}

// WithActor records who triggered the run on emitted activity events.
func WithActor(actorID string) BaseOption {
	return func(b *Base) {
		b.actor = actorID
	}
}

// NewBase binds a plugin name to a store handle. The handle must implement
// StoreManager.
func NewBase(name string, handle any, opts ...BaseOption) (*Base, error) {
	manager, ok := handle.(StoreManager)
	if !ok || isNilHandle(handle) {
		return nil, &StoreHandleTypeError{Plugin: name, Got: handle}
	}
	b := &Base{
		name:    name,
		runID:   uuid.NewString(),
		manager: manager,
		logger:  discardLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.evaluator == nil {
		registry := MathFunctions()
		if b.functions != nil {
			for _, fn := range b.functions.Names() {
				f := fn
				err := registry.Register(f, func(args ...any) (any, error) {
					return b.functions.Call(f, args...)
				})
				if err != nil {
					return nil, fmt.Errorf("enrich: plugin %q: %w", name, err)
				}
			}
		}
		b.evaluator = NewExprEvaluator(
			ExprWithFunctionRegistry(registry),
			ExprWithProgramCache(NewProgramCache()),
		)
	}
	b.emitter = activity.NewEmitter(b.hooks, activity.Config{Enabled: len(b.hooks) > 0})
	b.logger = b.logger.With(slog.String("plugin", name), slog.String("run_id", b.runID))
	return b, nil
}

func isNilHandle(handle any) bool {
	if handle == nil {
		return true
	}
	v := reflect.ValueOf(handle)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Name returns the plugin name.
func (b *Base) Name() string { return b.name }

// RunID identifies this plugin run in logs and activity events.
func (b *Base) RunID() string { return b.runID }

// Logger returns the plugin logger, already tagged with name and run ID.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Manager returns the store handle the plugin was built with.
func (b *Base) Manager() StoreManager { return b.manager }

// Evaluator returns the engine used for where-expressions.
func (b *Base) Evaluator() Evaluator { return b.evaluator }
