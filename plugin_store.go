package enrich

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/goliatone/go-enrich/pkg/activity"
	"github.com/goliatone/go-enrich/store"
)

// ErrNoStore is returned when the plugin's manager has no table store.
var ErrNoStore = errors.New("enrich: manager has no table store")

func (b *Base) tables() (*store.TableStore, error) {
	ts := b.manager.Store()
	if ts == nil {
		return nil, fmt.Errorf("%w [%s]", ErrNoStore, b.name)
	}
	return ts, nil
}

// requireKey fails with StoreKeyNotFound unless key holds a table.
func (b *Base) requireKey(ctx context.Context, ts *store.TableStore, key string) error {
	ok, err := ts.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("enrich: check store %s [%s]: %w", key, b.name, err)
	}
	if !ok {
		return &StoreKeyNotFound{Key: key, Owner: b.name, Err: store.ErrNotFound}
	}
	return nil
}

func (b *Base) compileWhere(where string, args map[string]any) (store.Filter, error) {
	return CompileFilter(where, FilterConfig{
		Evaluator: b.evaluator,
		Args:      args,
		Owner:     b.name,
		Logger:    SlogEvaluatorLogger(b.logger),
	})
}

// StoreGet returns the whole table at key.
func (b *Base) StoreGet(ctx context.Context, key string) (*store.Table, error) {
	ts, err := b.tables()
	if err != nil {
		return nil, err
	}
	if err := b.requireKey(ctx, ts, key); err != nil {
		return nil, err
	}
	table, err := ts.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("enrich: get %s [%s]: %w", key, b.name, err)
	}
	return table, nil
}

// StorePut writes table at key, replacing any table already stored there.
// dataColumns names the columns that where-expressions may query.
func (b *Base) StorePut(ctx context.Context, key string, table *store.Table, dataColumns []string) error {
	ts, err := b.tables()
	if err != nil {
		return err
	}
	if err := ts.Put(ctx, key, table, dataColumns); err != nil {
		return fmt.Errorf("enrich: put %s [%s]: %w", key, b.name, err)
	}
	b.logger.DebugContext(ctx, "table put", slog.String("key", key), slog.Int("rows", table.Len()))
	b.emit(ctx, activity.BuildTablePutEvent(activity.TableEventInput{
		Owner: b.name,
		Key:   key,
		Rows:  table.Len(),
	}))
	return nil
}

// StoreAppend appends the rows of table at key, creating it when absent.
func (b *Base) StoreAppend(ctx context.Context, key string, table *store.Table) error {
	ts, err := b.tables()
	if err != nil {
		return err
	}
	if err := ts.Append(ctx, key, table); err != nil {
		return fmt.Errorf("enrich: append %s [%s]: %w", key, b.name, err)
	}
	b.logger.DebugContext(ctx, "table appended", slog.String("key", key), slog.Int("rows", table.Len()))
	b.emit(ctx, activity.BuildTableAppendedEvent(activity.TableEventInput{
		Owner: b.name,
		Key:   key,
		Rows:  table.Len(),
	}))
	return nil
}

// StoreRemove deletes the rows at key matching where, or the whole table when
// where is empty. It returns the number of rows removed.
func (b *Base) StoreRemove(ctx context.Context, key, where string, args map[string]any) (int, error) {
	ts, err := b.tables()
	if err != nil {
		return 0, err
	}
	if err := b.requireKey(ctx, ts, key); err != nil {
		return 0, err
	}
	filter, err := b.compileWhere(where, args)
	if err != nil {
		return 0, err
	}
	removed, err := ts.Remove(ctx, key, filter)
	if err != nil {
		return removed, fmt.Errorf("enrich: remove %s [%s]: %w", key, b.name, err)
	}
	b.logger.DebugContext(ctx, "table rows removed",
		slog.String("key", key), slog.String("where", where), slog.Int("removed", removed))
	b.emit(ctx, activity.BuildTableRemovedEvent(activity.TableEventInput{
		Owner:   b.name,
		Key:     key,
		Removed: removed,
		Where:   where,
	}))
	return removed, nil
}

// StoreSelect streams the rows at key matching where in chunks of the
// manager's chunk size. The key is checked before the sequence is returned.
func (b *Base) StoreSelect(ctx context.Context, key, where string, args map[string]any) (iter.Seq2[*store.Table, error], error) {
	ts, err := b.tables()
	if err != nil {
		return nil, err
	}
	if err := b.requireKey(ctx, ts, key); err != nil {
		return nil, err
	}
	filter, err := b.compileWhere(where, args)
	if err != nil {
		return nil, err
	}
	return ts.Select(ctx, key, filter, b.manager.ChunkSize()), nil
}

// StoreSelectMultiple joins the tables at keys on row index and streams the
// joined rows matching where. Every key is checked first; the error names the
// first missing one.
func (b *Base) StoreSelectMultiple(ctx context.Context, keys []string, where string, args map[string]any) (iter.Seq2[*store.Table, error], error) {
	ts, err := b.tables()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("enrich: select multiple needs at least one key [%s]", b.name)
	}
	for _, key := range keys {
		if err := b.requireKey(ctx, ts, key); err != nil {
			return nil, err
		}
	}
	filter, err := b.compileWhere(where, args)
	if err != nil {
		return nil, err
	}
	return ts.SelectAsMultiple(ctx, slices.Clone(keys), filter, b.manager.ChunkSize()), nil
}

// StoreCheck reports whether key holds a table. It never fails.
func (b *Base) StoreCheck(ctx context.Context, key string) bool {
	return b.manager.CheckStore(ctx, key)
}

// StoreLabels returns the labels of the underlying manager.
func (b *Base) StoreLabels() []string {
	return b.manager.Labels()
}

// StoreKeys lists every stored table key.
func (b *Base) StoreKeys(ctx context.Context) ([]string, error) {
	ts, err := b.tables()
	if err != nil {
		return nil, err
	}
	keys, err := ts.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("enrich: list keys [%s]: %w", b.name, err)
	}
	return keys, nil
}

// StoreRoots returns the distinct top-level segments of the stored keys,
// for example "main" and "raw".
func (b *Base) StoreRoots(ctx context.Context) ([]string, error) {
	keys, err := b.StoreKeys(ctx)
	if err != nil {
		return nil, err
	}
	return store.Roots(keys), nil
}

// StoreTimepoints returns the manager's timepoints, or nil when it has none.
func (b *Base) StoreTimepoints() []int {
	if tp, ok := b.manager.(TimepointProvider); ok {
		return tp.Timepoints()
	}
	return nil
}

// StoreTimepointKeys returns the count column of each timepoint, c_0, c_1 and so on.
func (b *Base) StoreTimepointKeys() []string {
	tps := b.StoreTimepoints()
	out := make([]string, 0, len(tps))
	for _, tp := range tps {
		out = append(out, TimepointColumn(tp))
	}
	return out
}

// TimepointColumn names the count column for timepoint tp.
func TimepointColumn(tp int) string {
	return fmt.Sprintf("c_%d", tp)
}
