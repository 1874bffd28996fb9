// Package script implements a scoring plugin whose per-row score is written in
// JavaScript and run in goja.
//
// The source must define a function score(row). The row object carries every
// count column plus "index". A numeric result is written to the "score"
// column; an object result is written column by column; null or undefined
// drops the row.
package script

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/store"
)

// Name is the registry name of the plugin.
const Name = "script"

// ScoreColumn receives numeric results.
const ScoreColumn = "score"

var (
	// ErrNoScoreFunction marks a source that does not define score(row).
	ErrNoScoreFunction = errors.New("script: source must define function score(row)")
	// ErrResultType marks a score result that is neither a number nor an object.
	ErrResultType = errors.New("script: unsupported score result")
	// ErrRowDropped is returned by RowApply when score(row) returns null or
	// undefined.
	ErrRowDropped = errors.New("script: row dropped")
)

// Settings are the bound plugin options.
type Settings struct {
	Source      string `json:"source" validate:"required"`
	OutputTable string `json:"output_table" validate:"required,excludesall=/"`
	Where       string `json:"where"`
}

// Options declares the plugin options in presentation order.
func Options() *enrich.OptionCollection {
	return enrich.NewOptionCollection().
		AddOption("Script source", "source", enrich.DTypeString, "", nil,
			"JavaScript defining function score(row)").
		AddOption("Output table", "output_table", enrich.DTypeString, "scores", nil,
			"Table written under /main/<label>/").
		AddOption("Row filter", "where", enrich.DTypeString, "", nil,
			"Expression selecting the count rows to score")
}

// Register adds the plugin to r.
func Register(r *enrich.Registry) error {
	return r.Register(enrich.Registration{
		Name:        Name,
		Description: "Scores rows with a user supplied JavaScript function",
		Options:     Options,
		Factory:     New,
	})
}

// Plugin runs a compiled score function over every counts row.
type Plugin struct {
	*enrich.Base
	settings Settings

	mu    sync.Mutex
	vm    *goja.Runtime
	score goja.Callable
}

// New compiles the source and resolves its score function.
func New(base *enrich.Base, options map[string]any) (enrich.ScoringPlugin, error) {
	settings, err := enrich.BindOptions[Settings](base.Name(), Options(), options)
	if err != nil {
		return nil, err
	}
	program, err := goja.Compile(base.Name(), settings.Source, false)
	if err != nil {
		return nil, fmt.Errorf("script: compile: %w", err)
	}
	vm := goja.New()
	if _, err := vm.RunProgram(program); err != nil {
		return nil, fmt.Errorf("script: load: %w", err)
	}
	score, ok := goja.AssertFunction(vm.Get("score"))
	if !ok {
		return nil, ErrNoScoreFunction
	}
	return &Plugin{Base: base, settings: settings, vm: vm, score: score}, nil
}

// Settings returns the bound options.
func (p *Plugin) Settings() Settings { return p.settings }

// ComputeScores writes /main/<label>/<output_table> for every label with
// counts, replacing earlier output. Cancelling ctx interrupts a running
// score(row) call.
func (p *Plugin) ComputeScores(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.vm.ClearInterrupt()
	stop := context.AfterFunc(ctx, func() {
		p.vm.Interrupt(ctx.Err())
	})
	defer func() {
		if !stop() {
			// ctx fired; later RowApply calls must not see the interrupt.
			p.vm.ClearInterrupt()
		}
	}()

	scored := 0
	for _, label := range p.StoreLabels() {
		countsKey := fmt.Sprintf("/main/%s/counts", label)
		if !p.StoreCheck(ctx, countsKey) {
			continue
		}
		n, err := p.scoreLabel(ctx, label, countsKey)
		if err != nil {
			return err
		}
		scored += n
	}
	p.ReportComputed(ctx, map[string]any{"rows": scored, "output_table": p.settings.OutputTable})
	return nil
}

func (p *Plugin) scoreLabel(ctx context.Context, label, countsKey string) (int, error) {
	chunks, err := p.StoreSelect(ctx, countsKey, p.settings.Where, nil)
	if err != nil {
		return 0, err
	}
	outKey := fmt.Sprintf("/main/%s/%s", label, p.settings.OutputTable)
	written := 0
	first := true
	for chunk, err := range chunks {
		if err != nil {
			return written, err
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}
		out := store.NewTable()
		for _, row := range chunk.Rows {
			scoredRow, err := p.RowApply(row)
			if errors.Is(err, ErrRowDropped) {
				continue
			}
			if err != nil {
				return written, err
			}
			out.Add(scoredRow.Index, scoredRow.Values)
		}
		if first {
			err = p.StorePut(ctx, outKey, out, out.Columns)
			first = false
		} else {
			err = p.StoreAppend(ctx, outKey, out)
		}
		if err != nil {
			return written, err
		}
		written += out.Len()
	}
	return written, nil
}

// RowApply calls score(row) for one counts row.
func (p *Plugin) RowApply(row store.Record) (store.Record, error) {
	env := make(map[string]any, len(row.Values)+1)
	for k, v := range row.Values {
		env[k] = store.Normalize(v)
	}
	env["index"] = row.Index

	p.mu.Lock()
	result, err := p.score(goja.Undefined(), p.vm.ToValue(env))
	p.mu.Unlock()
	if err != nil {
		return store.Record{}, fmt.Errorf("script: score %s [%s]: %w", row.Index, p.Name(), err)
	}
	if goja.IsUndefined(result) || goja.IsNull(result) {
		return store.Record{}, ErrRowDropped
	}

	switch v := result.Export().(type) {
	case int64, float64:
		return store.Record{Index: row.Index, Values: map[string]any{ScoreColumn: v}}, nil
	case map[string]any:
		values := make(map[string]any, len(v))
		for k, val := range v {
			values[k] = store.Normalize(val)
		}
		return store.Record{Index: row.Index, Values: values}, nil
	default:
		return store.Record{}, fmt.Errorf("%w: %s returned %T", ErrResultType, row.Index, v)
	}
}
