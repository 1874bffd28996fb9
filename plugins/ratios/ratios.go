// Package ratios implements a log-ratio scoring plugin: each identifier is
// scored by the log of its last to first timepoint count.
package ratios

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/store"
)

// Name is the registry name of the plugin.
const Name = "ratios"

// Output columns.
const (
	ScoreColumn = "score"
	FirstColumn = "c_first"
	LastColumn  = "c_last"
)

// ErrUnscorable marks a row whose counts cannot be scored.
var ErrUnscorable = errors.New("ratios: row cannot be scored")

// Settings are the bound plugin options.
type Settings struct {
	Pseudocount   float64 `json:"pseudocount" validate:"gt=0"`
	LogBase       string  `json:"log_base" validate:"oneof=e 2 10"`
	MinInputCount int64   `json:"min_input_count" validate:"gte=0"`
}

// Options declares the plugin options in presentation order.
func Options() *enrich.OptionCollection {
	return enrich.NewOptionCollection().
		AddOption("Pseudocount", "pseudocount", enrich.DTypeFloat, 0.5, nil,
			"Added to both counts before taking the ratio").
		AddOption("Log base", "log_base", enrich.DTypeChoice, "e", []any{"e", "2", "10"},
			"Base of the logarithm applied to the ratio").
		AddOption("Minimum input count", "min_input_count", enrich.DTypeInt, 0, nil,
			"Identifiers with fewer counts at the first timepoint are not scored")
}

// Register adds the plugin to r.
func Register(r *enrich.Registry) error {
	return r.Register(enrich.Registration{
		Name:        Name,
		Description: "Log ratio of last to first timepoint counts",
		Options:     Options,
		Factory:     New,
	})
}

// Plugin scores identifiers by log((c_last+pc)/(c_first+pc)).
type Plugin struct {
	*enrich.Base
	settings Settings
	log      func(float64) float64

	first string
	last  string
}

// New builds the plugin from resolved options.
func New(base *enrich.Base, options map[string]any) (enrich.ScoringPlugin, error) {
	settings, err := enrich.BindOptions[Settings](base.Name(), Options(), options)
	if err != nil {
		return nil, err
	}
	p := &Plugin{Base: base, settings: settings}
	switch settings.LogBase {
	case "2":
		p.log = math.Log2
	case "10":
		p.log = math.Log10
	default:
		p.log = math.Log
	}
	return p, nil
}

// Settings returns the bound options.
func (p *Plugin) Settings() Settings { return p.settings }

// ComputeScores writes /main/<label>/scores for every label whose counts
// span at least two timepoints, replacing earlier output.
func (p *Plugin) ComputeScores(ctx context.Context) error {
	scored := 0
	for _, label := range p.StoreLabels() {
		countsKey := fmt.Sprintf("/main/%s/counts", label)
		if !p.StoreCheck(ctx, countsKey) {
			p.Logger().DebugContext(ctx, "no counts for label", "label", label)
			continue
		}
		columns, err := p.timepointColumns(ctx, countsKey)
		if err != nil {
			return err
		}
		if len(columns) < 2 {
			p.Logger().DebugContext(ctx, "fewer than two timepoints", "label", label, "columns", columns)
			continue
		}
		p.first, p.last = columns[0], columns[len(columns)-1]

		n, err := p.scoreLabel(ctx, label, countsKey)
		if err != nil {
			return err
		}
		scored += n
	}
	p.ReportComputed(ctx, map[string]any{"rows": scored})
	return nil
}

func (p *Plugin) scoreLabel(ctx context.Context, label, countsKey string) (int, error) {
	where := ""
	if p.settings.MinInputCount > 0 {
		where = fmt.Sprintf("%s >= min_input_count", p.first)
	}
	chunks, err := p.StoreSelect(ctx, countsKey, where, map[string]any{
		"min_input_count": p.settings.MinInputCount,
	})
	if err != nil {
		return 0, err
	}

	scoresKey := fmt.Sprintf("/main/%s/scores", label)
	written := 0
	first := true
	for chunk, err := range chunks {
		if err != nil {
			return written, err
		}
		out := store.NewTable(ScoreColumn, FirstColumn, LastColumn)
		for _, row := range chunk.Rows {
			scoredRow, err := p.RowApply(row)
			if err != nil {
				return written, err
			}
			out.Rows = append(out.Rows, scoredRow)
		}
		if first {
			err = p.StorePut(ctx, scoresKey, out, []string{ScoreColumn})
			first = false
		} else {
			err = p.StoreAppend(ctx, scoresKey, out)
		}
		if err != nil {
			return written, err
		}
		written += out.Len()
	}
	return written, nil
}

// RowApply scores one counts row using the first and last timepoint columns
// selected by ComputeScores.
func (p *Plugin) RowApply(row store.Record) (store.Record, error) {
	c0, ok := row.Float(p.first)
	if !ok {
		return store.Record{}, fmt.Errorf("%w: %s has no %s", ErrUnscorable, row.Index, p.first)
	}
	c1, ok := row.Float(p.last)
	if !ok {
		return store.Record{}, fmt.Errorf("%w: %s has no %s", ErrUnscorable, row.Index, p.last)
	}
	pc := p.settings.Pseudocount
	return store.Record{
		Index: row.Index,
		Values: map[string]any{
			ScoreColumn: p.log((c1 + pc) / (c0 + pc)),
			FirstColumn: c0,
			LastColumn:  c1,
		},
	}, nil
}

// timepointColumns returns the manager's timepoint columns, or the c_<n>
// columns of the table at key sorted by timepoint when the manager has none.
func (p *Plugin) timepointColumns(ctx context.Context, key string) ([]string, error) {
	if cols := p.StoreTimepointKeys(); len(cols) > 0 {
		return cols, nil
	}
	chunks, err := p.StoreSelect(ctx, key, "", nil)
	if err != nil {
		return nil, err
	}
	var columns []string
	for chunk, err := range chunks {
		if err != nil {
			return nil, err
		}
		columns = chunk.Columns
		break
	}
	var tps []int
	for _, col := range columns {
		rest, ok := strings.CutPrefix(col, "c_")
		if !ok {
			continue
		}
		if tp, err := strconv.Atoi(rest); err == nil {
			tps = append(tps, tp)
		}
	}
	slices.Sort(tps)
	out := make([]string, 0, len(tps))
	for _, tp := range tps {
		out = append(out, enrich.TimepointColumn(tp))
	}
	return out, nil
}
