package library

import (
	"context"
	"fmt"
	"slices"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/store"
)

// CombineCounts merges the filtered counts of label from every library into
// one table in dst with a c_<timepoint> column per timepoint. Libraries at
// the same timepoint are summed; identifiers missing at a timepoint count 0.
// It returns the sorted timepoints.
func CombineCounts(ctx context.Context, dst *store.TableStore, label string, libs []Library) ([]int, error) {
	if len(libs) == 0 {
		return nil, fmt.Errorf("library: no libraries to combine")
	}
	byTimepoint := map[int][]Library{}
	for _, lib := range libs {
		byTimepoint[lib.Timepoint()] = append(byTimepoint[lib.Timepoint()], lib)
	}
	timepoints := make([]int, 0, len(byTimepoint))
	for tp := range byTimepoint {
		timepoints = append(timepoints, tp)
	}
	slices.Sort(timepoints)

	columns := make([]string, 0, len(timepoints))
	for _, tp := range timepoints {
		columns = append(columns, enrich.TimepointColumn(tp))
	}

	rows := map[string]map[string]any{}
	var order []string
	for _, tp := range timepoints {
		col := enrich.TimepointColumn(tp)
		for _, lib := range byTimepoint[tp] {
			key := CountsKey(label)
			for chunk, err := range lib.Store().Select(ctx, key, nil, lib.ChunkSize()) {
				if err != nil {
					return nil, fmt.Errorf("library: read %s [%s]: %w", key, lib.Name(), err)
				}
				for _, rec := range chunk.Rows {
					count, _ := rec.Int(CountColumn)
					row, ok := rows[rec.Index]
					if !ok {
						row = make(map[string]any, len(columns))
						for _, c := range columns {
							row[c] = int64(0)
						}
						rows[rec.Index] = row
						order = append(order, rec.Index)
					}
					row[col] = row[col].(int64) + count
				}
			}
		}
	}

	table := store.NewTable(columns...)
	for _, index := range order {
		table.Add(index, rows[index])
	}
	if err := dst.Put(ctx, CountsKey(label), table, columns); err != nil {
		return nil, fmt.Errorf("library: write combined %s: %w", CountsKey(label), err)
	}
	return timepoints, nil
}
