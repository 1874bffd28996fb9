package library

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goliatone/go-enrich/pkg/activity"
	"github.com/goliatone/go-enrich/store"
)

// ErrCountsFormat marks a malformed counts file.
var ErrCountsFormat = errors.New("library: malformed counts file")

// ReadCounts parses a counts file delimited by comma. The header names the
// index in its first column and must contain a "count" column. Repeated
// identifiers are merged by summing their counts, keeping first-seen order.
func ReadCounts(r io.Reader, comma rune) (*store.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.Comment = '#'

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", ErrCountsFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCountsFormat, err)
	}
	countIdx := -1
	for i, col := range header {
		if i > 0 && strings.EqualFold(strings.TrimSpace(col), CountColumn) {
			countIdx = i
			break
		}
	}
	if countIdx < 0 {
		return nil, fmt.Errorf("%w: no %q column in header %v", ErrCountsFormat, CountColumn, header)
	}

	sums := map[string]int64{}
	var order []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCountsFormat, err)
		}
		line, _ := reader.FieldPos(0)
		id := strings.TrimSpace(record[0])
		if id == "" {
			return nil, fmt.Errorf("%w: line %d: empty identifier", ErrCountsFormat, line)
		}
		count, err := parseCount(record[countIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCountsFormat, line, err)
		}
		if _, seen := sums[id]; !seen {
			order = append(order, id)
		}
		sums[id] += count
	}

	table := store.NewTable(CountColumn)
	for _, id := range order {
		table.Add(id, map[string]any{CountColumn: sums[id]})
	}
	return table, nil
}

func parseCount(field string) (int64, error) {
	field = strings.TrimSpace(field)
	n, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(field, 64)
		if ferr != nil {
			return 0, fmt.Errorf("count %q is not a number", field)
		}
		if i, ok := store.ToInt(f); ok {
			n = i
		} else {
			return 0, fmt.Errorf("count %q is not an integer", field)
		}
	}
	if n < 0 {
		return 0, fmt.Errorf("count %d is negative", n)
	}
	return n, nil
}

func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}
	return '\t'
}

// CountsFromFile loads the counts file at path into the raw counts of the
// library's first label, replacing any previous raw table. Files ending in
// .csv are comma separated; anything else is tab separated.
func (s *SeqLib) CountsFromFile(ctx context.Context, path string) error {
	if len(s.labels) == 0 {
		return fmt.Errorf("library: %s has no labels to load counts into", s.name)
	}
	label := s.labels[0]

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("library: open counts [%s]: %w", s.name, err)
	}
	defer f.Close()

	table, err := ReadCounts(f, delimiterFor(path))
	if err != nil {
		return fmt.Errorf("library: %s [%s]: %w", path, s.name, err)
	}
	key := RawCountsKey(label)
	if err := s.store.Put(ctx, key, table, []string{CountColumn}); err != nil {
		return fmt.Errorf("library: write %s [%s]: %w", key, s.name, err)
	}
	s.logger.DebugContext(ctx, "counts loaded",
		slog.String("file", path), slog.String("key", key), slog.Int("rows", table.Len()))
	s.emit(ctx, activity.BuildTablePutEvent(activity.TableEventInput{
		Owner:    s.name,
		Key:      key,
		Rows:     table.Len(),
		Metadata: map[string]any{"file": path},
	}))
	return nil
}
