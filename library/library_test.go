package library_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/config"
	"github.com/goliatone/go-enrich/library"
	"github.com/goliatone/go-enrich/pkg/activity"
	"github.com/goliatone/go-enrich/store"
)

func writeCounts(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write counts: %v", err)
	}
	return path
}

func countsOf(t *testing.T, ts *store.TableStore, key string) map[string]int64 {
	t.Helper()
	table, err := ts.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	out := map[string]int64{}
	for _, row := range table.Rows {
		n, ok := row.Int(library.CountColumn)
		if !ok {
			t.Fatalf("row %s has no integer count: %#v", row.Index, row.Values)
		}
		out[row.Index] = n
	}
	return out
}

func TestIdOnlyCalculateFiltersByMinCount(t *testing.T) {
	ctx := context.Background()
	path := writeCounts(t, "counts.tsv", "id\tcount\nidA\t10\nidB\t3\nidC\t5\n")
	ts := store.NewMemoryStore()
	capture := &activity.CaptureHook{}

	lib := library.NewIdOnlySeqLib(ts, library.WithActivityHooks(activity.Hooks{capture}))
	err := lib.Configure(map[string]any{
		"name":        "lib1",
		"counts file": path,
		"identifiers": map[string]any{"min count": 5},
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := lib.Calculate(ctx); err != nil {
		t.Fatalf("calculate: %v", err)
	}

	raw := countsOf(t, ts, "/raw/identifiers/counts")
	if want := map[string]int64{"idA": 10, "idB": 3, "idC": 5}; !reflect.DeepEqual(want, raw) {
		t.Fatalf("raw counts mismatch\nwant: %v\n got: %v", want, raw)
	}
	main := countsOf(t, ts, "/main/identifiers/counts")
	if want := map[string]int64{"idA": 10, "idC": 5}; !reflect.DeepEqual(want, main) {
		t.Fatalf("main counts mismatch\nwant: %v\n got: %v", want, main)
	}

	var verbs []string
	for _, event := range capture.Events {
		verbs = append(verbs, event.Verb)
	}
	want := []string{activity.VerbTablePut, activity.VerbTablePut, activity.VerbLibraryCalculated}
	if !reflect.DeepEqual(want, verbs) {
		t.Fatalf("unexpected events\nwant: %v\n got: %v", want, verbs)
	}
	if capture.Events[1].Metadata["removed"] != 1 {
		t.Fatalf("expected one removed row, got %v", capture.Events[1].Metadata)
	}
}

func TestIdOnlyCalculateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := writeCounts(t, "counts.csv", "id,count\nidA,10\nidB,3\n")
	ts := store.NewMemoryStore()

	lib := library.NewIdOnlySeqLib(ts)
	if err := lib.Configure(config.IdOnlySeqLibConfiguration{
		SeqLibConfiguration: config.SeqLibConfiguration{Name: "lib1", CountsFile: path},
	}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := lib.Calculate(ctx); err != nil {
		t.Fatalf("first calculate: %v", err)
	}
	before := countsOf(t, ts, "/main/identifiers/counts")

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove counts file: %v", err)
	}
	if err := lib.Calculate(ctx); err != nil {
		t.Fatalf("second calculate should be a no-op, got %v", err)
	}
	after := countsOf(t, ts, "/main/identifiers/counts")
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("counts changed on second calculate\nbefore: %v\n after: %v", before, after)
	}
	if len(after) != 2 {
		t.Fatalf("min count 0 should keep every row, got %v", after)
	}
}

func TestConfigureRetagsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	path := writeCounts(t, "counts.tsv", "id\tcount\nidA\t10\n")

	lib := library.NewIdOnlySeqLib(store.NewMemoryStore(), library.WithLogger(logger))
	for _, name := range []string{"lib1", "lib2"} {
		if err := lib.Configure(map[string]any{"name": name, "counts file": path}); err != nil {
			t.Fatalf("configure %s: %v", name, err)
		}
	}
	if err := lib.Calculate(context.Background()); err != nil {
		t.Fatalf("calculate: %v", err)
	}

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, "library calculated") {
			line = l
		}
	}
	if line == "" {
		t.Fatalf("expected a calculation log line, got %q", buf.String())
	}
	if strings.Count(line, `"library":`) != 1 || !strings.Contains(line, `"library":"lib2"`) {
		t.Fatalf("expected a single library=lib2 attribute, got %s", line)
	}
}

func TestIdOnlyCalculateMissingSource(t *testing.T) {
	lib := library.NewIdOnlySeqLib(store.NewMemoryStore())
	if err := lib.Configure(map[string]any{"name": "lib1"}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	err := lib.Calculate(context.Background())
	var missing *enrich.MissingSourceError
	if !errors.As(err, &missing) || missing.Library != "lib1" {
		t.Fatalf("expected MissingSourceError for lib1, got %v", err)
	}
	if !errors.Is(err, enrich.ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing counts file [lib1]") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestIdOnlyConfigureRejectsOtherTypes(t *testing.T) {
	lib := library.NewIdOnlySeqLib(store.NewMemoryStore())
	for _, cfg := range []any{"lib1", 42, config.SeqLibConfiguration{Name: "x"}, (*config.IdOnlySeqLibConfiguration)(nil)} {
		err := lib.Configure(cfg)
		var typeErr *enrich.ConfigTypeError
		if !errors.As(err, &typeErr) {
			t.Fatalf("Configure(%T): expected ConfigTypeError, got %v", cfg, err)
		}
		if !errors.Is(err, enrich.ErrConfigType) {
			t.Fatalf("Configure(%T): expected ErrConfigType", cfg)
		}
	}
}

func TestIdOnlySerialize(t *testing.T) {
	lib := library.NewIdOnlySeqLib(store.NewMemoryStore())
	if err := lib.Configure(map[string]any{"name": "lib1", "timepoint": 2}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	got := lib.Serialize()
	want := map[string]any{
		"name":                  "lib1",
		"timepoint":             2,
		"report filtered reads": false,
		"identifiers":           map[string]any{},
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("serialize mismatch\nwant: %#v\n got: %#v", want, got)
	}

	lib.IdentifierMinCount = 7
	identifiers := lib.Serialize()["identifiers"].(map[string]any)
	if identifiers["min count"] != 7 {
		t.Fatalf("expected min count 7, got %v", identifiers)
	}
}

func TestIdOnlySerializeRoundTrip(t *testing.T) {
	first := library.NewIdOnlySeqLib(store.NewMemoryStore())
	if err := first.Configure(map[string]any{
		"name":        "lib1",
		"counts file": "counts.tsv",
		"identifiers": map[string]any{"min count": 4},
	}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	second := library.NewIdOnlySeqLib(store.NewMemoryStore())
	if err := second.Configure(first.Serialize()); err != nil {
		t.Fatalf("reconfigure from serialized: %v", err)
	}
	if !reflect.DeepEqual(first.Serialize(), second.Serialize()) {
		t.Fatalf("round trip mismatch\nfirst: %v\nsecond: %v", first.Serialize(), second.Serialize())
	}
	if second.IdentifierMinCount != 4 || second.CountsFile() != "counts.tsv" {
		t.Fatalf("unexpected reconfigured state: %+v", second)
	}
}

func TestReadCountsMergesDuplicates(t *testing.T) {
	table, err := library.ReadCounts(strings.NewReader("id\tcount\n# comment\nidA\t2\nidB\t1\nidA\t3\n"), '\t')
	if err != nil {
		t.Fatalf("ReadCounts: %v", err)
	}
	if got := table.Indexes(); !reflect.DeepEqual([]string{"idA", "idB"}, got) {
		t.Fatalf("unexpected order %v", got)
	}
	row, _ := table.Lookup("idA")
	if n, _ := row.Int(library.CountColumn); n != 5 {
		t.Fatalf("expected summed count 5, got %d", n)
	}
}

func TestReadCountsErrors(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no count":       "id\tvalue\nidA\t1\n",
		"negative":       "id\tcount\nidA\t-1\n",
		"not a number":   "id\tcount\nidA\tmany\n",
		"fractional":     "id\tcount\nidA\t1.5\n",
		"empty id":       "id\tcount\n\t4\n",
		"ragged columns": "id\tcount\nidA\t1\textra\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := library.ReadCounts(strings.NewReader(body), '\t')
			if !errors.Is(err, library.ErrCountsFormat) {
				t.Fatalf("expected ErrCountsFormat, got %v", err)
			}
		})
	}
}

func TestCombineCounts(t *testing.T) {
	ctx := context.Background()
	specs := []struct {
		name string
		tp   int
		body string
	}{
		{"t0", 0, "id\tcount\nidA\t10\nidB\t4\n"},
		{"t1a", 1, "id\tcount\nidA\t20\nidC\t1\n"},
		{"t1b", 1, "id\tcount\nidA\t5\n"},
	}
	var libs []library.Library
	for _, spec := range specs {
		lib, err := library.New(library.KindIdOnly, store.NewMemoryStore())
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if err := lib.Configure(map[string]any{
			"name":        spec.name,
			"timepoint":   spec.tp,
			"counts file": writeCounts(t, spec.name+".tsv", spec.body),
			"identifiers": map[string]any{},
		}); err != nil {
			t.Fatalf("configure %s: %v", spec.name, err)
		}
		if err := lib.Calculate(ctx); err != nil {
			t.Fatalf("calculate %s: %v", spec.name, err)
		}
		libs = append(libs, lib)
	}

	dst := store.NewMemoryStore()
	tps, err := library.CombineCounts(ctx, dst, library.IdentifiersLabel, libs)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if !reflect.DeepEqual([]int{0, 1}, tps) {
		t.Fatalf("unexpected timepoints %v", tps)
	}
	table, err := dst.Get(ctx, "/main/identifiers/counts")
	if err != nil {
		t.Fatalf("get combined: %v", err)
	}
	if !reflect.DeepEqual([]string{"idA", "idB", "idC"}, table.Indexes()) {
		t.Fatalf("unexpected index order %v", table.Indexes())
	}
	want := map[string][2]int64{"idA": {10, 25}, "idB": {4, 0}, "idC": {0, 1}}
	for id, counts := range want {
		row, _ := table.Lookup(id)
		c0, _ := row.Int("c_0")
		c1, _ := row.Int("c_1")
		if c0 != counts[0] || c1 != counts[1] {
			t.Fatalf("%s: want %v, got [%d %d]", id, counts, c0, c1)
		}
	}
}

func TestKindsAndDetect(t *testing.T) {
	if got := library.Kinds(); !reflect.DeepEqual([]string{library.KindIdOnly}, got) {
		t.Fatalf("unexpected kinds %v", got)
	}
	if _, err := library.New("Barcode", store.NewMemoryStore()); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	kind, err := library.DetectKind(map[string]any{"name": "x", "identifiers": map[string]any{}})
	if err != nil || kind != library.KindIdOnly {
		t.Fatalf("expected %s, got %q (%v)", library.KindIdOnly, kind, err)
	}
	if _, err := library.DetectKind(map[string]any{"name": "x"}); err == nil {
		t.Fatalf("expected error for undetectable kind")
	}
}

func TestSeqLibIsStoreManager(t *testing.T) {
	var _ enrich.StoreManager = library.NewIdOnlySeqLib(nil)

	lib := library.NewIdOnlySeqLib(store.NewMemoryStore(), library.WithChunkSize(2))
	lib.AddLabel("identifiers")
	lib.AddLabel("extra")
	if got := lib.Labels(); !reflect.DeepEqual([]string{"identifiers", "extra"}, got) {
		t.Fatalf("unexpected labels %v", got)
	}
	if lib.ChunkSize() != 2 {
		t.Fatalf("expected chunk size 2, got %d", lib.ChunkSize())
	}
	if lib.CheckStore(context.Background(), "/main/identifiers/counts") {
		t.Fatalf("expected empty store")
	}
}
