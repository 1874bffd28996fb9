package library

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/config"
	"github.com/goliatone/go-enrich/pkg/activity"
	"github.com/goliatone/go-enrich/store"
)

// CountColumn is the column holding per-identifier counts.
const CountColumn = "count"

// Option configures a library.
type Option func(*SeqLib)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SeqLib) {
		if logger != nil {
			s.baseLogger = logger
		}
	}
}

// WithChunkSize sets the number of rows processed per chunk.
func WithChunkSize(n int) Option {
	return func(s *SeqLib) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithEvaluator selects the engine used for filter expressions.
func WithEvaluator(e enrich.Evaluator) Option {
	return func(s *SeqLib) {
		s.evaluator = e
	}
}

// WithActivityHooks attaches hooks notified of table writes and completed
// calculations.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(s *SeqLib) {
		s.emitter = activity.NewEmitter(hooks, activity.Config{Enabled: len(hooks) > 0})
	}
}

// SeqLib holds the state shared by every sequencing library: its identity,
// labels and a handle to the table store it writes to. The store is shared
// with the caller and never closed by the library.
type SeqLib struct {
	name                string
	labels              []string
	timepoint           int
	countsFile          string
	reportFilteredReads bool
	outputDir           string

	store     *store.TableStore
	chunkSize int
	runID     string
	evaluator enrich.Evaluator
	emitter   *activity.Emitter

	// logger is baseLogger tagged with the configured name.
	logger     *slog.Logger
	baseLogger *slog.Logger
}

func newSeqLib(ts *store.TableStore, opts ...Option) SeqLib {
	s := SeqLib{
		store:      ts,
		chunkSize:  enrich.DefaultChunkSize,
		runID:      uuid.NewString(),
		baseLogger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	s.logger = s.baseLogger
	return s
}

// Name returns the configured library name.
func (s *SeqLib) Name() string { return s.name }

// Timepoint returns the configured timepoint.
func (s *SeqLib) Timepoint() int { return s.timepoint }

// CountsFile returns the configured counts file path, if any.
func (s *SeqLib) CountsFile() string { return s.countsFile }

// ReportFilteredReads reports whether filtering statistics are logged.
func (s *SeqLib) ReportFilteredReads() bool { return s.reportFilteredReads }

// OutputDir returns the configured output directory, if any.
func (s *SeqLib) OutputDir() string { return s.outputDir }

// AddLabel registers a data label such as "identifiers". Repeats are ignored.
func (s *SeqLib) AddLabel(label string) {
	if label != "" && !slices.Contains(s.labels, label) {
		s.labels = append(s.labels, label)
	}
}

// Labels returns the registered labels in registration order.
func (s *SeqLib) Labels() []string { return slices.Clone(s.labels) }

// Store returns the shared table store.
func (s *SeqLib) Store() *store.TableStore { return s.store }

// ChunkSize returns the rows processed per chunk.
func (s *SeqLib) ChunkSize() int { return s.chunkSize }

// CheckStore reports whether key holds a table. Lookup failures read as absent.
func (s *SeqLib) CheckStore(ctx context.Context, key string) bool {
	if s.store == nil {
		return false
	}
	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "store check failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return ok
}

// Configure applies the base settings.
func (s *SeqLib) Configure(cfg config.SeqLibConfiguration) {
	s.name = cfg.Name
	s.timepoint = cfg.Timepoint
	s.countsFile = cfg.CountsFile
	s.reportFilteredReads = cfg.ReportFilteredReads
	s.outputDir = cfg.OutputDir
	s.logger = s.baseLogger.With(slog.String("library", s.name))
}

// Serialize returns the base settings as a mapping that Configure accepts.
// Unset optional paths are omitted.
func (s *SeqLib) Serialize() map[string]any {
	cfg := map[string]any{
		"name":                  s.name,
		"timepoint":             s.timepoint,
		"report filtered reads": s.reportFilteredReads,
	}
	if s.countsFile != "" {
		cfg["counts file"] = s.countsFile
	}
	if s.outputDir != "" {
		cfg["output directory"] = s.outputDir
	}
	return cfg
}

// RawCountsKey is the store key of the unfiltered counts for label.
func RawCountsKey(label string) string {
	return fmt.Sprintf("/raw/%s/counts", label)
}

// CountsKey is the store key of the filtered counts for label.
func CountsKey(label string) string {
	return fmt.Sprintf("/main/%s/counts", label)
}

// SaveFilteredCounts copies the rows of the raw counts of label matching
// where into the main counts of label, replacing any previous main table.
// An empty where copies every row.
func (s *SeqLib) SaveFilteredCounts(ctx context.Context, label, where string, args map[string]any) error {
	filter, err := enrich.CompileFilter(where, enrich.FilterConfig{
		Evaluator: s.evaluator,
		Args:      args,
		Owner:     s.name,
		Logger:    enrich.SlogEvaluatorLogger(s.logger),
	})
	if err != nil {
		return err
	}

	src, dst := RawCountsKey(label), CountsKey(label)
	total, err := s.countRows(ctx, src)
	if err != nil {
		return err
	}

	kept := 0
	first := true
	for chunk, err := range s.store.Select(ctx, src, filter, s.chunkSize) {
		if err != nil {
			return fmt.Errorf("library: filter %s [%s]: %w", src, s.name, err)
		}
		if first {
			err = s.store.Put(ctx, dst, chunk, []string{CountColumn})
			first = false
		} else {
			err = s.store.Append(ctx, dst, chunk)
		}
		if err != nil {
			return fmt.Errorf("library: write %s [%s]: %w", dst, s.name, err)
		}
		kept += chunk.Len()
	}

	removed := total - kept
	attrs := []any{
		slog.String("label", label),
		slog.String("where", where),
		slog.Int("kept", kept),
		slog.Int("removed", removed),
	}
	if s.reportFilteredReads {
		s.logger.InfoContext(ctx, "filtered counts", attrs...)
	} else {
		s.logger.DebugContext(ctx, "filtered counts", attrs...)
	}
	s.emit(ctx, activity.BuildTablePutEvent(activity.TableEventInput{
		Owner:   s.name,
		Key:     dst,
		Rows:    kept,
		Removed: removed,
		Where:   where,
	}))
	return nil
}

func (s *SeqLib) countRows(ctx context.Context, key string) (int, error) {
	total := 0
	for chunk, err := range s.store.Select(ctx, key, nil, s.chunkSize) {
		if err != nil {
			return 0, fmt.Errorf("library: read %s [%s]: %w", key, s.name, err)
		}
		total += chunk.Len()
	}
	return total, nil
}

func (s *SeqLib) emit(ctx context.Context, event activity.Event) {
	if !s.emitter.Enabled() {
		return
	}
	event.RunID = s.runID
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "activity hook failed", slog.String("verb", event.Verb), slog.Any("error", err))
	}
}
