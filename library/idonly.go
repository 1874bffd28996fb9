package library

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-enrich"
	"github.com/goliatone/go-enrich/config"
	"github.com/goliatone/go-enrich/pkg/activity"
	"github.com/goliatone/go-enrich/store"
)

// IdentifiersLabel is the single label of an IdOnlySeqLib.
const IdentifiersLabel = "identifiers"

// KindIdOnly names IdOnlySeqLib in settings documents and the kind registry.
const KindIdOnly = "IdOnlySeqLib"

// IdOnlySeqLib is a library of non-variant identifiers loaded from a counts
// file, with no associated sequencing reads.
type IdOnlySeqLib struct {
	SeqLib
	// IdentifierMinCount is the smallest count an identifier needs to pass
	// filtering.
	IdentifierMinCount int
}

// NewIdOnlySeqLib returns an unconfigured library writing to ts.
func NewIdOnlySeqLib(ts *store.TableStore, opts ...Option) *IdOnlySeqLib {
	lib := &IdOnlySeqLib{SeqLib: newSeqLib(ts, opts...)}
	lib.AddLabel(IdentifiersLabel)
	return lib
}

// Kind returns KindIdOnly.
func (l *IdOnlySeqLib) Kind() string { return KindIdOnly }

// Configure accepts a raw settings mapping or a config.IdOnlySeqLibConfiguration
// (value or pointer).
func (l *IdOnlySeqLib) Configure(cfg any) error {
	var settings config.IdOnlySeqLibConfiguration
	switch v := cfg.(type) {
	case map[string]any:
		decoded, err := config.DecodeIdOnlySeqLib(v)
		if err != nil {
			return err
		}
		settings = decoded
	case config.IdOnlySeqLibConfiguration:
		settings = v
	case *config.IdOnlySeqLibConfiguration:
		if v == nil {
			return l.typeError(cfg)
		}
		settings = *v
	default:
		return l.typeError(cfg)
	}
	l.SeqLib.Configure(settings.SeqLibConfiguration)
	l.IdentifierMinCount = settings.Identifiers.MinCount
	return nil
}

func (l *IdOnlySeqLib) typeError(got any) error {
	return &enrich.ConfigTypeError{
		Library:  l.name,
		Got:      got,
		Expected: []string{"map[string]any", "config.IdOnlySeqLibConfiguration"},
	}
}

// Serialize returns the settings as a mapping Configure accepts. "min count"
// is omitted when it is not positive.
func (l *IdOnlySeqLib) Serialize() map[string]any {
	cfg := l.SeqLib.Serialize()
	identifiers := map[string]any{}
	if l.IdentifierMinCount > 0 {
		identifiers["min count"] = l.IdentifierMinCount
	}
	cfg["identifiers"] = identifiers
	return cfg
}

// Calculate loads and filters the identifier counts. It does nothing when the
// filtered counts are already stored.
func (l *IdOnlySeqLib) Calculate(ctx context.Context) error {
	if l.CheckStore(ctx, CountsKey(IdentifiersLabel)) {
		l.logger.DebugContext(ctx, "counts already stored, skipping calculation")
		return nil
	}
	if l.countsFile == "" {
		return &enrich.MissingSourceError{Library: l.name}
	}
	if err := l.CountsFromFile(ctx, l.countsFile); err != nil {
		return err
	}

	where := ""
	if l.IdentifierMinCount > 0 {
		where = "count >= min_count"
	}
	err := l.SaveFilteredCounts(ctx, IdentifiersLabel, where, map[string]any{
		"min_count": int64(l.IdentifierMinCount),
	})
	if err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "library calculated", slog.Int("min_count", l.IdentifierMinCount))
	l.emit(ctx, activity.BuildLibraryCalculatedEvent(activity.LifecycleEventInput{
		Name: l.name,
		Kind: KindIdOnly,
	}))
	return nil
}
