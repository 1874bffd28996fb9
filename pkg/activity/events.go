package activity

import (
	"strings"
	"time"
)

// Verbs emitted by libraries and scoring plugins.
const (
	VerbTablePut          = "table.put"
	VerbTableAppended     = "table.appended"
	VerbTableRemoved      = "table.removed"
	VerbLibraryCalculated = "library.calculated"
	VerbScoresComputed    = "scores.computed"
)

// TableEventInput describes a mutation of one stored table.
type TableEventInput struct {
	ActorID    string
	Channel    string
	RunID      string
	Owner      string
	Key        string
	Rows       int
	Removed    int
	Where      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildTablePutEvent describes a table being written or replaced.
func BuildTablePutEvent(input TableEventInput) Event {
	return buildTableEvent(VerbTablePut, input)
}

// BuildTableAppendedEvent describes rows appended to a table.
func BuildTableAppendedEvent(input TableEventInput) Event {
	return buildTableEvent(VerbTableAppended, input)
}

// BuildTableRemovedEvent describes rows, or a whole table, being removed.
func BuildTableRemovedEvent(input TableEventInput) Event {
	return buildTableEvent(VerbTableRemoved, input)
}

func buildTableEvent(verb string, input TableEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Owner != "" {
		metadata = ensureMetadata(metadata)
		metadata["owner"] = input.Owner
	}
	if input.Rows > 0 {
		metadata = ensureMetadata(metadata)
		metadata["rows"] = input.Rows
	}
	if input.Removed > 0 {
		metadata = ensureMetadata(metadata)
		metadata["removed"] = input.Removed
	}
	if input.Where != "" {
		metadata = ensureMetadata(metadata)
		metadata["where"] = input.Where
	}

	objectID := strings.TrimSpace(input.Key)
	if objectID == "" {
		objectID = "table"
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		ObjectType: "table",
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		RunID:      strings.TrimSpace(input.RunID),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// LifecycleEventInput describes a library or plugin finishing a stage.
type LifecycleEventInput struct {
	ActorID    string
	Channel    string
	RunID      string
	Name       string
	Kind       string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildLibraryCalculatedEvent describes a completed Calculate call.
func BuildLibraryCalculatedEvent(input LifecycleEventInput) Event {
	return buildLifecycleEvent(VerbLibraryCalculated, "library", input)
}

// BuildScoresComputedEvent describes a completed scoring run.
func BuildScoresComputedEvent(input LifecycleEventInput) Event {
	return buildLifecycleEvent(VerbScoresComputed, "plugin", input)
}

func buildLifecycleEvent(verb, objectType string, input LifecycleEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Kind != "" {
		metadata = ensureMetadata(metadata)
		metadata["kind"] = input.Kind
	}
	objectID := strings.TrimSpace(input.Name)
	if objectID == "" {
		objectID = objectType
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		RunID:      strings.TrimSpace(input.RunID),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
