package enrich

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-enrich/pkg/activity"
)

// WithActivityHooks attaches activity hooks that receive store mutation and
// lifecycle events. Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) BaseOption {
	normalized := cloneActivityHooks(hooks)
	return func(b *Base) {
		b.hooks = normalized
	}
}

// ActivityHooks returns a clone of the hooks configured on the plugin.
func (b *Base) ActivityHooks() activity.Hooks {
	if b == nil {
		return nil
	}
	return cloneActivityHooks(b.hooks)
}

// emit stamps the run and actor on event and forwards it. Hook failures are
// logged, not returned.
func (b *Base) emit(ctx context.Context, event activity.Event) {
	if !b.emitter.Enabled() {
		return
	}
	if event.RunID == "" {
		event.RunID = b.runID
	}
	if event.ActorID == "" {
		event.ActorID = b.actor
	}
	if err := b.emitter.Emit(ctx, event); err != nil {
		b.logger.WarnContext(ctx, "activity hook failed",
			slog.String("verb", event.Verb),
			slog.String("object", event.ObjectID),
			slog.Any("error", err))
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

// ReportComputed logs and emits the completion of a scoring run.
func (b *Base) ReportComputed(ctx context.Context, metadata map[string]any) {
	attrs := make([]any, 0, len(metadata))
	for key, value := range metadata {
		attrs = append(attrs, slog.Any(key, value))
	}
	b.logger.InfoContext(ctx, "scores computed", attrs...)
	b.emit(ctx, activity.BuildScoresComputedEvent(activity.LifecycleEventInput{
		Name:     b.name,
		Metadata: metadata,
	}))
}
