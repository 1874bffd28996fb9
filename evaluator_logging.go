package enrich

import (
	"context"
	"log/slog"
	"time"
)

// EvaluatorLogEvent describes one compiled or failed where-expression.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Owner    string
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// SlogEvaluatorLogger writes evaluator events to logger: failures at warn,
// everything else at debug.
func SlogEvaluatorLogger(logger *slog.Logger) EvaluatorLogger {
	if logger == nil {
		return noopEvaluatorLogger{}
	}
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		attrs := []slog.Attr{
			slog.String("engine", event.Engine),
			slog.String("expr", event.Expr),
			slog.String("owner", event.Owner),
			slog.Duration("duration", event.Duration),
		}
		if event.Err != nil {
			attrs = append(attrs, slog.Any("error", event.Err))
			logger.LogAttrs(context.Background(), slog.LevelWarn, "where expression failed", attrs...)
			return
		}
		logger.LogAttrs(context.Background(), slog.LevelDebug, "where expression compiled", attrs...)
	})
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	case *jsEvaluator:
		return "js"
	default:
		return "custom"
	}
}

// discardLogger is the default logger for libraries and plugins.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
