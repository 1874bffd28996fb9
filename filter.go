package enrich

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-enrich/store"
)

// FilterConfig configures CompileFilter.
type FilterConfig struct {
	// Evaluator runs the expression. Nil selects expr with MathFunctions.
	Evaluator Evaluator
	// Args are exposed both as top-level names and under "args".
	Args map[string]any
	// Owner names the library or plugin for error messages.
	Owner  string
	Logger EvaluatorLogger
}

// CompileFilter turns a where-expression such as "count >= min_count" into a
// store.Filter. Each row is exposed as its columns plus "index". An empty
// expression yields a nil filter, which selects every row.
func CompileFilter(where string, cfg FilterConfig) (store.Filter, error) {
	if strings.TrimSpace(where) == "" {
		return nil, nil
	}
	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = NewExprEvaluator(ExprWithFunctionRegistry(MathFunctions()))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopEvaluatorLogger{}
	}
	engine := evaluatorEngineName(evaluator)

	start := time.Now()
	rule, err := evaluator.Compile(where)
	err = wrapEvaluationError(engine, where, cfg.Owner, err)
	logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     where,
		Owner:    cfg.Owner,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}

	args := maps.Clone(cfg.Args)
	now := time.Now()
	return func(row store.Record) (bool, error) {
		value, err := rule.Evaluate(RuleContext{
			Snapshot: rowEnvironment(row),
			Now:      &now,
			Args:     args,
			Owner:    cfg.Owner,
		})
		if err != nil {
			err = wrapEvaluationError(engine, where, cfg.Owner, err)
			logger.LogEvaluation(EvaluatorLogEvent{Engine: engine, Expr: where, Owner: cfg.Owner, Err: err})
			return false, err
		}
		keep, ok := value.(bool)
		if !ok {
			return false, wrapEvaluationError(engine, where, cfg.Owner,
				fmt.Errorf("row %q: expression returned %T, want bool", row.Index, value))
		}
		return keep, nil
	}, nil
}

func rowEnvironment(row store.Record) map[string]any {
	env := make(map[string]any, len(row.Values)+1)
	for k, v := range row.Values {
		env[k] = store.Normalize(v)
	}
	env["index"] = row.Index
	return env
}
