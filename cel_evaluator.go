package enrich

import (
	"fmt"
	"reflect"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Row columns and
// filter arguments are declared as dynamic variables, so the first row seen
// for an expression fixes the variable set of the cached program.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	vars := e.variables(ctx)
	program, err := e.loadOrCompile(expression, vars)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.ownerLabel(), err)
	}
	out, _, err := program.program.Eval(e.activation(ctx, vars))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.ownerLabel(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	return &celCompiledRule{
		evaluator:  e,
		expression: expression,
	}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, vars map[string]any) (*celProgram, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get("cel:" + expression); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(vars)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{
		env:     env,
		program: prg,
	}
	if e.cache != nil {
		e.cache.Set("cel:"+expression, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(vars map[string]any) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
		celgo.CrossTypeNumericComparisons(true),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.callBinding()),
			),
		))
	}
	for key := range vars {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

// variables merges filter arguments and row columns; columns win.
func (e *celEvaluator) variables(ctx RuleContext) map[string]any {
	vars := make(map[string]any, len(ctx.Args))
	for key, value := range ctx.Args {
		vars[key] = value
	}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		vars[key] = value
	}
	delete(vars, "now")
	delete(vars, "args")
	delete(vars, "metadata")
	return vars
}

func (e *celEvaluator) activation(ctx RuleContext, vars map[string]any) map[string]any {
	activation := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	for key, value := range vars {
		activation[key] = value
	}
	return activation
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled rule missing evaluator"))
	}
	return r.evaluator.Evaluate(ctx, r.expression)
}

func snapshotAsMap(value any) map[string]any {
	if value == nil {
		return map[string]any{}
	}
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// callBinding backs call(name, [args...]); CEL has no variadic functions.
func (e *celEvaluator) callBinding() functions.BinaryOp {
	return func(nameVal, argsVal ref.Val) ref.Val {
		if e.registry == nil {
			return types.NewErr("enrich: function registry not configured")
		}
		name, ok := nameVal.Value().(string)
		if !ok {
			return types.NewErr("enrich: call name must be string")
		}
		native, err := argsVal.ConvertToNative(reflect.TypeOf([]any{}))
		if err != nil {
			return types.NewErr("enrich: call arguments: %s", err.Error())
		}
		result, err := e.registry.Call(name, native.([]any)...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
