package enrich

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// jsEvaluator runs where-expressions in goja. A goja runtime is not safe for
// concurrent use, so each evaluator keeps one runtime behind a mutex and
// rebinds the row environment per call.
type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry

	mu sync.Mutex
	vm *goja.Runtime
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	cfg := applyJSEvaluatorOptions(opts)
	return &jsEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("js", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx.withDefaults(), expression, program)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("js", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &jsCompiledRule{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get("js:" + expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapExpression(expression), false)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set("js:"+expression, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx RuleContext, expression string, program *goja.Program) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vm == nil {
		e.vm = goja.New()
		e.bindFunctions(e.vm)
	}
	bound := e.bindContext(e.vm, ctx)
	defer func() {
		for _, name := range bound {
			_ = e.vm.GlobalObject().Delete(name)
		}
	}()
	value, err := e.vm.RunProgram(program)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, ctx.ownerLabel(), err)
	}
	return value.Export(), nil
}

// bindContext exposes the row environment as globals and returns the names it
// set so they can be cleared before the next row.
func (e *jsEvaluator) bindContext(vm *goja.Runtime, ctx RuleContext) []string {
	names := []string{"now", "args", "metadata"}
	_ = vm.Set("now", ctx.timestamp())
	_ = vm.Set("args", ctx.Args)
	_ = vm.Set("metadata", ctx.Metadata)
	for key, value := range ctx.Args {
		_ = vm.Set(key, value)
		names = append(names, key)
	}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		_ = vm.Set(key, value)
		names = append(names, key)
	}
	return names
}

func (e *jsEvaluator) bindFunctions(vm *goja.Runtime) {
	if e.registry == nil {
		return
	}
	_ = vm.Set("call", func(name string, arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	})
	for _, name := range e.registry.Names() {
		fn := name
		_ = vm.Set(fn, func(arguments ...any) (any, error) {
			return e.registry.Call(fn, arguments...)
		})
	}
}

func wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("js", fmt.Errorf("js compiled rule missing evaluator"))
	}
	return r.evaluator.run(ctx.withDefaults(), r.expression, r.program)
}
