// Package sandbox evaluates the Script node's expressions, and any
// "script"-kind Binding, through github.com/expr-lang/expr. Compiled
// programs are cached by source text; every Run call is bounded by the
// caller's context deadline so a runaway expression cannot stall an
// activation.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/insanalamin/mechaway/pkg/errs"
)

// Sandbox compiles and runs expressions against a per-call environment. A
// Sandbox is safe for concurrent use; its program cache is shared across
// every execution.
type Sandbox struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// New creates an empty Sandbox.
func New() *Sandbox {
	return &Sandbox{cache: make(map[string]*vm.Program)}
}

// Eval compiles (or reuses a cached compilation of) script and runs it
// against env, returning the resulting value. ctx's deadline bounds
// execution: expr-lang has no native preemption, so Eval runs the program
// on a worker goroutine and returns ScriptResourceExhausted if ctx expires
// first, leaving the goroutine to finish and be garbage collected.
func (s *Sandbox) Eval(ctx context.Context, script string, env map[string]interface{}) (interface{}, error) {
	program, err := s.compile(script, env)
	if err != nil {
		return nil, errs.Wrap(errs.ScriptCompileError, "script compilation failed", err)
	}

	type result struct {
		val interface{}
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{nil, fmt.Errorf("script panicked: %v", r)}
			}
		}()
		out, err := expr.Run(program, env)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, errs.Wrap(errs.ScriptRuntimeError, "script execution failed", r.err)
		}
		return r.val, nil
	case <-ctx.Done():
		return nil, errs.Wrap(errs.ScriptResourceExhausted, "script exceeded its deadline", ctx.Err())
	}
}

// EvalBoolean is Eval constrained to a boolean result. The Condition and
// Switch nodes do not use it; they evaluate CEL predicates instead.
func (s *Sandbox) EvalBoolean(ctx context.Context, script string, env map[string]interface{}) (bool, error) {
	out, err := s.Eval(ctx, script, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, errs.Newf(errs.ScriptRuntimeError, "script did not return a boolean, got %T", out)
	}
	return b, nil
}

func (s *Sandbox) compile(script string, env map[string]interface{}) (*vm.Program, error) {
	key := script
	s.mu.RLock()
	program, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(script, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = program
	s.mu.Unlock()
	return program, nil
}

// BuildEnv assembles the evaluation environment made available to every
// script: the resolved input pins under "input", plus a handful of pure
// helper functions modeled on the engine's prior expression dialect.
func BuildEnv(input map[string]interface{}) map[string]interface{} {
	env := make(map[string]interface{}, len(input)+8)
	for k, v := range input {
		env[k] = v
	}
	env["input"] = input

	env["contains"] = strings.Contains
	env["upper"] = strings.ToUpper
	env["lower"] = strings.ToLower
	env["trim"] = strings.TrimSpace
	env["now"] = func() time.Time { return time.Now() }

	return env
}
