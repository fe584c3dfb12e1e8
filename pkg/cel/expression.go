// Copyright 2025 The Kube Resource Orchestrator Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Expression wraps a CEL expression with its compiled program.
// The struct is immutable after construction and safe to evaluate from
// multiple goroutines, since Program is.
type Expression struct {
	// Original is the raw CEL expression string, preserved for error
	// messages.
	Original string

	// Program is the compiled CEL program.
	Program cel.Program
}

// CompileCondition compiles expr in env and checks that it yields a bool.
// Evaluations are bounded by ConditionCostLimit.
func CompileCondition(env *cel.Env, expr string) (*Expression, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("compile %q: expression must evaluate to bool, got %s", expr, ast.OutputType())
	}
	program, err := env.Program(ast, WithCostLimit(ConditionCostLimit)...)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Expression{Original: expr, Program: program}, nil
}

// EvalBool evaluates the compiled expression against vars.
func (e *Expression) EvalBool(vars map[string]any) (bool, error) {
	out, _, err := e.Program.Eval(vars)
	if IsCostLimitExceeded(err) {
		return false, fmt.Errorf("eval %q: %w", e.Original, ErrCostLimitExceeded)
	}
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", e.Original, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: result %v is not a bool", e.Original, out.Value())
	}
	return b, nil
}
