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
	"errors"
	"fmt"
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCostLimit(t *testing.T) {
	env, err := cel.NewEnv()
	require.NoError(t, err)

	ast, iss := env.Compile(`[1, 2, 3, 4, 5, 6, 7, 8, 9, 10].map(x, [1, 2, 3, 4, 5, 6, 7, 8, 9, 10].map(y, x * y)).exists(l, l.exists(e, e > 50))`)
	require.NoError(t, iss.Err())

	program, err := env.Program(ast, WithCostLimit(ConditionCostLimit)...)
	require.NoError(t, err)
	val, details, err := program.Eval(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, val.Value())
	require.NotNil(t, details.ActualCost())

	program, err = env.Program(ast, WithCostLimit(0)...)
	require.NoError(t, err)
	_, _, err = program.Eval(map[string]any{})
	require.Error(t, err)
	assert.True(t, IsCostLimitExceeded(err))
}

func TestIsCostLimitExceeded(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "sentinel", err: ErrCostLimitExceeded, expected: true},
		{name: "wrapped sentinel", err: fmt.Errorf("eval %q: %w", "true", ErrCostLimitExceeded), expected: true},
		{name: "runtime message", err: errors.New("operation cancelled: actual cost limit exceeded"), expected: true},
		{name: "other error", err: errors.New("no such key: path"), expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsCostLimitExceeded(tt.err))
		})
	}
}

func TestCompileConditionEnforcesCostLimit(t *testing.T) {
	env, err := PathEnvironment()
	require.NoError(t, err)

	expr, err := CompileCondition(env, `[1, 2, 3].all(x, path.size() > x)`)
	require.NoError(t, err)

	ok, err := expr.EvalBool(map[string]any{"path": "src/a.js", "ext": ".js"})
	require.NoError(t, err)
	assert.True(t, ok)
}
