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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCondition(t *testing.T) {
	env, err := PathEnvironment()
	require.NoError(t, err)

	tests := []struct {
		name    string
		expr    string
		path    string
		want    bool
		wantErr string
	}{
		{name: "startsWith", expr: `path.startsWith("src/")`, path: "src/a.js", want: true},
		{name: "negated", expr: `!path.startsWith("src/legacy/")`, path: "src/legacy/old.js", want: false},
		{name: "ext", expr: `ext == ".mjs" || ext == ".js"`, path: "lib/x.mjs", want: true},
		{name: "strings extension", expr: `path.lowerAscii().contains("vendor")`, path: "src/VENDOR/x.js", want: true},
		{name: "not a bool", expr: `path + "x"`, wantErr: "must evaluate to bool"},
		{name: "syntax error", expr: `path.startsWith(`, wantErr: "compile"},
		{name: "unknown variable", expr: `name == "x"`, wantErr: "undeclared reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := CompileCondition(env, tt.expr)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, expr.Original)

			ext := ""
			if i := lastDot(tt.path); i >= 0 {
				ext = tt.path[i:]
			}
			got, err := expr.EvalBool(map[string]any{"path": tt.path, "ext": ext})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalBoolMissingVariable(t *testing.T) {
	env, err := PathEnvironment()
	require.NoError(t, err)

	expr, err := CompileCondition(env, `path == "a"`)
	require.NoError(t, err)

	_, err = expr.EvalBool(map[string]any{})
	assert.Error(t, err)
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0 && s[i] != '/'; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
