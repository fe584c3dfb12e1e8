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

package transform

import (
	"path"
	"strings"

	"github.com/kubernetes-sigs/jsbundle/pkg/cel"
)

// HasSuffix matches paths ending in any of suffixes, ignoring case.
func HasSuffix(suffixes ...string) Predicate {
	return func(p string) bool {
		lower := strings.ToLower(p)
		for _, s := range suffixes {
			if strings.HasSuffix(lower, strings.ToLower(s)) {
				return true
			}
		}
		return false
	}
}

// Exclude matches paths containing none of substrings.
func Exclude(substrings ...string) Predicate {
	return func(p string) bool {
		for _, s := range substrings {
			if s != "" && strings.Contains(p, s) {
				return false
			}
		}
		return true
	}
}

// And matches paths every predicate matches. Nil predicates are ignored.
func And(predicates ...Predicate) Predicate {
	return func(p string) bool {
		for _, pred := range predicates {
			if pred != nil && !pred(p) {
				return false
			}
		}
		return true
	}
}

// When compiles a CEL condition over the variables path and ext into a
// predicate. A condition that fails to evaluate does not match.
func When(expr string) (Predicate, error) {
	env, err := cel.PathEnvironment()
	if err != nil {
		return nil, err
	}
	condition, err := cel.CompileCondition(env, expr)
	if err != nil {
		return nil, err
	}
	return func(p string) bool {
		ok, err := condition.EvalBool(map[string]any{
			"path": p,
			"ext":  path.Ext(p),
		})
		return err == nil && ok
	}, nil
}
