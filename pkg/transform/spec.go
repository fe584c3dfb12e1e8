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
	"fmt"

	"github.com/kubernetes-sigs/jsbundle/api/v1alpha1"
)

// ScriptExtensions are the default extensions of the source transforms.
var ScriptExtensions = []string{".js", ".jsx", ".mjs", ".cjs"}

// DefaultRules returns the transform rules used when a spec lists none.
func DefaultRules(spec *v1alpha1.BundleSpec) []v1alpha1.TransformRule {
	rules := []v1alpha1.TransformRule{
		{Name: v1alpha1.TransformJSON},
		{Name: v1alpha1.TransformLowerESM},
		{Name: v1alpha1.TransformDefine},
	}
	if spec.MinimizeEnabled() {
		rules = append(rules, v1alpha1.TransformRule{Name: v1alpha1.TransformMinify})
	}
	return rules
}

// NewPipelineFromSpec builds the pipeline a defaulted spec describes. Env
// files are resolved against root.
func NewPipelineFromSpec(spec *v1alpha1.BundleSpec, root string, opts Options) (*Pipeline, error) {
	p, err := NewPipeline(opts)
	if err != nil {
		return nil, err
	}

	rules := spec.Transforms
	if len(rules) == 0 {
		rules = DefaultRules(spec)
	}

	for i, rule := range rules {
		fn, extensions, err := builtin(spec, root, rule.Name)
		if err != nil {
			return nil, fmt.Errorf("transforms[%d]: %w", i, err)
		}
		if len(rule.Extensions) > 0 {
			extensions = rule.Extensions
		}
		match := And(HasSuffix(extensions...), Exclude(rule.Exclude...))
		if rule.When != "" {
			when, err := When(rule.When)
			if err != nil {
				return nil, fmt.Errorf("transforms[%d].when: %w", i, err)
			}
			match = And(match, when)
		}
		if err := p.Register(Transform{Name: rule.Name, Match: match, Apply: fn}); err != nil {
			return nil, fmt.Errorf("transforms[%d]: %w", i, err)
		}
	}
	return p, nil
}

func builtin(spec *v1alpha1.BundleSpec, root, name string) (Func, []string, error) {
	switch name {
	case v1alpha1.TransformJSON:
		return JSON(), []string{".json"}, nil
	case v1alpha1.TransformLowerESM:
		return LowerESM(), ScriptExtensions, nil
	case v1alpha1.TransformDefine:
		var (
			files []string
			vars  map[string]string
			safe  bool
		)
		if spec.Env != nil {
			files, vars, safe = spec.Env.Files, spec.Env.Vars, spec.Env.Safe
		}
		values, err := LoadEnv(root, files, vars)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := values["NODE_ENV"]; !ok && spec.Optimization.NodeEnv != "" {
			values["NODE_ENV"] = spec.Optimization.NodeEnv
		}
		return Define(values, safe), ScriptExtensions, nil
	case v1alpha1.TransformMinify:
		return Minify(MinifyOptions{DropConsole: spec.Optimization.DropConsole}), ScriptExtensions, nil
	}
	return nil, nil, fmt.Errorf("unknown transform %q", name)
}
