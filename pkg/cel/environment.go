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

// Package cel builds the CEL environments used to evaluate user supplied
// conditions, such as the when clause of a transform rule.
package cel

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// EnvOption is a function that modifies the environment options.
type EnvOption func(*envOptions)

// envOptions holds all the configuration for the CEL environment.
type envOptions struct {
	// variables are declared with their CEL type.
	variables map[string]*cel.Type
	// customDeclarations will be added to the CEL environment.
	customDeclarations []cel.EnvOption
}

// WithVariable declares a variable of the given type.
func WithVariable(name string, t *cel.Type) EnvOption {
	return func(opts *envOptions) {
		if opts.variables == nil {
			opts.variables = make(map[string]*cel.Type)
		}
		opts.variables[name] = t
	}
}

// WithCustomDeclarations adds custom declarations to the CEL environment.
func WithCustomDeclarations(declarations []cel.EnvOption) EnvOption {
	return func(opts *envOptions) {
		opts.customDeclarations = append(opts.customDeclarations, declarations...)
	}
}

// DefaultEnvironment returns the default CEL environment.
func DefaultEnvironment(options ...EnvOption) (*cel.Env, error) {
	declarations := []cel.EnvOption{
		ext.Lists(),
		ext.Strings(),
		cel.OptionalTypes(),
		ext.Encoders(),
	}

	opts := &envOptions{}
	for _, opt := range options {
		opt(opts)
	}

	for name, t := range opts.variables {
		declarations = append(declarations, cel.Variable(name, t))
	}
	declarations = append(declarations, opts.customDeclarations...)

	return cel.NewEnv(declarations...)
}

// PathEnvironment returns the environment module conditions are evaluated
// in. It declares path, the root-relative module path, and ext, its
// extension including the leading dot.
func PathEnvironment() (*cel.Env, error) {
	return DefaultEnvironment(
		WithVariable("path", cel.StringType),
		WithVariable("ext", cel.StringType),
	)
}
