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

package v1alpha1

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Transform names understood by TransformRule.Name.
const (
	TransformJSON     = "json"
	TransformLowerESM = "lower-esm"
	TransformDefine   = "define"
	TransformMinify   = "minify"
)

var knownTransforms = map[string]bool{
	TransformJSON:     true,
	TransformLowerESM: true,
	TransformDefine:   true,
	TransformMinify:   true,
}

var entryNameRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// Validate checks a defaulted spec and reports every problem found.
func (s *BundleSpec) Validate() error {
	var errs []error

	switch s.Mode {
	case ModeProduction, ModeDevelopment:
	default:
		errs = append(errs, fmt.Errorf("mode: unsupported value %q", s.Mode))
	}

	if len(s.Entries) == 0 {
		errs = append(errs, errors.New("entries: at least one entry is required"))
	}
	names := make([]string, 0, len(s.Entries))
	for name := range s.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := s.Entries[name]
		if !entryNameRegex.MatchString(name) {
			errs = append(errs, fmt.Errorf("entries[%s]: name must match %s", name, entryNameRegex.String()))
		}
		if name == s.Optimization.SplitChunks.CommonsName {
			errs = append(errs, fmt.Errorf("entries[%s]: name collides with the commons chunk", name))
		}
		if v := s.Optimization.SplitChunks.Vendor; v != nil && !v.Disabled && name == v.Name {
			errs = append(errs, fmt.Errorf("entries[%s]: name collides with the vendor chunk", name))
		}
		if len(entry.Import) == 0 {
			errs = append(errs, fmt.Errorf("entries[%s]: import must not be empty", name))
		}
		for _, imp := range entry.Import {
			if strings.TrimSpace(imp) == "" {
				errs = append(errs, fmt.Errorf("entries[%s]: import must not contain empty specifiers", name))
			}
		}
		for _, dep := range entry.DependOn {
			if dep == name {
				errs = append(errs, fmt.Errorf("entries[%s]: dependOn must not reference itself", name))
				continue
			}
			if _, ok := s.Entries[dep]; !ok {
				errs = append(errs, fmt.Errorf("entries[%s]: dependOn references unknown entry %q", name, dep))
			}
		}
	}

	errs = append(errs, validateTemplate("output.filename", s.Output.Filename)...)
	errs = append(errs, validateTemplate("output.chunkFilename", s.Output.ChunkFilename)...)
	if s.Output.Path == "" {
		errs = append(errs, errors.New("output.path: must not be empty"))
	} else if s.Output.Clean {
		if err := validateCleanPath(s.Root, s.Output.Path); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Output.Manifest == "" || strings.ContainsAny(s.Output.Manifest, `/\`) {
		errs = append(errs, fmt.Errorf("output.manifest: %q must be a plain file name", s.Output.Manifest))
	}
	if s.Output.HashLength < 1 || s.Output.HashLength > 64 {
		errs = append(errs, fmt.Errorf("output.hashLength: %d is outside [1, 64]", s.Output.HashLength))
	}

	split := s.Optimization.SplitChunks
	if split.MinChunks < 2 {
		errs = append(errs, fmt.Errorf("optimization.splitChunks.minChunks: %d must be at least 2", split.MinChunks))
	}
	if split.MaxInitialSize < 0 {
		errs = append(errs, errors.New("optimization.splitChunks.maxInitialSize: must not be negative"))
	}
	if strings.Contains(split.CommonsName, "~") {
		errs = append(errs, errors.New("optimization.splitChunks.commonsName: must not contain '~'"))
	}

	switch s.Performance.Hints {
	case HintsOff, HintsWarning, HintsError:
	default:
		errs = append(errs, fmt.Errorf("performance.hints: unsupported value %q", s.Performance.Hints))
	}
	if s.Performance.MaxAssetSize < 0 || s.Performance.MaxEntrypointSize < 0 {
		errs = append(errs, errors.New("performance: sizes must not be negative"))
	}

	for i, rule := range s.Transforms {
		if !knownTransforms[rule.Name] {
			errs = append(errs, fmt.Errorf("transforms[%d]: unknown transform %q", i, rule.Name))
		}
	}

	if s.Parallelism < 0 {
		errs = append(errs, errors.New("parallelism: must not be negative"))
	}
	if s.Timeout != nil && s.Timeout.Duration < 0 {
		errs = append(errs, errors.New("timeout: must not be negative"))
	}

	return errors.Join(errs...)
}

func validateTemplate(field, tmpl string) []error {
	var errs []error
	if tmpl == "" {
		return []error{fmt.Errorf("%s: must not be empty", field)}
	}
	if !strings.Contains(tmpl, "[name]") {
		errs = append(errs, fmt.Errorf("%s: %q must contain [name]", field, tmpl))
	}
	clean := filepath.ToSlash(filepath.Clean(tmpl))
	if filepath.IsAbs(tmpl) || clean == ".." || strings.HasPrefix(clean, "../") {
		errs = append(errs, fmt.Errorf("%s: %q must stay inside the output directory", field, tmpl))
	}
	return errs
}

// validateCleanPath rejects cleaning an output directory that is, or
// contains, the project root.
func validateCleanPath(root, path string) error {
	if root == "" {
		root = "."
	}
	dir := path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("output.clean: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("output.clean: %w", err)
	}
	rel, err := filepath.Rel(absDir, absRoot)
	if err != nil {
		// Different volumes.
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("output.clean: output.path %q contains the project root", path)
	}
	return nil
}
