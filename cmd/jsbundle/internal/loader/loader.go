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

// Package loader reads Bundle configuration files.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/kubernetes-sigs/jsbundle/api/v1alpha1"
)

// BundleLoadResult is the outcome of loading one configuration file.
type BundleLoadResult struct {
	Path   string
	Bundle *v1alpha1.Bundle
	Err    error
}

// collectYAMLFiles returns a list of YAML file paths from the given path.
// If path is a file, it returns a single-element slice.
// If path is a directory, it returns all .yaml and .yml files in the directory (non-recursive).
func collectYAMLFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}

	if !info.IsDir() {
		if !isYAML(path) {
			return nil, fmt.Errorf("file %q must have a .yaml or .yml extension", path)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}

	sort.Strings(files)
	return files, nil
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// LoadBundlesDetailed loads every Bundle from a file or directory,
// returning per-file results so callers can continue past a broken file.
// Only errors related to accessing the path are returned directly.
func LoadBundlesDetailed(path string) ([]BundleLoadResult, error) {
	files, err := collectYAMLFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .yaml or .yml files found in %q", path)
	}

	results := make([]BundleLoadResult, 0, len(files))
	for _, file := range files {
		b, loadErr := LoadBundle(file)
		results = append(results, BundleLoadResult{Path: file, Bundle: b, Err: loadErr})
	}
	return results, nil
}

// LoadBundle loads a single Bundle. A relative or empty spec.root is
// resolved against the directory holding the file.
func LoadBundle(path string) (*v1alpha1.Bundle, error) {
	data, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	var b v1alpha1.Bundle
	if err := yaml.UnmarshalStrict(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Bundle: %w", err)
	}

	if b.Kind != v1alpha1.KindBundle {
		return nil, fmt.Errorf("expected kind %s, got %q", v1alpha1.KindBundle, b.Kind)
	}
	if b.APIVersion != v1alpha1.APIVersion() {
		return nil, fmt.Errorf("expected apiVersion %s, got %q", v1alpha1.APIVersion(), b.APIVersion)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(b.Spec.Root) {
		b.Spec.Root = filepath.Join(dir, b.Spec.Root)
	}
	if b.Name == "" {
		b.Name = trimExt(filepath.Base(path))
	}
	return &b, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

// loadFile reads a YAML file and returns its content as a byte slice.
func loadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path %q is a directory, provide a path to a configuration file (.yaml or .yml)", path)
	}

	if !isYAML(path) {
		return nil, fmt.Errorf("file %q must have a .yaml or .yml extension", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}
