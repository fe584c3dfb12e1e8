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

// Package resolve maps import specifiers to canonical file paths.
//
// Resolution follows the node algorithm: relative specifiers are joined with
// the importer's directory, bare specifiers are searched in module
// directories from the importer up to the project root, and files are probed
// with each configured extension before directories are tried.
package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ResolutionError reports a specifier that matched no file.
type ResolutionError struct {
	// Specifier is the import string as written in the source.
	Specifier string
	// Importer is the absolute path of the importing module. It is empty
	// for entry specifiers.
	Importer string
}

func (e *ResolutionError) Error() string {
	if e.Importer == "" {
		return fmt.Sprintf("cannot resolve entry %q", e.Specifier)
	}
	return fmt.Sprintf("cannot resolve %q imported from %s", e.Specifier, e.Importer)
}

// IsResolutionError reports whether err wraps a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// Options configures a Resolver.
type Options struct {
	// Root is the project root. Entry specifiers and "/"-prefixed
	// specifiers are resolved against it.
	Root string
	// Extensions are probed in order, e.g. ".js".
	Extensions []string
	// Alias maps a specifier prefix to a root-relative path.
	Alias map[string]string
	// Modules are directory names searched for bare specifiers.
	Modules []string
}

type result struct {
	path string
	err  error
}

// Resolver resolves specifiers. It is safe for concurrent use; results are
// cached per importer directory and concurrent lookups for the same key
// are collapsed into one filesystem probe.
type Resolver struct {
	root       string
	extensions []string
	alias      map[string]string
	aliasKeys  []string
	modules    []string

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]result
}

// New returns a Resolver rooted at opts.Root.
func New(opts Options) (*Resolver, error) {
	if opts.Root == "" {
		return nil, errors.New("resolve: root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resolve: root %s is not a directory", root)
	}

	aliasKeys := make([]string, 0, len(opts.Alias))
	for k := range opts.Alias {
		aliasKeys = append(aliasKeys, k)
	}
	// Longest prefix wins; ties are impossible as keys are unique.
	sort.Slice(aliasKeys, func(i, j int) bool {
		if len(aliasKeys[i]) != len(aliasKeys[j]) {
			return len(aliasKeys[i]) > len(aliasKeys[j])
		}
		return aliasKeys[i] < aliasKeys[j]
	})

	modules := opts.Modules
	if len(modules) == 0 {
		modules = []string{"node_modules"}
	}

	return &Resolver{
		root:       root,
		extensions: opts.Extensions,
		alias:      opts.Alias,
		aliasKeys:  aliasKeys,
		modules:    modules,
		cache:      make(map[string]result),
	}, nil
}

// Root returns the canonical project root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve returns the canonical path of the file specifier refers to when
// imported from the module at importer. An empty importer resolves the
// specifier as an entry, relative to the root.
func (r *Resolver) Resolve(specifier, importer string) (string, error) {
	dir := r.root
	if importer != "" {
		dir = filepath.Dir(importer)
	}
	key := dir + "\x00" + specifier

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return r.finish(cached, specifier, importer)
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		path, err := r.resolve(specifier, dir)
		res := result{path: path, err: err}
		r.mu.Lock()
		r.cache[key] = res
		r.mu.Unlock()
		return res, nil
	})
	return r.finish(v.(result), specifier, importer)
}

func (r *Resolver) finish(res result, specifier, importer string) (string, error) {
	if res.err != nil {
		return "", res.err
	}
	if res.path == "" {
		return "", &ResolutionError{Specifier: specifier, Importer: importer}
	}
	return res.path, nil
}

func (r *Resolver) resolve(specifier, dir string) (string, error) {
	if specifier == "" {
		return "", nil
	}

	switch {
	case isRelative(specifier):
		return r.probe(filepath.Join(dir, filepath.FromSlash(specifier)))
	case strings.HasPrefix(specifier, "/") || filepath.IsAbs(specifier):
		clean := filepath.Clean(filepath.FromSlash(specifier))
		if clean == r.root || strings.HasPrefix(clean, r.root+string(filepath.Separator)) {
			return r.probe(clean)
		}
		return r.probe(filepath.Join(r.root, clean))
	}

	for _, key := range r.aliasKeys {
		if specifier == key || strings.HasPrefix(specifier, key+"/") {
			rest := strings.TrimPrefix(specifier, key)
			target := filepath.Join(r.root, filepath.FromSlash(r.alias[key]), filepath.FromSlash(rest))
			return r.probe(target)
		}
	}

	for current := dir; ; {
		for _, m := range r.modules {
			path, err := r.probe(filepath.Join(current, m, filepath.FromSlash(specifier)))
			if err != nil || path != "" {
				return path, err
			}
		}
		if current == r.root {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", nil
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// probe returns the file path refers to, trying extensions, the package
// entry point and index files in that order. An empty path means no match.
func (r *Resolver) probe(path string) (string, error) {
	if found, err := r.probeFile(path); found != "" || err != nil {
		return found, err
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", nil
	}

	main, err := packageMain(path)
	if err != nil {
		return "", err
	}
	if main != "" {
		if found, err := r.probeFile(filepath.Join(path, filepath.FromSlash(main))); found != "" || err != nil {
			return found, err
		}
		if found, err := r.probeIndex(filepath.Join(path, filepath.FromSlash(main))); found != "" || err != nil {
			return found, err
		}
	}
	return r.probeIndex(path)
}

func (r *Resolver) probeIndex(dir string) (string, error) {
	return r.probeFile(filepath.Join(dir, "index"))
}

func (r *Resolver) probeFile(path string) (string, error) {
	candidates := make([]string, 0, len(r.extensions)+1)
	candidates = append(candidates, path)
	for _, ext := range r.extensions {
		candidates = append(candidates, path+ext)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		canonical, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", candidate, err)
		}
		return filepath.Clean(canonical), nil
	}
	return "", nil
}

// packageMain reads the module or main field of dir/package.json.
func packageMain(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var pkg struct {
		Module string `json:"module"`
		Main   string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", fmt.Errorf("parse %s: %w", filepath.Join(dir, "package.json"), err)
	}
	if pkg.Module != "" {
		return pkg.Module, nil
	}
	return pkg.Main, nil
}
