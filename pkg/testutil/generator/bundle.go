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

package generator

import (
	"os"
	"path/filepath"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubernetes-sigs/jsbundle/api/v1alpha1"
)

// BundleOption is a functional option for Bundle
type BundleOption func(*v1alpha1.Bundle)

// NewBundle creates a new Bundle with the given name and options. Defaults
// are applied after the options, so options only need to set what a test
// cares about.
func NewBundle(name string, opts ...BundleOption) *v1alpha1.Bundle {
	b := &v1alpha1.Bundle{
		TypeMeta: metav1.TypeMeta{
			APIVersion: v1alpha1.APIVersion(),
			Kind:       v1alpha1.KindBundle,
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
		},
		Spec: v1alpha1.BundleSpec{
			Entries: map[string]v1alpha1.Entry{},
		},
	}

	for _, opt := range opts {
		opt(b)
	}
	b.Spec.SetDefaults()
	return b
}

// WithRoot sets the project root
func WithRoot(root string) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Root = root
	}
}

// WithMode sets the build mode
func WithMode(mode v1alpha1.Mode) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Mode = mode
	}
}

// WithEntry adds an entry with the given imports
func WithEntry(name string, imports ...string) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Entries[name] = v1alpha1.Entry{Import: imports}
	}
}

// WithDependOn makes entry depend on the given entries. The entry must
// have been added before.
func WithDependOn(name string, dependOn ...string) BundleOption {
	return func(b *v1alpha1.Bundle) {
		entry := b.Spec.Entries[name]
		entry.DependOn = append(entry.DependOn, dependOn...)
		b.Spec.Entries[name] = entry
	}
}

// WithMinChunks sets the commons threshold
func WithMinChunks(n int) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Optimization.SplitChunks.MinChunks = n
	}
}

// WithMaxInitialSize sets the size above which chunks are split
func WithMaxInitialSize(size int64) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Optimization.SplitChunks.MaxInitialSize = size
	}
}

// WithVendor replaces the vendor group configuration
func WithVendor(vendor *v1alpha1.VendorGroup) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Optimization.SplitChunks.Vendor = vendor
	}
}

// WithStrict turns size warnings into errors
func WithStrict() BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Optimization.Strict = true
	}
}

// WithMinimize enables or disables the minify transform
func WithMinimize(enabled bool) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Optimization.Minimize = &enabled
	}
}

// WithProvide registers a provided identifier
func WithProvide(identifier, module string) BundleOption {
	return func(b *v1alpha1.Bundle) {
		if b.Spec.Provide == nil {
			b.Spec.Provide = map[string]string{}
		}
		b.Spec.Provide[identifier] = module
	}
}

// WithEnv sets the env configuration
func WithEnv(env *v1alpha1.Env) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Env = env
	}
}

// WithOutput mutates the output configuration
func WithOutput(mutate func(*v1alpha1.Output)) BundleOption {
	return func(b *v1alpha1.Bundle) {
		mutate(&b.Spec.Output)
	}
}

// WithPerformance sets the performance hints and limits
func WithPerformance(hints v1alpha1.HintLevel, maxAsset, maxEntrypoint int64) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Performance = v1alpha1.Performance{
			Hints:             hints,
			MaxAssetSize:      maxAsset,
			MaxEntrypointSize: maxEntrypoint,
		}
	}
}

// WithTransforms sets the ordered transform rules
func WithTransforms(rules ...v1alpha1.TransformRule) BundleOption {
	return func(b *v1alpha1.Bundle) {
		b.Spec.Transforms = rules
	}
}

// WriteProject writes files, keyed by slash-separated paths, under a fresh
// temporary directory and returns the directory.
func WriteProject(t testing.TB, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}
