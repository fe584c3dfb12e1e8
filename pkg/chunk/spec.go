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

package chunk

import (
	"github.com/kubernetes-sigs/jsbundle/api/v1alpha1"
)

// OptionsFromSpec returns the allocator options of a defaulted spec.
func OptionsFromSpec(spec *v1alpha1.BundleSpec) Options {
	split := spec.Optimization.SplitChunks
	opts := Options{
		MinChunks:      split.MinChunks,
		MaxInitialSize: split.MaxInitialSize,
		CommonsName:    split.CommonsName,
		Strict:         spec.Optimization.Strict,
		DependOn:       make(map[string][]string),
	}
	if v := split.Vendor; v != nil && !v.Disabled {
		opts.Vendor = &VendorOptions{Test: v.Test, Name: v.Name, Always: v.Always}
	}
	for name, entry := range spec.Entries {
		if len(entry.DependOn) > 0 {
			opts.DependOn[name] = append([]string(nil), entry.DependOn...)
		}
	}
	return opts
}
