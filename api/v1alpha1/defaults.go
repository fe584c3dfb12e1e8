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

import "strings"

const (
	DefaultOutputPath        = "dist"
	DefaultFilename          = "[name].[contenthash].js"
	DefaultChunkFilename     = "[name].[contenthash].chunk.js"
	DefaultManifest          = "manifest.json"
	DefaultHashLength        = 20
	DefaultMinChunks         = 2
	DefaultCommonsName       = "commons"
	DefaultVendorTest        = "node_modules/"
	DefaultVendorName        = "vendors"
	DefaultMaxAssetSize      = 250000
	DefaultMaxEntrypointSize = 250000
)

// DefaultExtensions are probed, in order, for specifiers without a file.
var DefaultExtensions = []string{".js", ".jsx", ".mjs", ".json"}

// DefaultModules are searched for bare specifiers.
var DefaultModules = []string{"node_modules"}

// SetDefaults fills every unset field of the spec. It is idempotent.
func (s *BundleSpec) SetDefaults() {
	if s.Mode == "" {
		s.Mode = ModeProduction
	}
	if s.Root == "" {
		s.Root = "."
	}
	production := s.Mode == ModeProduction

	if s.Output.Path == "" {
		s.Output.Path = DefaultOutputPath
	}
	if s.Output.Filename == "" {
		s.Output.Filename = DefaultFilename
	}
	if s.Output.ChunkFilename == "" {
		s.Output.ChunkFilename = DefaultChunkFilename
	}
	if s.Output.Manifest == "" {
		s.Output.Manifest = DefaultManifest
	}
	if s.Output.HashLength == 0 {
		s.Output.HashLength = DefaultHashLength
	}

	if len(s.Resolve.Extensions) == 0 {
		s.Resolve.Extensions = append([]string(nil), DefaultExtensions...)
	}
	for i, ext := range s.Resolve.Extensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			s.Resolve.Extensions[i] = "." + ext
		}
	}
	if len(s.Resolve.Modules) == 0 {
		s.Resolve.Modules = append([]string(nil), DefaultModules...)
	}

	if s.Optimization.Minimize == nil {
		minimize := production
		s.Optimization.Minimize = &minimize
	}
	if s.Optimization.NodeEnv == "" {
		s.Optimization.NodeEnv = string(s.Mode)
	}

	split := &s.Optimization.SplitChunks
	if split.MinChunks == 0 {
		split.MinChunks = DefaultMinChunks
	}
	if split.CommonsName == "" {
		split.CommonsName = DefaultCommonsName
	}
	if split.Vendor == nil {
		split.Vendor = &VendorGroup{}
	}
	if split.Vendor.Test == "" {
		split.Vendor.Test = DefaultVendorTest
	}
	if split.Vendor.Name == "" {
		split.Vendor.Name = DefaultVendorName
	}

	if s.Performance.Hints == "" {
		if production {
			s.Performance.Hints = HintsWarning
		} else {
			s.Performance.Hints = HintsOff
		}
	}
	if s.Performance.MaxAssetSize == 0 {
		s.Performance.MaxAssetSize = DefaultMaxAssetSize
	}
	if s.Performance.MaxEntrypointSize == 0 {
		s.Performance.MaxEntrypointSize = DefaultMaxEntrypointSize
	}
}

// MinimizeEnabled reports whether the minify transform should run.
func (s *BundleSpec) MinimizeEnabled() bool {
	return s.Optimization.Minimize != nil && *s.Optimization.Minimize
}
