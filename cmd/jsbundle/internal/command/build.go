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

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kubernetes-sigs/jsbundle/api/v1alpha1"
	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/loader"
	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/view"
	"github.com/kubernetes-sigs/jsbundle/pkg/bundler"
	"github.com/kubernetes-sigs/jsbundle/pkg/emit"
	"github.com/kubernetes-sigs/jsbundle/pkg/metrics"
)

// BuildOptions holds the options for the build command.
type BuildOptions struct {
	// Path is a configuration file or a directory of them.
	Path string
	// MetricsFile receives the build metrics in the Prometheus text format.
	MetricsFile string
	// DryRun renders every chunk without writing any file.
	DryRun bool
}

func NewBuildCommand(cli *CLI) *cobra.Command {
	opts := BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the bundles described by configuration files",
		Long: Highlight("jsbundle build") + "\n\n" +
			"Build every Bundle found in a file or a directory of .yaml files.\n\n" +
			"A failed bundle does not stop the remaining ones; the command exits\n" +
			"non-zero if any bundle failed. Nothing is written for a failed bundle.\n",
		Example: "  jsbundle build -f bundle.yaml\n" +
			"  jsbundle build -f ./bundles --metrics-file build.prom\n" +
			"  jsbundle -o json build -f bundle.yaml --dry-run",
		Args: MaxArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunBuild(cmd.Context(), cli, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "filename", "f", "", "Path to a Bundle file or a directory of Bundle files")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write build metrics in the Prometheus text format to this file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Render the bundles without writing any file")
	_ = cmd.MarkFlagRequired("filename")

	return cmd
}

// RunBuild builds every bundle under opts.Path and renders one result per
// bundle.
func RunBuild(ctx context.Context, cli *CLI, opts *BuildOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = cli.WithLogger(ctx)

	results, err := loader.LoadBundlesDetailed(opts.Path)
	if err != nil {
		return err
	}

	m := metrics.New()
	registry := prometheus.NewRegistry()
	m.MustRegister(registry)

	v := view.NewBuildView(cli.Viewer)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			v.Render(view.BuildResult{Config: r.Path, Error: r.Err.Error()})
			failed++
			continue
		}
		result := buildOne(ctx, r.Path, r.Bundle, m, opts.DryRun)
		v.Render(result)
		if result.Failed() {
			failed++
		}
	}

	if opts.MetricsFile != "" {
		if err := metrics.WriteTextfile(registry, opts.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if failed > 0 {
		// Failures were already rendered.
		return errors.New("")
	}
	return nil
}

func buildOne(ctx context.Context, path string, bundle *v1alpha1.Bundle, m *metrics.BuildMetrics, dryRun bool) view.BuildResult {
	result := view.BuildResult{Config: path, Name: bundle.Name, DryRun: dryRun}

	b, err := bundler.New(ctx, &bundle.Spec, bundler.Options{Metrics: m, DryRun: dryRun})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	res, err := b.Build(ctx)
	result.Duration = res.Duration
	if err != nil {
		result.Error = err.Error()
		var pe *bundler.PhaseError
		if errors.As(err, &pe) {
			result.Phase = string(pe.Phase)
			result.Error = pe.Err.Error()
		}
		return result
	}

	result.Dir = emit.OptionsFromSpec(&bundle.Spec, b.Root()).Dir
	result.Hash = res.Output.Manifest.Hash
	result.Modules = res.Graph.Len()
	result.Entries = res.Output.Manifest.Entries
	result.Applied = res.Stats.Applied
	result.Hits = res.Stats.CacheHits
	for _, f := range res.Output.Files {
		result.Files = append(result.Files, view.BuildFile{
			Chunk:   f.Chunk,
			Kind:    string(f.Kind),
			Path:    f.Path,
			Size:    f.Size(),
			Modules: len(f.Modules),
		})
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, w.Error())
	}
	return result
}
