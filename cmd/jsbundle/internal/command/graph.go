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
	"io"
	"strconv"

	graphlib "github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/spf13/cobra"

	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/loader"
	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/view"
	"github.com/kubernetes-sigs/jsbundle/pkg/bundler"
	"github.com/kubernetes-sigs/jsbundle/pkg/chunk"
	"github.com/kubernetes-sigs/jsbundle/pkg/graph"
)

// GraphOptions holds the options for the graph command.
type GraphOptions struct {
	Path string
	// Dot prints the module graph in Graphviz DOT format instead of the
	// selected view.
	Dot bool
}

func NewGraphCommand(cli *CLI) *cobra.Command {
	opts := GraphOptions{}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the module graph and chunk allocation of a bundle",
		Long: Highlight("jsbundle graph") + "\n\n" +
			"Resolve, transform and allocate a bundle without writing it, then\n" +
			"print every chunk and module. With --dot the module graph is printed\n" +
			"in Graphviz DOT format with every module labelled by its chunk.\n",
		Example: "  jsbundle graph -f bundle.yaml\n" +
			"  jsbundle graph -f bundle.yaml --dot | dot -Tsvg > graph.svg",
		Args: MaxArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunGraph(cmd.Context(), cli, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "filename", "f", "", "Path to a Bundle file")
	cmd.Flags().BoolVar(&opts.Dot, "dot", false, "Print the module graph in DOT format")
	_ = cmd.MarkFlagRequired("filename")

	return cmd
}

func RunGraph(ctx context.Context, cli *CLI, opts *GraphOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = cli.WithLogger(ctx)

	bundle, err := loader.LoadBundle(opts.Path)
	if err != nil {
		return err
	}

	b, err := bundler.New(ctx, &bundle.Spec, bundler.Options{DryRun: true})
	if err != nil {
		return err
	}
	res, err := b.Build(ctx)
	if err != nil {
		return err
	}

	if opts.Dot {
		return writeDOT(cli.Writer, res.Graph, res.Allocation)
	}
	view.NewGraphView(cli.Viewer).Render(graphResult(opts.Path, res.Graph, res.Allocation))
	return nil
}

func graphResult(config string, g *graph.ModuleGraph, alloc *chunk.Allocation) view.GraphResult {
	result := view.GraphResult{Config: config, TotalSize: g.TotalSize()}
	for _, path := range g.Order {
		m := g.Modules[path]
		result.Modules = append(result.Modules, view.GraphModule{
			ID:      m.ID,
			Chunk:   alloc.Owner[path],
			Size:    m.Size(),
			Imports: m.Imports,
		})
	}
	for _, e := range g.Edges() {
		result.Edges = append(result.Edges, view.GraphEdge{From: g.Modules[e.From].ID, To: g.Modules[e.To].ID})
	}
	for _, c := range alloc.Chunks {
		result.Chunks = append(result.Chunks, view.GraphChunk{
			Name:    c.Name,
			Kind:    string(c.Kind),
			Size:    c.Size,
			Entries: c.Entries,
		})
	}
	return result
}

// writeDOT renders the module graph with one vertex per module, labelled
// with its chunk. Import cycles are kept.
func writeDOT(w io.Writer, g *graph.ModuleGraph, alloc *chunk.Allocation) error {
	dg := graphlib.New(graphlib.StringHash, graphlib.Directed())

	for _, path := range g.Order {
		m := g.Modules[path]
		owner := alloc.Owner[path]
		err := dg.AddVertex(m.ID,
			graphlib.VertexAttribute("label", fmt.Sprintf("%s\\n%s", m.ID, owner)),
			graphlib.VertexAttribute("shape", shape(alloc.Chunk(owner))),
			graphlib.VertexAttribute("tooltip", strconv.FormatInt(m.Size(), 10)+" bytes"),
		)
		if err != nil {
			return err
		}
	}
	for _, e := range g.Edges() {
		err := dg.AddEdge(g.Modules[e.From].ID, g.Modules[e.To].ID)
		if err != nil && !errors.Is(err, graphlib.ErrEdgeAlreadyExists) {
			return err
		}
	}
	return draw.DOT(dg, w, draw.GraphAttribute("rankdir", "LR"))
}

func shape(c *chunk.Chunk) string {
	if c == nil {
		return "ellipse"
	}
	switch c.Kind {
	case chunk.KindEntry:
		return "box"
	case chunk.KindVendor:
		return "hexagon"
	default:
		return "ellipse"
	}
}
