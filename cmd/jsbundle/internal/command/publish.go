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
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/loader"
	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/view"
	"github.com/kubernetes-sigs/jsbundle/pkg/emit"
	"github.com/kubernetes-sigs/jsbundle/pkg/publish"
)

// PublishOptions holds the options for the publish command. Empty S3
// fields fall back to the JSBUNDLE_S3_* environment variables.
type PublishOptions struct {
	Path        string
	Bucket      string
	Endpoint    string
	Region      string
	Prefix      string
	Insecure    bool
	Parallelism int
	// EnvFiles are loaded into the environment before it is read. Without
	// any, a .env file in the working directory is loaded if present.
	EnvFiles []string
}

// newStore is replaced in tests.
var newStore = func(cfg publish.S3Config) (publish.Store, error) {
	return publish.NewS3Store(cfg)
}

func NewPublishCommand(cli *CLI) *cobra.Command {
	opts := PublishOptions{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a built bundle to an S3-compatible bucket",
		Long: Highlight("jsbundle publish") + "\n\n" +
			"Upload the files listed in a bundle's manifest, then the manifest\n" +
			"itself, so clients never observe a manifest pointing at a missing\n" +
			"chunk. Run jsbundle build first.\n\n" +
			"Connection settings are read from flags, then from the JSBUNDLE_S3_*\n" +
			"environment variables, which may be provided by a .env file.\n",
		Example: "  jsbundle publish -f bundle.yaml --bucket assets --prefix site/v1\n" +
			"  jsbundle publish -f bundle.yaml --env-file .env.production",
		Args: MaxArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunPublish(cmd.Context(), cli, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "filename", "f", "", "Path to a Bundle file")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "Bucket to upload to (JSBUNDLE_S3_BUCKET)")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "S3 endpoint host[:port] (JSBUNDLE_S3_ENDPOINT)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "Bucket region (JSBUNDLE_S3_REGION)")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Key prefix of every uploaded object")
	cmd.Flags().BoolVar(&opts.Insecure, "insecure", false, "Connect without TLS")
	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", 0, "Concurrent uploads (default 4)")
	cmd.Flags().StringArrayVar(&opts.EnvFiles, "env-file", nil, "Load environment variables from this file (repeatable)")
	_ = cmd.MarkFlagRequired("filename")

	return cmd
}

func RunPublish(ctx context.Context, cli *CLI, opts *PublishOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = cli.WithLogger(ctx)
	start := time.Now()

	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return err
	}

	bundle, err := loader.LoadBundle(opts.Path)
	if err != nil {
		return err
	}
	spec := &bundle.Spec
	spec.SetDefaults()
	root, err := filepath.Abs(spec.Root)
	if err != nil {
		return err
	}
	out := emit.OptionsFromSpec(spec, root)

	cfg := s3Config(opts)
	v := view.NewPublishView(cli.Viewer)
	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	p := publish.NewPublisher(store, publish.Options{Prefix: opts.Prefix, Parallelism: opts.Parallelism}, cli.Logger().Logr())
	res, err := p.Publish(ctx, out.Dir, out.Manifest)
	if err != nil {
		v.Render(view.PublishResult{Config: opts.Path, Bucket: cfg.Bucket, Error: err.Error()})
		return errors.New("")
	}

	v.Render(view.PublishResult{
		Config:   opts.Path,
		Bucket:   cfg.Bucket,
		Keys:     res.Keys,
		Duration: time.Since(start),
	})
	return nil
}

// loadEnvFiles loads files into the process environment without overriding
// variables that are already set.
func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func s3Config(opts *PublishOptions) publish.S3Config {
	cfg := publish.S3ConfigFromEnv()
	if opts.Bucket != "" {
		cfg.Bucket = opts.Bucket
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	if opts.Region != "" {
		cfg.Region = opts.Region
	}
	if opts.Insecure {
		cfg.UseSSL = false
	}
	return cfg
}
