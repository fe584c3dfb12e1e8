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

// Package publish uploads an emitted build to an object store.
//
// Chunk files are uploaded first and the manifest last, so a reader that
// follows the manifest never sees a file that has not been uploaded yet.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/kubernetes-sigs/jsbundle/pkg/emit"
)

const (
	immutableCacheControl = "public, max-age=31536000, immutable"
	manifestCacheControl  = "no-cache"
	defaultParallelism    = 4
)

// Options configures a Publisher.
type Options struct {
	// Prefix is prepended to every object key.
	Prefix string
	// Parallelism bounds concurrent chunk uploads.
	Parallelism int
}

// Publisher uploads builds to a Store.
type Publisher struct {
	store Store
	opts  Options
	log   logr.Logger
}

// NewPublisher creates a new Publisher.
func NewPublisher(store Store, opts Options, log logr.Logger) *Publisher {
	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	return &Publisher{store: store, opts: opts, log: log}
}

// Result lists the uploaded keys, manifest last.
type Result struct {
	Keys []string
}

// Publish uploads the build in dir described by the manifest file named
// manifestName.
func (p *Publisher) Publish(ctx context.Context, dir, manifestName string) (*Result, error) {
	manifestData, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	manifest, err := emit.UnmarshalManifest(manifestData)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	objects := make([]Object, 0, len(manifest.Chunks))
	for _, c := range manifest.Chunks {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(c.File)))
		if err != nil {
			return nil, fmt.Errorf("read chunk %s: %w", c.Name, err)
		}
		objects = append(objects, Object{
			Key:          p.key(c.File),
			Data:         data,
			ContentType:  contentType(c.File),
			CacheControl: immutableCacheControl,
		})
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.Parallelism)
	for _, obj := range objects {
		eg.Go(func() error {
			if err := p.store.Put(egctx, obj); err != nil {
				return err
			}
			p.log.V(1).Info("Uploaded chunk", "key", obj.Key, "size", len(obj.Data))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Keys: make([]string, 0, len(objects)+1)}
	for _, obj := range objects {
		res.Keys = append(res.Keys, obj.Key)
	}

	manifestKey := p.key(manifestName)
	if err := p.store.Put(ctx, Object{
		Key:          manifestKey,
		Data:         manifestData,
		ContentType:  contentType(manifestName),
		CacheControl: manifestCacheControl,
	}); err != nil {
		return nil, err
	}
	res.Keys = append(res.Keys, manifestKey)

	p.log.Info("Published build", "objects", len(res.Keys), "hash", manifest.Hash)
	return res, nil
}

func (p *Publisher) key(file string) string {
	prefix := strings.Trim(p.opts.Prefix, "/")
	if prefix == "" {
		return file
	}
	return path.Join(prefix, file)
}

func contentType(file string) string {
	switch path.Ext(file) {
	case ".js", ".mjs":
		return "application/javascript"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
