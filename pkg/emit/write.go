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

package emit

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Write writes every file of out, then the manifest. Each file is written
// to a temporary file in its final directory and renamed into place. With
// Clean, files the build did not emit are removed afterwards. ctx is only
// checked before the first write; once started, the output is completed.
func (e *Emitter) Write(ctx context.Context, out *Output) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(e.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	keep := make(map[string]bool, len(out.Files)+1)
	for _, f := range out.Files {
		if err := writeAtomic(filepath.Join(e.opts.Dir, filepath.FromSlash(f.Path)), f.Data); err != nil {
			return err
		}
		keep[f.Path] = true
		e.log.V(1).Info("Wrote chunk", "chunk", f.Chunk, "file", f.Path, "size", f.Size())
	}

	manifest, err := MarshalManifest(out.Manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeAtomic(filepath.Join(e.opts.Dir, e.opts.Manifest), manifest); err != nil {
		return err
	}
	keep[e.opts.Manifest] = true

	if e.opts.Clean {
		removed, err := clean(e.opts.Dir, keep)
		if err != nil {
			return err
		}
		if removed > 0 {
			e.log.V(1).Info("Removed stale files", "count", removed)
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// clean removes every regular file under dir that is not in keep and
// returns how many were removed.
func clean(dir string, keep map[string]bool) (int, error) {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if keep[rel] || strings.HasPrefix(rel, "..") {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("clean %s: %w", rel, err)
		}
		removed++
		return nil
	})
	return removed, err
}
