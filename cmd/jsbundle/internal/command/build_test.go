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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/view"
	"github.com/kubernetes-sigs/jsbundle/pkg/emit"
	"github.com/kubernetes-sigs/jsbundle/pkg/testutil/generator"
)

const bundleYAML = `apiVersion: jsbundle.kro.run/v1alpha1
kind: Bundle
metadata:
  name: site
spec:
  entries:
    a: ./src/a.js
    b: ./src/b.js
`

var project = map[string]string{
	"bundle.yaml":   bundleYAML,
	"src/a.js":      "import { greet } from './shared';\nconsole.log(greet('a'));\n",
	"src/b.js":      "import { greet } from './shared';\nexport const b = greet('b');\n",
	"src/shared.js": "export function greet(name) {\n  return 'hello ' + name;\n}\n",
}

// execute runs the root command the way Execute does, writing to a buffer.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(logEnv, "")

	buf := &bytes.Buffer{}
	cli := NewCLI(view.ViewHuman, buf, view.LogLevelSilent)
	root := NewRootCommand()
	AddCommands(root, cli)
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return configureCLI(cli)
	}
	root.SetArgs(args)
	root.SetOut(buf)
	root.SetErr(buf)

	err := root.Execute()
	return buf.String(), err
}

func readManifest(t *testing.T, root string) *emit.Manifest {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "dist", "manifest.json"))
	require.NoError(t, err)
	m, err := emit.UnmarshalManifest(data)
	require.NoError(t, err)
	return m
}

func TestBuildCommand(t *testing.T) {
	root := generator.WriteProject(t, project)

	out, err := execute(t, "build", "-f", filepath.Join(root, "bundle.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Built! 3 chunks from 3 modules")
	assert.Contains(t, out, "commons")

	m := readManifest(t, root)
	assert.Equal(t, []string{"a", "b"}, m.EntryNames())
	assert.Len(t, m.Entries["a"], 2)
	assert.True(t, strings.HasPrefix(m.Entries["a"][0], "commons."))
}

func TestBuildCommandJSON(t *testing.T) {
	root := generator.WriteProject(t, project)

	out, err := execute(t, "-o", "json", "build", "-f", filepath.Join(root, "bundle.yaml"))
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "build", result["type"])
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "site", result["name"])
	assert.Len(t, result["files"], 3)
	assert.Equal(t, readManifest(t, root).Hash, result["hash"])
}

func TestBuildCommandDryRun(t *testing.T) {
	root := generator.WriteProject(t, project)

	out, err := execute(t, "build", "-f", filepath.Join(root, "bundle.yaml"), "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Rendered! 3 chunks")

	_, err = os.Stat(filepath.Join(root, "dist"))
	assert.True(t, os.IsNotExist(err))
}

func TestBuildCommandDirectoryWithFailure(t *testing.T) {
	files := map[string]string{
		"broken.yaml": strings.Replace(bundleYAML, "./src/b.js", "./src/missing.js", 1),
	}
	for k, v := range project {
		files[k] = v
	}
	root := generator.WriteProject(t, files)

	out, err := execute(t, "build", "-f", root)
	require.Error(t, err)
	assert.Empty(t, err.Error())

	assert.Contains(t, out, "Error! "+filepath.Join(root, "broken.yaml")+": graph phase failed")
	assert.Contains(t, out, "missing.js")
	assert.Contains(t, out, "Built! 3 chunks")
	// The failed bundle shares the output directory and wrote nothing, so
	// the manifest is the one of the good bundle.
	assert.Equal(t, []string{"a", "b"}, readManifest(t, root).EntryNames())
}

func TestBuildCommandInvalidBundle(t *testing.T) {
	root := generator.WriteProject(t, map[string]string{
		"bundle.yaml": "apiVersion: jsbundle.kro.run/v1alpha1\nkind: Bundle\nspec:\n  entries: {}\n",
	})

	out, err := execute(t, "build", "-f", filepath.Join(root, "bundle.yaml"))
	require.Error(t, err)
	assert.Contains(t, out, "invalid bundle")
}

func TestBuildCommandMetricsFile(t *testing.T) {
	root := generator.WriteProject(t, project)
	metricsFile := filepath.Join(t.TempDir(), "build.prom")

	_, err := execute(t, "build", "-f", filepath.Join(root, "bundle.yaml"), "--metrics-file", metricsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `jsbundle_builds_total{result="success"} 1`)
	assert.Contains(t, string(data), "jsbundle_modules 3")
}

func TestBuildCommandRequiresFilename(t *testing.T) {
	_, err := execute(t, "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filename")
}

func TestBuildCommandInvalidOutput(t *testing.T) {
	root := generator.WriteProject(t, project)

	_, err := execute(t, "-o", "yaml", "build", "-f", filepath.Join(root, "bundle.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
