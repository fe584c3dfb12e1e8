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

package command_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/command"
	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/view"
)

func TestNewRootCommand(t *testing.T) {
	cmd := command.NewRootCommand()

	assert.Equal(t, "jsbundle", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.NotEmpty(t, cmd.Version)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.SilenceErrors)
	assert.True(t, cmd.CompletionOptions.DisableDefaultCmd)
}

func TestNewRootCommand_Flags(t *testing.T) {
	cmd := command.NewRootCommand()

	flag := cmd.PersistentFlags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
	assert.Equal(t, flag, cmd.PersistentFlags().ShorthandLookup("o"))

	debug := cmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, debug)
	assert.Equal(t, "false", debug.DefValue)
}

func TestNewRootCommand_VersionFlag(t *testing.T) {
	cmd := command.NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), cmd.Version)
}

func TestNewRootCommand_NoArgs_ShowsHelp(t *testing.T) {
	cmd := command.NewRootCommand()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "jsbundle")
}

func TestAddCommands(t *testing.T) {
	cli := command.NewCLI(view.ViewHuman, &bytes.Buffer{}, view.LogLevelSilent)
	root := command.NewRootCommand()
	command.AddCommands(root, cli)

	for _, name := range []string{"build", "graph", "publish", "version"} {
		cmd, _, err := root.Find([]string{name})
		assert.NoError(t, err, "command %s should exist", name)
		assert.Equal(t, name, cmd.Name())
	}
	assert.Len(t, root.Commands(), 4)
}

func TestVersionCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	cli := command.NewCLI(view.ViewHuman, buf, view.LogLevelSilent)
	root := command.NewRootCommand()
	command.AddCommands(root, cli)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "jsbundle version")
}
