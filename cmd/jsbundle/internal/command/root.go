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
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/internal/view"
	"github.com/kubernetes-sigs/jsbundle/cmd/jsbundle/version"
)

// logEnv selects the log level when --debug is not given.
const logEnv = "JSBUNDLE_LOG"

var (
	outputFlag string
	debugFlag  bool
	rootCmd    *cobra.Command
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "jsbundle",
		Short: color.RGB(50, 108, 229).Sprintf("jsbundle [global options] <subcommand> [args]") + "\n" +
			"A CLI utility that bundles JavaScript modules into content-hashed chunks",
		Long: color.RGB(50, 108, 229).Sprintf("Usage: jsbundle [global options] <subcommand> [args]\n") + "\n" +
			"jsbundle resolves the module graph of one or more entry points, runs\n" +
			"every module through an ordered transform pipeline, allocates modules\n" +
			"to entry, shared and vendor chunks, and writes the chunks together\n" +
			"with a manifest describing the load order of every entry.\n\n",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 {
				_ = cmd.Help()
			}
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "Output format. One of: (human | json)")
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Set log level to debug")
	return cmd
}

func setCobraUsageTemplate() {
	cobra.AddTemplateFunc("StyleHeading", color.RGB(50, 108, 229).SprintFunc())
	usageTemplate := rootCmd.UsageTemplate()
	usageTemplate = strings.NewReplacer(
		`Usage:`, `{{StyleHeading "Usage:"}}`,
		`Examples:`, `{{StyleHeading "Examples:"}}`,
		`Available Commands:`, `{{StyleHeading "Available Commands:"}}`,
		`Additional Commands:`, `{{StyleHeading "Additional Commands:"}}`,
		`Flags:`, `{{StyleHeading "Options:"}}`,
		`Global Flags:`, `{{StyleHeading "Global Options:"}}`,
	).Replace(usageTemplate)
	rootCmd.SetUsageTemplate(usageTemplate)
}

func setVersionTemplate() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// configureCLI points cli at a viewer built from the parsed global flags
// and the environment.
func configureCLI(cli *CLI) error {
	viewType, err := view.ParseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	logLevel := view.ParseLogLevel(os.Getenv(logEnv))
	if debugFlag {
		logLevel = view.LogLevelDebug
	}

	s := view.NewStream(cli.Writer)
	cli.Viewer = view.NewViewer(viewType, s, logLevel)
	cli.Stream = s
	return nil
}

func Execute() {
	rootCmd = NewRootCommand()

	setCobraUsageTemplate()
	setVersionTemplate()

	// NO_COLOR disables color regardless of the terminal.
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		color.NoColor = true
	}

	// The viewer is reconfigured in PersistentPreRunE once flags are parsed.
	cli := NewCLI(view.ViewHuman, os.Stdout, view.LogLevelSilent)

	AddCommands(rootCmd, cli)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return configureCLI(cli)
	}

	if err := rootCmd.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			cli.Println("Error:", msg)
		}
		os.Exit(1)
	}

	os.Exit(0)
}

// AddCommands registers all subcommands to the root command.
func AddCommands(root *cobra.Command, cli *CLI) {
	root.AddCommand(
		NewVersionCommand(cli),
		NewBuildCommand(cli),
		NewGraphCommand(cli),
		NewPublishCommand(cli),
	)
}
