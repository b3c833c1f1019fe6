// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd defines the jobber command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jobber/pkg/config"
	"jobber/pkg/logging"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "jobber",
	Short: "Build training images and run them on SageMaker or Vertex AI.",
	Long: `jobber builds and pushes container images, syncs training data to S3 or GCS,
and submits custom-image training jobs to Amazon SageMaker or Google Vertex AI.
Submitted jobs can be followed until they finish with --tail-logs or 'jobber watch'.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(verbose)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file with per-command defaults.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
}

// Execute runs the root command. Interrupts cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Fatal("%v", err)
	}
}

// applyConfig merges the command's config section into flags that were not
// set on the command line and returns the section's params.
func applyConfig(cmd *cobra.Command, section string) map[string]string {
	if configPath == "" {
		return nil
	}
	conf, err := config.Load(configPath)
	if err != nil {
		logging.Fatal("%v", err)
	}
	params, err := config.ApplyDefaults(cmd.Flags(), conf.Section(section))
	if err != nil {
		logging.Fatal("%v", err)
	}
	return params
}

func resolveProvider(p string) string {
	provider, err := config.ResolveProvider(p)
	if err != nil {
		logging.Fatal("%v", err)
	}
	return provider
}
