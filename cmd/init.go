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

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jobber/pkg/config"
	"jobber/pkg/logging"
	"jobber/pkg/shell"
)

var (
	initPath     string
	initRegion   string
	initRoleARN  string
	initProvider string
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initPath, "path", "jobber.yml", "Where to write the sample config.")
	initCmd.Flags().StringVar(&initRegion, "region", "", "Default region for push and submit.")
	initCmd.Flags().StringVar(&initRoleARN, "role-arn", "", "SageMaker execution role ARN (aws).")
	initCmd.Flags().StringVar(&initProvider, "provider", "", "Cloud provider: aws or gcp. Prompted for when omitted.")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Writes a sample config file after a few prompts.",
	Args:  cobra.NoArgs,
	Run:   runInitCmd,
}

func runInitCmd(cmd *cobra.Command, args []string) {
	p := config.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	provider := initProvider
	if provider == "" {
		provider = strings.TrimSpace(p.String("Provider (aws/gcp)", ""))
		if provider == "" {
			logging.Fatal("a provider is required (aws or gcp)")
		}
	}
	provider = resolveProvider(provider)

	opts := config.SampleOptions{Region: initRegion, RoleARN: initRoleARN}
	if provider == config.ProviderAWS && initRegion == "" {
		opts.GuessedRegion = config.GuessAWSRegion(cmd.Context(), shell.DefaultRunner)
	}
	data, err := config.Sample(provider, p, opts)
	if err != nil {
		logging.Fatal("failed to render sample config: %v", err)
	}
	if err := os.WriteFile(initPath, data, 0o644); err != nil {
		logging.Fatal("failed to write %s: %v", initPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", initPath)
}
