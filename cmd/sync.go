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
	"github.com/spf13/cobra"

	"jobber/pkg/logging"
	"jobber/pkg/run"
)

var (
	syncSrc      string
	syncDest     string
	syncRegion   string
	syncProvider string
	syncProject  string
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncSrc, "src", "", "Local directory or bucket URI to copy from. Required.")
	syncCmd.Flags().StringVar(&syncDest, "dest", "", "s3:// or gs:// destination. Required.")
	syncCmd.Flags().StringVar(&syncRegion, "region", "", "Region for bucket creation.")
	syncCmd.Flags().StringVar(&syncProvider, "provider", "", "Cloud provider: aws or gcp. A gs:// destination implies gcp.")
	syncCmd.Flags().StringVarP(&syncProject, "project", "p", "", "Google Cloud project for bucket creation (gcp).")
}

var syncCmd = &cobra.Command{
	Use:   "sync-data",
	Short: "Syncs training data to S3 or GCS.",
	Long: `The 'sync-data' command creates the destination bucket when it is missing and
mirrors --src into --dest with 'aws s3 sync' or 'gsutil -m rsync -r'.`,
	Args: cobra.NoArgs,
	Run:  runSyncCmd,
}

func runSyncCmd(cmd *cobra.Command, args []string) {
	applyConfig(cmd, "sync-data")
	opts := run.SyncOptions{
		ProviderOptions: run.ProviderOptions{
			Provider: resolveProvider(syncProvider),
			Region:   syncRegion,
			Project:  syncProject,
		},
		Src:  syncSrc,
		Dest: syncDest,
	}
	if err := run.ExecuteSync(cmd.Context(), opts, cmd.OutOrStdout()); err != nil {
		logging.Fatal("%v", err)
	}
}
