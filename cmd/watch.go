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
	"time"

	"github.com/spf13/cobra"

	"jobber/pkg/logging"
	"jobber/pkg/run"
)

var (
	watchProvider     string
	watchJobName      string
	watchRegion       string
	watchProject      string
	watchPollInterval int
	watchLogSource    string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchProvider, "provider", "", "Cloud provider: aws or gcp.")
	watchCmd.Flags().StringVar(&watchJobName, "job-name", "", "Training job name, or Vertex AI job id or resource name. Required.")
	watchCmd.Flags().StringVar(&watchRegion, "region", "", "Region the job runs in.")
	watchCmd.Flags().StringVarP(&watchProject, "project", "p", "", "Google Cloud project (gcp).")
	watchCmd.Flags().IntVar(&watchPollInterval, "poll-interval", 0, "Seconds between status polls. 0 uses the provider default.")
	watchCmd.Flags().StringVar(&watchLogSource, "log-source", run.LogSourceAPI, "Where to read logs: api, native or both.")
	_ = watchCmd.MarkFlagRequired("job-name")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follows a submitted job until it finishes.",
	Long: `The 'watch' command prints status changes and new log lines of a running job
and exits non-zero if the job fails or stops before completing.`,
	Args: cobra.NoArgs,
	Run:  runWatchCmd,
}

// jobNamer is implemented by orchestrators whose handles are resource names.
type jobNamer interface {
	JobName(id string) string
}

func runWatchCmd(cmd *cobra.Command, args []string) {
	applyConfig(cmd, "watch")
	o, err := run.NewOrchestrator(cmd.Context(), run.ProviderOptions{
		Provider: resolveProvider(watchProvider),
		Region:   watchRegion,
		Project:  watchProject,
	})
	if err != nil {
		logging.Fatal("%v", err)
	}
	job := watchJobName
	if n, ok := o.(jobNamer); ok {
		job = n.JobName(job)
	}
	err = run.Watch(cmd.Context(), o, job, run.WatchOptions{
		Interval:  time.Duration(watchPollInterval) * time.Second,
		LogSource: watchLogSource,
		Out:       cmd.OutOrStdout(),
	})
	if err != nil {
		logging.Fatal("%v", err)
	}
}
