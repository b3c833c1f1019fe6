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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jobber/pkg/config"
	"jobber/pkg/logging"
	"jobber/pkg/orchestrator"
	"jobber/pkg/run"
)

var (
	submitImageURI         string
	submitRoleARN          string
	submitBucket           string
	submitPrefix           string
	submitRegion           string
	submitEntryPoint       string
	submitSourceDir        string
	submitInstanceType     string
	submitInstanceCount    int
	submitJobName          string
	submitParams           []string
	submitTailLogs         bool
	submitUseSpot          bool
	submitMaxWaitSeconds   int
	submitNoEnsureData     bool
	submitProvider         string
	submitProject          string
	submitGCSBucket        string
	submitGCSPrefix        string
	submitMachineType      string
	submitAcceleratorType  string
	submitAcceleratorCount int
	submitReplicaCount     int
	submitServiceAccount   string
	submitNetwork          string
	submitSubnet           string
	submitPollInterval     int
	submitLogSource        string
	submitOutputSpec       string
)

func init() {
	rootCmd.AddCommand(submitCmd)

	f := submitCmd.Flags()
	f.StringVar(&submitImageURI, "image-uri", "", "Fully qualified training image. Required.")
	f.StringVar(&submitRoleARN, "role-arn", "", "SageMaker execution role ARN (aws).")
	f.StringVar(&submitBucket, "bucket", "", "Bucket for data, code and outputs.")
	f.StringVar(&submitPrefix, "prefix", "jobber-run", "Key prefix inside the bucket.")
	f.StringVar(&submitRegion, "region", "", "Region to run the job in.")
	f.StringVar(&submitEntryPoint, "entry-point", "", "Training script, relative to --source-dir.")
	f.StringVar(&submitSourceDir, "source-dir", "code-bundle", "Directory holding the training code.")
	f.StringVar(&submitInstanceType, "instance-type", "ml.m5.xlarge", "SageMaker instance type (aws).")
	f.IntVar(&submitInstanceCount, "instance-count", 1, "SageMaker instance count (aws).")
	f.StringVar(&submitJobName, "job-name", "", "Job name. Generated when empty.")
	f.StringArrayVar(&submitParams, "param", nil, "Hyperparameter as KEY=VALUE. Repeatable.")
	f.BoolVar(&submitTailLogs, "tail-logs", false, "Follow the job until it finishes.")
	f.BoolVar(&submitUseSpot, "use-spot", false, "Run on spot capacity.")
	f.IntVar(&submitMaxWaitSeconds, "max-wait-seconds", 0, "Maximum seconds to wait for spot capacity plus training (aws).")
	f.BoolVar(&submitNoEnsureData, "no-ensure-data", false, "Do not write a placeholder when the data prefix is empty.")
	f.StringVar(&submitProvider, "provider", "", "Cloud provider: aws (SageMaker) or gcp (Vertex AI).")
	f.StringVarP(&submitProject, "project", "p", "", "Google Cloud project (gcp).")
	f.StringVar(&submitGCSBucket, "gcs-bucket", "", "GCS bucket (gcp). Defaults to --bucket.")
	f.StringVar(&submitGCSPrefix, "gcs-prefix", "", "GCS prefix (gcp). Defaults to --prefix.")
	f.StringVar(&submitMachineType, "machine-type", "n1-standard-4", "Vertex AI machine type (gcp).")
	f.StringVar(&submitAcceleratorType, "accelerator-type", "", "Accelerator type, e.g. NVIDIA_TESLA_T4 (gcp).")
	f.IntVar(&submitAcceleratorCount, "accelerator-count", 0, "Accelerators per replica (gcp).")
	f.IntVar(&submitReplicaCount, "replica-count", 1, "Worker replicas (gcp).")
	f.StringVar(&submitServiceAccount, "service-account", "", "Service account the job runs as (gcp).")
	f.StringVar(&submitNetwork, "network", "", "VPC network to peer with (gcp).")
	f.StringVar(&submitSubnet, "subnet", "", "Subnetwork (gcp). Not supported by custom jobs and ignored.")
	f.IntVar(&submitPollInterval, "poll-interval", 0, "Seconds between status polls with --tail-logs. 0 uses the provider default.")
	f.StringVar(&submitLogSource, "log-source", run.LogSourceAPI, "Where --tail-logs reads logs: api, native or both.")
	f.StringVar(&submitOutputSpec, "output-spec", "", "Write the job request as YAML to this path instead of submitting.")
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submits a training job to SageMaker or Vertex AI.",
	Long: `The 'submit' command stages placeholder data and, on SageMaker, the training
code, then creates a custom-image training job. With --tail-logs it follows the
job's status and logs and exits non-zero if the job does not succeed.`,
	Args: cobra.NoArgs,
	Run:  runSubmitCmd,
}

func runSubmitCmd(cmd *cobra.Command, args []string) {
	params := applyConfig(cmd, "submit")
	hyperparameters, err := parseParams(params, submitParams)
	if err != nil {
		logging.Fatal("%v", err)
	}
	provider := resolveProvider(submitProvider)

	job := orchestrator.JobDefinition{
		Name:             submitJobName,
		ImageURI:         submitImageURI,
		EntryPoint:       submitEntryPoint,
		SourceDir:        submitSourceDir,
		Hyperparameters:  hyperparameters,
		Bucket:           submitBucket,
		Prefix:           submitPrefix,
		Region:           submitRegion,
		UseSpot:          submitUseSpot,
		EnsureData:       !submitNoEnsureData,
		RoleARN:          submitRoleARN,
		InstanceType:     submitInstanceType,
		InstanceCount:    submitInstanceCount,
		MaxWaitSeconds:   submitMaxWaitSeconds,
		Project:          submitProject,
		MachineType:      submitMachineType,
		AcceleratorType:  submitAcceleratorType,
		AcceleratorCount: submitAcceleratorCount,
		ReplicaCount:     submitReplicaCount,
		ServiceAccount:   submitServiceAccount,
		Network:          submitNetwork,
		Subnet:           submitSubnet,
	}
	if provider == config.ProviderGCP {
		job.Bucket = firstSet(submitGCSBucket, submitBucket)
		job.Prefix = firstSet(submitGCSPrefix, submitPrefix)
	}

	o, err := run.NewOrchestrator(cmd.Context(), run.ProviderOptions{
		Provider: provider,
		Region:   submitRegion,
		Project:  submitProject,
	})
	if err != nil {
		logging.Fatal("%v", err)
	}
	_, err = run.ExecuteSubmit(cmd.Context(), o, run.SubmitOptions{
		Provider:   provider,
		Job:        job,
		OutputSpec: submitOutputSpec,
		TailLogs:   submitTailLogs,
		Watch: run.WatchOptions{
			Interval:  time.Duration(submitPollInterval) * time.Second,
			LogSource: submitLogSource,
		},
	}, cmd.OutOrStdout())
	if err != nil {
		logging.Fatal("%v", err)
	}
}

// parseParams layers KEY=VALUE entries over the config params.
func parseParams(base map[string]string, entries []string) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(entries))
	for k, v := range base {
		out[k] = v
	}
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("Invalid --param %q; expected KEY=VALUE", e)
		}
		out[k] = v
	}
	return out, nil
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
