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

	"jobber/pkg/imagebuilder"
	"jobber/pkg/logging"
	"jobber/pkg/run"
	"jobber/pkg/shell"
)

var (
	pushImage        string
	pushRepo         string
	pushTag          string
	pushRegion       string
	pushProvider     string
	pushProject      string
	pushArtifactRepo string
	pushEngine       string
)

func init() {
	rootCmd.AddCommand(pushCmd)

	pushCmd.Flags().StringVarP(&pushImage, "image", "i", "", "Local image name to push. Required.")
	pushCmd.Flags().StringVar(&pushRepo, "repo", "", "Repository name in the registry. Defaults to --image.")
	pushCmd.Flags().StringVarP(&pushTag, "tag", "t", "latest", "Image tag.")
	pushCmd.Flags().StringVar(&pushRegion, "region", "", "Registry region. For aws, defaults to the AWS config.")
	pushCmd.Flags().StringVar(&pushProvider, "provider", "", "Cloud provider: aws (ECR) or gcp (Artifact Registry).")
	pushCmd.Flags().StringVarP(&pushProject, "project", "p", "", "Google Cloud project (gcp).")
	pushCmd.Flags().StringVar(&pushArtifactRepo, "artifact-repo", "", "Artifact Registry repository (gcp).")
	pushCmd.Flags().StringVar(&pushEngine, "engine", imagebuilder.EngineCLI, "Push engine: cli or api.")
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Pushes a local image to ECR or Artifact Registry.",
	Long: `The 'push' command creates the target repository when it is missing, logs the
container engine in to the registry, tags the local image and pushes it.`,
	Args: cobra.NoArgs,
	Run:  runPushCmd,
}

func runPushCmd(cmd *cobra.Command, args []string) {
	applyConfig(cmd, "push")
	engine, err := imagebuilder.NewEngine(pushEngine, shell.DefaultRunner)
	if err != nil {
		logging.Fatal("%v", err)
	}
	opts := run.PushOptions{
		ProviderOptions: run.ProviderOptions{
			Provider: resolveProvider(pushProvider),
			Region:   pushRegion,
			Project:  pushProject,
		},
		Image:        pushImage,
		Repo:         pushRepo,
		Tag:          pushTag,
		ArtifactRepo: pushArtifactRepo,
	}
	if _, err := run.ExecutePush(cmd.Context(), engine, opts, cmd.OutOrStdout()); err != nil {
		logging.Fatal("%v", err)
	}
}
