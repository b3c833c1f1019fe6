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
	"jobber/pkg/templates"
)

var (
	buildImage      string
	buildTag        string
	buildDockerfile string
	buildContext    string
	buildTemplate   string
	buildEngine     string
	buildPlatform   string
	buildBaseImage  string
	buildProject    string
	buildRegion     string
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildImage, "image", "i", "", "Image name to build. Required.")
	buildCmd.Flags().StringVarP(&buildTag, "tag", "t", "latest", "Image tag.")
	buildCmd.Flags().StringVarP(&buildDockerfile, "dockerfile", "f", "", "Path to the Dockerfile. Defaults to <context>/Dockerfile.")
	buildCmd.Flags().StringVarP(&buildContext, "context", "c", ".", "Build context directory.")
	buildCmd.Flags().StringVar(&buildTemplate, "template", "", "Render this Dockerfile template into the context before building.")
	buildCmd.Flags().StringVar(&buildEngine, "engine", imagebuilder.EngineCLI, "Build engine: cli (docker CLI), api (Docker Engine API) or cloudbuild.")
	buildCmd.Flags().StringVar(&buildPlatform, "platform", "", "Target platform, e.g. linux/amd64.")
	buildCmd.Flags().StringVar(&buildBaseImage, "base-image", "", "Build without a docker daemon by layering the context onto this image. --image must then include a registry.")
	buildCmd.Flags().StringVarP(&buildProject, "project", "p", "", "Google Cloud project for the cloudbuild engine.")
	buildCmd.Flags().StringVar(&buildRegion, "region", "", "Artifact Registry region for the cloudbuild engine.")
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Builds the training image.",
	Long: `The 'build' command builds a container image from a build context. A default
.dockerignore is written into the context when missing, and --template renders
one of the Dockerfile templates into <context>/Dockerfile first.`,
	Args: cobra.NoArgs,
	Run:  runBuildCmd,
}

func runBuildCmd(cmd *cobra.Command, args []string) {
	applyConfig(cmd, "build")
	if buildImage == "" {
		logging.Fatal("--image is required")
	}

	var builder imagebuilder.Builder
	if buildBaseImage != "" {
		builder = &imagebuilder.CraneBuilder{BaseImage: buildBaseImage}
	} else {
		b, err := imagebuilder.NewBuilder(buildEngine, shell.DefaultRunner, imagebuilder.CloudBuildConfig{Project: buildProject, Region: buildRegion})
		if err != nil {
			logging.Fatal("%v", err)
		}
		builder = b
	}

	dir, err := templates.DefaultDir()
	if err != nil {
		logging.Fatal("%v", err)
	}
	opts := run.BuildOptions{
		Image:      buildImage,
		Tag:        buildTag,
		Dockerfile: buildDockerfile,
		Context:    buildContext,
		Template:   buildTemplate,
		Platform:   buildPlatform,
	}
	if err := run.ExecuteBuild(cmd.Context(), builder, templates.NewStore(dir), opts, cmd.OutOrStdout()); err != nil {
		logging.Fatal("%v", err)
	}
}
