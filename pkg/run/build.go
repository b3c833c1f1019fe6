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

package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"jobber/pkg/archive"
	"jobber/pkg/imagebuilder"
	"jobber/pkg/logging"
	"jobber/pkg/templates"
)

// BuildOptions holds all the necessary parameters for the build workflow.
type BuildOptions struct {
	Image      string
	Tag        string
	Dockerfile string
	Context    string
	Template   string
	Platform   string
}

// ExecuteBuild prepares the build context and runs the builder.
func ExecuteBuild(ctx context.Context, b imagebuilder.Builder, store *templates.Store, opts BuildOptions, out io.Writer) error {
	if opts.Image == "" {
		return fmt.Errorf("--image is required")
	}
	buildContext := opts.Context
	if buildContext == "" {
		buildContext = "."
	}

	created, err := archive.EnsureDefaultDockerignore(buildContext)
	if err != nil {
		return err
	}
	if created {
		logging.Info("Wrote default .dockerignore to %s", buildContext)
	}

	dockerfile := opts.Dockerfile
	if opts.Template != "" {
		tpl, err := store.Get(opts.Template)
		if err != nil {
			return err
		}
		dockerfile = filepath.Join(buildContext, "Dockerfile")
		if err := os.WriteFile(dockerfile, []byte(tpl.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dockerfile, err)
		}
		fmt.Fprintf(out, "Wrote Dockerfile from template: %s -> %s\n", tpl.Name, dockerfile)
	}

	image := imagebuilder.Image{Name: opts.Image, Tag: opts.Tag}
	err = b.Build(ctx, imagebuilder.BuildOptions{
		Image:      image,
		Dockerfile: dockerfile,
		Context:    buildContext,
		Platform:   opts.Platform,
	})
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", image.Ref(), err)
	}
	fmt.Fprintf(out, "Built %s\n", image.Ref())
	return nil
}
