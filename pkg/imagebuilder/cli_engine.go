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

package imagebuilder

import (
	"context"

	"jobber/pkg/shell"
)

// CLIEngine drives the docker command line.
type CLIEngine struct {
	runner shell.Runner
}

func NewCLIEngine(runner shell.Runner) *CLIEngine {
	if runner == nil {
		runner = shell.DefaultRunner
	}
	return &CLIEngine{runner: runner}
}

func (e *CLIEngine) run(ctx context.Context, cmd *shell.Command) error {
	return e.runner.Run(ctx, cmd).Check(cmd)
}

func (e *CLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	args := []string{"build", "-t", opts.Image.Ref()}
	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	if opts.Platform != "" {
		args = append(args, "--platform", opts.Platform)
	}
	args = append(args, contextOrDot(opts.Context))
	return e.run(ctx, shell.NewCommand("docker", args...).Stream())
}

func (e *CLIEngine) Tag(ctx context.Context, source, target string) error {
	return e.run(ctx, shell.NewCommand("docker", "tag", source, target))
}

func (e *CLIEngine) Push(ctx context.Context, ref string) error {
	return e.run(ctx, shell.NewCommand("docker", "push", ref).Stream())
}

// Login feeds the password to docker on stdin.
func (e *CLIEngine) Login(ctx context.Context, registry, username, password string) error {
	cmd := shell.NewCommand("docker", "login", "--username", username, "--password-stdin", registry).SetInput(password)
	return e.run(ctx, cmd)
}

func contextOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
