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

// Package imagebuilder builds, tags and pushes the training container image.
package imagebuilder

import (
	"context"
	"fmt"
	"strings"

	"jobber/pkg/shell"
)

// Engine names accepted by --engine.
const (
	EngineCLI        = "cli"
	EngineAPI        = "api"
	EngineCloudBuild = "cloudbuild"
)

// Image is a local image name and tag.
type Image struct {
	Name string
	Tag  string
}

// Ref returns "name:tag", defaulting the tag to latest.
func (i Image) Ref() string {
	tag := i.Tag
	if tag == "" {
		tag = "latest"
	}
	return i.Name + ":" + tag
}

// BuildOptions describes one image build.
type BuildOptions struct {
	Image Image
	// Dockerfile is optional; the engine default is <context>/Dockerfile.
	Dockerfile string
	Context    string
	Platform   string
}

// Builder produces an image from a build context.
type Builder interface {
	Build(ctx context.Context, opts BuildOptions) error
}

// Pusher moves a local image to a registry.
type Pusher interface {
	Tag(ctx context.Context, source, target string) error
	Push(ctx context.Context, ref string) error
	Login(ctx context.Context, registry, username, password string) error
}

// Engine is a local container engine that can build and push.
type Engine interface {
	Builder
	Pusher
}

// NewEngine returns the local engine named by --engine.
func NewEngine(name string, runner shell.Runner) (Engine, error) {
	switch strings.ToLower(name) {
	case "", EngineCLI:
		return NewCLIEngine(runner), nil
	case EngineAPI:
		return NewAPIEngine()
	}
	return nil, fmt.Errorf("unsupported engine %q (want %s or %s)", name, EngineCLI, EngineAPI)
}

// CloudBuildConfig carries the options only the remote build needs.
type CloudBuildConfig struct {
	Project string
	Region  string
}

// NewBuilder returns the builder named by --engine.
func NewBuilder(name string, runner shell.Runner, cb CloudBuildConfig) (Builder, error) {
	if strings.EqualFold(name, EngineCloudBuild) {
		if cb.Project == "" {
			return nil, fmt.Errorf("the %s engine requires --project", EngineCloudBuild)
		}
		return &CloudBuildEngine{Project: cb.Project, Region: cb.Region, Runner: runner}, nil
	}
	return NewEngine(name, runner)
}
