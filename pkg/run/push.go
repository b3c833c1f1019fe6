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

	"github.com/aws/aws-sdk-go-v2/service/sts"

	"jobber/pkg/cloud"
	"jobber/pkg/config"
	"jobber/pkg/imagebuilder"
	"jobber/pkg/registry"
)

// PushOptions holds all the necessary parameters for the push workflow.
type PushOptions struct {
	ProviderOptions
	Image        string
	Repo         string
	Tag          string
	ArtifactRepo string
}

func (o PushOptions) repo() string {
	if o.Repo != "" {
		return o.Repo
	}
	return o.Image
}

func (o PushOptions) local() string {
	return imagebuilder.Image{Name: o.Image, Tag: o.Tag}.Ref()
}

// ECRRepository is what the ECR push needs from a registry.
type ECRRepository interface {
	EnsureRepository(ctx context.Context, repo string) error
	Login(ctx context.Context, engine registry.Login, host string) error
}

// ArtifactRepository is what the Artifact Registry push needs from a registry.
type ArtifactRepository interface {
	EnsureRepository(ctx context.Context, img registry.ArtifactImage) error
	ConfigureDocker(ctx context.Context, img registry.ArtifactImage) error
}

// ExecutePush tags the local image for the provider's registry and pushes it.
func ExecutePush(ctx context.Context, pusher imagebuilder.Pusher, opts PushOptions, out io.Writer) (string, error) {
	if opts.Image == "" {
		return "", fmt.Errorf("--image is required")
	}
	provider, err := config.ResolveProvider(opts.Provider)
	if err != nil {
		return "", err
	}

	if provider == config.ProviderGCP {
		if opts.Project == "" || opts.ArtifactRepo == "" || opts.Region == "" {
			return "", fmt.Errorf("GCP push requires --project, --artifact-repo, and --region")
		}
		ar, err := registry.NewArtifactRegistry(ctx, opts.runner())
		if err != nil {
			return "", err
		}
		img := registry.ArtifactImage{Project: opts.Project, Region: opts.Region, Repo: opts.ArtifactRepo, Image: opts.repo(), Tag: opts.Tag}
		return PushToArtifactRegistry(ctx, pusher, ar, img, opts.local(), out)
	}

	cfg, err := cloud.AWSConfig(ctx, opts.Region)
	if err != nil {
		return "", err
	}
	account, err := cloud.AccountID(ctx, sts.NewFromConfig(cfg))
	if err != nil {
		return "", err
	}
	img := registry.ECRImage{Account: account, Region: cfg.Region, Repo: opts.repo(), Tag: opts.Tag}
	return PushToECR(ctx, pusher, registry.NewECR(cfg), img, opts.local(), out)
}

// PushToECR ensures the repository, logs in and pushes local as img.
func PushToECR(ctx context.Context, pusher imagebuilder.Pusher, ecr ECRRepository, img registry.ECRImage, local string, out io.Writer) (string, error) {
	if err := ecr.EnsureRepository(ctx, img.Repo); err != nil {
		return "", err
	}
	if err := ecr.Login(ctx, pusher, img.Registry()); err != nil {
		return "", err
	}
	return tagAndPush(ctx, pusher, local, img.URI(), out)
}

// PushToArtifactRegistry ensures the repository, configures docker auth and
// pushes local as img.
func PushToArtifactRegistry(ctx context.Context, pusher imagebuilder.Pusher, ar ArtifactRepository, img registry.ArtifactImage, local string, out io.Writer) (string, error) {
	if err := ar.EnsureRepository(ctx, img); err != nil {
		return "", err
	}
	if err := ar.ConfigureDocker(ctx, img); err != nil {
		return "", err
	}
	return tagAndPush(ctx, pusher, local, img.URI(), out)
}

func tagAndPush(ctx context.Context, pusher imagebuilder.Pusher, local, uri string, out io.Writer) (string, error) {
	if err := pusher.Tag(ctx, local, uri); err != nil {
		return "", err
	}
	if err := pusher.Push(ctx, uri); err != nil {
		return "", err
	}
	fmt.Fprintf(out, "Pushed %s\n", uri)
	return uri, nil
}
