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

package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/artifactregistry/v1"
	"google.golang.org/api/googleapi"

	"jobber/pkg/logging"
	"jobber/pkg/shell"
)

// ArtifactImage identifies an image in a Docker-format Artifact Registry repository.
type ArtifactImage struct {
	Project string
	Region  string
	Repo    string
	Image   string
	Tag     string
}

// Host is the regional registry hostname.
func (i ArtifactImage) Host() string {
	return i.Region + "-docker.pkg.dev"
}

// URI is the full image reference.
func (i ArtifactImage) URI() string {
	return fmt.Sprintf("%s/%s/%s/%s:%s", i.Host(), i.Project, i.Repo, i.Image, i.Tag)
}

// RepositoriesAPI is the subset of the Artifact Registry API used here.
type RepositoriesAPI interface {
	// Exists reports whether the repository resource exists.
	Exists(ctx context.Context, name string) (bool, error)
	// Create creates a repository and waits for the operation to finish.
	Create(ctx context.Context, parent, id string, repo *artifactregistry.Repository) error
}

// ArtifactRegistry manages Docker repositories in one project and region.
type ArtifactRegistry struct {
	API    RepositoriesAPI
	Runner shell.Runner
}

// NewArtifactRegistry opens the Artifact Registry API with default credentials.
func NewArtifactRegistry(ctx context.Context, runner shell.Runner) (*ArtifactRegistry, error) {
	svc, err := artifactregistry.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Artifact Registry client: %w", err)
	}
	if runner == nil {
		runner = shell.DefaultRunner
	}
	return &ArtifactRegistry{API: &repositories{svc: svc, poll: 2 * time.Second}, Runner: runner}, nil
}

// EnsureRepository creates the Docker repository for img when missing.
func (a *ArtifactRegistry) EnsureRepository(ctx context.Context, img ArtifactImage) error {
	parent := fmt.Sprintf("projects/%s/locations/%s", img.Project, img.Region)
	name := parent + "/repositories/" + img.Repo
	ok, err := a.API.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to describe repository %s: %w", name, err)
	}
	if ok {
		return nil
	}
	logging.Info("Creating Artifact Registry repository %s", name)
	repo := &artifactregistry.Repository{Format: "DOCKER", Description: "jobber training images"}
	if err := a.API.Create(ctx, parent, img.Repo, repo); err != nil {
		return fmt.Errorf("failed to create repository %s: %w", name, err)
	}
	return nil
}

// ConfigureDocker registers gcloud as the docker credential helper for the
// image's registry host.
func (a *ArtifactRegistry) ConfigureDocker(ctx context.Context, img ArtifactImage) error {
	cmd := shell.NewCommand("gcloud", "auth", "configure-docker", img.Host(), "--quiet")
	return a.Runner.Run(ctx, cmd).Check(cmd)
}

type repositories struct {
	svc  *artifactregistry.Service
	poll time.Duration
}

func (r *repositories) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.svc.Projects.Locations.Repositories.Get(name).Context(ctx).Do()
	if err == nil {
		return true, nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (r *repositories) Create(ctx context.Context, parent, id string, repo *artifactregistry.Repository) error {
	op, err := r.svc.Projects.Locations.Repositories.Create(parent, repo).RepositoryId(id).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return nil
		}
		return err
	}
	for !op.Done {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.poll):
		}
		if op, err = r.svc.Projects.Locations.Operations.Get(op.Name).Context(ctx).Do(); err != nil {
			return err
		}
	}
	if op.Error != nil {
		return errors.New(op.Error.Message)
	}
	return nil
}
