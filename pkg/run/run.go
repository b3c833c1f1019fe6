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

// Package run holds the workflows behind each command: build, push,
// sync-data, submit and watch.
package run

import (
	"context"
	"fmt"

	"jobber/pkg/cloud"
	"jobber/pkg/config"
	"jobber/pkg/logging"
	"jobber/pkg/orchestrator"
	"jobber/pkg/orchestrator/sagemaker"
	"jobber/pkg/orchestrator/vertex"
	"jobber/pkg/shell"
	"jobber/pkg/storage"
)

// ProviderOptions selects and locates a cloud provider.
type ProviderOptions struct {
	Provider string
	Region   string
	Project  string
	Runner   shell.Runner
}

func (p ProviderOptions) runner() shell.Runner {
	if p.Runner == nil {
		return shell.DefaultRunner
	}
	return p.Runner
}

// NewOrchestrator connects to the provider's training service.
func NewOrchestrator(ctx context.Context, p ProviderOptions) (orchestrator.Orchestrator, error) {
	provider, err := config.ResolveProvider(p.Provider)
	if err != nil {
		return nil, err
	}
	if provider == config.ProviderAWS {
		cfg, err := cloud.AWSConfig(ctx, p.Region)
		if err != nil {
			return nil, err
		}
		return sagemaker.New(cfg, storage.NewS3(cfg, p.runner())), nil
	}

	project, err := cloud.GCPProject(ctx, p.Project, p.runner())
	if err != nil {
		return nil, err
	}
	if p.Region == "" {
		return nil, fmt.Errorf("--region is required for provider %s", config.ProviderGCP)
	}
	store, err := storage.NewGCS(ctx, project, p.Region, p.runner())
	if err != nil {
		return nil, err
	}
	logging.Debug("Using Vertex AI endpoint %s", vertex.Endpoint(p.Region))
	return vertex.New(ctx, project, p.Region, store)
}

// NewStore opens the object store for a provider.
func NewStore(ctx context.Context, p ProviderOptions) (storage.Store, error) {
	provider, err := config.ResolveProvider(p.Provider)
	if err != nil {
		return nil, err
	}
	if provider == config.ProviderAWS {
		cfg, err := cloud.AWSConfig(ctx, p.Region)
		if err != nil {
			return nil, err
		}
		return storage.NewS3(cfg, p.runner()), nil
	}
	project, err := cloud.GCPProject(ctx, p.Project, p.runner())
	if err != nil {
		logging.Warn("%v; missing buckets cannot be created", err)
	}
	return storage.NewGCS(ctx, project, p.Region, p.runner())
}
