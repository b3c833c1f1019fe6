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

// Package vertex submits and follows Vertex AI custom training jobs.
package vertex

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/aiplatform/v1"
	cloudlogging "google.golang.org/api/logging/v2"
	"google.golang.org/api/option"

	"jobber/pkg/logging"
	"jobber/pkg/monitor"
	"jobber/pkg/orchestrator"
	"jobber/pkg/shell"
	"jobber/pkg/storage"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultDisplayName  = "jobber"
	spotStrategy        = "SPOT"
)

// Endpoint is the regional Vertex AI API endpoint.
func Endpoint(region string) string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/", region)
}

// JobsAPI is the CustomJobs surface used here.
type JobsAPI interface {
	Create(ctx context.Context, parent string, job *aiplatform.GoogleCloudAiplatformV1CustomJob) (*aiplatform.GoogleCloudAiplatformV1CustomJob, error)
	Get(ctx context.Context, name string) (*aiplatform.GoogleCloudAiplatformV1CustomJob, error)
}

// Orchestrator submits CustomJobs with a single worker pool.
type Orchestrator struct {
	Jobs    JobsAPI
	Logs    LogsAPI
	Store   storage.Store
	Project string
	Region  string

	start func(*shell.Command) (monitor.NativeStream, error)
}

var _ orchestrator.Orchestrator = (*Orchestrator)(nil)

// New connects to the regional Vertex AI endpoint and Cloud Logging with
// application default credentials.
func New(ctx context.Context, project, region string, store storage.Store) (*Orchestrator, error) {
	svc, err := aiplatform.NewService(ctx, option.WithEndpoint(Endpoint(region)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}
	logSvc, err := cloudlogging.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Logging client: %w", err)
	}
	return &Orchestrator{
		Jobs:    customJobs{svc},
		Logs:    entries{logSvc},
		Store:   store,
		Project: project,
		Region:  region,
	}, nil
}

func (o *Orchestrator) fill(job orchestrator.JobDefinition) orchestrator.JobDefinition {
	if job.Project == "" {
		job.Project = o.Project
	}
	if job.Region == "" {
		job.Region = o.Region
	}
	if job.Name == "" {
		job.Name = DefaultDisplayName
	}
	if job.ReplicaCount == 0 {
		job.ReplicaCount = 1
	}
	return job
}

func (o *Orchestrator) Validate(job orchestrator.JobDefinition) error {
	job = o.fill(job)
	if job.Project == "" || job.Region == "" || job.Bucket == "" || job.Prefix == "" {
		return fmt.Errorf("GCP submit requires --project, --region, and GCS bucket/prefix (--gcs-bucket/--gcs-prefix or --bucket/--prefix)")
	}
	if job.ImageURI == "" {
		return fmt.Errorf("GCP submit requires --image-uri")
	}
	if job.ReplicaCount < 1 {
		return fmt.Errorf("--replica-count must be at least 1")
	}
	return nil
}

// Spec returns the CustomJob resource.
func (o *Orchestrator) Spec(job orchestrator.JobDefinition) (any, error) {
	if err := o.Validate(job); err != nil {
		return nil, err
	}
	return o.customJob(o.fill(job)), nil
}

func (o *Orchestrator) customJob(job orchestrator.JobDefinition) *aiplatform.GoogleCloudAiplatformV1CustomJob {
	var args []string
	for _, k := range job.SortedHyperparameters() {
		args = append(args, "--"+k, job.Hyperparameters[k])
	}
	container := &aiplatform.GoogleCloudAiplatformV1ContainerSpec{ImageUri: job.ImageURI, Args: args}
	if job.EntryPoint != "" {
		container.Command = []string{"python", job.EntryPoint}
	}

	machine := &aiplatform.GoogleCloudAiplatformV1MachineSpec{MachineType: job.MachineType}
	if job.AcceleratorType != "" && job.AcceleratorCount > 0 {
		machine.AcceleratorType = job.AcceleratorType
		machine.AcceleratorCount = int64(job.AcceleratorCount)
	}

	spec := &aiplatform.GoogleCloudAiplatformV1CustomJobSpec{
		WorkerPoolSpecs: []*aiplatform.GoogleCloudAiplatformV1WorkerPoolSpec{{
			MachineSpec:   machine,
			ReplicaCount:  int64(job.ReplicaCount),
			ContainerSpec: container,
		}},
		BaseOutputDirectory: &aiplatform.GoogleCloudAiplatformV1GcsDestination{
			OutputUriPrefix: storage.Location(storage.SchemeGCS, job.Bucket, job.Prefix).Join("outputs").String(),
		},
		ServiceAccount: job.ServiceAccount,
		Network:        job.Network,
	}
	if job.UseSpot {
		spec.Scheduling = &aiplatform.GoogleCloudAiplatformV1Scheduling{Strategy: spotStrategy}
	}
	return &aiplatform.GoogleCloudAiplatformV1CustomJob{DisplayName: job.Name, JobSpec: spec}
}

// SubmitJob writes placeholder data when asked, then creates the CustomJob.
// It returns the job's resource name.
func (o *Orchestrator) SubmitJob(ctx context.Context, job orchestrator.JobDefinition) (string, error) {
	if err := o.Validate(job); err != nil {
		return "", err
	}
	job = o.fill(job)
	if job.EnsureData {
		if err := o.Store.EnsurePlaceholder(ctx, job.Bucket, job.Prefix); err != nil {
			return "", err
		}
	}
	if job.Subnet != "" {
		logging.Warn("--subnet %s is not supported for Vertex AI custom jobs; ignoring", job.Subnet)
	}
	parent := fmt.Sprintf("projects/%s/locations/%s", job.Project, job.Region)
	created, err := o.Jobs.Create(ctx, parent, o.customJob(job))
	if err != nil {
		return "", fmt.Errorf("failed to create custom job in %s: %w", parent, err)
	}
	return created.Name, nil
}

// JobName expands a bare job id into a full resource name.
func (o *Orchestrator) JobName(id string) string {
	if strings.Contains(id, "/") {
		return id
	}
	return fmt.Sprintf("projects/%s/locations/%s/customJobs/%s", o.Project, o.Region, id)
}

func (o *Orchestrator) Strategy() monitor.Strategy {
	return &Strategy{
		Jobs:    o.Jobs,
		Logs:    o.Logs,
		Project: o.Project,
		Region:  o.Region,
		start:   o.start,
	}
}

func (o *Orchestrator) PollInterval() time.Duration { return DefaultPollInterval }

// jobID is the trailing numeric id of a CustomJob resource name.
func jobID(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func replicaStream(pool int, replica int64) string {
	return "workerpool" + strconv.Itoa(pool) + "-" + strconv.FormatInt(replica, 10)
}

type customJobs struct {
	svc *aiplatform.Service
}

func (c customJobs) Create(ctx context.Context, parent string, job *aiplatform.GoogleCloudAiplatformV1CustomJob) (*aiplatform.GoogleCloudAiplatformV1CustomJob, error) {
	return c.svc.Projects.Locations.CustomJobs.Create(parent, job).Context(ctx).Do()
}

func (c customJobs) Get(ctx context.Context, name string) (*aiplatform.GoogleCloudAiplatformV1CustomJob, error) {
	return c.svc.Projects.Locations.CustomJobs.Get(name).Context(ctx).Do()
}
