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

// Package sagemaker submits and follows Amazon SageMaker training jobs.
package sagemaker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"

	"jobber/pkg/logging"
	"jobber/pkg/monitor"
	"jobber/pkg/orchestrator"
	"jobber/pkg/storage"
)

const (
	DefaultPollInterval = 5 * time.Second

	// maxRuntimeSeconds is the SageMaker default stopping condition.
	maxRuntimeSeconds = 24 * 60 * 60
	volumeSizeGB      = 30
	sourceArchiveName = "sourcedir.tar.gz"
	trainChannel      = "train"
)

// API is the part of the SageMaker client used here.
type API interface {
	CreateTrainingJob(ctx context.Context, params *sagemaker.CreateTrainingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateTrainingJobOutput, error)
	DescribeTrainingJob(ctx context.Context, params *sagemaker.DescribeTrainingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeTrainingJobOutput, error)
}

// Orchestrator submits training jobs with a custom image.
type Orchestrator struct {
	API    API
	Logs   LogsAPI
	Store  storage.Store
	Region string

	now func() time.Time
}

var _ orchestrator.Orchestrator = (*Orchestrator)(nil)

// New builds an orchestrator whose clients share one AWS config.
func New(cfg aws.Config, store storage.Store) *Orchestrator {
	return &Orchestrator{
		API:    sagemaker.NewFromConfig(cfg),
		Logs:   cloudwatchlogs.NewFromConfig(cfg),
		Store:  store,
		Region: cfg.Region,
		now:    time.Now,
	}
}

func (o *Orchestrator) Validate(job orchestrator.JobDefinition) error {
	var missing []string
	if job.ImageURI == "" {
		missing = append(missing, "--image-uri")
	}
	if job.RoleARN == "" {
		missing = append(missing, "--role-arn")
	}
	if job.Bucket == "" {
		missing = append(missing, "--bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("SageMaker submit requires %s", strings.Join(missing, ", "))
	}
	if job.InstanceCount < 1 || job.InstanceCount > math.MaxInt32 {
		return fmt.Errorf("--instance-count must be between 1 and %d", math.MaxInt32)
	}
	if job.MaxWaitSeconds < 0 || job.MaxWaitSeconds > math.MaxInt32 {
		return fmt.Errorf("--max-wait-seconds must be between 0 and %d", math.MaxInt32)
	}
	return nil
}

// prepared is a job with defaults filled in and the staging plan decided.
type prepared struct {
	job       orchestrator.JobDefinition
	base      storage.URI
	sourceURI storage.URI
	bundle    bool
}

func (o *Orchestrator) prepare(job orchestrator.JobDefinition) prepared {
	if job.Name == "" {
		now := time.Now
		if o.now != nil {
			now = o.now
		}
		job.Name = orchestrator.DefaultJobName(now())
	}
	if job.Region == "" {
		job.Region = o.Region
	}
	p := prepared{job: job, base: storage.Location(storage.SchemeS3, job.Bucket, job.Prefix)}
	if job.HasLocalEntryPoint() {
		p.bundle = true
		p.sourceURI = p.base.Join("code", job.Name, "source", sourceArchiveName)
	}
	return p
}

// Spec returns the CreateTrainingJob request.
func (o *Orchestrator) Spec(job orchestrator.JobDefinition) (any, error) {
	if err := o.Validate(job); err != nil {
		return nil, err
	}
	return o.request(o.prepare(job)), nil
}

func (o *Orchestrator) request(p prepared) *sagemaker.CreateTrainingJobInput {
	job := p.job
	hp := make(map[string]string, len(job.Hyperparameters)+3)
	for k, v := range job.Hyperparameters {
		hp[k] = jsonString(v)
	}
	if p.bundle {
		hp["sagemaker_program"] = jsonString(job.EntryPoint)
		hp["sagemaker_submit_directory"] = jsonString(p.sourceURI.String())
		hp["sagemaker_region"] = jsonString(job.Region)
	}

	stopping := &types.StoppingCondition{MaxRuntimeInSeconds: aws.Int32(maxRuntimeSeconds)}
	if job.UseSpot {
		maxWait := job.MaxWaitSeconds
		if maxWait == 0 {
			maxWait = maxRuntimeSeconds
		}
		stopping.MaxWaitTimeInSeconds = aws.Int32(int32(maxWait))
		stopping.MaxRuntimeInSeconds = aws.Int32(int32(min(maxWait, maxRuntimeSeconds)))
	}

	in := &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(job.Name),
		RoleArn:         aws.String(job.RoleARN),
		AlgorithmSpecification: &types.AlgorithmSpecification{
			TrainingImage:     aws.String(job.ImageURI),
			TrainingInputMode: types.TrainingInputModeFile,
		},
		InputDataConfig: []types.Channel{{
			ChannelName: aws.String(trainChannel),
			DataSource: &types.DataSource{S3DataSource: &types.S3DataSource{
				S3DataType:             types.S3DataTypeS3Prefix,
				S3Uri:                  aws.String(p.base.Join("data").String()),
				S3DataDistributionType: types.S3DataDistributionFullyReplicated,
			}},
		}},
		OutputDataConfig: &types.OutputDataConfig{S3OutputPath: aws.String(p.base.Join("outputs").String())},
		ResourceConfig: &types.ResourceConfig{
			InstanceType:   types.TrainingInstanceType(job.InstanceType),
			InstanceCount:  aws.Int32(int32(job.InstanceCount)),
			VolumeSizeInGB: aws.Int32(volumeSizeGB),
		},
		StoppingCondition: stopping,
		HyperParameters:   hp,
	}
	if job.UseSpot {
		in.EnableManagedSpotTraining = aws.Bool(true)
	}
	return in
}

// SubmitJob stages placeholder data and the source bundle, then creates the job.
func (o *Orchestrator) SubmitJob(ctx context.Context, job orchestrator.JobDefinition) (string, error) {
	if err := o.Validate(job); err != nil {
		return "", err
	}
	p := o.prepare(job)

	if job.EnsureData {
		if err := o.Store.EnsurePlaceholder(ctx, job.Bucket, job.Prefix); err != nil {
			return "", err
		}
	}
	if p.bundle {
		logging.Info("Uploading %s to %s", job.SourceDir, p.sourceURI)
		if err := storage.UploadSourceDir(ctx, o.Store, job.SourceDir, p.sourceURI); err != nil {
			return "", err
		}
	} else if job.EntryPoint != "" {
		logging.Warn("Entry point %s not found under %s; relying on the image entrypoint", job.EntryPoint, job.SourceDir)
	}

	if _, err := o.API.CreateTrainingJob(ctx, o.request(p)); err != nil {
		return "", fmt.Errorf("failed to create training job %s: %w", p.job.Name, err)
	}
	return p.job.Name, nil
}

func (o *Orchestrator) Strategy() monitor.Strategy {
	return &Strategy{API: o.API, Logs: o.Logs}
}

func (o *Orchestrator) PollInterval() time.Duration { return DefaultPollInterval }

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
