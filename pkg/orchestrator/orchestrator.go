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

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sigs.k8s.io/yaml"

	"jobber/pkg/monitor"
)

// JobDefinition holds all the necessary parameters to define a training job.
// This struct is intended to be general enough to support various backends,
// with specific orchestrator implementations extracting the fields relevant to them.
type JobDefinition struct {
	Name            string
	ImageURI        string
	EntryPoint      string
	SourceDir       string
	Hyperparameters map[string]string
	Bucket          string
	Prefix          string
	Region          string
	UseSpot         bool
	EnsureData      bool

	// SageMaker options
	RoleARN        string
	InstanceType   string
	InstanceCount  int
	MaxWaitSeconds int

	// Vertex AI options
	Project          string
	MachineType      string
	AcceleratorType  string
	AcceleratorCount int
	ReplicaCount     int
	ServiceAccount   string
	Network          string
	Subnet           string
}

// SortedHyperparameters returns the hyperparameter keys in order.
func (j JobDefinition) SortedHyperparameters() []string {
	keys := make([]string, 0, len(j.Hyperparameters))
	for k := range j.Hyperparameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasLocalEntryPoint reports whether SourceDir/EntryPoint exists on disk.
func (j JobDefinition) HasLocalEntryPoint() bool {
	if j.SourceDir == "" || j.EntryPoint == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(j.SourceDir, j.EntryPoint))
	return err == nil && !info.IsDir()
}

// Orchestrator defines the interface for submitting and following training
// jobs on one backend.
type Orchestrator interface {
	// Validate reports missing required fields.
	Validate(job JobDefinition) error
	// Spec returns the request document SubmitJob would send.
	Spec(job JobDefinition) (any, error)
	// SubmitJob stages inputs, creates the job and returns its handle.
	SubmitJob(ctx context.Context, job JobDefinition) (string, error)
	// Strategy adapts the backend to the job monitor.
	Strategy() monitor.Strategy
	PollInterval() time.Duration
}

// DefaultJobName is jobber-YYYY-MM-DD-HH-MM-SS-mmm in UTC.
func DefaultJobName(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("jobber-%s-%03d", now.Format("2006-01-02-15-04-05"), now.Nanosecond()/int(time.Millisecond))
}

// WriteSpec renders spec as YAML to path.
func WriteSpec(path string, spec any) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal job spec: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write job spec to %s: %w", path, err)
	}
	return nil
}
