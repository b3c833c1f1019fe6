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

package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompter asks questions on a terminal-like stream and falls back to defaults.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// String shows "msg [default]: " and returns the answer or the default when empty.
func (p *Prompter) String(msg, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", msg, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", msg)
	}
	line, _ := p.in.ReadString('\n')
	if v := strings.TrimSpace(line); v != "" {
		return v
	}
	return def
}

// Int falls back to def when the answer does not parse.
func (p *Prompter) Int(msg string, def int) int {
	v, err := strconv.Atoi(p.String(msg, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

func (p *Prompter) Bool(msg string, def bool) bool {
	d := "n"
	if def {
		d = "y"
	}
	switch strings.ToLower(p.String(msg+" (y/n)", d)) {
	case "y", "yes", "true", "1":
		return true
	}
	return false
}

// SampleOptions carries the init flags.
type SampleOptions struct {
	Region string
	// GuessedRegion is used when Region is empty (aws only).
	GuessedRegion string
	RoleARN       string
}

type buildSection struct {
	Image    string `yaml:"image"`
	Tag      string `yaml:"tag"`
	Template string `yaml:"template"`
	Context  string `yaml:"context"`
}

type awsPush struct {
	Image  string `yaml:"image"`
	Repo   string `yaml:"repo"`
	Tag    string `yaml:"tag"`
	Region string `yaml:"region"`
}

type awsSubmit struct {
	ImageURI       string `yaml:"image-uri"`
	RoleARN        string `yaml:"role-arn"`
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
	Region         string `yaml:"region"`
	EntryPoint     string `yaml:"entry-point"`
	SourceDir      string `yaml:"source-dir"`
	InstanceType   string `yaml:"instance-type"`
	InstanceCount  int    `yaml:"instance-count"`
	UseSpot        bool   `yaml:"use-spot"`
	MaxWaitSeconds *int   `yaml:"max-wait-seconds"`
}

type gcpPush struct {
	Image        string `yaml:"image"`
	Tag          string `yaml:"tag"`
	Project      string `yaml:"project"`
	ArtifactRepo string `yaml:"artifact-repo"`
	Region       string `yaml:"region"`
}

type gcpSubmit struct {
	ImageURI         string `yaml:"image-uri"`
	Project          string `yaml:"project"`
	GCSBucket        string `yaml:"gcs-bucket"`
	GCSPrefix        string `yaml:"gcs-prefix"`
	Region           string `yaml:"region"`
	EntryPoint       string `yaml:"entry-point"`
	SourceDir        string `yaml:"source-dir"`
	MachineType      string `yaml:"machine-type"`
	AcceleratorType  string `yaml:"accelerator-type"`
	AcceleratorCount int    `yaml:"accelerator-count"`
	ReplicaCount     int    `yaml:"replica-count"`
	UseSpot          bool   `yaml:"use-spot"`
}

type sample[P, S any] struct {
	Provider string       `yaml:"provider"`
	Build    buildSection `yaml:"build"`
	Push     P            `yaml:"push"`
	Submit   S            `yaml:"submit"`
}

// Sample prompts for the values of a starter config and returns it as YAML.
func Sample(provider string, p *Prompter, opts SampleOptions) ([]byte, error) {
	switch provider {
	case ProviderAWS:
		return yaml.Marshal(awsSample(p, opts))
	case ProviderGCP:
		return yaml.Marshal(gcpSample(p, opts))
	}
	return nil, fmt.Errorf("unsupported provider: %s", provider)
}

func awsSample(p *Prompter, opts SampleOptions) sample[awsPush, awsSubmit] {
	region := firstNonEmpty(opts.Region, opts.GuessedRegion, "us-east-1")
	image := p.String("Build image name", "my-training")
	tag := p.String("Build tag", "latest")
	tmpl := p.String("Docker template", "gpu-cu121")
	buildCtx := p.String("Build context", ".")

	repo := p.String("ECR repo name", image)
	pushRegion := p.String("AWS region", region)

	imageURI := p.String("Submit image URI", fmt.Sprintf("ACCOUNT.dkr.ecr.%s.amazonaws.com/%s:%s", pushRegion, repo, tag))
	role := p.String("SageMaker role ARN", firstNonEmpty(opts.RoleARN, "arn:aws:iam::<account-id>:role/SageMakerExecutionRole"))
	bucket := p.String("S3 bucket", "your-bucket")
	prefix := p.String("S3 prefix", "jobber-run")
	entry := p.String("Entry point", "train.py")
	sourceDir := p.String("Source dir", "code-bundle")
	instanceType := p.String("Instance type", "ml.m5.xlarge")
	instanceCount := p.Int("Instance count", 1)
	useSpot := p.Bool("Use managed spot", false)
	var maxWait *int
	if mw := p.Int("Max wait seconds (0 to skip)", 0); mw != 0 {
		maxWait = &mw
	}

	return sample[awsPush, awsSubmit]{
		Provider: "aws",
		Build:    buildSection{Image: image, Tag: tag, Template: tmpl, Context: buildCtx},
		Push:     awsPush{Image: image, Repo: repo, Tag: tag, Region: pushRegion},
		Submit: awsSubmit{
			ImageURI:       imageURI,
			RoleARN:        role,
			Bucket:         bucket,
			Prefix:         prefix,
			Region:         pushRegion,
			EntryPoint:     entry,
			SourceDir:      sourceDir,
			InstanceType:   instanceType,
			InstanceCount:  instanceCount,
			UseSpot:        useSpot,
			MaxWaitSeconds: maxWait,
		},
	}
}

func gcpSample(p *Prompter, opts SampleOptions) sample[gcpPush, gcpSubmit] {
	region := firstNonEmpty(opts.Region, "us-central1")
	image := p.String("Build image name", "my-training")
	tag := p.String("Build tag", "latest")
	tmpl := p.String("Docker template", "gpu-cu128")
	buildCtx := p.String("Build context", "code-bundle")

	project := p.String("GCP project", "my-gcp-project")
	repo := p.String("Artifact Registry repo", "my-artifact-repo")
	pushRegion := p.String("Region", region)

	bucket := p.String("GCS bucket", "my-gcs-bucket")
	prefix := p.String("GCS prefix", "jobber-run")
	entry := p.String("Entry point", "train.py")
	sourceDir := p.String("Source dir", "code-bundle")
	machineType := p.String("Machine type", "a2-highgpu-1g")
	accelType := p.String("Accelerator type", "NVIDIA_TESLA_A100")
	accelCount := p.Int("Accelerator count", 1)
	replicas := p.Int("Replica count", 1)
	useSpot := p.Bool("Use spot/preemptible", false)
	imageURI := p.String("Submit image URI", fmt.Sprintf("%s-docker.pkg.dev/%s/%s/%s:%s", pushRegion, project, repo, image, tag))

	return sample[gcpPush, gcpSubmit]{
		Provider: "gcp",
		Build:    buildSection{Image: image, Tag: tag, Template: tmpl, Context: buildCtx},
		Push:     gcpPush{Image: image, Tag: tag, Project: project, ArtifactRepo: repo, Region: pushRegion},
		Submit: gcpSubmit{
			ImageURI:         imageURI,
			Project:          project,
			GCSBucket:        bucket,
			GCSPrefix:        prefix,
			Region:           pushRegion,
			EntryPoint:       entry,
			SourceDir:        sourceDir,
			MachineType:      machineType,
			AcceleratorType:  accelType,
			AcceleratorCount: accelCount,
			ReplicaCount:     replicas,
			UseSpot:          useSpot,
		},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
