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
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"jobber/pkg/logging"
	"jobber/pkg/shell"
)

// CloudBuildTemplate is the Go template for generating cloudbuild.yaml
const CloudBuildTemplate = `
steps:
- name: 'gcr.io/cloud-builders/docker'
  args: ['build', '-f', '{{.Dockerfile}}', '-t', '{{.FullImageName}}'{{if .Platform}}, '--platform', '{{.Platform}}'{{end}}, '.']
images:
- '{{.FullImageName}}'
`

// CloudBuildEngine builds remotely with "gcloud builds submit". The image is
// pushed by Cloud Build itself.
type CloudBuildEngine struct {
	Project string
	// Region selects an Artifact Registry host when the image name is not fully qualified.
	Region string
	Runner shell.Runner
}

func (e *CloudBuildEngine) Build(ctx context.Context, opts BuildOptions) error {
	buildCtx := contextOrDot(opts.Context)
	dockerfile, err := dockerfileInContext(buildCtx, opts.Dockerfile)
	if err != nil {
		return err
	}
	yaml, fullImage, err := GenerateCloudBuildYaml(opts.Image.Ref(), dockerfile, opts.Platform, e.Project, e.Region)
	if err != nil {
		return err
	}
	buildURL, err := e.submit(ctx, yaml, buildCtx)
	if err != nil {
		return err
	}
	if buildURL != "" {
		logging.Info("Cloud Build finished: %s", buildURL)
	}
	logging.Info("Image available at %s", fullImage)
	return nil
}

// GenerateCloudBuildYaml renders cloudbuild.yaml and returns it with the fully
// qualified image name.
func GenerateCloudBuildYaml(imageName, dockerfile, platform, projectID, region string) (string, string, error) {
	fullImageName, err := GetFullImageName(imageName, projectID, region)
	if err != nil {
		return "", "", err
	}

	tmpl, err := template.New("cloudbuild").Parse(CloudBuildTemplate)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse cloudbuild template: %w", err)
	}

	data := struct {
		Dockerfile    string
		FullImageName string
		Platform      string
	}{
		Dockerfile:    dockerfile,
		FullImageName: fullImageName,
		Platform:      platform,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute cloudbuild template: %w", err)
	}
	return buf.String(), fullImageName, nil
}

func (e *CloudBuildEngine) submit(ctx context.Context, cloudBuildYamlContent, buildContextPath string) (string, error) {
	tmpFile, err := os.CreateTemp("", "cloudbuild-*.yaml")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary cloudbuild.yaml file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if _, err := tmpFile.WriteString(cloudBuildYamlContent); err != nil {
		return "", fmt.Errorf("failed to write cloudbuild.yaml content to temporary file: %w", err)
	}

	logging.Info("Submitting Cloud Build with context: %s", buildContextPath)
	logging.Debug("CloudBuild YAML content:\n%s", cloudBuildYamlContent)

	runner := e.Runner
	if runner == nil {
		runner = shell.DefaultRunner
	}
	cmd := shell.NewCommand("gcloud", "builds", "submit", buildContextPath,
		"--config="+tmpFile.Name(), "--project="+e.Project)
	result := runner.Run(ctx, cmd)
	if result.ExitCode != 0 {
		return "", fmt.Errorf("gcloud builds submit failed with exit code %d: %s\n%s", result.ExitCode, result.Stderr, result.Stdout)
	}
	return extractBuildURL(result.Stdout + "\n" + result.Stderr), nil
}

// GetFullImageName qualifies a bare image name with gcr.io/<project>, or with
// the regional Artifact Registry host when region is set.
func GetFullImageName(imageName, projectID, region string) (string, error) {
	imageName = strings.TrimSpace(imageName)
	projectID = strings.TrimSpace(projectID)
	if imageName == "" {
		return "", fmt.Errorf("image name cannot be empty")
	}

	baseImage, tag, found := strings.Cut(imageName, ":")
	if !found || tag == "" {
		tag = "latest"
	}

	if requireRegistry(imageName) == nil {
		return imageName, nil
	}
	if region != "" {
		return fmt.Sprintf("%s-docker.pkg.dev/%s/%s:%s", region, projectID, baseImage, tag), nil
	}
	if strings.HasPrefix(baseImage, projectID+"/") {
		return fmt.Sprintf("gcr.io/%s:%s", baseImage, tag), nil
	}
	return fmt.Sprintf("gcr.io/%s/%s:%s", projectID, baseImage, tag), nil
}

// extractBuildURL pulls the console link out of gcloud's output.
func extractBuildURL(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "builds/") {
			continue
		}
		if idx := strings.Index(line, "https://console.cloud.google.com"); idx != -1 {
			url, _, _ := strings.Cut(strings.TrimSpace(line[idx:]), " ")
			return strings.TrimRight(url, "].")
		}
	}
	return ""
}

// dockerfileInContext returns the Dockerfile path relative to the build context.
func dockerfileInContext(buildCtx, dockerfile string) (string, error) {
	if dockerfile == "" {
		return "Dockerfile", nil
	}
	absCtx, err := filepath.Abs(buildCtx)
	if err != nil {
		return "", err
	}
	absDf := dockerfile
	if !filepath.IsAbs(absDf) {
		if absDf, err = filepath.Abs(dockerfile); err != nil {
			return "", err
		}
	}
	rel, err := filepath.Rel(absCtx, absDf)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("dockerfile %s must be inside the build context %s", dockerfile, buildCtx)
	}
	return filepath.ToSlash(rel), nil
}
