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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/compression"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/google"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/sirupsen/logrus"

	"jobber/pkg/archive"
)

// DockerPlatform represents the target platform for a container image.
type DockerPlatform string

const (
	LinuxAMD64 DockerPlatform = "linux/amd64"
	LinuxARM64 DockerPlatform = "linux/arm64"
)

// Keychain resolves registry credentials from the docker config and from
// gcloud application default credentials.
var Keychain = authn.NewMultiKeychain(authn.DefaultKeychain, google.Keychain)

// CraneBuilder builds without a docker daemon: it appends the build context
// as a single layer on top of a base image and pushes the result.
type CraneBuilder struct {
	BaseImage string
	// WorkDir is where the context lands inside the image.
	WorkDir  string
	Keychain authn.Keychain
}

// Build pushes opts.Image, which must include a registry host.
func (b *CraneBuilder) Build(ctx context.Context, opts BuildOptions) error {
	_, err := b.BuildAndPush(ctx, opts)
	return err
}

// BuildAndPush returns the digest reference of the pushed image.
func (b *CraneBuilder) BuildAndPush(ctx context.Context, opts BuildOptions) (string, error) {
	platformStr := opts.Platform
	if platformStr == "" {
		platformStr = string(LinuxAMD64)
	}
	platform, err := parsePlatform(platformStr)
	if err != nil {
		return "", err
	}
	imageName := opts.Image.Ref()
	if err := requireRegistry(imageName); err != nil {
		return "", err
	}
	scriptDir := contextOrDot(opts.Context)
	keychain := b.Keychain
	if keychain == nil {
		keychain = Keychain
	}
	craneOpts := []crane.Option{
		crane.WithContext(ctx),
		crane.WithPlatform(&platform),
		crane.WithAuthFromKeychain(keychain),
	}

	logrus.Infof("Starting image build process for %s", imageName)
	logrus.Infof("Base image: %s", b.BaseImage)
	logrus.Infof("Build context: %s", scriptDir)
	logrus.Infof("Target platform: %s/%s", platform.OS, platform.Architecture)

	ignoreMatcher, err := archive.ReadDockerignorePatterns(scriptDir, nil)
	if err != nil {
		return "", err
	}
	prefix := strings.TrimPrefix(strings.TrimSuffix(b.WorkDir, "/")+"/", "/")
	tempTarballPath, err := archive.WriteTemp(scriptDir, "jobber-build-context-*.tar.gz", archive.Options{
		Ignore: ignoreMatcher,
		Gzip:   true,
		Prefix: prefix,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create filtered tarball: %w", err)
	}
	defer func() {
		os.Remove(tempTarballPath)
		logrus.Debugf("Cleaned up temporary tarball file: %s", tempTarballPath)
	}()

	tarLayer, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		file, openErr := os.Open(tempTarballPath)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open temporary tarball %q: %w", tempTarballPath, openErr)
		}
		return file, nil
	}, tarball.WithCompression(compression.GZip))
	if err != nil {
		return "", fmt.Errorf("failed to create layer from tarball: %w", err)
	}

	baseRef, err := name.ParseReference(b.BaseImage)
	if err != nil {
		return "", fmt.Errorf("failed to parse base image reference %q: %w", b.BaseImage, err)
	}
	baseImg, err := crane.Pull(baseRef.String(), craneOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to pull base image %q: %w", b.BaseImage, err)
	}

	newImg, err := mutate.AppendLayers(baseImg, tarLayer)
	if err != nil {
		return "", fmt.Errorf("failed to append layer: %w", err)
	}
	if b.WorkDir != "" {
		cfg, err := newImg.ConfigFile()
		if err != nil {
			return "", fmt.Errorf("failed to read image config: %w", err)
		}
		cfg = cfg.DeepCopy()
		cfg.Config.WorkingDir = b.WorkDir
		if newImg, err = mutate.ConfigFile(newImg, cfg); err != nil {
			return "", fmt.Errorf("failed to set working dir: %w", err)
		}
	}

	imageRef, err := name.ParseReference(imageName)
	if err != nil {
		return "", fmt.Errorf("failed to parse new image reference %q: %w", imageName, err)
	}
	logrus.Infof("Uploading container image to %s", imageName)
	if err := crane.Push(newImg, imageRef.String(), craneOpts...); err != nil {
		return "", fmt.Errorf("failed to push image %q: %w", imageName, err)
	}
	digest, err := newImg.Digest()
	if err != nil {
		return "", fmt.Errorf("failed to compute digest: %w", err)
	}
	ref := imageRef.Context().Digest(digest.String()).String()
	logrus.Infof("Image %s built and uploaded successfully.", ref)
	return ref, nil
}

// parsePlatform converts a platform string (e.g., "linux/amd64") into a v1.Platform struct.
func parsePlatform(platformStr string) (v1.Platform, error) {
	parts := strings.Split(platformStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return v1.Platform{}, fmt.Errorf("invalid platform format: %q, expected \"os/arch\"", platformStr)
	}
	return v1.Platform{
		OS:           parts[0],
		Architecture: parts[1],
	}, nil
}

// requireRegistry rejects names like "my-training:latest" that would resolve to Docker Hub.
func requireRegistry(image string) error {
	first, _, found := strings.Cut(image, "/")
	if !found || !(strings.ContainsAny(first, ".:") || first == "localhost") {
		return fmt.Errorf("image %q must include a registry host (e.g. us-central1-docker.pkg.dev/project/repo/image)", image)
	}
	return nil
}
