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

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/mattn/go-isatty"
	"github.com/moby/patternmatcher"

	"jobber/pkg/archive"
)

// dockerAPI is the subset of the Engine API client used here.
type dockerAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, image string, options image.PushOptions) (io.ReadCloser, error)
}

// APIEngine talks to the Docker Engine API directly instead of the docker CLI.
type APIEngine struct {
	api      dockerAPI
	out      io.Writer
	keychain authn.Keychain
	auths    map[string]registry.AuthConfig
}

// NewAPIEngine connects using DOCKER_HOST and friends.
func NewAPIEngine() (*APIEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newAPIEngine(cli, os.Stdout), nil
}

func newAPIEngine(api dockerAPI, out io.Writer) *APIEngine {
	return &APIEngine{api: api, out: out, keychain: Keychain, auths: map[string]registry.AuthConfig{}}
}

func (e *APIEngine) Build(ctx context.Context, opts BuildOptions) error {
	buildCtx := contextOrDot(opts.Context)
	dockerfile, err := dockerfileInContext(buildCtx, opts.Dockerfile)
	if err != nil {
		return err
	}
	// The daemon needs the Dockerfile and .dockerignore even when ignored.
	patterns, err := archive.IgnoreFilePatterns(buildCtx)
	if err != nil {
		return err
	}
	keep, err := patternmatcher.New(append(patterns, "!"+dockerfile, "!.dockerignore"))
	if err != nil {
		return fmt.Errorf("failed to create pattern matcher: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(archive.Write(pw, buildCtx, archive.Options{Ignore: keep}))
	}()
	defer pr.Close()

	resp, err := e.api.ImageBuild(ctx, pr, build.ImageBuildOptions{
		Tags:       []string{opts.Image.Ref()},
		Dockerfile: dockerfile,
		Remove:     true,
		PullParent: true,
		Platform:   opts.Platform,
	})
	if err != nil {
		return fmt.Errorf("docker build failed: %w", err)
	}
	defer resp.Body.Close()
	return e.display(resp.Body)
}

func (e *APIEngine) Tag(ctx context.Context, source, target string) error {
	if err := e.api.ImageTag(ctx, source, target); err != nil {
		return fmt.Errorf("failed to tag %s as %s: %w", source, target, err)
	}
	return nil
}

func (e *APIEngine) Push(ctx context.Context, ref string) error {
	auth, err := e.registryAuth(ref)
	if err != nil {
		return err
	}
	body, err := e.api.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", ref, err)
	}
	defer body.Close()
	return e.display(body)
}

// Login records credentials for later pushes to registryHost.
func (e *APIEngine) Login(_ context.Context, registryHost, username, password string) error {
	reg, err := name.NewRegistry(registryHost)
	if err != nil {
		return fmt.Errorf("invalid registry %q: %w", registryHost, err)
	}
	e.auths[reg.RegistryStr()] = registry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: registryHost,
	}
	return nil
}

// registryAuth encodes explicit login credentials, falling back to the keychain.
func (e *APIEngine) registryAuth(ref string) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	host := parsed.Context().RegistryStr()
	cfg, ok := e.auths[host]
	if !ok && e.keychain != nil {
		authenticator, err := e.keychain.Resolve(parsed.Context().Registry)
		if err != nil {
			return "", fmt.Errorf("failed to resolve credentials for %s: %w", host, err)
		}
		ac, err := authenticator.Authorization()
		if err != nil {
			return "", fmt.Errorf("failed to read credentials for %s: %w", host, err)
		}
		cfg = registry.AuthConfig{
			Username:      ac.Username,
			Password:      ac.Password,
			Auth:          ac.Auth,
			IdentityToken: ac.IdentityToken,
			RegistryToken: ac.RegistryToken,
			ServerAddress: host,
		}
	}
	return registry.EncodeAuthConfig(cfg)
}

func (e *APIEngine) display(in io.Reader) error {
	var fd uintptr
	term := false
	if f, ok := e.out.(*os.File); ok {
		fd = f.Fd()
		term = isatty.IsTerminal(fd)
	}
	return jsonmessage.DisplayJSONMessagesStream(in, e.out, fd, term, nil)
}
