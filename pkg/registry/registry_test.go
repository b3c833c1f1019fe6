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
	"encoding/base64"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/artifactregistry/v1"

	"jobber/pkg/logging"
	"jobber/pkg/shell"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestImageURIs(t *testing.T) {
	e := ECRImage{Account: "123456789012", Region: "us-west-2", Repo: "trainer", Tag: "v1"}
	if got, want := e.URI(), "123456789012.dkr.ecr.us-west-2.amazonaws.com/trainer:v1"; got != want {
		t.Errorf("ECRImage.URI() = %q, want %q", got, want)
	}
	a := ArtifactImage{Project: "proj", Region: "us-central1", Repo: "ml", Image: "trainer", Tag: "latest"}
	if got, want := a.URI(), "us-central1-docker.pkg.dev/proj/ml/trainer:latest"; got != want {
		t.Errorf("ArtifactImage.URI() = %q, want %q", got, want)
	}
}

type fakeECR struct {
	describeErr error
	createErr   error
	token       string
	created     []string
}

func (f *fakeECR) DescribeRepositories(context.Context, *ecr.DescribeRepositoriesInput, ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	return &ecr.DescribeRepositoriesOutput{}, f.describeErr
}

func (f *fakeECR) CreateRepository(_ context.Context, in *ecr.CreateRepositoryInput, _ ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error) {
	f.created = append(f.created, aws.ToString(in.RepositoryName))
	return &ecr.CreateRepositoryOutput{}, f.createErr
}

func (f *fakeECR) GetAuthorizationToken(context.Context, *ecr.GetAuthorizationTokenInput, ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error) {
	if f.token == "" {
		return &ecr.GetAuthorizationTokenOutput{}, nil
	}
	return &ecr.GetAuthorizationTokenOutput{
		AuthorizationData: []types.AuthorizationData{{AuthorizationToken: aws.String(f.token)}},
	}, nil
}

func TestECREnsureRepository(t *testing.T) {
	tests := []struct {
		name        string
		describeErr error
		createErr   error
		wantCreated []string
		wantErr     bool
	}{
		{name: "exists"},
		{name: "missing", describeErr: &types.RepositoryNotFoundException{}, wantCreated: []string{"trainer"}},
		{name: "raced", describeErr: &types.RepositoryNotFoundException{}, createErr: &types.RepositoryAlreadyExistsException{}, wantCreated: []string{"trainer"}},
		{name: "describe denied", describeErr: errors.New("AccessDenied"), wantErr: true},
		{name: "create denied", describeErr: &types.RepositoryNotFoundException{}, createErr: errors.New("AccessDenied"), wantCreated: []string{"trainer"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeECR{describeErr: tc.describeErr, createErr: tc.createErr}
			err := (&ECR{API: api}).EnsureRepository(context.Background(), "trainer")
			if (err != nil) != tc.wantErr {
				t.Fatalf("EnsureRepository() error = %v, wantErr %v", err, tc.wantErr)
			}
			if diff := cmp.Diff(tc.wantCreated, api.created); diff != "" {
				t.Errorf("created mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type loginRecorder struct {
	registry, user, password string
}

func (l *loginRecorder) Login(_ context.Context, registry, user, password string) error {
	l.registry, l.user, l.password = registry, user, password
	return nil
}

func TestECRLogin(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte("AWS:s3cr:et"))
	rec := &loginRecorder{}
	e := &ECR{API: &fakeECR{token: token}}
	if err := e.Login(context.Background(), rec, "123.dkr.ecr.us-east-1.amazonaws.com"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	want := loginRecorder{registry: "123.dkr.ecr.us-east-1.amazonaws.com", user: "AWS", password: "s3cr:et"}
	if *rec != want {
		t.Errorf("Login() forwarded %+v, want %+v", *rec, want)
	}

	for name, api := range map[string]*fakeECR{
		"no data":  {},
		"not b64":  {token: "%%%"},
		"no colon": {token: base64.StdEncoding.EncodeToString([]byte("AWS"))},
	} {
		if err := (&ECR{API: api}).Login(context.Background(), rec, "r"); err == nil {
			t.Errorf("%s: Login() succeeded", name)
		}
	}
}

type fakeRepos struct {
	exists  bool
	created []string
	format  string
}

func (f *fakeRepos) Exists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeRepos) Create(_ context.Context, parent, id string, repo *artifactregistry.Repository) error {
	f.created = append(f.created, parent, id)
	f.format = repo.Format
	return nil
}

func TestArtifactRegistry(t *testing.T) {
	img := ArtifactImage{Project: "proj", Region: "europe-west4", Repo: "ml", Image: "trainer", Tag: "v2"}
	api := &fakeRepos{exists: true}
	var cmds []string
	ar := &ArtifactRegistry{
		API: api,
		Runner: shell.RunnerFunc(func(_ context.Context, c *shell.Command) shell.Result {
			cmds = append(cmds, c.String())
			return shell.Result{}
		}),
	}
	if err := ar.EnsureRepository(context.Background(), img); err != nil || api.created != nil {
		t.Fatalf("EnsureRepository() on existing repo = %v, created %v", err, api.created)
	}

	api.exists = false
	if err := ar.EnsureRepository(context.Background(), img); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"projects/proj/locations/europe-west4", "ml"}, api.created); diff != "" {
		t.Errorf("Create args mismatch (-want +got):\n%s", diff)
	}
	if api.format != "DOCKER" {
		t.Errorf("repository format = %q", api.format)
	}

	if err := ar.ConfigureDocker(context.Background(), img); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"gcloud auth configure-docker europe-west4-docker.pkg.dev --quiet"}, cmds); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}
