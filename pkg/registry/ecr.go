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

// Package registry prepares container registries (Amazon ECR and Google
// Artifact Registry) for pushing training images.
package registry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"jobber/pkg/logging"
)

// Login is the registry login step of an image engine.
type Login interface {
	Login(ctx context.Context, registry, username, password string) error
}

// ECRImage identifies an image in a private ECR repository.
type ECRImage struct {
	Account string
	Region  string
	Repo    string
	Tag     string
}

// Registry is the ECR hostname.
func (i ECRImage) Registry() string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", i.Account, i.Region)
}

// URI is the full image reference.
func (i ECRImage) URI() string {
	return fmt.Sprintf("%s/%s:%s", i.Registry(), i.Repo, i.Tag)
}

// ECRAPI is the part of the ECR client used here.
type ECRAPI interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

// ECR manages repositories and logins for one account and region.
type ECR struct {
	API ECRAPI
}

// NewECR builds an ECR helper from an AWS config.
func NewECR(cfg aws.Config) *ECR {
	return &ECR{API: ecr.NewFromConfig(cfg)}
}

// EnsureRepository creates repo when it does not exist.
func (e *ECR) EnsureRepository(ctx context.Context, repo string) error {
	_, err := e.API.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{RepositoryNames: []string{repo}})
	if err == nil {
		return nil
	}
	var notFound *types.RepositoryNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe ECR repository %s: %w", repo, err)
	}
	logging.Info("Creating ECR repository %s", repo)
	if _, err := e.API.CreateRepository(ctx, &ecr.CreateRepositoryInput{RepositoryName: aws.String(repo)}); err != nil {
		var exists *types.RepositoryAlreadyExistsException
		if errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("failed to create ECR repository %s: %w", repo, err)
	}
	return nil
}

// Login fetches an authorization token and hands it to the engine.
func (e *ECR) Login(ctx context.Context, engine Login, registry string) error {
	out, err := e.API.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return fmt.Errorf("failed to get ECR authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return errors.New("ECR returned no authorization data")
	}
	user, password, err := decodeAuthToken(aws.ToString(out.AuthorizationData[0].AuthorizationToken))
	if err != nil {
		return err
	}
	return engine.Login(ctx, registry, user, password)
}

func decodeAuthToken(token string) (string, string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("failed to decode ECR authorization token: %w", err)
	}
	user, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", errors.New("malformed ECR authorization token")
	}
	return user, password, nil
}
