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

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"jobber/pkg/logging"
	"jobber/pkg/shell"
)

// usEast1 rejects an explicit LocationConstraint.
const usEast1 = "us-east-1"

// S3API is the part of the S3 client used here.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stages data in Amazon S3.
type S3 struct {
	API    S3API
	Runner shell.Runner
	Region string
}

// NewS3 builds an S3 store from an AWS config.
func NewS3(cfg aws.Config, runner shell.Runner) *S3 {
	if runner == nil {
		runner = shell.DefaultRunner
	}
	return &S3{API: s3.NewFromConfig(cfg), Runner: runner, Region: cfg.Region}
}

// EnsureBucket creates the bucket when it does not exist.
func (s *S3) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.API.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}

	logging.Info("Creating S3 bucket %s in %s", bucket, s.Region)
	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.Region != "" && s.Region != usEast1 {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.Region),
		}
	}
	if _, err := s.API.CreateBucket(ctx, in); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// EnsurePlaceholder writes <prefix>/data/placeholder.txt when the data prefix
// holds no objects.
func (s *S3) EnsurePlaceholder(ctx context.Context, bucket, prefix string) error {
	data := Location(SchemeS3, bucket, prefix).Join("data")
	out, err := s.API.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(data.Key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", data, err)
	}
	if aws.ToInt32(out.KeyCount) > 0 {
		return nil
	}
	key := data.Join(PlaceholderName)
	logging.Info("Writing placeholder %s", key)
	return s.Upload(ctx, key, strings.NewReader(placeholderContent))
}

// Upload puts body at dest.
func (s *S3) Upload(ctx context.Context, dest URI, body io.Reader) error {
	if dest.Scheme != SchemeS3 {
		return fmt.Errorf("not an S3 location: %s", dest)
	}
	_, err := s.API.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(dest.Bucket),
		Key:    aws.String(dest.Key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", dest, err)
	}
	return nil
}

// Sync mirrors src to dest with the AWS CLI. Either side may be local.
func (s *S3) Sync(ctx context.Context, src, dest string) error {
	args := []string{"s3", "sync", src, dest}
	if s.Region != "" {
		args = append(args, "--region", s.Region)
	}
	cmd := shell.NewCommand("aws", args...).Stream()
	return s.Runner.Run(ctx, cmd).Check(cmd)
}
