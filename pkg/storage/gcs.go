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

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"jobber/pkg/logging"
	"jobber/pkg/shell"
)

// GCSAPI is the subset of Cloud Storage operations used here.
type GCSAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, project, bucket, location string) error
	HasObjects(ctx context.Context, bucket, prefix string) (bool, error)
	Write(ctx context.Context, bucket, key string, body io.Reader) error
}

// GCS stages data in Google Cloud Storage.
type GCS struct {
	API     GCSAPI
	Runner  shell.Runner
	Project string
	Region  string
}

// NewGCS opens a Cloud Storage client with application default credentials.
func NewGCS(ctx context.Context, project, region string, runner shell.Runner) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if runner == nil {
		runner = shell.DefaultRunner
	}
	return &GCS{API: gcsClient{client}, Runner: runner, Project: project, Region: region}, nil
}

// EnsureBucket creates the bucket in the configured region when missing.
func (g *GCS) EnsureBucket(ctx context.Context, bucket string) error {
	ok, err := g.API.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket gs://%s: %w", bucket, err)
	}
	if ok {
		return nil
	}
	if g.Project == "" {
		return fmt.Errorf("bucket gs://%s does not exist and no project is set to create it", bucket)
	}
	logging.Info("Creating GCS bucket gs://%s in %s", bucket, g.Region)
	if err := g.API.CreateBucket(ctx, g.Project, bucket, g.Region); err != nil {
		return fmt.Errorf("failed to create bucket gs://%s: %w", bucket, err)
	}
	return nil
}

// EnsurePlaceholder writes <prefix>/data/placeholder.txt when the data prefix
// holds no objects.
func (g *GCS) EnsurePlaceholder(ctx context.Context, bucket, prefix string) error {
	data := Location(SchemeGCS, bucket, prefix).Join("data")
	ok, err := g.API.HasObjects(ctx, bucket, data.Key+"/")
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", data, err)
	}
	if ok {
		return nil
	}
	key := data.Join(PlaceholderName)
	logging.Info("Writing placeholder %s", key)
	return g.Upload(ctx, key, strings.NewReader(placeholderContent))
}

// Upload writes body to dest.
func (g *GCS) Upload(ctx context.Context, dest URI, body io.Reader) error {
	if dest.Scheme != SchemeGCS {
		return fmt.Errorf("not a GCS location: %s", dest)
	}
	if err := g.API.Write(ctx, dest.Bucket, dest.Key, body); err != nil {
		return fmt.Errorf("failed to upload %s: %w", dest, err)
	}
	return nil
}

// Sync mirrors src to dest with gsutil rsync.
func (g *GCS) Sync(ctx context.Context, src, dest string) error {
	cmd := shell.NewCommand("gsutil", "-m", "rsync", "-r", src, dest).Stream()
	return g.Runner.Run(ctx, cmd).Check(cmd)
}

type gcsClient struct {
	c *storage.Client
}

func (g gcsClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := g.c.Bucket(bucket).Attrs(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (g gcsClient) CreateBucket(ctx context.Context, project, bucket, location string) error {
	var attrs *storage.BucketAttrs
	if location != "" {
		attrs = &storage.BucketAttrs{Location: location}
	}
	return g.c.Bucket(bucket).Create(ctx, project, attrs)
}

func (g gcsClient) HasObjects(ctx context.Context, bucket, prefix string) (bool, error) {
	it := g.c.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	return err == nil, err
}

func (g gcsClient) Write(ctx context.Context, bucket, key string, body io.Reader) error {
	w := g.c.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
