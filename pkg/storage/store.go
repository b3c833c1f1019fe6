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
	"fmt"
	"io"
	"os"

	"jobber/pkg/archive"
)

// Store is implemented by S3 and GCS.
type Store interface {
	EnsureBucket(ctx context.Context, bucket string) error
	EnsurePlaceholder(ctx context.Context, bucket, prefix string) error
	Upload(ctx context.Context, dest URI, body io.Reader) error
	Sync(ctx context.Context, src, dest string) error
}

var (
	_ Store = (*S3)(nil)
	_ Store = (*GCS)(nil)
)

// UploadSourceDir packs dir as a gzipped tarball, honoring .dockerignore, and
// uploads it to dest.
func UploadSourceDir(ctx context.Context, s Store, dir string, dest URI) error {
	matcher, err := archive.ReadDockerignorePatterns(dir, nil)
	if err != nil {
		return err
	}
	tmp, err := archive.WriteTemp(dir, "jobber-source-*.tar.gz", archive.Options{Ignore: matcher, Gzip: true})
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", dir, err)
	}
	defer os.Remove(tmp)

	f, err := os.Open(tmp)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Upload(ctx, dest, f)
}
