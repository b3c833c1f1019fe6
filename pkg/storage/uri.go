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

// Package storage stages training data and source bundles in S3 and GCS.
package storage

import (
	"fmt"
	"path"
	"strings"
)

const (
	SchemeS3  = "s3"
	SchemeGCS = "gs"

	// PlaceholderName is written under <prefix>/data/ so that the training
	// channel is never empty.
	PlaceholderName    = "placeholder.txt"
	placeholderContent = "placeholder"
)

// URI is a parsed object store location.
type URI struct {
	Scheme string
	Bucket string
	Key    string
}

// ParseURI accepts s3://bucket/key and gs://bucket/key.
func ParseURI(s string) (URI, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || (scheme != SchemeS3 && scheme != SchemeGCS) {
		return URI{}, fmt.Errorf("unsupported storage URI %q; expected s3:// or gs://", s)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return URI{}, fmt.Errorf("storage URI %q has no bucket", s)
	}
	return URI{Scheme: scheme, Bucket: bucket, Key: strings.Trim(key, "/")}, nil
}

// IsRemote reports whether s looks like an object store location.
func IsRemote(s string) bool {
	return strings.HasPrefix(s, SchemeS3+"://") || strings.HasPrefix(s, SchemeGCS+"://")
}

func (u URI) String() string {
	if u.Key == "" {
		return fmt.Sprintf("%s://%s", u.Scheme, u.Bucket)
	}
	return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Bucket, u.Key)
}

// Join returns a copy of u with elems appended to the key.
func (u URI) Join(elems ...string) URI {
	parts := append([]string{u.Key}, elems...)
	u.Key = strings.Trim(path.Join(parts...), "/")
	return u
}

// Location builds a URI from a bucket and an optional prefix.
func Location(scheme, bucket, prefix string) URI {
	return URI{Scheme: scheme, Bucket: bucket, Key: strings.Trim(prefix, "/")}
}
