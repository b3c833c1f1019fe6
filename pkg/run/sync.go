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

package run

import (
	"context"
	"fmt"
	"io"
	"strings"

	"jobber/pkg/config"
	"jobber/pkg/storage"
)

// SyncOptions holds all the necessary parameters for the sync-data workflow.
type SyncOptions struct {
	ProviderOptions
	Src  string
	Dest string
}

// SyncProvider picks the store: a gs:// destination or provider gcp means GCS.
func (o SyncOptions) SyncProvider() string {
	if o.Provider == config.ProviderGCP || strings.HasPrefix(o.Dest, storage.SchemeGCS+"://") {
		return config.ProviderGCP
	}
	return config.ProviderAWS
}

// ExecuteSync ensures the destination bucket and mirrors Src into it.
func ExecuteSync(ctx context.Context, opts SyncOptions, out io.Writer) error {
	if opts.Src == "" || opts.Dest == "" {
		return fmt.Errorf("--src and --dest are required")
	}
	opts.Provider = opts.SyncProvider()
	store, err := NewStore(ctx, opts.ProviderOptions)
	if err != nil {
		return err
	}
	return SyncWith(ctx, store, opts, out)
}

// SyncWith runs the sync against an already opened store.
func SyncWith(ctx context.Context, store storage.Store, opts SyncOptions, out io.Writer) error {
	if !storage.IsRemote(opts.Dest) {
		return fmt.Errorf("--dest must be an s3:// or gs:// location, got %q", opts.Dest)
	}
	dest, err := storage.ParseURI(opts.Dest)
	if err != nil {
		return err
	}
	want := storage.SchemeS3
	if opts.SyncProvider() == config.ProviderGCP {
		want = storage.SchemeGCS
	}
	if dest.Scheme != want {
		return fmt.Errorf("--dest must be a %s:// URI for provider %s", want, opts.SyncProvider())
	}
	if err := store.EnsureBucket(ctx, dest.Bucket); err != nil {
		return err
	}
	if err := store.Sync(ctx, opts.Src, opts.Dest); err != nil {
		return err
	}
	fmt.Fprintf(out, "Synced %s -> %s\n", opts.Src, opts.Dest)
	return nil
}
