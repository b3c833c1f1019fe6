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

package monitor

import (
	"context"
	"errors"
)

// LogFetcher reads one page of a stream starting at token ("" is the
// beginning). It returns the page's lines and the token to continue from.
// Returning the same token means the page may still grow.
type LogFetcher func(ctx context.Context, stream, token string) (lines []string, next string, err error)

// maxPagesPerFetch bounds how many pages FetchNew follows in a single call.
const maxPagesPerFetch = 50

// cursor is a continuation token plus the number of lines of that token's
// page that were already emitted.
type cursor struct {
	token  string
	offset int
}

// CursorTracker remembers per-stream read positions so every log line is
// emitted exactly once.
type CursorTracker struct {
	fetch   LogFetcher
	order   []string
	cursors map[string]*cursor
}

func NewCursorTracker(fetch LogFetcher) *CursorTracker {
	return &CursorTracker{fetch: fetch, cursors: map[string]*cursor{}}
}

// Track registers a stream, starting it from the beginning. It reports
// whether the stream was new.
func (t *CursorTracker) Track(stream string) bool {
	if _, ok := t.cursors[stream]; ok {
		return false
	}
	t.cursors[stream] = &cursor{}
	t.order = append(t.order, stream)
	return true
}

// Streams returns the known streams in discovery order.
func (t *CursorTracker) Streams() []string {
	return append([]string(nil), t.order...)
}

// FetchNew returns the lines of stream that were not returned before. A
// missing stream yields no lines and no error.
func (t *CursorTracker) FetchNew(ctx context.Context, stream string) ([]string, error) {
	t.Track(stream)
	c := t.cursors[stream]

	var out []string
	for range maxPagesPerFetch {
		lines, next, err := t.fetch(ctx, stream, c.token)
		if errors.Is(err, ErrStreamNotFound) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if c.offset < len(lines) {
			out = append(out, lines[c.offset:]...)
		}
		if next == "" || next == c.token {
			c.offset = max(c.offset, len(lines))
			return out, nil
		}
		c.token, c.offset = next, 0
	}
	return out, nil
}
