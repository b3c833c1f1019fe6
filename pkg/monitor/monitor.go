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

// Package monitor follows a submitted training job until it reaches a
// terminal state, printing status changes and new log lines as they appear.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"jobber/pkg/logging"
)

// Defaults for Options fields left at zero.
const (
	DefaultQueryTimeout = time.Minute
	DefaultGracePeriod  = 5 * time.Second
)

// Strategy adapts one provider's job and log APIs to the poll loop.
type Strategy interface {
	// Status returns the current snapshot. Errors wrapping ErrTransient are
	// retried on the next tick; any other error ends the session.
	Status(ctx context.Context, job string) (Snapshot, error)
	// ListStreams returns the log streams that exist for the job so far.
	ListStreams(ctx context.Context, job string) ([]string, error)
	// FetchLogs reads one page of a stream. See LogFetcher.
	FetchLogs(ctx context.Context, job, stream, token string) ([]string, string, error)
	Classify(status string) Outcome
}

// NativeStream is a running vendor log follower, such as a gcloud process.
type NativeStream interface {
	Terminate(grace time.Duration) error
}

// NativeStreamer is implemented by strategies that can follow logs with a
// vendor tool running beside the poll loop.
type NativeStreamer interface {
	StartNativeStream(ctx context.Context, job string) (NativeStream, error)
}

// Options tunes a monitoring session.
type Options struct {
	// Interval between ticks. Required.
	Interval time.Duration
	// QueryTimeout bounds each status or log call.
	QueryTimeout time.Duration
	// GracePeriod is how long the native stream gets to exit before it is killed.
	GracePeriod time.Duration
	// SkipLogs disables log fetching through the Strategy.
	SkipLogs bool
	// NativeStream starts the strategy's vendor log follower, if it has one.
	NativeStream bool
	Out          io.Writer

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Monitor is one monitoring session. It is not safe for concurrent use.
type Monitor struct {
	job      string
	strategy Strategy
	opts     Options

	detector   StatusDetector
	tracker    *CursorTracker
	start      time.Time
	sawLogs    bool
	lastStatus Snapshot
}

// New prepares a session for job.
func New(strategy Strategy, job string, opts Options) (*Monitor, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", opts.Interval)
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.sleep == nil {
		opts.sleep = sleepContext
	}
	m := &Monitor{job: job, strategy: strategy, opts: opts}
	m.tracker = NewCursorTracker(func(ctx context.Context, stream, token string) ([]string, string, error) {
		ctx, cancel := context.WithTimeout(ctx, m.opts.QueryTimeout)
		defer cancel()
		return strategy.FetchLogs(ctx, job, stream, token)
	})
	return m, nil
}

// Run polls until the job is terminal. It returns nil on success, a
// *JobFailedError or *JobIncompleteError for other terminal states, ctx.Err()
// when cancelled, and the status error when it is not transient.
func Run(ctx context.Context, strategy Strategy, job string, opts Options) error {
	m, err := New(strategy, job, opts)
	if err != nil {
		return err
	}
	return m.Run(ctx)
}

func (m *Monitor) Run(ctx context.Context) error {
	m.start = m.opts.now()
	if m.opts.NativeStream {
		if ns, ok := m.strategy.(NativeStreamer); ok {
			stream, err := ns.StartNativeStream(ctx, m.job)
			if err != nil {
				logging.Warn("could not start log stream for %s: %v", m.job, err)
			} else {
				defer func() {
					if err := stream.Terminate(m.opts.GracePeriod); err != nil {
						logging.Warn("failed to stop log stream: %v", err)
					}
				}()
			}
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := m.tick(ctx)
		if err != nil {
			return err
		}
		if outcome.Terminal() {
			return Result(m.job, m.lastStatus, outcome)
		}
		if err := m.opts.sleep(ctx, m.opts.Interval); err != nil {
			return err
		}
	}
}

// tick runs one poll. Transient failures are logged and reported as Running.
func (m *Monitor) tick(ctx context.Context) (Outcome, error) {
	snap, err := m.status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Running, ctx.Err()
		}
		if errors.Is(err, ErrTransient) {
			logging.Warn("status query for %s failed, retrying: %v", m.job, err)
			return Running, nil
		}
		return Running, fmt.Errorf("failed to query status of %s: %w", m.job, err)
	}
	m.lastStatus = snap
	if m.detector.Observe(snap) {
		fmt.Fprintf(m.opts.Out, "[%ds] status=%s secondary=%s message=%s\n",
			m.elapsed(), orDash(snap.Primary), orDash(snap.Secondary), orDash(snap.Message))
	}

	if !m.opts.SkipLogs {
		if err := m.drainLogs(ctx); err != nil {
			return Running, err
		}
	}
	return m.strategy.Classify(snap.Primary), nil
}

func (m *Monitor) status(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.QueryTimeout)
	defer cancel()
	snap, err := m.strategy.Status(ctx, m.job)
	if err == nil && snap.Timestamp.IsZero() {
		snap.Timestamp = m.opts.now()
	}
	return snap, err
}

// drainLogs prints new lines from every known stream. Only cancellation is
// returned as an error.
func (m *Monitor) drainLogs(ctx context.Context) error {
	listCtx, cancel := context.WithTimeout(ctx, m.opts.QueryTimeout)
	streams, err := m.strategy.ListStreams(listCtx, m.job)
	cancel()
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil && !errors.Is(err, ErrStreamNotFound):
		logging.Warn("listing log streams for %s failed, retrying: %v", m.job, err)
	}
	for _, s := range streams {
		m.tracker.Track(s)
	}

	for _, stream := range m.tracker.Streams() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lines, err := m.tracker.FetchNew(ctx, stream)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Warn("reading logs from %s failed, retrying: %v", stream, err)
		}
		for _, line := range lines {
			if !m.sawLogs {
				m.sawLogs = true
				fmt.Fprintf(m.opts.Out, "[%ds] first logs available\n", m.elapsed())
			}
			fmt.Fprintf(m.opts.Out, "%s: %s\n", stream, line)
		}
	}
	return nil
}

func (m *Monitor) elapsed() int {
	return int(m.opts.now().Sub(m.start) / time.Second)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
