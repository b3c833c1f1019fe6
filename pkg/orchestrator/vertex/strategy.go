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

package vertex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/googleapi"
	cloudlogging "google.golang.org/api/logging/v2"

	"jobber/pkg/monitor"
	"jobber/pkg/shell"
)

const logPageSize = 1000

// LogsAPI is the Cloud Logging surface used here.
type LogsAPI interface {
	List(ctx context.Context, req *cloudlogging.ListLogEntriesRequest) (*cloudlogging.ListLogEntriesResponse, error)
}

var classifier = monitor.Classifier{
	"JOB_STATE_SUCCEEDED": monitor.Succeeded,
	"JOB_STATE_FAILED":    monitor.Failed,
	// Expired jobs never ran to completion and will not resume.
	"JOB_STATE_EXPIRED":   monitor.Failed,
	"JOB_STATE_CANCELLED": monitor.Incomplete,
	"JOB_STATE_PAUSED":    monitor.Incomplete,
}

// Strategy reads job state from CustomJobs.Get and logs from Cloud Logging.
type Strategy struct {
	Jobs    JobsAPI
	Logs    LogsAPI
	Project string
	Region  string

	start func(*shell.Command) (monitor.NativeStream, error)

	streams  []string
	replicas map[string]*replicaLog
}

// replicaLog is what one stream has returned so far. Cloud Logging may
// ingest an entry after later ones, so a re-read page can gain entries
// anywhere in timestamp order. view keeps the page append-only for the
// cursor tracker; seen holds insert ids returned on any page.
type replicaLog struct {
	token string
	view  []string
	seen  map[string]bool
}

var (
	_ monitor.Strategy       = (*Strategy)(nil)
	_ monitor.NativeStreamer = (*Strategy)(nil)
)

func (s *Strategy) Status(ctx context.Context, job string) (monitor.Snapshot, error) {
	cj, err := s.Jobs.Get(ctx, job)
	if err != nil {
		return monitor.Snapshot{}, classifyErr(err)
	}
	s.rememberStreams(cj.JobSpec)
	snap := monitor.Snapshot{Primary: cj.State, Timestamp: parseTime(cj.UpdateTime)}
	if cj.Error != nil {
		snap.Message = cj.Error.Message
		snap.FailureReason = cj.Error.Message
	}
	return snap, nil
}

func (s *Strategy) rememberStreams(spec *aiplatform.GoogleCloudAiplatformV1CustomJobSpec) {
	if spec == nil {
		return
	}
	if s.streams != nil {
		return
	}
	for i, pool := range spec.WorkerPoolSpecs {
		if pool == nil {
			continue
		}
		for j := int64(0); j < max(pool.ReplicaCount, 1); j++ {
			s.streams = append(s.streams, replicaStream(i, j))
		}
	}
}

// ListStreams returns one stream per worker replica, workerpool<i>-<j>.
func (s *Strategy) ListStreams(ctx context.Context, job string) ([]string, error) {
	if s.streams != nil {
		return s.streams, nil
	}
	cj, err := s.Jobs.Get(ctx, job)
	if err != nil {
		return nil, classifyErr(err)
	}
	s.rememberStreams(cj.JobSpec)
	return s.streams, nil
}

// FetchLogs reads one page of a replica's entries in timestamp order. The
// final page returns the token it was read with. Entries already returned
// are dropped by insert id and late arrivals are appended to the page.
func (s *Strategy) FetchLogs(ctx context.Context, job, stream, token string) ([]string, string, error) {
	resp, err := s.Logs.List(ctx, &cloudlogging.ListLogEntriesRequest{
		ResourceNames: []string{"projects/" + s.Project},
		Filter:        logFilter(job, stream),
		OrderBy:       "timestamp asc",
		PageSize:      logPageSize,
		PageToken:     token,
	})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, token, monitor.ErrStreamNotFound
		}
		return nil, token, classifyErr(err)
	}
	r := s.replica(stream)
	if r.token != token {
		r.token, r.view = token, nil
	}
	for _, e := range resp.Entries {
		line, ok := entryText(e)
		key := entryKey(e, line)
		if r.seen[key] {
			continue
		}
		r.seen[key] = true
		if ok {
			r.view = append(r.view, line)
		}
	}
	lines := append([]string(nil), r.view...)
	next := resp.NextPageToken
	if next == "" {
		next = token
	}
	return lines, next, nil
}

func (s *Strategy) replica(stream string) *replicaLog {
	if s.replicas == nil {
		s.replicas = map[string]*replicaLog{}
	}
	r, ok := s.replicas[stream]
	if !ok {
		r = &replicaLog{seen: map[string]bool{}}
		s.replicas[stream] = r
	}
	return r
}

func (s *Strategy) Classify(status string) monitor.Outcome {
	return classifier.Classify(status)
}

// StartNativeStream follows the job with gcloud ai custom-jobs stream-logs.
func (s *Strategy) StartNativeStream(_ context.Context, job string) (monitor.NativeStream, error) {
	cmd := shell.NewCommand("gcloud", "ai", "custom-jobs", "stream-logs", job,
		"--project="+s.Project, "--region="+s.Region)
	if s.start != nil {
		return s.start(cmd)
	}
	p, err := shell.Start(cmd)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func logFilter(job, stream string) string {
	return fmt.Sprintf("resource.type=%q AND resource.labels.job_id=%q AND labels.%q=%q",
		"ml_job", jobID(job), "ml.googleapis.com/task_name", stream)
}

// entryKey identifies an entry across reads. Cloud Logging assigns every
// entry an insert id; the timestamp and text stand in when it is missing.
func entryKey(e *cloudlogging.LogEntry, text string) string {
	if e.InsertId != "" {
		return e.InsertId
	}
	return e.Timestamp + "\x00" + text
}

func entryText(e *cloudlogging.LogEntry) (string, bool) {
	if e.TextPayload != "" {
		return e.TextPayload, true
	}
	if len(e.JsonPayload) == 0 {
		return "", false
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.JsonPayload, &payload); err == nil && payload.Message != "" {
		return payload.Message, true
	}
	return string(e.JsonPayload), true
}

// classifyErr marks rate limits, server errors and per-query timeouts as
// transient.
func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return monitor.Transient(err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError) {
		return monitor.Transient(err)
	}
	return err
}

type entries struct {
	svc *cloudlogging.Service
}

func (e entries) List(ctx context.Context, req *cloudlogging.ListLogEntriesRequest) (*cloudlogging.ListLogEntriesResponse, error) {
	return e.svc.Entries.List(req).Context(ctx).Do()
}
