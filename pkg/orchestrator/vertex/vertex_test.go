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
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/aiplatform/v1"
	"google.golang.org/api/googleapi"
	cloudlogging "google.golang.org/api/logging/v2"

	"jobber/pkg/logging"
	"jobber/pkg/monitor"
	"jobber/pkg/orchestrator"
	"jobber/pkg/shell"
	"jobber/pkg/storage"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const testJob = "projects/proj/locations/us-central1/customJobs/4242"

type fakeStore struct{ placeholders []string }

func (f *fakeStore) EnsureBucket(context.Context, string) error { return nil }
func (f *fakeStore) EnsurePlaceholder(_ context.Context, bucket, prefix string) error {
	f.placeholders = append(f.placeholders, bucket+"/"+prefix)
	return nil
}
func (f *fakeStore) Upload(context.Context, storage.URI, io.Reader) error { return nil }
func (f *fakeStore) Sync(context.Context, string, string) error           { return nil }

type fakeJobs struct {
	parent  string
	created *aiplatform.GoogleCloudAiplatformV1CustomJob
	states  []*aiplatform.GoogleCloudAiplatformV1CustomJob
	errs    []error
	gets    int
}

func (f *fakeJobs) Create(_ context.Context, parent string, job *aiplatform.GoogleCloudAiplatformV1CustomJob) (*aiplatform.GoogleCloudAiplatformV1CustomJob, error) {
	f.parent, f.created = parent, job
	out := *job
	out.Name = parent + "/customJobs/4242"
	return &out, nil
}

func (f *fakeJobs) Get(context.Context, string) (*aiplatform.GoogleCloudAiplatformV1CustomJob, error) {
	i := min(f.gets, len(f.states)-1)
	f.gets++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.states[i], nil
}

func baseJob() orchestrator.JobDefinition {
	return orchestrator.JobDefinition{
		ImageURI:    "us-central1-docker.pkg.dev/proj/ml/trainer:v1",
		Bucket:      "bkt",
		Prefix:      "runs",
		MachineType: "n1-standard-4",
		Hyperparameters: map[string]string{
			"lr":         "0.1",
			"batch_size": "32",
		},
	}
}

func newOrchestrator(jobs *fakeJobs, store storage.Store) *Orchestrator {
	return &Orchestrator{Jobs: jobs, Store: store, Project: "proj", Region: "us-central1"}
}

func TestEndpoint(t *testing.T) {
	if got := Endpoint("europe-west4"); got != "https://europe-west4-aiplatform.googleapis.com/" {
		t.Errorf("Endpoint() = %q", got)
	}
}

func TestValidate(t *testing.T) {
	o := newOrchestrator(&fakeJobs{}, nil)
	if err := o.Validate(baseJob()); err != nil {
		t.Fatal(err)
	}
	job := baseJob()
	job.Prefix = ""
	if err := o.Validate(job); err == nil || !strings.Contains(err.Error(), "GCS bucket/prefix") {
		t.Errorf("Validate() = %v", err)
	}
	o.Project = ""
	if err := o.Validate(baseJob()); err == nil {
		t.Error("Validate() accepted a job without a project")
	}
}

func TestSpec(t *testing.T) {
	o := newOrchestrator(&fakeJobs{}, nil)
	job := baseJob()
	job.EntryPoint = "train.py"
	job.AcceleratorType = "NVIDIA_TESLA_T4"
	job.AcceleratorCount = 2
	job.ReplicaCount = 3
	job.UseSpot = true
	job.ServiceAccount = "trainer@proj.iam.gserviceaccount.com"
	spec, err := o.Spec(job)
	if err != nil {
		t.Fatal(err)
	}
	cj := spec.(*aiplatform.GoogleCloudAiplatformV1CustomJob)
	if cj.DisplayName != "jobber" {
		t.Errorf("DisplayName = %q", cj.DisplayName)
	}
	pool := cj.JobSpec.WorkerPoolSpecs[0]
	want := &aiplatform.GoogleCloudAiplatformV1ContainerSpec{
		ImageUri: "us-central1-docker.pkg.dev/proj/ml/trainer:v1",
		Command:  []string{"python", "train.py"},
		Args:     []string{"--batch_size", "32", "--lr", "0.1"},
	}
	if diff := cmp.Diff(want, pool.ContainerSpec); diff != "" {
		t.Errorf("ContainerSpec mismatch (-want +got):\n%s", diff)
	}
	if pool.ReplicaCount != 3 || pool.MachineSpec.AcceleratorCount != 2 || pool.MachineSpec.AcceleratorType != "NVIDIA_TESLA_T4" {
		t.Errorf("worker pool = %+v %+v", pool, pool.MachineSpec)
	}
	if got := cj.JobSpec.BaseOutputDirectory.OutputUriPrefix; got != "gs://bkt/runs/outputs" {
		t.Errorf("OutputUriPrefix = %q", got)
	}
	if cj.JobSpec.Scheduling == nil || cj.JobSpec.Scheduling.Strategy != "SPOT" {
		t.Errorf("Scheduling = %+v", cj.JobSpec.Scheduling)
	}
	if cj.JobSpec.ServiceAccount != job.ServiceAccount {
		t.Errorf("ServiceAccount = %q", cj.JobSpec.ServiceAccount)
	}
}

func TestSpecAcceleratorNeedsTypeAndCount(t *testing.T) {
	o := newOrchestrator(&fakeJobs{}, nil)
	for _, job := range []orchestrator.JobDefinition{
		func() orchestrator.JobDefinition { j := baseJob(); j.AcceleratorType = "NVIDIA_L4"; return j }(),
		func() orchestrator.JobDefinition { j := baseJob(); j.AcceleratorCount = 1; return j }(),
	} {
		spec, err := o.Spec(job)
		if err != nil {
			t.Fatal(err)
		}
		ms := spec.(*aiplatform.GoogleCloudAiplatformV1CustomJob).JobSpec.WorkerPoolSpecs[0].MachineSpec
		if ms.AcceleratorType != "" || ms.AcceleratorCount != 0 {
			t.Errorf("accelerator set from partial flags: %+v", ms)
		}
		if cs := spec.(*aiplatform.GoogleCloudAiplatformV1CustomJob).JobSpec.WorkerPoolSpecs[0].ContainerSpec; cs.Command != nil {
			t.Errorf("command set without entry point: %v", cs.Command)
		}
	}
}

func TestSubmitJob(t *testing.T) {
	jobs := &fakeJobs{}
	store := &fakeStore{}
	o := newOrchestrator(jobs, store)
	job := baseJob()
	job.Name = "exp-7"
	job.EnsureData = true
	job.Subnet = "projects/proj/regions/us-central1/subnetworks/default"
	name, err := o.SubmitJob(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if name != testJob {
		t.Errorf("SubmitJob() = %q", name)
	}
	if jobs.parent != "projects/proj/locations/us-central1" || jobs.created.DisplayName != "exp-7" {
		t.Errorf("Create(%q, %q)", jobs.parent, jobs.created.DisplayName)
	}
	if diff := cmp.Diff([]string{"bkt/runs"}, store.placeholders); diff != "" {
		t.Errorf("placeholders mismatch (-want +got):\n%s", diff)
	}
}

func TestJobName(t *testing.T) {
	o := newOrchestrator(nil, nil)
	if got := o.JobName("4242"); got != testJob {
		t.Errorf("JobName(id) = %q", got)
	}
	if got := o.JobName(testJob); got != testJob {
		t.Errorf("JobName(name) = %q", got)
	}
}

func customJob(state string, replicas ...int64) *aiplatform.GoogleCloudAiplatformV1CustomJob {
	cj := &aiplatform.GoogleCloudAiplatformV1CustomJob{
		Name:       testJob,
		State:      state,
		UpdateTime: "2026-05-01T10:00:00Z",
		JobSpec:    &aiplatform.GoogleCloudAiplatformV1CustomJobSpec{},
	}
	for _, r := range replicas {
		cj.JobSpec.WorkerPoolSpecs = append(cj.JobSpec.WorkerPoolSpecs, &aiplatform.GoogleCloudAiplatformV1WorkerPoolSpec{ReplicaCount: r})
	}
	return cj
}

func TestStatus(t *testing.T) {
	failed := customJob("JOB_STATE_FAILED", 1)
	failed.Error = &aiplatform.GoogleRpcStatus{Code: 3, Message: "The replica workerpool0-0 exited with a non-zero status of 1."}
	s := &Strategy{Jobs: &fakeJobs{states: []*aiplatform.GoogleCloudAiplatformV1CustomJob{failed}}}
	snap, err := s.Status(context.Background(), testJob)
	if err != nil {
		t.Fatal(err)
	}
	want := monitor.Snapshot{
		Primary:       "JOB_STATE_FAILED",
		Message:       failed.Error.Message,
		FailureReason: failed.Error.Message,
		Timestamp:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("Status() mismatch (-want +got):\n%s", diff)
	}
	if got := s.Classify(snap.Primary); got != monitor.Failed {
		t.Errorf("Classify() = %v", got)
	}
}

func TestClassify(t *testing.T) {
	s := &Strategy{}
	for status, want := range map[string]monitor.Outcome{
		"JOB_STATE_PENDING":   monitor.Running,
		"JOB_STATE_RUNNING":   monitor.Running,
		"JOB_STATE_SUCCEEDED": monitor.Succeeded,
		"JOB_STATE_FAILED":    monitor.Failed,
		"JOB_STATE_EXPIRED":   monitor.Failed,
		"JOB_STATE_CANCELLED": monitor.Incomplete,
		"JOB_STATE_PAUSED":    monitor.Incomplete,
	} {
		if got := s.Classify(status); got != want {
			t.Errorf("Classify(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestListStreams(t *testing.T) {
	jobs := &fakeJobs{states: []*aiplatform.GoogleCloudAiplatformV1CustomJob{customJob("JOB_STATE_RUNNING", 2, 1)}}
	s := &Strategy{Jobs: jobs}
	got, err := s.ListStreams(context.Background(), testJob)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"workerpool0-0", "workerpool0-1", "workerpool1-0"}, got); diff != "" {
		t.Errorf("ListStreams() mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.ListStreams(context.Background(), testJob); err != nil {
		t.Fatal(err)
	}
	if jobs.gets != 1 {
		t.Errorf("worker pools fetched %d times, want once", jobs.gets)
	}
}

type fakeLogs struct {
	pages map[string]*cloudlogging.ListLogEntriesResponse
	reqs  []*cloudlogging.ListLogEntriesRequest
	err   error
}

func (f *fakeLogs) List(_ context.Context, req *cloudlogging.ListLogEntriesRequest) (*cloudlogging.ListLogEntriesResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.pages[req.PageToken]; ok {
		return p, nil
	}
	return &cloudlogging.ListLogEntriesResponse{}, nil
}

func TestFetchLogs(t *testing.T) {
	logs := &fakeLogs{pages: map[string]*cloudlogging.ListLogEntriesResponse{
		"": {
			Entries: []*cloudlogging.LogEntry{
				{TextPayload: "starting"},
				{JsonPayload: googleapi.RawMessage(`{"message":"epoch 1","levelname":"INFO"}`)},
				{},
			},
			NextPageToken: "p2",
		},
		"p2": {Entries: []*cloudlogging.LogEntry{{JsonPayload: googleapi.RawMessage(`{"loss":0.5}`)}}},
	}}
	s := &Strategy{Logs: logs, Project: "proj"}

	lines, next, err := s.FetchLogs(context.Background(), testJob, "workerpool0-0", "")
	if err != nil || next != "p2" {
		t.Fatalf("FetchLogs() = %v, %q, %v", lines, next, err)
	}
	if diff := cmp.Diff([]string{"starting", "epoch 1"}, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	lines, next, err = s.FetchLogs(context.Background(), testJob, "workerpool0-0", "p2")
	if err != nil || next != "p2" {
		t.Fatalf("FetchLogs() on last page = %v, %q, %v", lines, next, err)
	}
	if diff := cmp.Diff([]string{`{"loss":0.5}`}, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	req := logs.reqs[0]
	wantFilter := `resource.type="ml_job" AND resource.labels.job_id="4242" AND labels."ml.googleapis.com/task_name"="workerpool0-0"`
	if req.Filter != wantFilter {
		t.Errorf("Filter = %s, want %s", req.Filter, wantFilter)
	}
	if diff := cmp.Diff([]string{"projects/proj"}, req.ResourceNames); diff != "" {
		t.Errorf("ResourceNames mismatch (-want +got):\n%s", diff)
	}
	if req.OrderBy != "timestamp asc" {
		t.Errorf("OrderBy = %q", req.OrderBy)
	}
}

// lateLogs serves its current entries on a single page.
type lateLogs struct {
	entries []*cloudlogging.LogEntry
}

func (f *lateLogs) List(context.Context, *cloudlogging.ListLogEntriesRequest) (*cloudlogging.ListLogEntriesResponse, error) {
	return &cloudlogging.ListLogEntriesResponse{Entries: f.entries}, nil
}

func logEntry(id, ts, text string) *cloudlogging.LogEntry {
	return &cloudlogging.LogEntry{InsertId: id, Timestamp: ts, TextPayload: text}
}

func TestFetchLogsLateEntry(t *testing.T) {
	a := logEntry("id-a", "2026-01-01T00:00:01Z", "a")
	b := logEntry("id-b", "2026-01-01T00:00:02Z", "b")
	c := logEntry("id-c", "2026-01-01T00:00:03Z", "c")
	d := logEntry("id-d", "2026-01-01T00:00:04Z", "d")
	logs := &lateLogs{entries: []*cloudlogging.LogEntry{a, c}}
	s := &Strategy{Logs: logs, Project: "proj"}
	tracker := monitor.NewCursorTracker(func(ctx context.Context, stream, token string) ([]string, string, error) {
		return s.FetchLogs(ctx, testJob, stream, token)
	})
	ctx := context.Background()

	steps := []struct {
		entries []*cloudlogging.LogEntry
		want    []string
	}{
		{entries: []*cloudlogging.LogEntry{a, c}, want: []string{"a", "c"}},
		{entries: []*cloudlogging.LogEntry{a, b, c}, want: []string{"b"}},
		{entries: []*cloudlogging.LogEntry{a, b, c}, want: nil},
		{entries: []*cloudlogging.LogEntry{a, b, c, d}, want: []string{"d"}},
	}
	for i, step := range steps {
		logs.entries = step.entries
		got, err := tracker.FetchNew(ctx, "workerpool0-0")
		if err != nil {
			t.Fatalf("step %d: FetchNew() error = %v", i, err)
		}
		if diff := cmp.Diff(step.want, got); diff != "" {
			t.Errorf("step %d: lines mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestFetchLogsSkipsEntriesSeenOnEarlierPage(t *testing.T) {
	a := logEntry("id-a", "2026-01-01T00:00:01Z", "a")
	b := logEntry("id-b", "2026-01-01T00:00:02Z", "b")
	c := logEntry("id-c", "2026-01-01T00:00:03Z", "c")
	logs := &fakeLogs{pages: map[string]*cloudlogging.ListLogEntriesResponse{
		"":   {Entries: []*cloudlogging.LogEntry{a, b}, NextPageToken: "p2"},
		"p2": {Entries: []*cloudlogging.LogEntry{b, c}},
	}}
	s := &Strategy{Logs: logs, Project: "proj"}
	tracker := monitor.NewCursorTracker(func(ctx context.Context, stream, token string) ([]string, string, error) {
		return s.FetchLogs(ctx, testJob, stream, token)
	})
	got, err := tracker.FetchNew(context.Background(), "workerpool0-0")
	if err != nil {
		t.Fatalf("FetchNew() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchLogsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: &googleapi.Error{Code: 404}, want: monitor.ErrStreamNotFound},
		{name: "rate limited", err: &googleapi.Error{Code: 429}, want: monitor.ErrTransient},
		{name: "unavailable", err: &googleapi.Error{Code: 503}, want: monitor.ErrTransient},
		{name: "timeout", err: context.DeadlineExceeded, want: monitor.ErrTransient},
	}
	for _, tc := range tests {
		s := &Strategy{Logs: &fakeLogs{err: tc.err}, Project: "proj"}
		_, next, err := s.FetchLogs(context.Background(), testJob, "workerpool0-0", "tok")
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
		if next != "tok" {
			t.Errorf("%s: token moved to %q", tc.name, next)
		}
	}
	s := &Strategy{Logs: &fakeLogs{err: &googleapi.Error{Code: 403}}}
	if _, _, err := s.FetchLogs(context.Background(), testJob, "w", ""); errors.Is(err, monitor.ErrTransient) {
		t.Error("permission denied treated as transient")
	}
}

type fakeStream struct {
	cmd        string
	terminated bool
}

func (f *fakeStream) Terminate(time.Duration) error {
	f.terminated = true
	return nil
}

func TestMonitorWithNativeStream(t *testing.T) {
	stream := &fakeStream{}
	jobs := &fakeJobs{
		states: []*aiplatform.GoogleCloudAiplatformV1CustomJob{
			customJob("JOB_STATE_PENDING", 1),
			customJob("JOB_STATE_RUNNING", 1),
			customJob("JOB_STATE_CANCELLED", 1),
		},
		errs: []error{nil, &googleapi.Error{Code: 503}},
	}
	o := newOrchestrator(jobs, nil)
	o.start = func(c *shell.Command) (monitor.NativeStream, error) {
		stream.cmd = c.String()
		return stream, nil
	}
	err := monitor.Run(context.Background(), o.Strategy(), testJob, monitor.Options{
		Interval:     time.Millisecond,
		SkipLogs:     true,
		NativeStream: true,
		Out:          io.Discard,
	})
	var incomplete *monitor.JobIncompleteError
	if !errors.As(err, &incomplete) || incomplete.State != "JOB_STATE_CANCELLED" {
		t.Errorf("Run() = %v, want JobIncompleteError", err)
	}
	want := "gcloud ai custom-jobs stream-logs " + testJob + " --project=proj --region=us-central1"
	if stream.cmd != want {
		t.Errorf("native stream command = %q, want %q", stream.cmd, want)
	}
	if !stream.terminated {
		t.Error("native stream not terminated")
	}
}
