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
	"time"

	"jobber/pkg/config"
	"jobber/pkg/logging"
	"jobber/pkg/monitor"
	"jobber/pkg/orchestrator"
)

// Log sources accepted by --log-source.
const (
	LogSourceAPI    = "api"
	LogSourceNative = "native"
	LogSourceBoth   = "both"
)

// WatchOptions tunes how a job is followed.
type WatchOptions struct {
	// Interval overrides the provider's default poll interval.
	Interval  time.Duration
	LogSource string
	Out       io.Writer
}

// MonitorOptions translates watch flags into monitor options.
func (w WatchOptions) MonitorOptions(defaultInterval time.Duration) (monitor.Options, error) {
	opts := monitor.Options{Interval: w.Interval, Out: w.Out}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	switch w.LogSource {
	case "", LogSourceAPI:
	case LogSourceNative:
		opts.SkipLogs = true
		opts.NativeStream = true
	case LogSourceBoth:
		opts.NativeStream = true
	default:
		return monitor.Options{}, fmt.Errorf("unsupported log source %q (want %s, %s or %s)", w.LogSource, LogSourceAPI, LogSourceNative, LogSourceBoth)
	}
	return opts, nil
}

// Watch follows job until it is terminal.
func Watch(ctx context.Context, o orchestrator.Orchestrator, job string, w WatchOptions) error {
	opts, err := w.MonitorOptions(o.PollInterval())
	if err != nil {
		return err
	}
	strategy := o.Strategy()
	if _, ok := strategy.(monitor.NativeStreamer); opts.NativeStream && !ok {
		logging.Warn("--log-source %s is not available for this provider; reading logs through the API", w.LogSource)
		opts.NativeStream, opts.SkipLogs = false, false
	}
	logging.Info("Watching %s every %s", job, opts.Interval)
	return monitor.Run(ctx, strategy, job, opts)
}

// SubmitOptions holds all the necessary parameters for the submit workflow.
type SubmitOptions struct {
	Provider string
	Job      orchestrator.JobDefinition
	// OutputSpec writes the request document here instead of submitting.
	OutputSpec string
	TailLogs   bool
	Watch      WatchOptions
}

// ExecuteSubmit submits the job and, with TailLogs, follows it to completion.
// It returns the job handle, or "" when only the spec was written.
func ExecuteSubmit(ctx context.Context, o orchestrator.Orchestrator, opts SubmitOptions, out io.Writer) (string, error) {
	if opts.OutputSpec != "" {
		spec, err := o.Spec(opts.Job)
		if err != nil {
			return "", err
		}
		if err := orchestrator.WriteSpec(opts.OutputSpec, spec); err != nil {
			return "", err
		}
		fmt.Fprintf(out, "Wrote job spec to %s\n", opts.OutputSpec)
		return "", nil
	}

	name, err := o.SubmitJob(ctx, opts.Job)
	if err != nil {
		return "", err
	}
	if opts.Provider == config.ProviderGCP {
		fmt.Fprintf(out, "Submitted Vertex AI job: %s\n", name)
	} else {
		fmt.Fprintf(out, "Submitted training job: %s\n", name)
	}
	if !opts.TailLogs {
		return name, nil
	}
	if opts.Watch.Out == nil {
		opts.Watch.Out = out
	}
	return name, Watch(ctx, o, name, opts.Watch)
}
