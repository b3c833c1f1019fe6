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

// Outcome is the classification of a job status.
type Outcome int

const (
	Running Outcome = iota
	Succeeded
	Failed
	// Incomplete covers terminal states that are not success or failure.
	Incomplete
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Incomplete:
		return "incomplete"
	}
	return "running"
}

// Terminal reports whether the outcome ends the monitoring session.
func (o Outcome) Terminal() bool { return o != Running }

// Classifier maps a closed set of provider status strings to terminal
// outcomes. Anything not in the set is Running.
type Classifier map[string]Outcome

func (c Classifier) Classify(status string) Outcome {
	if o, ok := c[status]; ok {
		return o
	}
	return Running
}

// UnknownReason is reported for failures the backend gave no reason for.
const UnknownReason = "unknown"

// Result converts a terminal snapshot into the error returned to the caller.
// It returns nil for Succeeded and Running.
func Result(job string, snap Snapshot, outcome Outcome) error {
	switch outcome {
	case Failed:
		reason := snap.FailureReason
		if reason == "" {
			reason = UnknownReason
		}
		return &JobFailedError{Job: job, Reason: reason}
	case Incomplete:
		return &JobIncompleteError{Job: job, State: snap.Primary}
	}
	return nil
}
