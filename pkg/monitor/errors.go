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
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	// ErrTransient marks a query failure worth retrying on the next tick.
	ErrTransient = errors.New("transient error")
	// ErrStreamNotFound means the log destination does not exist yet.
	ErrStreamNotFound = errors.New("log stream not found")
	ErrJobFailed      = errors.New("job failed")
	ErrJobIncomplete  = errors.New("job did not complete")
)

// JobFailedError is returned when the job ends in a failed state.
type JobFailedError struct {
	Job    string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.Job, e.Reason)
}

func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

// JobIncompleteError is returned for terminal states that are neither success
// nor failure, such as Stopped, Cancelled or Paused.
type JobIncompleteError struct {
	Job   string
	State string
}

func (e *JobIncompleteError) Error() string {
	return fmt.Sprintf("job %s ended without completing: %s", e.Job, e.State)
}

func (e *JobIncompleteError) Unwrap() error { return ErrJobIncomplete }

// Transient wraps err so the poll loop retries instead of giving up.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Is(target error) bool { return target == ErrTransient }

func (e *transientError) Unwrap() error { return e.err }
