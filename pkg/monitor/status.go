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

import "time"

// Snapshot is one observation of a job's status.
type Snapshot struct {
	Primary       string
	Secondary     string
	Message       string
	FailureReason string
	Timestamp     time.Time
}

type statusKey struct {
	primary, secondary, message string
}

// StatusDetector remembers the last printed status triple.
type StatusDetector struct {
	seen bool
	last statusKey
}

// Observe records snap and reports whether its status triple differs from
// the previous observation. The first observation always counts as a change.
func (d *StatusDetector) Observe(snap Snapshot) bool {
	key := statusKey{snap.Primary, snap.Secondary, snap.Message}
	if d.seen && key == d.last {
		return false
	}
	d.seen = true
	d.last = key
	return true
}
