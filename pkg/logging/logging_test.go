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

package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestHelpers(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("pushed %s", "img")
	Debug("hidden")
	SetVerbose(true)
	Debug("visible")
	SetVerbose(false)
	Command("docker", "build", "-t", "img")

	out := buf.String()
	for _, want := range []string{"pushed img", "visible", "+ docker build -t img"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line printed without verbose: %q", out)
	}
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	code := -1
	exitFunc = func(c int) { code = c }
	defer func() { exitFunc = os.Exit }()

	Fatal("bad flag %q", "--x")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "bad flag") {
		t.Errorf("output = %q", buf.String())
	}
}
