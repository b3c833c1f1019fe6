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

package shell

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestResultCheck(t *testing.T) {
	cmd := NewCommand("docker", "push", "img:latest")
	tests := []struct {
		name    string
		res     Result
		wantErr string
	}{
		{name: "success", res: Result{}},
		{name: "stderr", res: Result{ExitCode: 1, Stderr: "denied\n"}, wantErr: "docker push img:latest failed with exit code 1: denied"},
		{name: "stdout fallback", res: Result{ExitCode: 2, Stdout: "oops"}, wantErr: "exit code 2: oops"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.res.Check(cmd)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Check() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Check() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestCommandAccessors(t *testing.T) {
	cmd := NewCommand("docker", "login", "--password-stdin").SetInput("secret").Quiet()
	if got, want := cmd.String(), "docker login --password-stdin"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	in, ok := cmd.Input()
	if !ok || in != "secret" {
		t.Errorf("Input() = %q, %v; want secret, true", in, ok)
	}
	args := cmd.Args()
	args[0] = "changed"
	if cmd.Args()[0] != "login" {
		t.Errorf("Args() must return a copy")
	}
}

func TestRunnerFunc(t *testing.T) {
	var seen string
	r := RunnerFunc(func(_ context.Context, c *Command) Result {
		seen = c.String()
		return Result{Stdout: "ok"}
	})
	res := r.Run(context.Background(), NewCommand("gcloud", "config", "get-value", "project"))
	if seen != "gcloud config get-value project" || res.Stdout != "ok" {
		t.Errorf("RunnerFunc got %q / %+v", seen, res)
	}
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	res := NewCommand("sh", "-c", "cat; echo err >&2; exit 3").SetInput("hello").Quiet().Execute()
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Stdout != "hello" {
		t.Errorf("Stdout = %q, want hello", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Stderr = %q, want err", res.Stderr)
	}

	missing := NewCommand("definitely-not-a-binary-jobber").Quiet().Execute()
	if missing.ExitCode != -1 || missing.Err == nil {
		t.Errorf("missing binary result = %+v", missing)
	}
}

func TestProcessTerminate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	tests := []struct {
		name   string
		script string
	}{
		{name: "exits on sigterm", script: "sleep 30"},
		{name: "ignores sigterm", script: "trap '' TERM; sleep 30"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Start(NewCommand("sh", "-c", tc.script))
			if err != nil {
				t.Fatalf("Start() = %v", err)
			}
			start := time.Now()
			if err := p.Terminate(200 * time.Millisecond); err != nil {
				t.Fatalf("Terminate() = %v", err)
			}
			if !p.Exited() {
				t.Fatal("process still running after Terminate")
			}
			if elapsed := time.Since(start); elapsed > 5*time.Second {
				t.Errorf("Terminate took %v", elapsed)
			}
			if err := p.Terminate(time.Second); err != nil {
				t.Errorf("second Terminate() = %v", err)
			}
		})
	}
}
