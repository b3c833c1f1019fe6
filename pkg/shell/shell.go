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

// Package shell runs external tools (docker, aws, gcloud, gsutil) and reports
// their exit status and captured output.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"jobber/pkg/logging"
)

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err is set when the command could not be started or did not exit cleanly.
	Err error
}

// Check converts a non-zero exit into an error that carries the captured output.
func (r Result) Check(cmd *Command) error {
	if r.ExitCode == 0 && r.Err == nil {
		return nil
	}
	if r.ExitCode < 0 && r.Err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), r.Err)
	}
	msg := strings.TrimSpace(r.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(r.Stdout)
	}
	return fmt.Errorf("%s failed with exit code %d: %s", cmd.String(), r.ExitCode, msg)
}

// Command describes an external invocation.
type Command struct {
	name   string
	args   []string
	input  *string
	stream bool
	quiet  bool
}

// NewCommand creates a command; nothing runs until it is executed.
func NewCommand(name string, args ...string) *Command {
	return &Command{name: name, args: args}
}

func (c *Command) Name() string   { return c.name }
func (c *Command) Args() []string { return append([]string(nil), c.args...) }

// Input returns the stdin payload and whether one was set.
func (c *Command) Input() (string, bool) {
	if c.input == nil {
		return "", false
	}
	return *c.input, true
}

func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// SetInput feeds the given string to the command's stdin.
func (c *Command) SetInput(input string) *Command {
	c.input = &input
	return c
}

// Stream copies the command's output to the terminal while it runs.
// Captured Stdout/Stderr stay empty for streamed commands.
func (c *Command) Stream() *Command {
	c.stream = true
	return c
}

// Quiet suppresses the "+ cmd" trace line.
func (c *Command) Quiet() *Command {
	c.quiet = true
	return c
}

// Execute runs the command with the default runner.
func (c *Command) Execute() Result {
	return DefaultRunner.Run(context.Background(), c)
}

// Runner executes commands. Packages take a Runner so tests can fake the tools.
type Runner interface {
	Run(ctx context.Context, cmd *Command) Result
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd *Command) Result

func (f RunnerFunc) Run(ctx context.Context, cmd *Command) Result {
	return f(ctx, cmd)
}

// DefaultRunner runs commands on the host.
var DefaultRunner Runner = execRunner{}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, c *Command) Result {
	if !c.quiet {
		logging.Command(c.name, c.args...)
	}
	cmd := exec.CommandContext(ctx, c.name, c.args...)

	var stdout, stderr bytes.Buffer
	if c.stream {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}
	if c.input != nil {
		cmd.Stdin = strings.NewReader(*c.input)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		res.Err = err
	default:
		res.ExitCode = -1
		res.Err = err
	}
	return res
}

// Process is a started child process whose output goes straight to the terminal.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Start launches the command without waiting for it. The caller owns the
// process and must call Terminate.
func Start(c *Command) (*Process, error) {
	logging.Command(c.name, c.args...)
	cmd := exec.Command(c.name, c.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Exited reports whether the process has already finished.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminate asks the process to exit and kills it if it is still running
// after grace.
func (p *Process) Terminate(grace time.Duration) error {
	if p.Exited() {
		return nil
	}
	if err := terminate(p.cmd.Process); err != nil && !p.Exited() {
		logging.Debug("failed to signal pid %d: %v", p.cmd.Process.Pid, err)
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}
	if err := p.cmd.Process.Kill(); err != nil && !p.Exited() {
		return fmt.Errorf("failed to kill pid %d: %w", p.cmd.Process.Pid, err)
	}
	<-p.done
	return nil
}
