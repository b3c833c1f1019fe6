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

// Package logging provides printf-style helpers on top of logrus for the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	logger = newLogger(os.Stderr)

	// exitFunc is swapped in tests so Fatal does not terminate the test binary.
	exitFunc = os.Exit

	commandColor = color.New(color.FgCyan)
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		ForceColors:            isTerminal(out),
	})
	return l
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetOutput redirects all log output.
func SetOutput(out io.Writer) {
	logger.SetOutput(out)
	color.NoColor = !isTerminal(out)
}

// SetVerbose enables debug output.
func SetVerbose(verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	logger.SetLevel(logrus.InfoLevel)
}

// Logger exposes the underlying logrus logger for packages that want fields.
func Logger() *logrus.Logger {
	return logger
}

func Debug(f string, a ...any) {
	logger.Debugf(f, a...)
}

func Info(f string, a ...any) {
	logger.Infof(f, a...)
}

func Warn(f string, a ...any) {
	logger.Warnf(f, a...)
}

func Error(f string, a ...any) {
	logger.Errorf(f, a...)
}

// Fatal logs the message at error level and exits with status 1.
func Fatal(f string, a ...any) {
	logger.Errorf(f, a...)
	exitFunc(1)
}

// Command echoes an external command line the way a shell trace would.
func Command(name string, args ...string) {
	line := "+ " + strings.TrimSpace(name+" "+strings.Join(args, " "))
	fmt.Fprintln(logger.Out, commandColor.Sprint(line))
}
