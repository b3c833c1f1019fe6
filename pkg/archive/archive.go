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

// Package archive packs a directory into a tar stream, honoring .dockerignore
// style patterns.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/sirupsen/logrus"
)

// DefaultIgnorePatterns is written to a build context that has no .dockerignore.
var DefaultIgnorePatterns = []string{
	".git",
	"__pycache__",
	".pytest_cache",
	".venv",
	"*.pyc",
	"*.pyo",
	"*.swp",
	"*.tmp",
	"sagemaker-python-sdk",
	"tests",
}

// EnsureDefaultDockerignore writes DefaultIgnorePatterns to dir/.dockerignore
// when the file is missing. It reports whether a file was created.
func EnsureDefaultDockerignore(dir string) (bool, error) {
	p := filepath.Join(dir, ".dockerignore")
	if _, err := os.Stat(p); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat %q: %w", p, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	content := strings.Join(DefaultIgnorePatterns, "\n") + "\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %q: %w", p, err)
	}
	return true, nil
}

// IgnoreFilePatterns returns the patterns in dir/.dockerignore, or nil when
// the file does not exist.
func IgnoreFilePatterns(dir string) ([]string, error) {
	dockerignorePath := filepath.Join(dir, ".dockerignore")
	file, err := os.Open(dockerignorePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open .dockerignore file %q: %w", dockerignorePath, err)
	}
	defer file.Close()

	filePatterns, err := ignorefile.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read .dockerignore file %q: %w", dockerignorePath, err)
	}
	logrus.Debugf("Found %d patterns in .dockerignore at %q", len(filePatterns), dockerignorePath)
	return filePatterns, nil
}

// ReadDockerignorePatterns builds a matcher from defaultPatterns followed by
// the patterns in dir/.dockerignore, if present.
func ReadDockerignorePatterns(dir string, defaultPatterns []string) (*patternmatcher.PatternMatcher, error) {
	filePatterns, err := IgnoreFilePatterns(dir)
	if err != nil {
		return nil, err
	}
	patterns := make([]string, 0, len(defaultPatterns)+len(filePatterns))
	patterns = append(patterns, defaultPatterns...)
	patterns = append(patterns, filePatterns...)

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern matcher: %w", err)
	}
	return matcher, nil
}

// Options controls Write.
type Options struct {
	// Ignore may be nil, in which case every file is included.
	Ignore *patternmatcher.PatternMatcher
	Gzip   bool
	// Prefix is prepended to every entry name.
	Prefix string
}

// Write streams sourceDir as a tar archive to w.
func Write(w io.Writer, sourceDir string, opts Options) (err error) {
	var gz *gzip.Writer
	if opts.Gzip {
		gz = gzip.NewWriter(w)
		w = gz
	}
	tw := tar.NewWriter(w)
	defer func() {
		if closeErr := tw.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close tar writer: %w", closeErr)
		}
		if gz != nil {
			if closeErr := gz.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("failed to close gzip writer: %w", closeErr)
			}
		}
	}()

	return filepath.Walk(sourceDir, func(path string, info fs.FileInfo, walkErr error) error {
		return processTarEntry(tw, sourceDir, opts, path, info, walkErr)
	})
}

// WriteTemp writes the archive to a temporary file and returns its path.
// The caller removes the file.
func WriteTemp(sourceDir, pattern string, opts Options) (string, error) {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file for tarball: %w", err)
	}
	logrus.Debugf("Creating filtered tar from %s to temporary file %s", sourceDir, tmpFile.Name())
	writeErr := Write(tmpFile, sourceDir, opts)
	closeErr := tmpFile.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmpFile.Name())
		return "", writeErr
	}
	return tmpFile.Name(), nil
}

func processTarEntry(tw *tar.Writer, sourceDir string, opts Options, path string, info fs.FileInfo, errFromWalk error) error {
	if errFromWalk != nil {
		return errFromWalk
	}

	relPath, err := filepath.Rel(sourceDir, path)
	if err != nil {
		return fmt.Errorf("failed to get relative path for %q: %w", path, err)
	}
	if relPath == "." {
		return nil
	}

	if opts.Ignore != nil {
		// Directories need a trailing slash for patterns like "build/".
		relPathSlash := filepath.ToSlash(relPath)
		if info.IsDir() && !strings.HasSuffix(relPathSlash, "/") {
			relPathSlash += "/"
		}
		ignored, err := opts.Ignore.MatchesOrParentMatches(relPathSlash)
		if err != nil {
			return fmt.Errorf("failed to check ignore patterns for %q: %w", path, err)
		}
		if ignored {
			if info.IsDir() && !opts.Ignore.Exclusions() {
				logrus.Debugf("Ignoring directory %q", relPath)
				return filepath.SkipDir
			}
			logrus.Debugf("Ignoring %q", relPath)
			return nil
		}
	}

	link := ""
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return fmt.Errorf("failed to read link %q: %w", path, err)
		}
	}
	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("failed to create tar header for %q: %w", path, err)
	}
	header.Name = opts.Prefix + filepath.ToSlash(relPath)
	if info.IsDir() {
		header.Name += "/"
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %q: %w", path, err)
	}

	if info.Mode().IsRegular() {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file %q: %w", path, err)
		}
		defer file.Close()

		if _, err := io.Copy(tw, file); err != nil {
			return fmt.Errorf("failed to write file content for %q: %w", path, err)
		}
	}
	return nil
}
