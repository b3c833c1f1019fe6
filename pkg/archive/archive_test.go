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

package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moby/patternmatcher"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func tarFiles(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	out := map[string]string{}
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("reading tar: %v", err)
		}
		if h.Typeflag != tar.TypeReg {
			continue
		}
		b, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		out[h.Name] = string(b)
	}
}

func keys(m map[string]string) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestWriteHonorsIgnorePatterns(t *testing.T) {
	tree := map[string]string{
		"train.py":                "print(1)",
		"lib/util.py":             "x = 1",
		"lib/util.pyc":            "bytecode",
		"__pycache__/train.pyc":   "bytecode",
		"tests/test_train.py":     "assert True",
		"data/keep.log":           "keep",
		"data/drop.log":           "drop",
		"nested/deep/scratch.tmp": "tmp",
		"requirements.txt":        "torch",
	}
	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "defaults",
			patterns: DefaultIgnorePatterns,
			want:     []string{"data/drop.log", "data/keep.log", "lib/util.py", "lib/util.pyc", "nested/deep/scratch.tmp", "requirements.txt", "train.py"},
		},
		{
			name:     "negation",
			patterns: []string{"**/*.log", "!data/keep.log", "**/*.tmp", "*.pyc", "**/*.pyc", "__pycache__", "tests"},
			want:     []string{"data/keep.log", "lib/util.py", "requirements.txt", "train.py"},
		},
		{
			name:     "directory with slash",
			patterns: []string{"lib/", "data/"},
			want:     []string{"__pycache__/train.pyc", "nested/deep/scratch.tmp", "requirements.txt", "tests/test_train.py", "train.py"},
		},
	}
	dir := writeTree(t, tree)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			matcher, err := patternmatcher.New(tc.patterns)
			if err != nil {
				t.Fatalf("failed to create matcher: %v", err)
			}
			var buf bytes.Buffer
			if err := Write(&buf, dir, Options{Ignore: matcher}); err != nil {
				t.Fatalf("Write() = %v", err)
			}
			if diff := cmp.Diff(tc.want, keys(tarFiles(t, &buf))); diff != "" {
				t.Errorf("archive entries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteTempGzipWithPrefix(t *testing.T) {
	dir := writeTree(t, map[string]string{"train.py": "print(1)"})
	path, err := WriteTemp(dir, "archive-test-*.tar.gz", Options{Gzip: true, Prefix: "code/"})
	if err != nil {
		t.Fatalf("WriteTemp() = %v", err)
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("not gzip: %v", err)
	}
	got := tarFiles(t, gz)
	if diff := cmp.Diff(map[string]string{"code/train.py": "print(1)"}, got); diff != "" {
		t.Errorf("archive mismatch (-want +got):\n%s", diff)
	}
}

func TestEnsureDefaultDockerignore(t *testing.T) {
	dir := t.TempDir()
	created, err := EnsureDefaultDockerignore(dir)
	if err != nil || !created {
		t.Fatalf("EnsureDefaultDockerignore() = %v, %v", created, err)
	}
	b, err := os.ReadFile(filepath.Join(dir, ".dockerignore"))
	if err != nil {
		t.Fatal(err)
	}
	if want := ".git\n__pycache__\n.pytest_cache\n.venv\n*.pyc\n*.pyo\n*.swp\n*.tmp\nsagemaker-python-sdk\ntests\n"; string(b) != want {
		t.Errorf(".dockerignore = %q, want %q", b, want)
	}

	if err := os.WriteFile(filepath.Join(dir, ".dockerignore"), []byte("custom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	created, err = EnsureDefaultDockerignore(dir)
	if err != nil || created {
		t.Errorf("second call = %v, %v; want untouched", created, err)
	}
}

func TestReadDockerignorePatterns(t *testing.T) {
	dir := writeTree(t, map[string]string{".dockerignore": "# comment\n*.log\n"})
	m, err := ReadDockerignorePatterns(dir, []string{".git"})
	if err != nil {
		t.Fatal(err)
	}
	for path, want := range map[string]bool{"a.log": true, ".git/": true, "a.py": false} {
		got, err := m.MatchesOrParentMatches(path)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("match(%q) = %v, want %v", path, got, want)
		}
	}
}
