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

package templates

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestListBuiltins(t *testing.T) {
	s := NewStoreWithFs(afero.NewMemMapFs(), "/templates")
	names, err := s.Names()
	if err != nil {
		t.Fatalf("Names() = %v", err)
	}
	if diff := cmp.Diff([]string{"cpu", "gpu-cu121", "gpu-cu128"}, names); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestUserTemplateShadowsBuiltin(t *testing.T) {
	afs := afero.NewMemMapFs()
	if err := afero.WriteFile(afs, "/templates/cpu.Dockerfile", []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(afs, "/templates/mine.Dockerfile", []byte("FROM alpine\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(afs, "/templates/notes.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStoreWithFs(afs, "/templates")

	cpu, err := s.Get("cpu")
	if err != nil {
		t.Fatalf("Get(cpu) = %v", err)
	}
	if cpu.Builtin || cpu.Content != "FROM scratch\n" {
		t.Errorf("Get(cpu) = %+v, want user template", cpu)
	}
	gpu, err := s.Get("gpu-cu121")
	if err != nil || !gpu.Builtin || !strings.Contains(gpu.Content, "cuda") {
		t.Errorf("Get(gpu-cu121) = %+v, %v", gpu, err)
	}
	names, _ := s.Names()
	if diff := cmp.Diff([]string{"cpu", "gpu-cu121", "gpu-cu128", "mine"}, names); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetUnknownSuggests(t *testing.T) {
	s := NewStoreWithFs(afero.NewMemMapFs(), "/templates")
	_, err := s.Get("gpu-cu12")
	var unknown *UnknownTemplateError
	if !errors.As(err, &unknown) {
		t.Fatalf("Get() = %v, want UnknownTemplateError", err)
	}
	if unknown.Suggestion != "gpu-cu121" && unknown.Suggestion != "gpu-cu128" {
		t.Errorf("Suggestion = %q", unknown.Suggestion)
	}
	if !strings.Contains(err.Error(), "did you mean") {
		t.Errorf("Error() = %q", err.Error())
	}

	_, err = s.Get("tensorflow-serving")
	if !errors.As(err, &unknown) || unknown.Suggestion != "" {
		t.Errorf("Get(far name) = %v, want no suggestion", err)
	}
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"cpus", []string{"cpu", "gpu-cu121"}, "cpu"},
		{"GPU-CU128", []string{"cpu", "gpu-cu128"}, "gpu-cu128"},
		{"anything", nil, ""},
		{"zzzzzzzz", []string{"cpu"}, ""},
	}
	for _, tc := range tests {
		if got := Suggest(tc.name, tc.candidates); got != tc.want {
			t.Errorf("Suggest(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestAddAndDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates")
	src := filepath.Join(t.TempDir(), "Dockerfile")
	if err := os.WriteFile(src, []byte("FROM busybox\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewStore(dir)

	if err := s.Add("custom", src); err != nil {
		t.Fatalf("Add() = %v", err)
	}
	got, err := s.Get("custom")
	if err != nil || got.Content != "FROM busybox\n" {
		t.Fatalf("Get(custom) = %+v, %v", got, err)
	}
	if err := s.Add("../escape", src); err == nil {
		t.Error("Add() accepted a path-like name")
	}
	if err := s.Add("missing", filepath.Join(dir, "nope")); err == nil {
		t.Error("Add() accepted a missing source")
	}

	if err := s.Delete("custom"); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if _, err := s.Get("custom"); err == nil {
		t.Error("template still present after Delete")
	}
	if err := s.Delete("custom"); err == nil {
		t.Error("Delete() of unknown template succeeded")
	}
	if err := s.Delete("cpu"); err == nil || !strings.Contains(err.Error(), "built in") {
		t.Errorf("Delete(cpu) = %v", err)
	}
}

func TestSearch(t *testing.T) {
	s := NewStoreWithFs(afero.NewMemMapFs(), "/templates")
	got, err := s.Search("GPU")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tmpl := range got {
		names = append(names, tmpl.Name)
	}
	if diff := cmp.Diff([]string{"gpu-cu121", "gpu-cu128"}, names); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultDirEnv(t *testing.T) {
	t.Setenv(DirEnv, "/custom/dir")
	got, err := DefaultDir()
	if err != nil || got != "/custom/dir" {
		t.Errorf("DefaultDir() = %q, %v", got, err)
	}
}
