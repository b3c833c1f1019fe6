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

// Package templates manages the Dockerfile templates used by "jobber build".
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/otiai10/copy"
	"github.com/spf13/afero"
)

// DirEnv overrides the user template directory.
const DirEnv = "JOBBER_TEMPLATES_DIR"

const ext = ".Dockerfile"

//go:embed builtin/*.Dockerfile
var builtinFS embed.FS

// Template is a named Dockerfile.
type Template struct {
	Name    string
	Builtin bool
	Content string
}

// UnknownTemplateError is returned for names that resolve to no template.
type UnknownTemplateError struct {
	Name       string
	Suggestion string
}

func (e *UnknownTemplateError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown template: %s (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown template: %s", e.Name)
}

// Store merges the embedded templates with a user directory. User templates
// shadow built-ins of the same name.
type Store struct {
	fs      afero.Fs
	dir     string
	builtin fs.FS
}

// DefaultDir returns $JOBBER_TEMPLATES_DIR or <user config dir>/jobber/templates.
func DefaultDir() (string, error) {
	if d := os.Getenv(DirEnv); d != "" {
		return d, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(base, "jobber", "templates"), nil
}

// NewStore returns a store backed by the OS filesystem.
func NewStore(dir string) *Store {
	return NewStoreWithFs(afero.NewOsFs(), dir)
}

func NewStoreWithFs(afs afero.Fs, dir string) *Store {
	sub, _ := fs.Sub(builtinFS, "builtin")
	return &Store{fs: afs, dir: dir, builtin: sub}
}

func (s *Store) userPath(name string) string {
	return filepath.Join(s.dir, name+ext)
}

// List returns all templates sorted by name.
func (s *Store) List() ([]Template, error) {
	byName := map[string]Template{}
	entries, err := fs.ReadDir(s.builtin, ".")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ext); ok {
			data, err := fs.ReadFile(s.builtin, e.Name())
			if err != nil {
				return nil, err
			}
			byName[name] = Template{Name: name, Builtin: true, Content: string(data)}
		}
	}

	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read template dir %s: %w", s.dir, err)
	}
	for _, fi := range infos {
		name, ok := strings.CutSuffix(fi.Name(), ext)
		if !ok || fi.IsDir() {
			continue
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, fi.Name()))
		if err != nil {
			return nil, err
		}
		byName[name] = Template{Name: name, Content: string(data)}
	}

	out := make([]Template, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Names lists template names.
func (s *Store) Names() ([]string, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = t.Name
	}
	return names, nil
}

// Get resolves a template by name.
func (s *Store) Get(name string) (Template, error) {
	if data, err := afero.ReadFile(s.fs, s.userPath(name)); err == nil {
		return Template{Name: name, Content: string(data)}, nil
	} else if !os.IsNotExist(err) {
		return Template{}, err
	}
	if data, err := fs.ReadFile(s.builtin, path.Clean(name+ext)); err == nil && !strings.Contains(name, "/") {
		return Template{Name: name, Builtin: true, Content: string(data)}, nil
	}
	return Template{}, s.unknown(name)
}

// Add copies the file at source into the user directory under name.
func (s *Store) Add(name, source string) error {
	if err := validName(name); err != nil {
		return err
	}
	fi, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("template source: %w", err)
	}
	if fi.IsDir() {
		return fmt.Errorf("template source %s is a directory", source)
	}
	if err := copy.Copy(source, s.userPath(name), copy.Options{
		PermissionControl: copy.AddPermission(0o644),
	}); err != nil {
		return fmt.Errorf("failed to add template %s: %w", name, err)
	}
	return nil
}

// Delete removes a user template. Built-ins cannot be deleted.
func (s *Store) Delete(name string) error {
	p := s.userPath(name)
	ok, err := afero.Exists(s.fs, p)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := fs.Stat(s.builtin, name+ext); err == nil {
			return fmt.Errorf("template %s is built in and cannot be deleted", name)
		}
		return s.unknown(name)
	}
	return s.fs.Remove(p)
}

// Search returns templates whose name contains query, case-insensitively.
func (s *Store) Search(query string) ([]Template, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []Template
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) unknown(name string) error {
	names, err := s.Names()
	if err != nil {
		return &UnknownTemplateError{Name: name}
	}
	return &UnknownTemplateError{Name: name, Suggestion: Suggest(name, names)}
}

// Suggest returns the closest candidate within a small edit distance, or "".
func Suggest(name string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.Distance(strings.ToLower(name), strings.ToLower(c), nil)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(name)/3) {
		return ""
	}
	return best
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid template name %q", name)
	}
	return nil
}
