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

// Package config loads jobber config files and merges them into command flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ParamsKey is the section key holding extra hyperparameters.
const ParamsKey = "params"

// Config is a parsed config file with normalized keys.
type Config map[string]any

// Load reads a YAML or JSON config file. The format is chosen by extension;
// anything that is not .json is parsed as YAML.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("config not found: %s", path)
		}
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	conf, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return conf, nil
}

// Parse decodes data according to ext (".json", ".yaml", ".yml" or anything else for YAML).
func Parse(data []byte, ext string) (Config, error) {
	var raw any
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return Config{}, nil
	}
	m, ok := NormalizeKeys(raw).(map[string]any)
	if !ok {
		return nil, errors.Errorf("expected a mapping at the top level, got %T", raw)
	}
	return Config(m), nil
}

// NormalizeKeys recursively replaces dashes with underscores in map keys.
func NormalizeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ReplaceAll(k, "-", "_")] = NormalizeKeys(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ReplaceAll(fmt.Sprint(k), "-", "_")] = NormalizeKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = NormalizeKeys(val)
		}
		return out
	default:
		return v
	}
}

// Section returns the defaults for one command. The top-level provider
// flows into the section unless the section sets its own.
func (c Config) Section(command string) map[string]any {
	out := map[string]any{}
	if sec, ok := c[strings.ReplaceAll(command, "-", "_")].(map[string]any); ok {
		for k, v := range sec {
			out[k] = v
		}
	}
	if _, ok := out["provider"]; !ok {
		if p, ok := c["provider"]; ok {
			out["provider"] = p
		}
	}
	return out
}

// ApplyDefaults copies section values onto flags that were not set on the
// command line. Keys without a matching flag are ignored. The params map is
// returned separately as string hyperparameters.
func ApplyDefaults(fs *pflag.FlagSet, section map[string]any) (map[string]string, error) {
	keys := make([]string, 0, len(section))
	for k := range section {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var params map[string]string
	for _, k := range keys {
		v := section[k]
		if k == ParamsKey {
			p, err := toParams(v)
			if err != nil {
				return nil, err
			}
			params = p
			continue
		}
		if v == nil {
			continue
		}
		name := strings.ReplaceAll(k, "_", "-")
		f := fs.Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		values := []any{v}
		if list, ok := v.([]any); ok {
			values = list
		}
		for _, item := range values {
			if err := fs.Set(name, scalarString(item)); err != nil {
				return nil, errors.Wrapf(err, "invalid value for %q in config", k)
			}
		}
	}
	return params, nil
}

func toParams(v any) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Errorf("%s must be a mapping, got %T", ParamsKey, v)
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = scalarString(val)
	}
	return out, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return fmt.Sprint(v)
}

// Supported providers.
const (
	ProviderAWS = "aws"
	ProviderGCP = "gcp"
)

// ResolveProvider normalizes a provider name. Empty means aws.
func ResolveProvider(provider string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		p = ProviderAWS
	}
	if p != ProviderAWS && p != ProviderGCP {
		return "", fmt.Errorf("unsupported provider: %s", p)
	}
	return p, nil
}
