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

package config

import (
	"context"
	"encoding/json"
	"strings"

	"jobber/pkg/shell"
)

// GuessAWSRegion asks the AWS CLI for its configured region. Empty when unknown.
func GuessAWSRegion(ctx context.Context, r shell.Runner) string {
	res := r.Run(ctx, shell.NewCommand("aws", "configure", "get", "region").Quiet())
	if res.ExitCode != 0 {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

// GuessAWSAccount returns the caller's account id via the AWS CLI. Empty when unknown.
func GuessAWSAccount(ctx context.Context, r shell.Runner) string {
	res := r.Run(ctx, shell.NewCommand("aws", "sts", "get-caller-identity", "--output", "json").Quiet())
	if res.ExitCode != 0 {
		return ""
	}
	var ident struct {
		Account string `json:"Account"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &ident); err != nil {
		return ""
	}
	return ident.Account
}
