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

package cloud

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2/google"

	"jobber/pkg/logging"
	"jobber/pkg/shell"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// findDefaultCredentials is swapped in tests.
var findDefaultCredentials = google.FindDefaultCredentials

// GCPProject resolves the project from the flag, then the gcloud config, then
// application default credentials.
func GCPProject(ctx context.Context, flag string, runner shell.Runner) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if runner == nil {
		runner = shell.DefaultRunner
	}
	res := runner.Run(ctx, shell.NewCommand("gcloud", "config", "get-value", "project").Quiet())
	if res.ExitCode == 0 {
		if p := strings.TrimSpace(res.Stdout); p != "" && p != "(unset)" {
			logging.Info("Using GCP project from gcloud config: %s", p)
			return p, nil
		}
	}
	creds, err := findDefaultCredentials(ctx, cloudPlatformScope)
	if err == nil && creds.ProjectID != "" {
		logging.Info("Using GCP project from application default credentials: %s", creds.ProjectID)
		return creds.ProjectID, nil
	}
	return "", errors.New("GCP project is not set; pass --project or run 'gcloud config set project'")
}
