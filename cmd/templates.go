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

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"jobber/pkg/logging"
	"jobber/pkg/templates"
)

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd, templatesAddCmd, templatesDeleteCmd, templatesSearchCmd)
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manages Dockerfile templates.",
	Long: `Built-in templates ship with jobber. User templates live in ,
or <user config dir>/jobber/templates, as <name>.Dockerfile and shadow built-ins
of the same name.`,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists available templates.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		all, err := templateStore().List()
		if err != nil {
			logging.Fatal("%v", err)
		}
		printTemplates(cmd.OutOrStdout(), all)
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Prints a template.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t, err := templateStore().Get(args[0])
		if err != nil {
			logging.Fatal("%v", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), t.Content)
	},
}

var templatesAddCmd = &cobra.Command{
	Use:   "add NAME SOURCE",
	Short: "Copies a Dockerfile into the user template directory.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := templateStore().Add(args[0], args[1]); err != nil {
			logging.Fatal("%v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added template %s\n", args[0])
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Removes a user template.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := templateStore().Delete(args[0]); err != nil {
			logging.Fatal("%v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", args[0])
	},
}

var templatesSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Lists templates whose name contains QUERY.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		found, err := templateStore().Search(args[0])
		if err != nil {
			logging.Fatal("%v", err)
		}
		printTemplates(cmd.OutOrStdout(), found)
	},
}

func templateStore() *templates.Store {
	dir, err := templates.DefaultDir()
	if err != nil {
		logging.Fatal("%v", err)
	}
	return templates.NewStore(dir)
}

func printTemplates(w io.Writer, ts []templates.Template) {
	for _, t := range ts {
		origin := "user"
		if t.Builtin {
			origin = "built-in"
		}
		fmt.Fprintf(w, "%-16s %s\n", t.Name, origin)
	}
}
