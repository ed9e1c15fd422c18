// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cmdgate/internal/config"
	"cmdgate/internal/tools"
)

func newCallCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "call <tool> [arguments-json]",
		Short: "Run a single tool call and print its result",
		Example: `  cmdgate call ls_tool '{"path":"/var/log","grep_pattern":"\\.log$","sort":true}'
  cmdgate call git '{"subcommand":"status","args":["--short"]}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			argsJSON := "{}"
			if len(args) == 2 {
				argsJSON = args[1]
			}
			result := a.registry.ExecuteJSON(cmd.Context(), args[0], argsJSON)
			if err := printResult(cmd.OutOrStdout(), result, asJSON); err != nil {
				return err
			}
			if code := exitCode(result); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printResult(out io.Writer, result *tools.ToolResult, asJSON bool) error {
	if asJSON {
		data, err := tools.MarshalResult(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err := fmt.Fprintln(out, result.Result)
	return err
}

// exitCode maps an outcome to a process status; timeouts use 124 like
// timeout(1).
func exitCode(result *tools.ToolResult) int {
	switch result.Outcome {
	case tools.OutcomeSuccess:
		return 0
	case tools.OutcomeTimeout:
		return 124
	case tools.OutcomeRejected:
		return 2
	default:
		return 1
	}
}

func newToolsCmd(opts *rootOptions) *cobra.Command {
	var namesOnly bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the allowed tool definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			if namesOnly {
				for _, tool := range a.registry.Tools() {
					fmt.Fprintln(out, tool.Name)
				}
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(a.registry.OpenAITools())
		},
	}
	cmd.Flags().BoolVar(&namesOnly, "names", false, "Print only tool names")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the configuration JSON schema",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), config.SchemaJSON())
			},
		},
		&cobra.Command{
			Use:   "example",
			Short: "Print an example configuration",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), config.ExampleConfigJSON())
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Load the configuration and report problems",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(opts)
				if err != nil {
					return err
				}
				defer a.close()

				out := cmd.OutOrStdout()
				warnings := a.cfg.Validate(a.registry)
				for _, w := range warnings {
					fmt.Fprintf(out, "warning: %s: %s\n", w.Field, w.Message)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(a.cfg)
			},
		},
	)
	return cmd
}
