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

package tools

import (
	"cmdgate/internal/executor"
	"cmdgate/internal/security"
)

// GitToolName is the registered name of the git tool.
const GitToolName = "git"

// AllowedGitSubcommands lists the subcommands the git tool runs.
var AllowedGitSubcommands = []string{"status", "add", "commit", "checkout"}

// GitRequest runs an allow-listed git subcommand.
type GitRequest struct {
	Subcommand string   `json:"subcommand" jsonschema:"description=Git subcommand to run,enum=status,enum=add,enum=commit,enum=checkout"`
	Args       []string `json:"args,omitempty" jsonschema:"description=Arguments passed to the subcommand"`
	Options
}

// Validate checks the subcommand against the allow-list and every value
// for shell metacharacters. Paths are left to git.
func (r *GitRequest) Validate(policy *security.Policy) error {
	err := security.Validate(r.Subcommand,
		func(sub string) error { return security.ValidateSubcommand(sub, AllowedGitSubcommands) },
		security.ValidateArgument,
	)
	if err != nil {
		return err
	}
	for _, arg := range r.Args {
		if err := security.ValidateArgument(arg); err != nil {
			return err
		}
	}
	return r.Options.validate(policy)
}

// Shared returns the common request fields.
func (r *GitRequest) Shared() *Options {
	return &r.Options
}

func (r *GitRequest) command(_ *security.Policy, bins Binaries, _ executor.Context) (string, []string, error) {
	args := make([]string, 0, len(r.Args)+1)
	args = append(args, r.Subcommand)
	args = append(args, r.Args...)
	return bins.git(), args, nil
}
