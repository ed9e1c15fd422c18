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

// LsToolName is the registered name of the listing tool.
const LsToolName = "ls_tool"

// LsRequest lists a directory with the external ls program.
type LsRequest struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory or file to list (default .)"`
	Options
}

func (r *LsRequest) path() string {
	if r.Path == "" {
		return "."
	}
	return r.Path
}

// Validate applies the listing rules in order: metacharacters, flags,
// traversal, then blocked paths.
func (r *LsRequest) Validate(policy *security.Policy) error {
	err := security.Validate(r.path(),
		security.ValidateArgument,
		security.ValidateNotFlag,
		security.ValidateNoTraversal,
		policy.ValidatePath,
	)
	if err != nil {
		return err
	}
	return r.Options.validate(policy)
}

// Shared returns the common request fields.
func (r *LsRequest) Shared() *Options {
	return &r.Options
}

func (r *LsRequest) command(policy *security.Policy, bins Binaries, ectx executor.Context) (string, []string, error) {
	path := r.path()
	if ectx.WorkingDir != "" {
		if err := policy.ValidatePathWithWorkingDir(path, ectx.WorkingDir); err != nil {
			return "", nil, err
		}
	}
	return bins.ls(), []string{"-al", path}, nil
}
