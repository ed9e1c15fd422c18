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

package security

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies a validation failure.
type Kind int

const (
	ShellInjection Kind = iota + 1
	BlockedPath
	FlagInjection
	DangerousEnvVar
	PathTraversal
	RelativeWorkingDir
	DisallowedSubcommand
)

var kindNames = map[Kind]string{
	ShellInjection:       "shell_injection",
	BlockedPath:          "blocked_path",
	FlagInjection:        "flag_injection",
	DangerousEnvVar:      "dangerous_env_var",
	PathTraversal:        "path_traversal",
	RelativeWorkingDir:   "relative_working_dir",
	DisallowedSubcommand: "disallowed_subcommand",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

const (
	forbiddenDisplay = "; | & $ ` ( ) { } [ ] < > ' \" \\ * ? ! #"
	transformHint    = "Use grep_pattern, head, tail, sort, or unique parameters to filter/transform output instead of shell operators."
)

// ValidationError reports the first rule a request violated. Value holds the
// offending input; Blocked and Allowed carry kind specific context.
type ValidationError struct {
	Kind    Kind
	Value   string
	Blocked string
	Allowed []string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case ShellInjection:
		return fmt.Sprintf("'%s' contains invalid characters. Forbidden characters: %s. %s", e.Value, forbiddenDisplay, transformHint)
	case BlockedPath:
		blocked := e.Blocked
		if blocked == "" {
			blocked = e.Value
		}
		return fmt.Sprintf("Reading path '%s' is not allowed", blocked)
	case FlagInjection:
		return fmt.Sprintf("'%s' looks like a command-line flag and is not allowed here", e.Value)
	case DangerousEnvVar:
		return fmt.Sprintf("Environment variable '%s' is not allowed", e.Value)
	case PathTraversal:
		return fmt.Sprintf("Path '%s' contains a '..' traversal sequence", e.Value)
	case RelativeWorkingDir:
		return fmt.Sprintf("Working directory '%s' must be an absolute path", e.Value)
	case DisallowedSubcommand:
		return fmt.Sprintf("Subcommand '%s' is not allowed. Allowed subcommands: %s", e.Value, strings.Join(e.Allowed, ", "))
	default:
		return fmt.Sprintf("validation failed for '%s'", e.Value)
	}
}

// KindOf returns the validation kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var verr *ValidationError
	if stderrors.As(err, &verr) {
		return verr.Kind, true
	}
	return 0, false
}

func newError(kind Kind, value string) *ValidationError {
	return &ValidationError{Kind: kind, Value: value}
}
