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

// Package security holds the request validation rules: pure predicates over
// strings and paths that run before any process is spawned.
package security

import (
	"strings"

	"cmdgate/internal/paths"
)

// shellChars are significant to a POSIX shell or its globbing.
const shellChars = ";|&$`(){}[]<>'\"\\*?!#\n\r\x00"

var dangerousEnvNames = []string{
	"LD_PRELOAD",
	"LD_LIBRARY_PATH",
	"DYLD_INSERT_LIBRARIES",
	"DYLD_LIBRARY_PATH",
	"PATH",
	"HOME",
	"USER",
	"SHELL",
	"IFS",
	"BASH_ENV",
	"ENV",
	"CDPATH",
	"GLOBIGNORE",
	"BASH_FUNC_",
	"PS1",
	"PS2",
	"PS4",
	"PROMPT_COMMAND",
}

// Check validates a single value.
type Check func(value string) error

// Validate runs checks in order and returns the first failure.
func Validate(value string, checks ...Check) error {
	for _, check := range checks {
		if check == nil {
			continue
		}
		if err := check(value); err != nil {
			return err
		}
	}
	return nil
}

// ContainsShellInjection reports whether s holds any shell metacharacter.
func ContainsShellInjection(s string) bool {
	return strings.ContainsAny(s, shellChars)
}

// ValidateArgument rejects strings containing shell metacharacters.
func ValidateArgument(arg string) error {
	if ContainsShellInjection(arg) {
		return newError(ShellInjection, arg)
	}
	return nil
}

// IsFlagLike reports whether s would be parsed as an option. The bare "-"
// and "--" sentinels are not flags.
func IsFlagLike(s string) bool {
	return strings.HasPrefix(s, "-") && s != "-" && s != "--"
}

// ValidateNotFlag rejects option-like positional arguments.
func ValidateNotFlag(arg string) error {
	if IsFlagLike(arg) {
		return newError(FlagInjection, arg)
	}
	return nil
}

// ContainsTraversal reports whether path contains "..".
func ContainsTraversal(path string) bool {
	return strings.Contains(path, "..")
}

// ValidateNoTraversal rejects any path containing "..", before resolution.
func ValidateNoTraversal(path string) error {
	if ContainsTraversal(path) {
		return newError(PathTraversal, path)
	}
	return nil
}

// ValidateAbsolutePath rejects paths that do not start at the root.
func ValidateAbsolutePath(path string) error {
	if !paths.IsRooted(path) {
		return newError(RelativeWorkingDir, path)
	}
	return nil
}

// IsDangerousEnvVar matches name case-insensitively against variables that
// alter program loading, lookup or shell startup. Entries ending in "_" match
// as prefixes. Names that are empty or contain '=' cannot be set safely and
// are treated as dangerous too.
func IsDangerousEnvVar(name string) bool {
	if name == "" || strings.Contains(name, "=") {
		return true
	}
	upper := strings.ToUpper(name)
	for _, entry := range dangerousEnvNames {
		if upper == entry {
			return true
		}
		if strings.HasSuffix(entry, "_") && strings.HasPrefix(upper, entry) {
			return true
		}
	}
	return false
}

// ValidateEnvVar checks one environment override.
func ValidateEnvVar(name, value string) error {
	if IsDangerousEnvVar(name) {
		return newError(DangerousEnvVar, name)
	}
	if ContainsShellInjection(name) {
		return newError(ShellInjection, name)
	}
	if ContainsShellInjection(value) {
		return newError(ShellInjection, value)
	}
	return nil
}

// ValidateSubcommand checks sub against an allow-list.
func ValidateSubcommand(sub string, allowed []string) error {
	for _, candidate := range allowed {
		if sub == candidate {
			return nil
		}
	}
	return &ValidationError{
		Kind:    DisallowedSubcommand,
		Value:   sub,
		Allowed: append([]string(nil), allowed...),
	}
}
