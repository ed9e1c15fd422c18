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
	"os"
	"strings"

	apperrors "cmdgate/internal/errors"
	"cmdgate/internal/paths"
)

// BlockedPathsEnv names the variable holding the semicolon separated list
// of administratively blocked paths.
const BlockedPathsEnv = "CMDGATE_BLOCKED_PATHS"

type blockedEntry struct {
	path     string
	resolved string
}

// Policy is the immutable set of blocked path prefixes. It is built once at
// startup and shared by every validation call. A nil Policy blocks nothing.
type Policy struct {
	entries []blockedEntry
}

// NewPolicy builds a policy from absolute path prefixes. Empty entries are
// skipped; relative entries are a configuration error.
func NewPolicy(blocked []string) (*Policy, error) {
	policy := &Policy{}
	for _, raw := range blocked {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if !paths.IsRooted(entry) {
			return nil, apperrors.New(apperrors.CodeConfig, "blocked path must be absolute: "+entry)
		}
		abs, err := paths.Absolute(entry, "")
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, "invalid blocked path", err)
		}
		resolved, _ := paths.Canonical(abs)
		policy.entries = append(policy.entries, blockedEntry{path: abs, resolved: resolved})
	}
	return policy, nil
}

// ParseBlockedPaths splits a semicolon separated list.
func ParseBlockedPaths(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// PolicyFromEnv builds a policy from CMDGATE_BLOCKED_PATHS.
func PolicyFromEnv() (*Policy, error) {
	return NewPolicy(ParseBlockedPaths(os.Getenv(BlockedPathsEnv)))
}

// Blocked returns the configured prefixes.
func (p *Policy) Blocked() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.entries))
	for _, entry := range p.entries {
		out = append(out, entry.path)
	}
	return out
}

// FindBlockedPath resolves path against the process working directory and
// returns the first blocked entry it equals or lies below.
func (p *Policy) FindBlockedPath(path string) (string, bool) {
	return p.findBlocked(path, "")
}

// ValidatePath rejects paths inside a blocked prefix.
func (p *Policy) ValidatePath(path string) error {
	if blocked, ok := p.FindBlockedPath(path); ok {
		return &ValidationError{Kind: BlockedPath, Value: path, Blocked: blocked}
	}
	return nil
}

// ValidatePathWithWorkingDir applies the blocked path check to path as the
// child process would see it when started in workingDir.
func (p *Policy) ValidatePathWithWorkingDir(path, workingDir string) error {
	if err := ValidateAbsolutePath(workingDir); err != nil {
		return err
	}
	if blocked, ok := p.findBlocked(path, workingDir); ok {
		return &ValidationError{Kind: BlockedPath, Value: path, Blocked: blocked}
	}
	return nil
}

func (p *Policy) findBlocked(path, base string) (string, bool) {
	if p == nil || len(p.entries) == 0 {
		return "", false
	}
	abs, err := paths.Absolute(path, base)
	if err != nil {
		return "", false
	}
	candidates := []string{abs}
	if resolved, ok := paths.Canonical(abs); ok && resolved != abs {
		candidates = append(candidates, resolved)
	}
	for _, entry := range p.entries {
		for _, candidate := range candidates {
			if paths.HasPathPrefix(candidate, entry.path) || paths.HasPathPrefix(candidate, entry.resolved) {
				return entry.path, true
			}
		}
	}
	return "", false
}
