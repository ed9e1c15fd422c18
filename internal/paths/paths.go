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

package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxPathLength is the longest path, in bytes, accepted from a request.
const MaxPathLength = 4096

// ValidatePathString validates raw path input before resolution.
func ValidatePathString(path string, maxLen int) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.IndexByte(path, 0) != -1 {
		return fmt.Errorf("path contains null byte")
	}
	if !utf8.ValidString(path) {
		return fmt.Errorf("path is not valid UTF-8")
	}
	if maxLen > 0 && len(path) > maxLen {
		return fmt.Errorf("path exceeds maximum length of %d characters", maxLen)
	}
	return nil
}

// IsRooted reports whether path starts at the filesystem root.
func IsRooted(path string) bool {
	if filepath.IsAbs(path) {
		return true
	}
	return strings.HasPrefix(path, string(os.PathSeparator))
}

// Absolute joins a relative path against base, or the process working
// directory when base is empty. The result is cleaned but not resolved.
func Absolute(path, base string) (string, error) {
	if IsRooted(path) {
		return filepath.Clean(path), nil
	}
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %v", err)
		}
		base = cwd
	}
	return filepath.Clean(filepath.Join(base, path)), nil
}

// Canonical resolves symlinks in an absolute path. When the path cannot be
// resolved (it does not exist, or a component is unreadable) the unresolved
// path is returned together with false.
func Canonical(abs string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, false
	}
	return resolved, true
}

// HasPathPrefix returns true when path is base or lies below it.
func HasPathPrefix(path, base string) bool {
	if path == base {
		return true
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(path, prefix)
}
