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
	"time"

	"cmdgate/internal/executor"
)

// TimeoutConfig configures per-tool execution timeouts. A request's own
// timeout_ms takes precedence.
type TimeoutConfig struct {
	Default time.Duration
	PerTool map[string]time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{Default: executor.DefaultTimeout}
}

// TimeoutForTool returns the timeout for a tool.
func (t TimeoutConfig) TimeoutForTool(name string) time.Duration {
	if t.PerTool != nil {
		if timeout, ok := t.PerTool[name]; ok && timeout > 0 {
			return timeout
		}
	}
	if t.Default <= 0 {
		return executor.DefaultTimeout
	}
	return t.Default
}

// Binaries names the external programs. Empty fields use the PATH lookup
// of "ls" and "git".
type Binaries struct {
	Ls  string
	Git string
}

func (b Binaries) ls() string {
	if b.Ls == "" {
		return "ls"
	}
	return b.Ls
}

func (b Binaries) git() string {
	if b.Git == "" {
		return "git"
	}
	return b.Git
}
