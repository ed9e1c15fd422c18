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

// Package executor runs a program with an argument vector, never through a
// shell, and classifies how it ended.
package executor

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// DefaultTimeout applies when a request does not set one.
const DefaultTimeout = 180 * time.Second

// TimeoutMessage is what callers see when a command is killed on timeout.
const TimeoutMessage = "Error: Command timed out"

// Context is the per-invocation spawn configuration. Zero fields keep the
// inherited defaults; a zero Timeout waits without a deadline.
type Context struct {
	Timeout    time.Duration
	WorkingDir string
	Env        map[string]string
}

// Outcome classifies a finished invocation.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "error"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the classified outcome of one invocation. Text holds stdout on
// Success and the failure description (without prefix) on Failure.
type Result struct {
	Outcome  Outcome
	Text     string
	ExitCode int
	PID      int
	Duration time.Duration
}

// String renders the result for the caller.
func (r Result) String() string {
	switch r.Outcome {
	case Success:
		return r.Text
	case Timeout:
		return TimeoutMessage
	default:
		return "Error: " + r.Text
	}
}

// Succeeded returns a Success result holding text.
func Succeeded(text string) Result {
	return Result{Outcome: Success, Text: text}
}

// Failed returns a Failure result with a formatted description.
func Failed(format string, args ...any) Result {
	return Result{Outcome: Failure, Text: fmt.Sprintf(format, args...), ExitCode: -1}
}

// TimedOut returns a Timeout result.
func TimedOut() Result {
	return Result{Outcome: Timeout, ExitCode: -1}
}

func buildEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return nil
	}
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := os.Environ()
	for _, key := range keys {
		env = append(env, key+"="+overrides[key])
	}
	return env
}

func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// classify maps the error returned by Wait onto a Result.
func classify(waitErr error, stdout, stderr *bytes.Buffer) Result {
	if waitErr == nil || stderrors.Is(waitErr, exec.ErrWaitDelay) {
		return Succeeded(decode(stdout.Bytes()))
	}
	var exitErr *exec.ExitError
	if stderrors.As(waitErr, &exitErr) {
		text := decode(stderr.Bytes())
		if text == "" {
			text = decode(stdout.Bytes())
		}
		return Result{Outcome: Failure, Text: text, ExitCode: exitErr.ExitCode()}
	}
	return Failed("Command failed: %v", waitErr)
}
