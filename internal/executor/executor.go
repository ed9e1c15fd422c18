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

package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultWaitDelay bounds how long Wait keeps reading pipes after the
// process is gone, for children that leaked them to descendants.
const DefaultWaitDelay = 2 * time.Second

// Executor spawns commands. It holds no per-invocation state, so one value
// may serve concurrent calls.
type Executor struct {
	logger    zerolog.Logger
	waitDelay time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithWaitDelay overrides DefaultWaitDelay.
func WithWaitDelay(d time.Duration) Option {
	return func(e *Executor) {
		e.waitDelay = d
	}
}

// New creates an Executor.
func New(logger zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{logger: logger, waitDelay: DefaultWaitDelay}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes name with args under ectx. It always returns once the child
// has been reaped: on timeout or cancellation the child's process group is
// killed and the watcher joined before returning.
func (e *Executor) Run(ctx context.Context, name string, args []string, ectx Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Failed("command canceled")
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = ectx.WorkingDir
	cmd.Env = buildEnv(ectx.Env)
	cmd.WaitDelay = e.waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcess(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		e.logger.Debug().Err(err).Str("program", name).Msg("spawn failed")
		return Failed("Failed to spawn command: %v", err)
	}
	pid := cmd.Process.Pid
	e.logger.Debug().Str("program", name).Int("pid", pid).Dur("timeout", ectx.Timeout).Msg("process started")

	done := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		done <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if ectx.Timeout > 0 {
		timer := time.NewTimer(ectx.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var result Result
	select {
	case waitErr, ok := <-done:
		wg.Wait()
		if !ok {
			result = Failed("Command thread disconnected unexpectedly")
			break
		}
		if stderrors.Is(waitErr, exec.ErrWaitDelay) {
			e.logger.Debug().Int("pid", pid).Dur("wait_delay", e.waitDelay).
				Msg("output pipes still open after exit; closed at wait delay")
		}
		result = classify(waitErr, &stdout, &stderr)
	case <-deadline:
		killProcess(pid)
		wg.Wait()
		result = TimedOut()
		e.logger.Debug().Int("pid", pid).Dur("timeout", ectx.Timeout).Msg("process killed on timeout")
	case <-ctx.Done():
		killProcess(pid)
		wg.Wait()
		result = Failed("command canceled")
		e.logger.Debug().Int("pid", pid).Msg("process killed on cancel")
	}

	result.PID = pid
	result.Duration = time.Since(start)
	return result
}
