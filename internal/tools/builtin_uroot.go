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
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/u-root/u-root/pkg/core"
	corels "github.com/u-root/u-root/pkg/core/ls"

	"cmdgate/internal/executor"
)

func (r *Registry) hasProgram(name string) bool {
	lookPath := r.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	_, err := lookPath(name)
	return err == nil
}

// runListingFallback lists path with the u-root ls implementation under
// the same timeout and working directory rules as the external program.
func runListingFallback(ctx context.Context, path string, ectx executor.Context) executor.Result {
	if ctx == nil {
		ctx = context.Background()
	}
	if ectx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ectx.Timeout)
		defer cancel()
	}
	start := time.Now()
	output, err := runCoreCommand(ctx, corels.New(), ectx.WorkingDir, []string{"-l", "-a", path})
	var result executor.Result
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result = executor.TimedOut()
	case errors.Is(ctx.Err(), context.Canceled):
		result = executor.Failed("command canceled")
	case err != nil:
		result = executor.Failed("%v", err)
		result.ExitCode = 1
	default:
		result = executor.Succeeded(output)
	}
	result.Duration = time.Since(start)
	return result
}

func runCoreCommand(ctx context.Context, cmd core.Command, workdir string, args []string) (string, error) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetIO(strings.NewReader(""), &stdout, &stderr)

	if workdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		workdir = wd
	}
	cmd.SetWorkingDir(workdir)

	if err := cmd.RunContext(ctx, args...); err != nil {
		if errMsg := strings.TrimSpace(stderr.String()); errMsg != "" {
			return "", errors.New(errMsg)
		}
		return "", err
	}
	return stdout.String(), nil
}
