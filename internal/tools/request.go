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
	"math"
	"sort"
	"time"

	"cmdgate/internal/executor"
	"cmdgate/internal/paths"
	"cmdgate/internal/security"
	"cmdgate/internal/transform"
)

// Options are the request fields every tool accepts.
type Options struct {
	GrepPattern    *string           `json:"grep_pattern,omitempty" jsonschema:"description=Keep only output lines matching this regular expression"`
	InvertGrep     bool              `json:"invert_grep,omitempty" jsonschema:"description=Drop matching lines instead of keeping them"`
	Head           *int              `json:"head,omitempty" jsonschema:"description=Keep only the first N lines,minimum=0"`
	Tail           *int              `json:"tail,omitempty" jsonschema:"description=Keep only the last N lines,minimum=0"`
	Sort           bool              `json:"sort,omitempty" jsonschema:"description=Sort output lines lexicographically"`
	Unique         bool              `json:"unique,omitempty" jsonschema:"description=Remove adjacent duplicate lines"`
	TimeoutMS      *int64            `json:"timeout_ms,omitempty" jsonschema:"description=Execution timeout in milliseconds (default 180000),minimum=1"`
	WorkingDir     *string           `json:"working_dir,omitempty" jsonschema:"description=Absolute directory to run the command in"`
	Env            map[string]string `json:"env,omitempty" jsonschema:"description=Extra environment variables for the command"`
	TransformOrder []string          `json:"transform_order,omitempty" jsonschema:"description=Order of output transformations: grep sort unique head tail"`
}

// Request is a decoded tool invocation. The set of implementations is
// closed: one per registered tool.
type Request interface {
	// Validate checks the request without side effects.
	Validate(policy *security.Policy) error
	// Shared returns the common request fields.
	Shared() *Options
	// command builds the program and argument vector for ectx.
	command(policy *security.Policy, bins Binaries, ectx executor.Context) (string, []string, error)
}

// maxTimeoutMS is the largest timeout_ms that fits a time.Duration.
const maxTimeoutMS = math.MaxInt64 / int64(time.Millisecond)

// validate checks the shared fields.
func (o *Options) validate(policy *security.Policy) error {
	if o.Head != nil && *o.Head < 0 {
		return invalidArguments("head must be non-negative, got %d", *o.Head)
	}
	if o.Tail != nil && *o.Tail < 0 {
		return invalidArguments("tail must be non-negative, got %d", *o.Tail)
	}
	if o.TimeoutMS != nil && *o.TimeoutMS <= 0 {
		return invalidArguments("timeout_ms must be positive, got %d", *o.TimeoutMS)
	}
	if o.TimeoutMS != nil && *o.TimeoutMS > maxTimeoutMS {
		return invalidArguments("timeout_ms must be at most %d, got %d", maxTimeoutMS, *o.TimeoutMS)
	}
	if _, err := transform.ParsePlan(o.TransformOrder); err != nil {
		return invalidArguments("%v", err)
	}
	if o.WorkingDir != nil {
		if err := security.Validate(*o.WorkingDir, security.ValidateAbsolutePath, policy.ValidatePath); err != nil {
			return err
		}
		if err := paths.ValidatePathString(*o.WorkingDir, paths.MaxPathLength); err != nil {
			return invalidArguments("working_dir: %v", err)
		}
	}
	keys := make([]string, 0, len(o.Env))
	for key := range o.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := security.ValidateEnvVar(key, o.Env[key]); err != nil {
			return err
		}
	}
	return nil
}

// ExecutionContext derives the spawn configuration. fallback applies when
// the request has no timeout_ms.
func (o *Options) ExecutionContext(fallback time.Duration) executor.Context {
	ectx := executor.Context{Timeout: fallback}
	if o.TimeoutMS != nil {
		ectx.Timeout = time.Duration(*o.TimeoutMS) * time.Millisecond
	}
	if o.WorkingDir != nil {
		ectx.WorkingDir = *o.WorkingDir
	}
	if len(o.Env) > 0 {
		ectx.Env = make(map[string]string, len(o.Env))
		for key, value := range o.Env {
			ectx.Env[key] = value
		}
	}
	return ectx
}

// TransformParams maps the request onto pipeline parameters.
func (o *Options) TransformParams() (transform.Params, error) {
	params := transform.Params{
		Pattern: o.GrepPattern,
		Invert:  o.InvertGrep,
		Sort:    o.Sort,
		Unique:  o.Unique,
		Head:    o.Head,
		Tail:    o.Tail,
	}
	if o.TransformOrder != nil {
		plan, err := transform.ParsePlan(o.TransformOrder)
		if err != nil {
			return params, invalidArguments("%v", err)
		}
		params.Order = plan
	}
	return params, nil
}
