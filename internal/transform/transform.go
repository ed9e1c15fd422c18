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

// Package transform rewrites command output through an ordered plan of line
// stages: grep, sort, unique, head and tail.
package transform

import (
	"fmt"
	"sort"
	"strings"
)

// Stage is one step of a plan.
type Stage int

const (
	Grep Stage = iota
	Sort
	Unique
	Head
	Tail
)

var stageNames = []string{"grep", "sort", "unique", "head", "tail"}

func (s Stage) String() string {
	if int(s) >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage accepts the snake_case stage name.
func ParseStage(name string) (Stage, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range stageNames {
		if candidate == normalized {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown transformation %q (expected one of %s)", name, strings.Join(stageNames, ", "))
}

// ParsePlan parses a list of stage names.
func ParsePlan(names []string) ([]Stage, error) {
	plan := make([]Stage, 0, len(names))
	for _, name := range names {
		stage, err := ParseStage(name)
		if err != nil {
			return nil, err
		}
		plan = append(plan, stage)
	}
	return plan, nil
}

// DefaultPlan is used when a request does not name an order.
func DefaultPlan() []Stage {
	return []Stage{Grep, Sort, Unique, Head, Tail}
}

// Params holds per-stage settings. Nil pointers leave their stage inert.
// Order nil selects DefaultPlan; a non-nil empty Order applies nothing.
type Params struct {
	Pattern *string
	Invert  bool
	Sort    bool
	Unique  bool
	Head    *int
	Tail    *int
	Order   []Stage
}

// Plan returns the stages Apply will run.
func (p Params) Plan() []Stage {
	if p.Order == nil {
		return DefaultPlan()
	}
	return p.Order
}

// PatternError reports a grep pattern that does not compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("Invalid grep pattern: %v", e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Apply runs the plan over text. A stage that fails stops the plan and no
// later stage runs.
func (c *PatternCache) Apply(text string, p Params) (string, error) {
	result := text
	for _, stage := range p.Plan() {
		var err error
		switch stage {
		case Grep:
			result, err = c.grep(result, p.Pattern, p.Invert)
		case Sort:
			if p.Sort {
				result = sortLines(result)
			}
		case Unique:
			if p.Unique {
				result = uniqueLines(result)
			}
		case Head:
			if p.Head != nil {
				result = headLines(result, *p.Head)
			}
		case Tail:
			if p.Tail != nil {
				result = tailLines(result, *p.Tail)
			}
		default:
			err = fmt.Errorf("unknown transformation %v", stage)
		}
		if err != nil {
			return "", err
		}
	}
	return result, nil
}

func (c *PatternCache) grep(text string, pattern *string, invert bool) (string, error) {
	if pattern == nil {
		return text, nil
	}
	re, err := c.Compile(*pattern)
	if err != nil {
		return "", err
	}
	lines := splitLines(text)
	kept := lines[:0]
	for _, line := range lines {
		if re.MatchString(line) != invert {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}

// splitLines splits on '\n', drops one trailing empty line and strips a
// trailing '\r' from each line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func sortLines(text string) string {
	lines := splitLines(text)
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// uniqueLines drops a line equal to the previous kept line.
func uniqueLines(text string) string {
	lines := splitLines(text)
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 && line == kept[len(kept)-1] {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func headLines(text string, n int) string {
	lines := splitLines(text)
	if n < 0 {
		n = 0
	}
	if n < len(lines) {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// tailLines returns text unchanged when n covers every line.
func tailLines(text string, n int) string {
	lines := splitLines(text)
	if n >= len(lines) {
		return text
	}
	if n < 0 {
		n = 0
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
