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

package transform

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars caps sanitized output, in runes.
const DefaultMaxChars = 1 << 20

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x1b\][^\x1b\x07]*(?:\x07|\x1b\\)`)

// Sanitizer cleans raw command output before the plan runs and caps the
// rendered result after it.
type Sanitizer struct {
	// MaxChars truncates the final result to this many runes; 0 disables
	// truncation.
	MaxChars     int
	StripANSI    bool
	StripControl bool
}

// DefaultSanitizer strips escapes and control characters and caps output
// at DefaultMaxChars.
func DefaultSanitizer() Sanitizer {
	return Sanitizer{
		MaxChars:     DefaultMaxChars,
		StripANSI:    true,
		StripControl: true,
	}
}

// Clean removes terminal escapes and control characters. Line structure is
// preserved so head and tail see every line of the output.
func (s Sanitizer) Clean(output string) string {
	if s.StripANSI {
		output = ansiPattern.ReplaceAllString(output, "")
	}
	if s.StripControl {
		output = stripControlChars(output)
	}
	return output
}

// Truncate caps output at MaxChars runes and reports whether it cut anything.
func (s Sanitizer) Truncate(output string) (string, bool) {
	return truncateRunes(output, s.MaxChars)
}

func stripControlChars(input string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n', r == '\r', r == '\t':
			return r
		case r < 0x20, r == 0x7f:
			return -1
		}
		return r
	}, input)
}

// truncateRunes keeps the first max runes of input; max <= 0 keeps all.
func truncateRunes(input string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(input) <= max {
		return input, false
	}
	seen := 0
	for offset := range input {
		if seen == max {
			return input[:offset], true
		}
		seen++
	}
	return input, false
}
