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
	"time"

	"github.com/patrickmn/go-cache"
)

// Default expiry and sweep interval for compiled grep patterns.
const (
	DefaultPatternTTL     = 10 * time.Minute
	DefaultPatternCleanup = 15 * time.Minute
)

// PatternCache memoizes grep pattern compilation, including failures.
type PatternCache struct {
	entries *cache.Cache
}

type compiled struct {
	re  *regexp.Regexp
	err error
}

// NewPatternCache creates a cache whose entries expire after ttl.
func NewPatternCache(ttl, cleanup time.Duration) *PatternCache {
	return &PatternCache{entries: cache.New(ttl, cleanup)}
}

// Compile returns the compiled pattern or a *PatternError.
func (c *PatternCache) Compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := c.entries.Get(pattern); ok {
		entry := cached.(compiled)
		return entry.re, entry.err
	}
	re, err := regexp.Compile(pattern)
	entry := compiled{re: re}
	if err != nil {
		entry = compiled{err: &PatternError{Pattern: pattern, Err: err}}
	}
	c.entries.SetDefault(pattern, entry)
	return entry.re, entry.err
}

// Len returns the number of cached patterns.
func (c *PatternCache) Len() int {
	return c.entries.ItemCount()
}
