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
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-tool requests per minute. Zero disables
// limiting for a tool.
type RateLimitConfig struct {
	DefaultPerMinute int
	PerTool          map[string]int
}

// DefaultRateLimitConfig returns the default rate limiting configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{}
}

func (c RateLimitConfig) perMinute(tool string) int {
	if c.PerTool != nil {
		if n, ok := c.PerTool[tool]; ok {
			return n
		}
	}
	return c.DefaultPerMinute
}

// RateLimiter hands out one token bucket per tool.
type RateLimiter struct {
	mu       sync.Mutex
	config   RateLimitConfig
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter for config.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{config: config, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether tool may run now and consumes a token if so.
func (l *RateLimiter) Allow(tool string) bool {
	if l == nil {
		return true
	}
	limiter := l.limiterFor(tool)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (l *RateLimiter) limiterFor(tool string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[tool]; ok {
		return limiter
	}
	n := l.config.perMinute(tool)
	var limiter *rate.Limiter
	if n > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	l.limiters[tool] = limiter
	return limiter
}
