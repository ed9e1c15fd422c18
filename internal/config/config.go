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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "cmdgate/internal/errors"
	"cmdgate/internal/executor"
	"cmdgate/internal/security"
	"cmdgate/internal/tools"
	"cmdgate/internal/transform"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "cmdgate.json"

// Environment variables that override the file.
const (
	EnvBlockedPaths     = security.BlockedPathsEnv
	EnvDefaultTimeoutMS = "CMDGATE_DEFAULT_TIMEOUT_MS"
	EnvMetricsAddr      = "CMDGATE_METRICS_ADDR"
)

// Config represents the application configuration
type Config struct {
	BlockedPaths      []string          `json:"blocked_paths,omitempty" yaml:"blocked_paths,omitempty"`
	DefaultTimeoutMS  int64             `json:"default_timeout_ms,omitempty" yaml:"default_timeout_ms,omitempty"`
	Tools             ToolSettings      `json:"tools,omitempty" yaml:"tools,omitempty"`
	ToolTimeouts      ToolTimeouts      `json:"tool_timeouts,omitempty" yaml:"tool_timeouts,omitempty"`
	ToolRateLimits    ToolRateLimits    `json:"tool_rate_limits,omitempty" yaml:"tool_rate_limits,omitempty"`
	ToolOutputFilters ToolOutputFilters `json:"tool_output_filters,omitempty" yaml:"tool_output_filters,omitempty"`
	Binaries          Binaries          `json:"binaries,omitempty" yaml:"binaries,omitempty"`
	MetricsAddr       string            `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

// ToolSettings describes tool allow/deny lists.
type ToolSettings struct {
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty" yaml:"deny,omitempty"`
}

// ToolTimeouts configures per-tool execution timeouts.
type ToolTimeouts struct {
	PerToolMS map[string]int64 `json:"per_tool_ms,omitempty" yaml:"per_tool_ms,omitempty"`
}

// ToolRateLimits configures tool rate limits.
type ToolRateLimits struct {
	DefaultPerMinute int            `json:"default_per_minute,omitempty" yaml:"default_per_minute,omitempty"`
	PerTool          map[string]int `json:"per_tool,omitempty" yaml:"per_tool,omitempty"`
}

// ToolOutputFilters configures output sanitization for tool results.
type ToolOutputFilters struct {
	MaxChars     int  `json:"max_chars" yaml:"max_chars"`
	StripANSI    bool `json:"strip_ansi" yaml:"strip_ansi"`
	StripControl bool `json:"strip_control" yaml:"strip_control"`
}

// Binaries overrides the external programs run by the tools.
type Binaries struct {
	Ls  string `json:"ls,omitempty" yaml:"ls,omitempty"`
	Git string `json:"git,omitempty" yaml:"git,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	sanitizer := transform.DefaultSanitizer()
	return &Config{
		DefaultTimeoutMS: executor.DefaultTimeout.Milliseconds(),
		ToolOutputFilters: ToolOutputFilters{
			MaxChars:     sanitizer.MaxChars,
			StripANSI:    sanitizer.StripANSI,
			StripControl: sanitizer.StripControl,
		},
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process
// environment without overriding variables already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "failed to load "+path, err)
	}
	return nil
}

// LoadConfig reads a JSON or YAML file (chosen by extension), applies
// environment overrides and validates the result. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if isYAML(path) {
				data, err = yamlToJSON(data)
				if err != nil {
					return nil, apperrors.Wrap(apperrors.CodeConfig, "invalid YAML in "+path, err)
				}
			}
			normalized, err := normalizeConfigJSON(data)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfig, "invalid configuration in "+path, err)
			}
			if err := json.Unmarshal(normalized, config); err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfig, "invalid configuration in "+path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, apperrors.Wrap(apperrors.CodeConfig, "failed to read "+path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.check(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	if val, ok := os.LookupEnv(EnvBlockedPaths); ok {
		c.BlockedPaths = security.ParseBlockedPaths(val)
	}
	if val := strings.TrimSpace(os.Getenv(EnvDefaultTimeoutMS)); val != "" {
		ms, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeConfig, EnvDefaultTimeoutMS+" must be an integer", err)
		}
		c.DefaultTimeoutMS = ms
	}
	if val := os.Getenv(EnvMetricsAddr); val != "" {
		c.MetricsAddr = val
	}
	return nil
}

func (c *Config) check() error {
	if c.DefaultTimeoutMS <= 0 {
		return apperrors.New(apperrors.CodeConfig, fmt.Sprintf("default_timeout_ms must be positive, got %d", c.DefaultTimeoutMS))
	}
	for name, ms := range c.ToolTimeouts.PerToolMS {
		if ms <= 0 {
			return apperrors.New(apperrors.CodeConfig, fmt.Sprintf("tool_timeouts.per_tool_ms.%s must be positive, got %d", name, ms))
		}
	}
	if c.ToolOutputFilters.MaxChars < 0 {
		return apperrors.New(apperrors.CodeConfig, "tool_output_filters.max_chars must not be negative")
	}
	for _, entry := range c.BlockedPaths {
		if err := security.ValidateAbsolutePath(entry); err != nil {
			return apperrors.New(apperrors.CodeConfig, "blocked path must be absolute: "+entry)
		}
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// yamlToJSON converts a YAML document so it can share the JSON validation.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return json.Marshal(raw)
}

// BlockedPolicy builds the immutable blocked path policy.
func (c *Config) BlockedPolicy() (*security.Policy, error) {
	return security.NewPolicy(c.BlockedPaths)
}

// ToolPolicy converts config settings into a tool policy.
func (c *Config) ToolPolicy() tools.Policy {
	return tools.PolicyFromLists(c.Tools.Allow, c.Tools.Deny)
}

// ToolTimeoutsConfig returns timeout configuration for tools.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	perTool := make(map[string]time.Duration, len(c.ToolTimeouts.PerToolMS))
	for name, ms := range c.ToolTimeouts.PerToolMS {
		perTool[name] = time.Duration(ms) * time.Millisecond
	}
	return tools.TimeoutConfig{
		Default: time.Duration(c.DefaultTimeoutMS) * time.Millisecond,
		PerTool: perTool,
	}
}

// ToolRateLimitsConfig returns rate limiting configuration for tools.
func (c *Config) ToolRateLimitsConfig() tools.RateLimitConfig {
	perTool := make(map[string]int, len(c.ToolRateLimits.PerTool))
	for name, rate := range c.ToolRateLimits.PerTool {
		perTool[name] = rate
	}
	return tools.RateLimitConfig{
		DefaultPerMinute: c.ToolRateLimits.DefaultPerMinute,
		PerTool:          perTool,
	}
}

// SanitizerConfig returns output sanitization settings.
func (c *Config) SanitizerConfig() transform.Sanitizer {
	return transform.Sanitizer{
		MaxChars:     c.ToolOutputFilters.MaxChars,
		StripANSI:    c.ToolOutputFilters.StripANSI,
		StripControl: c.ToolOutputFilters.StripControl,
	}
}

// ToolsConfig assembles everything the tool registry needs.
func (c *Config) ToolsConfig() (tools.Config, error) {
	blocked, err := c.BlockedPolicy()
	if err != nil {
		return tools.Config{}, err
	}
	return tools.Config{
		Blocked:    blocked,
		Policy:     c.ToolPolicy(),
		Timeouts:   c.ToolTimeoutsConfig(),
		RateLimits: c.ToolRateLimitsConfig(),
		Sanitizer:  c.SanitizerConfig(),
		Binaries:   tools.Binaries{Ls: c.Binaries.Ls, Git: c.Binaries.Git},
	}, nil
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	if registry != nil {
		registered := make(map[string]bool)
		for _, name := range registry.GetToolNames() {
			registered[name] = true
		}
		check := func(field string, names []string) {
			for _, name := range names {
				if !registered[name] {
					warnings = append(warnings, ValidationWarning{
						Field:   field,
						Message: fmt.Sprintf("tool %q in %s list is not registered", name, strings.TrimPrefix(field, "tools.")),
					})
				}
			}
		}
		check("tools.allow", c.Tools.Allow)
		check("tools.deny", c.Tools.Deny)
		for name := range c.ToolRateLimits.PerTool {
			if !registered[name] {
				warnings = append(warnings, ValidationWarning{
					Field:   "tool_rate_limits.per_tool",
					Message: fmt.Sprintf("tool %q is not registered", name),
				})
			}
		}
	}

	if len(c.BlockedPaths) == 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "blocked_paths",
			Message: "no blocked paths configured; every readable path can be listed",
		})
	}
	for _, bin := range []struct{ field, path string }{{"binaries.ls", c.Binaries.Ls}, {"binaries.git", c.Binaries.Git}} {
		if bin.path != "" && !filepath.IsAbs(bin.path) {
			warnings = append(warnings, ValidationWarning{
				Field:   bin.field,
				Message: fmt.Sprintf("%s is not absolute and will be resolved through PATH", bin.path),
			})
		}
	}
	return warnings
}
