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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	apperrors "cmdgate/internal/errors"
	"cmdgate/internal/executor"
	"cmdgate/internal/security"
	"cmdgate/internal/transform"
)

// Tool describes a registered tool and how to decode its requests.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
	Validate    ValidationRule         `json:"-"`
	decode      func(args map[string]interface{}) (Request, error)
}

// ToolResult represents the result of a tool execution. Truncated reports
// that Result was cut at the sanitizer's MaxChars.
type ToolResult struct {
	Function     string
	InvocationID string
	Result       string
	Outcome      string
	Error        error
	Duration     time.Duration
	Truncated    bool
}

// Outcome labels reported on ToolResult and to the Observer.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
)

// Permission describes the policy for a tool.
type Permission struct {
	Allowed bool
}

// Policy configures which tools may run. An empty Allowed list allows every
// registered tool; Denied always wins.
type Policy struct {
	Allowed map[string]bool
	Denied  map[string]bool
}

// PolicyFromLists builds a policy from allow/deny lists.
func PolicyFromLists(allow, deny []string) Policy {
	policy := Policy{}
	if len(allow) > 0 {
		policy.Allowed = make(map[string]bool, len(allow))
		for _, name := range allow {
			policy.Allowed[name] = true
		}
	}
	if len(deny) > 0 {
		policy.Denied = make(map[string]bool, len(deny))
		for _, name := range deny {
			policy.Denied[name] = true
		}
	}
	return policy
}

func (p Policy) permission(name string) Permission {
	if p.Denied[name] {
		return Permission{Allowed: false}
	}
	if p.Allowed != nil && !p.Allowed[name] {
		return Permission{Allowed: false}
	}
	return Permission{Allowed: true}
}

// Observer receives invocation events, typically for metrics.
type Observer interface {
	ObserveInvocation(tool, outcome string, duration time.Duration)
	ObserveRejection(tool, reason string)
}

type nopObserver struct{}

func (nopObserver) ObserveInvocation(string, string, time.Duration) {}
func (nopObserver) ObserveRejection(string, string)                 {}

// Config holds everything a Registry needs to run tools.
type Config struct {
	Blocked    *security.Policy
	Policy     Policy
	Timeouts   TimeoutConfig
	RateLimits RateLimitConfig
	Sanitizer  transform.Sanitizer
	Binaries   Binaries
}

// DefaultConfig returns a configuration with nothing blocked, every tool
// allowed and the default timeout.
func DefaultConfig() Config {
	return Config{
		Timeouts:   DefaultTimeoutConfig(),
		RateLimits: DefaultRateLimitConfig(),
		Sanitizer:  transform.DefaultSanitizer(),
	}
}

// Option customizes a Registry.
type Option func(*Registry)

// WithLogger sets the audit logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithObserver sets the invocation observer.
func WithObserver(observer Observer) Option {
	return func(r *Registry) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// WithExecutor replaces the process executor.
func WithExecutor(exec *executor.Executor) Option {
	return func(r *Registry) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithPatternCache replaces the grep pattern cache.
func WithPatternCache(cache *transform.PatternCache) Option {
	return func(r *Registry) {
		if cache != nil {
			r.patterns = cache
		}
	}
}

// Registry holds the tools and runs invocations end to end:
// validate, derive the context, execute, sanitize, transform.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]*Tool
	permissions Policy

	config   Config
	exec     *executor.Executor
	patterns *transform.PatternCache
	limiter  *RateLimiter
	observer Observer
	logger   zerolog.Logger
	lookPath func(string) (string, error)
}

// NewRegistry creates a registry with the built-in ls and git tools.
func NewRegistry(config Config, opts ...Option) *Registry {
	r := &Registry{
		tools:       make(map[string]*Tool),
		permissions: config.Policy,
		config:      config,
		limiter:     NewRateLimiter(config.RateLimits),
		observer:    nopObserver{},
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.exec == nil {
		r.exec = executor.New(r.logger)
	}
	if r.patterns == nil {
		r.patterns = transform.NewPatternCache(transform.DefaultPatternTTL, transform.DefaultPatternCleanup)
	}
	registerBuiltInTools(r)
	return r
}

// RegisterTool adds a tool to the registry.
func (r *Registry) RegisterTool(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// SetAllowed toggles whether a tool is allowed.
func (r *Registry) SetAllowed(name string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if allowed {
		delete(r.permissions.Denied, name)
		if r.permissions.Allowed != nil {
			r.permissions.Allowed[name] = true
		}
		return
	}
	if r.permissions.Denied == nil {
		r.permissions.Denied = make(map[string]bool)
	}
	r.permissions.Denied[name] = true
}

// GetPermission returns the current permission entry for a tool.
func (r *Registry) GetPermission(name string) Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.permissions.permission(name)
}

// GetToolNames returns the registered tool names, sorted.
func (r *Registry) GetToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the registered tools the policy allows, sorted by name.
func (r *Registry) Tools() []*Tool {
	names := r.GetToolNames()
	out := make([]*Tool, 0, len(names))
	for _, name := range names {
		if !r.GetPermission(name).Allowed {
			continue
		}
		if tool, ok := r.getTool(name); ok {
			out = append(out, tool)
		}
	}
	return out
}

// Blocked returns the blocked path policy in effect.
func (r *Registry) Blocked() *security.Policy {
	return r.config.Blocked
}

// OpenAITools returns the allowed tools as OpenAI tool definitions.
func (r *Registry) OpenAITools() []openai.Tool {
	tools := r.Tools()
	defs := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return defs
}

// ExecuteOpenAIToolCall executes an OpenAI tool call payload.
func (r *Registry) ExecuteOpenAIToolCall(ctx context.Context, call openai.ToolCall) *ToolResult {
	name := call.Function.Name
	if name == "" {
		err := fmt.Errorf("%w: tool call missing function name", ErrInvalidArguments)
		return &ToolResult{Function: "unknown_tool", Result: renderError(err), Outcome: OutcomeRejected, Error: err}
	}
	args, err := ParseToolArgs(call.Function.Arguments)
	if err != nil {
		return &ToolResult{Function: name, Result: renderError(err), Outcome: OutcomeRejected, Error: err}
	}
	return r.Execute(ctx, name, args)
}

// ExecuteJSON runs a tool with arguments given as a JSON object.
func (r *Registry) ExecuteJSON(ctx context.Context, name, argsJSON string) *ToolResult {
	return r.ExecuteOpenAIToolCall(ctx, openai.ToolCall{
		Type:     openai.ToolTypeFunction,
		Function: openai.FunctionCall{Name: name, Arguments: argsJSON},
	})
}

// Execute runs the named tool. Every failure is reported in the result
// text with an "Error: " prefix; Execute never panics on caller input.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *ToolResult {
	start := time.Now()
	result := &ToolResult{Function: name, InvocationID: uuid.NewString()}
	logger := r.logger.With().Str("invocation_id", result.InvocationID).Str("tool", name).Logger()

	finish := func() *ToolResult {
		result.Duration = time.Since(start)
		r.observer.ObserveInvocation(name, result.Outcome, result.Duration)
		event := logger.Info()
		if result.Outcome != OutcomeSuccess {
			event = logger.Warn().AnErr("error", result.Error)
		}
		event.Str("outcome", result.Outcome).Dur("duration", result.Duration).Msg("tool invocation")
		return result
	}
	reject := func(reason string, err error) *ToolResult {
		r.observer.ObserveRejection(name, reason)
		result.Outcome = OutcomeRejected
		result.Error = err
		result.Result = renderError(err)
		logger.Warn().Str("reason", reason).Msg("request rejected")
		return finish()
	}

	tool, ok := r.getTool(name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrToolNotFound, name)
		r.observer.ObserveRejection(name, "not_found")
		result.Outcome = OutcomeRejected
		result.Error = err
		result.Result = fmt.Sprintf("Error: Tool '%s' not found. Available tools: %v", name, r.GetToolNames())
		return finish()
	}
	if !r.GetPermission(name).Allowed {
		return reject("not_allowed", NewPermissionError(name, ErrToolNotAllowed))
	}
	if !r.limiter.Allow(name) {
		return reject("rate_limited", fmt.Errorf("%w: %s", ErrToolRateLimited, name))
	}
	if tool.Validate != nil {
		if err := tool.Validate(args); err != nil {
			return reject("invalid_arguments", err)
		}
	}
	req, err := tool.decode(args)
	if err != nil {
		return reject("invalid_arguments", err)
	}
	if err := req.Validate(r.config.Blocked); err != nil {
		return reject(rejectionReason(err), err)
	}

	opts := req.Shared()
	params, err := opts.TransformParams()
	if err != nil {
		return reject("invalid_arguments", err)
	}
	ectx := opts.ExecutionContext(r.config.Timeouts.TimeoutForTool(name))
	program, argv, err := req.command(r.config.Blocked, r.config.Binaries, ectx)
	if err != nil {
		return reject(rejectionReason(err), err)
	}

	run := r.run(ctx, logger, name, program, argv, ectx)
	switch run.Outcome {
	case executor.Timeout:
		result.Outcome = OutcomeTimeout
		result.Result = run.String()
		result.Error = apperrors.New(apperrors.CodeTimeout, fmt.Sprintf("tool %s timed out after %v", name, ectx.Timeout))
		return finish()
	case executor.Failure:
		result.Outcome = OutcomeError
		result.Result = run.String()
		result.Error = NewToolExecutionError(name, "run", errors.New(run.Text))
		return finish()
	}

	output, err := r.patterns.Apply(r.config.Sanitizer.Clean(run.Text), params)
	if err != nil {
		result.Outcome = OutcomeError
		result.Error = apperrors.Wrap(apperrors.CodeTransform, "transform failed", err)
		result.Result = renderError(err)
		return finish()
	}
	output, result.Truncated = r.config.Sanitizer.Truncate(output)
	if result.Truncated {
		logger.Warn().Int("max_chars", r.config.Sanitizer.MaxChars).Msg("output truncated")
	}
	result.Outcome = OutcomeSuccess
	result.Result = output
	return finish()
}

// getTool safely retrieves a tool definition.
func (r *Registry) getTool(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

func renderError(err error) string {
	if err == nil {
		return ""
	}
	return "Error: " + err.Error()
}

func rejectionReason(err error) string {
	if kind, ok := security.KindOf(err); ok {
		return kind.String()
	}
	if errors.Is(err, ErrInvalidArguments) {
		return "invalid_arguments"
	}
	return "rejected"
}

// MarshalResult renders a result as JSON for machine consumers.
func MarshalResult(result *ToolResult) ([]byte, error) {
	payload := struct {
		Function     string `json:"function"`
		InvocationID string `json:"invocation_id"`
		Outcome      string `json:"outcome"`
		Result       string `json:"result"`
		DurationMS   int64  `json:"duration_ms"`
		Truncated    bool   `json:"truncated,omitempty"`
	}{
		Function:     result.Function,
		InvocationID: result.InvocationID,
		Outcome:      result.Outcome,
		Result:       result.Result,
		DurationMS:   result.Duration.Milliseconds(),
		Truncated:    result.Truncated,
	}
	return json.Marshal(payload)
}
