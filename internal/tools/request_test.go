package tools

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cmdgate/internal/executor"
	"cmdgate/internal/security"
	"cmdgate/internal/transform"
)

func TestOptionsExecutionContext(t *testing.T) {
	timeout := int64(1500)
	wd := "/srv/repo"
	opts := Options{TimeoutMS: &timeout, WorkingDir: &wd, Env: map[string]string{"A": "1"}}

	ectx := opts.ExecutionContext(time.Minute)
	if ectx.Timeout != 1500*time.Millisecond || ectx.WorkingDir != wd || ectx.Env["A"] != "1" {
		t.Fatalf("unexpected context %+v", ectx)
	}
	opts.Env["A"] = "2"
	if ectx.Env["A"] != "1" {
		t.Fatal("context must not alias the request env")
	}

	empty := (&Options{}).ExecutionContext(executor.DefaultTimeout)
	if empty.Timeout != 180*time.Second || empty.WorkingDir != "" || empty.Env != nil {
		t.Fatalf("unexpected default context %+v", empty)
	}
}

func TestOptionsTimeoutBounds(t *testing.T) {
	largest := maxTimeoutMS
	opts := Options{TimeoutMS: &largest}
	if err := opts.validate(nil); err != nil {
		t.Fatalf("largest timeout should be accepted: %v", err)
	}
	if ectx := opts.ExecutionContext(time.Second); ectx.Timeout <= 0 {
		t.Fatalf("expected a positive timeout, got %v", ectx.Timeout)
	}

	tooLarge := maxTimeoutMS + 1
	opts = Options{TimeoutMS: &tooLarge}
	if err := opts.validate(nil); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
}

func TestOptionsWorkingDirString(t *testing.T) {
	for _, wd := range []string{
		"/srv/\xff\xfe",
		"/" + strings.Repeat("w", 4096),
	} {
		opts := Options{WorkingDir: &wd}
		err := opts.validate(nil)
		if !errors.Is(err, ErrInvalidArguments) || !strings.Contains(err.Error(), "working_dir") {
			t.Errorf("working_dir of %d bytes: expected invalid arguments, got %v", len(wd), err)
		}
	}
}

func TestOptionsTransformParams(t *testing.T) {
	params, err := (&Options{}).TransformParams()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Order != nil {
		t.Fatal("expected default plan when no order is given")
	}

	params, err = (&Options{TransformOrder: []string{}}).TransformParams()
	if err != nil || params.Order == nil || len(params.Order) != 0 {
		t.Fatalf("expected explicit empty plan, got %v (%v)", params.Order, err)
	}

	params, err = (&Options{TransformOrder: []string{"tail", "sort"}}).TransformParams()
	if err != nil || len(params.Order) != 2 || params.Order[0] != transform.Tail {
		t.Fatalf("unexpected plan %v (%v)", params.Order, err)
	}
}

func TestDecodeArgsKeepsEmptyOrder(t *testing.T) {
	req, err := decodeArgs[LsRequest](map[string]interface{}{"transform_order": []interface{}{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.TransformOrder == nil {
		t.Fatal("an explicit empty order must stay non-nil")
	}
	req, err = decodeArgs[LsRequest](nil)
	if err != nil || req.TransformOrder != nil || req.path() != "." {
		t.Fatalf("unexpected defaults %+v (%v)", req, err)
	}
}

func TestLsValidationOrder(t *testing.T) {
	policy, err := security.NewPolicy([]string{"/blocked"})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	tests := []struct {
		path string
		kind security.Kind
	}{
		{"-la;", security.ShellInjection},
		{"-..", security.FlagInjection},
		{"/blocked/../x", security.PathTraversal},
		{"/blocked/x", security.BlockedPath},
	}
	for _, tt := range tests {
		req := &LsRequest{Path: tt.path}
		if kind, ok := security.KindOf(req.Validate(policy)); !ok || kind != tt.kind {
			t.Errorf("path %q: expected %v", tt.path, tt.kind)
		}
	}
}

func TestLsCommand(t *testing.T) {
	req := &LsRequest{}
	program, args, err := req.command(nil, Binaries{}, executor.Context{})
	if err != nil || program != "ls" || len(args) != 2 || args[0] != "-al" || args[1] != "." {
		t.Fatalf("unexpected command %s %v (%v)", program, args, err)
	}
}

func TestGitCommand(t *testing.T) {
	req := &GitRequest{Subcommand: "add", Args: []string{"a.txt", "b.txt"}}
	if err := req.Validate(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	program, args, err := req.command(nil, Binaries{Git: "/usr/bin/git"}, executor.Context{})
	if err != nil || program != "/usr/bin/git" || len(args) != 3 || args[0] != "add" || args[2] != "b.txt" {
		t.Fatalf("unexpected command %s %v (%v)", program, args, err)
	}
}

func TestTimeoutForTool(t *testing.T) {
	config := TimeoutConfig{Default: time.Second, PerTool: map[string]time.Duration{GitToolName: 5 * time.Second}}
	if config.TimeoutForTool(GitToolName) != 5*time.Second || config.TimeoutForTool(LsToolName) != time.Second {
		t.Fatal("unexpected per-tool timeouts")
	}
	if (TimeoutConfig{}).TimeoutForTool(LsToolName) != executor.DefaultTimeout {
		t.Fatal("expected the default timeout")
	}
}

func TestRateLimiterUnlimitedByDefault(t *testing.T) {
	limiter := NewRateLimiter(DefaultRateLimitConfig())
	for i := 0; i < 100; i++ {
		if !limiter.Allow(LsToolName) {
			t.Fatal("default config must not limit")
		}
	}
	var nilLimiter *RateLimiter
	if !nilLimiter.Allow(GitToolName) {
		t.Fatal("nil limiter must allow")
	}
}
