//go:build !windows

package executor

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func newTestExecutor() *Executor {
	return New(zerolog.Nop(), WithWaitDelay(500*time.Millisecond))
}

func processGone(pid int) bool {
	err := unix.Kill(pid, 0)
	return stderrors.Is(err, unix.ESRCH)
}

func TestRunSuccess(t *testing.T) {
	requireBinary(t, "echo")
	result := newTestExecutor().Run(context.Background(), "echo", []string{"hello", "world"}, Context{})
	if result.Outcome != Success {
		t.Fatalf("expected success, got %v: %s", result.Outcome, result.Text)
	}
	if result.String() != "hello world\n" {
		t.Fatalf("unexpected output %q", result.String())
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestRunDoesNotInterpretShellSyntax(t *testing.T) {
	requireBinary(t, "echo")
	result := newTestExecutor().Run(context.Background(), "echo", []string{"$(id)", ";", "ls"}, Context{})
	if result.Text != "$(id) ; ls\n" {
		t.Fatalf("expected arguments passed verbatim, got %q", result.Text)
	}
}

func TestRunNonZeroExitPrefersStderr(t *testing.T) {
	requireBinary(t, "sh")
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{name: "stderr", script: "echo out; echo err >&2; exit 3", want: "Error: err\n"},
		{name: "stdout fallback", script: "echo out; exit 2", want: "Error: out\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestExecutor().Run(context.Background(), "sh", []string{"-c", tt.script}, Context{})
			if result.Outcome != Failure {
				t.Fatalf("expected failure, got %v", result.Outcome)
			}
			if result.String() != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, result.String())
			}
			if result.ExitCode == 0 {
				t.Fatal("expected non-zero exit code")
			}
		})
	}
}

func TestRunSpawnFailure(t *testing.T) {
	result := newTestExecutor().Run(context.Background(), "/nonexistent/program-xyz", nil, Context{Timeout: time.Second})
	if result.Outcome != Failure {
		t.Fatalf("expected failure, got %v", result.Outcome)
	}
	if !strings.HasPrefix(result.String(), "Error: Failed to spawn command:") {
		t.Fatalf("unexpected text %q", result.String())
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	requireBinary(t, "sleep")
	start := time.Now()
	result := newTestExecutor().Run(context.Background(), "sleep", []string{"30"}, Context{Timeout: 200 * time.Millisecond})
	elapsed := time.Since(start)

	if result.Outcome != Timeout {
		t.Fatalf("expected timeout, got %v: %s", result.Outcome, result.Text)
	}
	if result.String() != TimeoutMessage {
		t.Fatalf("unexpected text %q", result.String())
	}
	if elapsed > 5*time.Second {
		t.Fatalf("timeout path took too long: %v", elapsed)
	}
	if !processGone(result.PID) {
		t.Fatalf("process %d still running after timeout", result.PID)
	}
}

func TestRunTimeoutReachesProcessGroup(t *testing.T) {
	requireBinary(t, "sh")
	requireBinary(t, "sleep")
	// the grandchild inherits stdout; without the group kill Wait would
	// block on the pipe until WaitDelay.
	start := time.Now()
	result := New(zerolog.Nop(), WithWaitDelay(10*time.Second)).Run(
		context.Background(), "sh", []string{"-c", "sleep 30; echo done"}, Context{Timeout: 200 * time.Millisecond})
	if result.Outcome != Timeout {
		t.Fatalf("expected timeout, got %v", result.Outcome)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("expected group kill to release pipes quickly, took %v", elapsed)
	}
}

func TestRunLogsLeakedPipes(t *testing.T) {
	requireBinary(t, "sh")
	requireBinary(t, "sleep")
	var logs strings.Builder
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	// the background sleep keeps stdout open after sh exits.
	result := New(logger, WithWaitDelay(100*time.Millisecond)).Run(
		context.Background(), "sh", []string{"-c", "echo ok; sleep 3 &"}, Context{Timeout: 10 * time.Second})
	if result.Outcome != Success || result.Text != "ok\n" {
		t.Fatalf("expected success, got %v: %q", result.Outcome, result.Text)
	}
	if !strings.Contains(logs.String(), "output pipes still open after exit") {
		t.Fatalf("expected leaked pipe log, got %s", logs.String())
	}
}

func TestRunCompletesBeforeTimeout(t *testing.T) {
	requireBinary(t, "echo")
	result := newTestExecutor().Run(context.Background(), "echo", []string{"fast"}, Context{Timeout: 10 * time.Second})
	if result.Outcome != Success || result.Text != "fast\n" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunContextCancel(t *testing.T) {
	requireBinary(t, "sleep")
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	result := newTestExecutor().Run(ctx, "sleep", []string{"30"}, Context{Timeout: 30 * time.Second})
	if result.String() != "Error: command canceled" {
		t.Fatalf("unexpected result %q", result.String())
	}
	if !processGone(result.PID) {
		t.Fatalf("process %d still running after cancel", result.PID)
	}

	result = newTestExecutor().Run(ctx, "sleep", []string{"30"}, Context{})
	if result.String() != "Error: command canceled" || result.PID != 0 {
		t.Fatalf("expected no spawn for a canceled context, got %+v", result)
	}
}

func TestRunAppliesWorkingDirAndEnv(t *testing.T) {
	requireBinary(t, "sh")
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	t.Setenv("CMDGATE_INHERITED", "kept")

	result := newTestExecutor().Run(context.Background(), "sh", []string{"-c", "pwd; echo $GREETING; echo $CMDGATE_INHERITED"}, Context{
		WorkingDir: dir,
		Env:        map[string]string{"GREETING": "hi"},
	})
	if result.Outcome != Success {
		t.Fatalf("expected success, got %s", result.String())
	}
	want := dir + "\nhi\nkept\n"
	if result.Text != want {
		t.Fatalf("expected %q, got %q", want, result.Text)
	}
}

func TestRunReplacesInvalidUTF8(t *testing.T) {
	requireBinary(t, "printf")
	result := newTestExecutor().Run(context.Background(), "printf", []string{`a\377b`}, Context{})
	if result.Outcome != Success {
		t.Fatalf("expected success, got %s", result.String())
	}
	if result.Text != "a�b" {
		t.Fatalf("expected replacement character, got %q", result.Text)
	}
}

func TestRunConcurrentInvocations(t *testing.T) {
	requireBinary(t, "echo")
	requireBinary(t, "sleep")
	runner := newTestExecutor()

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if r := runner.Run(context.Background(), "echo", []string{"ok"}, Context{Timeout: 5 * time.Second}); r.Text != "ok\n" {
				errs <- "echo: " + r.String()
			}
		}()
		go func() {
			defer wg.Done()
			if r := runner.Run(context.Background(), "sleep", []string{"10"}, Context{Timeout: 100 * time.Millisecond}); r.Outcome != Timeout {
				errs <- "sleep: " + r.String()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestBuildEnv(t *testing.T) {
	if buildEnv(nil) != nil {
		t.Fatal("expected inherited environment for empty overrides")
	}
	env := buildEnv(map[string]string{"B": "2", "A": "1"})
	if len(env) != len(os.Environ())+2 {
		t.Fatalf("unexpected env length %d", len(env))
	}
	tail := env[len(env)-2:]
	if tail[0] != "A=1" || tail[1] != "B=2" {
		t.Fatalf("expected sorted overrides, got %v", tail)
	}
}

func TestOutcomeString(t *testing.T) {
	if Success.String() != "success" || Failure.String() != "error" || Timeout.String() != "timeout" {
		t.Fatal("unexpected outcome names")
	}
	if TimedOut().String() != TimeoutMessage {
		t.Fatal("timeout rendering changed")
	}
	if Failed("x %d", 1).String() != "Error: x 1" {
		t.Fatal("failure rendering changed")
	}
}
