//go:build !windows

package tools

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	apperrors "cmdgate/internal/errors"
	"cmdgate/internal/security"
)

// fakeProgram writes an executable script that records each run in marker.
func fakeProgram(t *testing.T, body string) (program, marker string) {
	t.Helper()
	dir := resolvedTempDir(t)
	marker = filepath.Join(dir, "ran")
	program = filepath.Join(dir, "fake")
	script := "#!/bin/sh\necho run >> " + marker + "\n" + body + "\n"
	if err := os.WriteFile(program, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake program: %v", err)
	}
	return program, marker
}

func registryWithGit(t *testing.T, program string) *Registry {
	t.Helper()
	config := DefaultConfig()
	config.Binaries = Binaries{Git: program, Ls: program}
	return NewRegistry(config)
}

func TestGitRejectsDisallowedSubcommandWithoutRunning(t *testing.T) {
	requireProgram(t, "sh")
	program, marker := fakeProgram(t, "echo ok")
	registry := registryWithGit(t, program)

	for _, sub := range []string{"push", "status;id", "config", "STATUS", ""} {
		result := registry.Execute(context.Background(), GitToolName, map[string]interface{}{"subcommand": sub})
		if result.Outcome != OutcomeRejected {
			t.Fatalf("subcommand %q: expected rejection, got %s", sub, result.Outcome)
		}
	}
	result := registry.Execute(context.Background(), GitToolName, map[string]interface{}{"subcommand": "push"})
	if kind, ok := security.KindOf(result.Error); !ok || kind != security.DisallowedSubcommand {
		t.Fatalf("expected DisallowedSubcommand, got %v", result.Error)
	}
	if !strings.Contains(result.Result, "Allowed subcommands: status, add, commit, checkout") {
		t.Fatalf("unexpected message %q", result.Result)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatal("git program must not run for rejected requests")
	}
}

func TestGitRejectsInjectedArguments(t *testing.T) {
	requireProgram(t, "sh")
	program, marker := fakeProgram(t, "echo ok")
	registry := registryWithGit(t, program)

	result := registry.Execute(context.Background(), GitToolName, map[string]interface{}{
		"subcommand": "commit",
		"args":       []interface{}{"-m", "msg && rm -rf ~"},
	})
	if kind, ok := security.KindOf(result.Error); !ok || kind != security.ShellInjection {
		t.Fatalf("expected ShellInjection, got %v", result.Error)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatal("git program must not run for rejected requests")
	}
}

func TestGitPassesArgumentsVerbatim(t *testing.T) {
	requireProgram(t, "sh")
	program, marker := fakeProgram(t, `for a in "$@"; do echo "[$a]"; done`)
	registry := registryWithGit(t, program)

	result := registry.Execute(context.Background(), GitToolName, map[string]interface{}{
		"subcommand": "commit",
		"args":       []interface{}{"-m", "two words", "--", "file.txt"},
	})
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("unexpected result %s: %q", result.Outcome, result.Result)
	}
	want := "[commit]\n[-m]\n[two words]\n[--]\n[file.txt]\n"
	if result.Result != want {
		t.Fatalf("expected %q, got %q", want, result.Result)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected program to run: %v", err)
	}
}

func TestGitNonZeroExit(t *testing.T) {
	requireProgram(t, "sh")
	program, _ := fakeProgram(t, "echo 'fatal: not a git repository' >&2; exit 128")
	registry := registryWithGit(t, program)

	result := registry.Execute(context.Background(), GitToolName, map[string]interface{}{
		"subcommand": "status",
		"sort":       true,
	})
	if result.Outcome != OutcomeError {
		t.Fatalf("expected error outcome, got %s", result.Outcome)
	}
	if result.Result != "Error: fatal: not a git repository\n" {
		t.Fatalf("unexpected result %q", result.Result)
	}
}

func TestGitTimeout(t *testing.T) {
	requireProgram(t, "sh")
	requireProgram(t, "sleep")
	program, _ := fakeProgram(t, "sleep 30")
	registry := registryWithGit(t, program)

	result := registry.Execute(context.Background(), GitToolName, map[string]interface{}{
		"subcommand": "status",
		"timeout_ms": 200,
	})
	if result.Outcome != OutcomeTimeout {
		t.Fatalf("expected timeout, got %s: %q", result.Outcome, result.Result)
	}
	if result.Result != "Error: Command timed out" {
		t.Fatalf("unexpected result %q", result.Result)
	}
	if apperrors.CodeOf(result.Error) != apperrors.CodeTimeout {
		t.Fatalf("expected timeout code, got %q", apperrors.CodeOf(result.Error))
	}
}

func TestGitEnvOverrides(t *testing.T) {
	requireProgram(t, "sh")
	program, _ := fakeProgram(t, `echo "$GIT_AUTHOR_NAME"`)
	registry := registryWithGit(t, program)

	result := registry.Execute(context.Background(), GitToolName, map[string]interface{}{
		"subcommand": "commit",
		"env":        map[string]interface{}{"GIT_AUTHOR_NAME": "Jane Doe"},
	})
	if result.Result != "Jane Doe\n" {
		t.Fatalf("unexpected result %q", result.Result)
	}
}

func TestGitStatusInRepository(t *testing.T) {
	requireProgram(t, "git")
	repo := resolvedTempDir(t)
	cmd := exec.Command("git", "init", "-q", repo)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("git init failed: %v: %s", err, out)
	}
	writeFiles(t, repo, "untracked.txt")

	registry := newTestRegistry(t)
	result := registry.Execute(context.Background(), GitToolName, map[string]interface{}{
		"subcommand":   "status",
		"args":         []interface{}{"--porcelain"},
		"working_dir":  repo,
		"grep_pattern": "untracked",
	})
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("unexpected result %s: %q", result.Outcome, result.Result)
	}
	if result.Result != "?? untracked.txt" {
		t.Fatalf("unexpected status %q", result.Result)
	}
}
