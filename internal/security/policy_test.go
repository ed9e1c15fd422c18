package security

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func mustPolicy(t *testing.T, blocked ...string) *Policy {
	t.Helper()
	policy, err := NewPolicy(blocked)
	if err != nil {
		t.Fatalf("NewPolicy(%v): %v", blocked, err)
	}
	return policy
}

func TestFindBlockedPathPrefixNeedsSeparator(t *testing.T) {
	policy := mustPolicy(t, "/blocked")

	tests := []struct {
		path    string
		blocked bool
	}{
		{"/blocked", true},
		{"/blocked/", true},
		{"/blocked/x", true},
		{"/blocked/x/y", true},
		{"/blocked2/x", false},
		{"/blockedx", false},
		{"/tmp", false},
	}
	for _, tt := range tests {
		entry, ok := policy.FindBlockedPath(tt.path)
		if ok != tt.blocked {
			t.Errorf("FindBlockedPath(%q) = %v, want %v", tt.path, ok, tt.blocked)
		}
		if ok && entry != "/blocked" {
			t.Errorf("expected matched entry /blocked, got %q", entry)
		}
	}
}

func TestFindBlockedPathReturnsFirstEntry(t *testing.T) {
	policy := mustPolicy(t, "/srv", "/srv/secret")
	entry, ok := policy.FindBlockedPath("/srv/secret/key")
	if !ok || entry != "/srv" {
		t.Fatalf("expected first matching entry /srv, got %q (%v)", entry, ok)
	}
}

func TestFindBlockedPathResolvesRelativeAgainstCwd(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	t.Chdir(dir)

	policy := mustPolicy(t, dir)
	if _, ok := policy.FindBlockedPath("inner/file"); !ok {
		t.Fatal("expected relative path under blocked cwd to be blocked")
	}
	if _, ok := policy.FindBlockedPath("."); !ok {
		t.Fatal("expected cwd itself to be blocked")
	}
}

func TestFindBlockedPathFollowsSymlinks(t *testing.T) {
	base, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	secret := filepath.Join(base, "secret")
	if err := os.Mkdir(secret, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	link := filepath.Join(base, "innocent")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	policy := mustPolicy(t, secret)
	if err := policy.ValidatePath(link); err == nil {
		t.Fatal("expected symlink into blocked dir to be rejected")
	}
	if err := policy.ValidatePath(filepath.Join(base, "elsewhere")); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestValidatePathWithWorkingDir(t *testing.T) {
	policy := mustPolicy(t, "/blocked")

	if kind, ok := KindOf(policy.ValidatePathWithWorkingDir(".", "relative/dir")); !ok || kind != RelativeWorkingDir {
		t.Fatal("expected RelativeWorkingDir for relative working dir")
	}

	err := policy.ValidatePathWithWorkingDir("subdir", "/blocked")
	if kind, ok := KindOf(err); !ok || kind != BlockedPath {
		t.Fatalf("expected BlockedPath, got %v", err)
	}
	if err := policy.ValidatePathWithWorkingDir(".", "/blocked"); err == nil {
		t.Fatal("expected working dir itself to be blocked")
	}
	if err := policy.ValidatePathWithWorkingDir("subdir", "/tmp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := policy.ValidatePathWithWorkingDir("/blocked/a", "/tmp"); err == nil {
		t.Fatal("expected absolute blocked path to be rejected regardless of working dir")
	}
}

func TestNewPolicyRejectsRelativeEntries(t *testing.T) {
	if _, err := NewPolicy([]string{"/ok", "relative"}); err == nil {
		t.Fatal("expected error for relative entry")
	}
	policy := mustPolicy(t, " ", "", "/a")
	if got := policy.Blocked(); len(got) != 1 || got[0] != "/a" {
		t.Fatalf("unexpected entries %v", got)
	}
}

func TestNilPolicyBlocksNothing(t *testing.T) {
	var policy *Policy
	if _, ok := policy.FindBlockedPath("/etc"); ok {
		t.Fatal("nil policy must not block")
	}
	if err := policy.ValidatePath("/etc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy.Blocked() != nil {
		t.Fatal("expected no entries")
	}
}

func TestPolicyFromEnv(t *testing.T) {
	t.Setenv(BlockedPathsEnv, " /blocked ; /also/blocked;;")
	policy, err := PolicyFromEnv()
	if err != nil {
		t.Fatalf("PolicyFromEnv: %v", err)
	}
	got := policy.Blocked()
	if len(got) != 2 || got[0] != "/blocked" || got[1] != "/also/blocked" {
		t.Fatalf("unexpected entries %v", got)
	}
}

func TestPolicyConcurrentReads(t *testing.T) {
	policy := mustPolicy(t, "/blocked")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, ok := policy.FindBlockedPath("/blocked/x"); !ok {
					t.Error("expected match")
					return
				}
			}
		}()
	}
	wg.Wait()
}
