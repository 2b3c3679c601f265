package git

import (
	"context"
	"os/exec"
	"testing"
)

// initRepo creates a throwaway repo with one commit and returns its path.
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(cmd.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-b", "main")
	run("commit", "--allow-empty", "-m", "initial")
	return dir
}

func TestHeadCommit(t *testing.T) {
	dir := initRepo(t)
	sha, err := HeadCommit(context.Background(), dir)
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if len(sha) < 7 {
		t.Errorf("short SHA too short: %q", sha)
	}
}

func TestHeadCommit_notARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	if _, err := HeadCommit(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error outside a work tree")
	}
}

func TestCurrentBranch(t *testing.T) {
	dir := initRepo(t)
	branch, err := CurrentBranch(context.Background(), dir)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("branch = %q, want main", branch)
	}
}

func TestIsRepo(t *testing.T) {
	dir := initRepo(t)
	if !IsRepo(context.Background(), dir) {
		t.Error("IsRepo false for a real repo")
	}
	if IsRepo(context.Background(), t.TempDir()) {
		t.Error("IsRepo true for an empty dir")
	}
}
