package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"policyguard/gateway/pkg/config"
)

// commitFile writes content to name in the repository at dir and commits it.
func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	writeFile(t, filepath.Join(dir, name), content)

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	_, err = wt.Commit("update "+name, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
}

func initPolicyRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	commitFile(t, repo, dir, "policies/core.yaml", testPoliciesYAML)
	return dir, repo
}

func gitConfig(t *testing.T, source string) config.GitPolicyConfig {
	return config.GitPolicyConfig{
		Repository: source,
		// go-git init creates "master".
		Branch:       "master",
		Path:         "policies",
		LocalPath:    filepath.Join(t.TempDir(), "clone"),
		PollInterval: 20 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

func TestNewGitSync_Errors(t *testing.T) {
	if _, err := NewGitSync(config.GitPolicyConfig{Branch: "main"}, nil); err == nil {
		t.Error("NewGitSync() accepted empty repository")
	}
	if _, err := NewGitSync(config.GitPolicyConfig{Repository: "x"}, nil); err == nil {
		t.Error("NewGitSync() accepted empty branch")
	}
}

func TestGitSync_CloneAndPull(t *testing.T) {
	source, repo := initPolicyRepo(t)
	gs, err := NewGitSync(gitConfig(t, source), nil)
	if err != nil {
		t.Fatalf("NewGitSync() error = %v", err)
	}
	ctx := context.Background()

	if err := gs.Clone(ctx); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	if gs.Head() == "" {
		t.Error("Head() empty after clone")
	}

	fs, err := NewFileStore(gs.PolicyPath(), nil)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	all, _ := fs.List(ctx)
	if len(all) != 2 {
		t.Fatalf("List() = %d policies, want 2", len(all))
	}

	changed, err := gs.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if changed {
		t.Error("Pull() reported changes on an up-to-date clone")
	}

	commitFile(t, repo, source, "policies/extra.yaml", "- id: extra\n  name: Extra\n  category: Legal\n  is_active: true\n")
	changed, err = gs.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if !changed {
		t.Fatal("Pull() did not see the new commit")
	}
	if err := fs.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	all, _ = fs.List(ctx)
	if len(all) != 3 {
		t.Errorf("List() after pull = %d policies, want 3", len(all))
	}
}

func TestGitSync_CloneMissingRepository(t *testing.T) {
	gs, _ := NewGitSync(gitConfig(t, "/nonexistent/repo"), nil)
	if err := gs.Clone(context.Background()); err == nil {
		t.Error("Clone() succeeded for a missing repository")
	}
}

func TestGitSync_PullBeforeClone(t *testing.T) {
	gs, _ := NewGitSync(gitConfig(t, "/nonexistent/repo"), nil)
	if _, err := gs.Pull(context.Background()); err == nil {
		t.Error("Pull() succeeded before Clone()")
	}
}

func TestNewFromConfig_Git(t *testing.T) {
	source, repo := initPolicyRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.PolicyConfig{Backend: "git", Git: gitConfig(t, source)}
	s, err := NewFromConfig(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	defer s.Close()

	commitFile(t, repo, source, "policies/extra.yaml", "- id: extra\n  name: Extra\n  category: Legal\n  is_active: true\n")

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := s.Get(ctx, "extra"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("git poller did not pick up the new policy")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
