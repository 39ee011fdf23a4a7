package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"policyguard/gateway/pkg/config"
)

// GitSync keeps a local clone of a policy repository up to date.
type GitSync struct {
	cfg    config.GitPolicyConfig
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
	head string
}

// NewGitSync creates a syncer. Nothing is fetched until Clone.
func NewGitSync(cfg config.GitPolicyConfig, logger *slog.Logger) (*GitSync, error) {
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if cfg.LocalPath == "" {
		cfg.LocalPath = filepath.Join(os.TempDir(), "policyguard-policies")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitSync{
		cfg:    cfg,
		logger: logger.With("component", "policy.store.git", "repository", cfg.Repository),
	}, nil
}

// PolicyPath is the policy file or directory inside the local clone.
func (g *GitSync) PolicyPath() string {
	return filepath.Join(g.cfg.LocalPath, g.cfg.Path)
}

// Head returns the commit the clone is at.
func (g *GitSync) Head() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.head
}

// Clone clones the repository, or opens an existing clone at LocalPath.
func (g *GitSync) Clone(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := os.Stat(filepath.Join(g.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(g.cfg.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo: %w", err)
		}
		g.repo = repo
		return g.updateHead()
	}

	if err := os.MkdirAll(g.cfg.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, g.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           g.cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(g.cfg.Branch),
		SingleBranch:  true,
		Auth:          g.auth(),
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	g.repo = repo
	if err := g.updateHead(); err != nil {
		return err
	}
	g.logger.Info("cloned policy repository", "branch", g.cfg.Branch, "head", g.head)
	return nil
}

// Pull fast-forwards the clone and reports whether HEAD moved.
func (g *GitSync) Pull(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.repo == nil {
		return false, fmt.Errorf("repository not initialized, call Clone() first")
	}
	wt, err := g.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	err = wt.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(g.cfg.Branch),
		SingleBranch:  true,
		Auth:          g.auth(),
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("failed to pull: %w", err)
	}

	before := g.head
	if err := g.updateHead(); err != nil {
		return false, err
	}
	return before != g.head, nil
}

// Run pulls every PollInterval until ctx is done and calls onChange after
// each pull that moved HEAD. A failed pull keeps the current checkout.
func (g *GitSync) Run(ctx context.Context, onChange func()) {
	interval := g.cfg.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := g.Pull(ctx)
			if err != nil {
				g.logger.Warn("policy pull failed", "error", err)
				continue
			}
			if changed {
				g.logger.Info("policy repository updated", "head", g.Head())
				onChange()
			}
		}
	}
}

// updateHead must be called with the lock held.
func (g *GitSync) updateHead() error {
	ref, err := g.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	g.head = ref.Hash().String()
	return nil
}

func (g *GitSync) auth() transport.AuthMethod {
	if g.cfg.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "git", Password: g.cfg.Token}
}
