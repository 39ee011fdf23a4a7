package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"policyguard/gateway/pkg/config"
)

// NewFromConfig opens the configured policy backend. Background work
// (file watching, git polling) is bound to ctx.
func NewFromConfig(ctx context.Context, cfg *config.PolicyConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "memory":
		return NewMemoryStore()

	case "file":
		fs, err := NewFileStore(cfg.FilePath, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Watch {
			startWatch(ctx, fs, cfg.DebounceInterval, logger)
		}
		return fs, nil

	case "sqlite":
		db, err := OpenSQLite(cfg.SQLitePath, 5*time.Second)
		if err != nil {
			return nil, err
		}
		s, err := NewSQLStore(db, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil

	case "git":
		gs, err := NewGitSync(cfg.Git, logger)
		if err != nil {
			return nil, err
		}
		if err := gs.Clone(ctx); err != nil {
			return nil, err
		}
		fs, err := NewFileStore(gs.PolicyPath(), logger)
		if err != nil {
			return nil, err
		}
		go gs.Run(ctx, func() { _ = fs.Reload() })
		return fs, nil

	default:
		return nil, fmt.Errorf("unknown policy backend %q", cfg.Backend)
	}
}

func startWatch(ctx context.Context, fs *FileStore, debounce time.Duration, logger *slog.Logger) {
	go func() {
		if err := fs.Watch(ctx, debounce); err != nil {
			logger.Error("policy watcher exited", "error", err)
		}
	}()
}
