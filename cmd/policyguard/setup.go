package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/arbiter/store"
	"policyguard/gateway/pkg/cli"
	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/evidence"
	"policyguard/gateway/pkg/evidence/storage"
	"policyguard/gateway/pkg/telemetry/logging"
	"policyguard/gateway/pkg/telemetry/metrics"
)

// newLogger builds the configured logger and installs it as the default.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(cfg, w)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}

// openPolicyStore opens the configured policy backend. Reloads of a file
// backed store are reported to collector when it is non-nil.
func openPolicyStore(ctx context.Context, cfg *config.PolicyConfig, logger *slog.Logger, collector *metrics.Collector) (store.Store, error) {
	st, err := store.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy store (%s): %w", cfg.Backend, err)
	}
	if fs, ok := st.(*store.FileStore); ok && collector != nil {
		fs.OnReload(collector.RecordStoreReload)
	}
	return st, nil
}

// newEngine creates the arbitration engine over st. observer may be nil.
func newEngine(st arbiter.PolicyStore, cfg *config.PolicyConfig, logger *slog.Logger, observer arbiter.Observer) (*arbiter.Engine, error) {
	engineCfg := arbiter.DefaultEngineConfig().
		WithMaxEvidence(cfg.MaxEvidence).
		WithLogger(logger)
	if len(cfg.FinancialPhrases) > 0 {
		engineCfg = engineCfg.WithFinancialPhrases(cfg.FinancialPhrases...)
	}
	if observer != nil {
		engineCfg = engineCfg.WithObserver(observer)
	}

	engine, err := arbiter.New(st, engineCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	return engine, nil
}

func openEvidenceStorage(cfg *config.EvidenceConfig) (evidence.Storage, error) {
	st, err := storage.NewFromConfig(cfg)
	if err != nil {
		return nil, cli.NewCommandError("evidence", fmt.Errorf("failed to open evidence storage: %w", err))
	}
	return st, nil
}

// commandContext returns the command's context. Commands invoked outside
// Execute have none.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
