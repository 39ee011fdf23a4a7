package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"policyguard/gateway/pkg/cli"
	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/evidence/recorder"
	"policyguard/gateway/pkg/evidence/retention"
	"policyguard/gateway/pkg/providerfactory"
	"policyguard/gateway/pkg/security/auth"
	"policyguard/gateway/pkg/server"
	"policyguard/gateway/pkg/telemetry/metrics"
	"policyguard/gateway/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the PolicyGuard gateway",
	Long: `Start the PolicyGuard gateway with the specified configuration.

The gateway listens on the configured address, evaluates every prompt and
completion against the active policies, and forwards allowed traffic to the
configured OpenAI and Gemini upstreams.

Examples:
  # Start with default config
  policyguard run

  # Start with custom config
  policyguard run --config /etc/policyguard/config.yaml

  # Override listen address
  policyguard run --listen 0.0.0.0:8080

  # Validate config and policies without starting the server
  policyguard run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and policies without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	logger, err := newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, cancel := cli.SetupSignalHandler(commandContext(cmd))
	defer cancel()

	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)

	policies, err := openPolicyStore(ctx, &cfg.Policy, logger, collector)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer policies.Close()

	engine, err := newEngine(policies, &cfg.Policy, logger, collector)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	if runFlags.dryRun {
		list, err := policies.List(ctx)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid (%d policies, backend %s)\n", len(list), cfg.Policy.Backend)
		return nil
	}

	tracer, err := tracing.New(ctx, cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.Timeout)
		defer shutdownCancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	upstreams, err := providerfactory.NewFromConfig(cfg.Upstream, http.DefaultTransport)
	if err != nil {
		return cli.NewConfigError("upstream", err.Error())
	}
	defer upstreams.Close()

	deps := server.Dependencies{
		Engine:    engine,
		Store:     policies,
		Providers: upstreams,
		Metrics:   collector,
		Tracer:    tracer,
		Version:   versionInfo(),
		Logger:    logger,
	}

	if len(cfg.Security.AdminKeys) > 0 {
		deps.Admin = auth.NewMiddleware(auth.FromConfig(cfg.Security))
	} else {
		logger.Warn("no admin keys configured, policy management API is unauthenticated")
	}

	if cfg.Evidence.Enabled {
		stopEvidence, rec, err := startEvidence(ctx, &cfg.Evidence, logger)
		if err != nil {
			return err
		}
		defer stopEvidence()
		deps.Evidence = rec
	}

	srv, err := server.NewServer(&cfg.Proxy, &cfg.Telemetry, deps)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	logger.Info("policyguard starting",
		"version", Version,
		"config", cfgFile,
		"policy_backend", cfg.Policy.Backend,
		"evidence_enabled", cfg.Evidence.Enabled,
	)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// startEvidence opens evidence storage, the asynchronous recorder and the
// retention scheduler. The returned func stops all three, recorder first so
// queued records are flushed before storage closes.
func startEvidence(ctx context.Context, cfg *config.EvidenceConfig, logger *slog.Logger) (func(), *recorder.Recorder, error) {
	st, err := openEvidenceStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	rec := recorder.NewRecorder(st, recorder.FromConfig(cfg))

	pruner := retention.NewPruner(st, retention.FromConfig(cfg.Retention))
	prunerStarted := false
	if cfg.Retention.PruneSchedule != "" {
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("failed to start evidence retention", "error", err)
		} else {
			prunerStarted = true
			if next := pruner.NextPruning(); next != nil {
				logger.Debug("evidence retention scheduled", "next_pruning", next)
			}
		}
	}

	logger.Info("evidence recording enabled", "backend", cfg.Backend)

	stop := func() {
		if prunerStarted {
			pruner.Stop()
		}
		if err := rec.Close(); err != nil {
			logger.Warn("evidence recorder close failed", "error", err)
		}
		if err := st.Close(); err != nil {
			logger.Warn("evidence storage close failed", "error", err)
		}
	}
	return stop, rec, nil
}
