package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/cli"
)

var evaluateFlags struct {
	agent       string
	route       string
	direction   string
	policyFile  string
	format      string
	failOnBlock bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [text]",
	Short: "Evaluate text against the configured policies",
	Long: `Evaluate text against the configured policies and print the verdict.

The text is taken from the arguments, or from standard input when no
argument is given or the argument is "-". No upstream is contacted and no
evidence is recorded.

Exit Codes:
  0 - Evaluation succeeded (or the verdict was BLOCK without --fail-on-block)
  1 - The evaluation could not run
  2 - The verdict was BLOCK and --fail-on-block was given

Examples:
  # Evaluate a prompt
  policyguard evaluate "my ssn is 123-45-6789"

  # Evaluate for a specific agent and route, as JSON
  policyguard evaluate --agent billing-bot --route /v1/chat --format json "wire the funds"

  # Gate a CI step on a policy file
  cat prompt.txt | policyguard evaluate --policies policies.yaml --fail-on-block`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evaluateFlags.agent, "agent", "", "agent ID (default \"default\")")
	evaluateCmd.Flags().StringVar(&evaluateFlags.route, "route", "", "route used for policy scoping")
	evaluateCmd.Flags().StringVar(&evaluateFlags.direction, "direction", "direct", "direction: ingress, egress, direct")
	evaluateCmd.Flags().StringVar(&evaluateFlags.policyFile, "policies", "", "policy file or directory (overrides the configured store)")
	evaluateCmd.Flags().StringVar(&evaluateFlags.format, "format", "text", "output format: text, json")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.failOnBlock, "fail-on-block", false, "exit with status 2 when the verdict is BLOCK")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(evaluateFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return fmt.Errorf("csv output is not available for evaluate")
	}

	text, err := evaluationText(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evaluateFlags.policyFile != "" {
		cfg.Policy.Backend = "file"
		cfg.Policy.FilePath = evaluateFlags.policyFile
		cfg.Policy.Watch = false
	}

	logger, err := newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	policies, err := openPolicyStore(ctx, &cfg.Policy, logger, nil)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	defer policies.Close()

	engine, err := newEngine(policies, &cfg.Policy, logger, nil)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}

	scope := arbiter.Scope{AgentID: evaluateFlags.agent, Route: evaluateFlags.route}
	var result *arbiter.EvaluationResult
	switch evaluateFlags.direction {
	case "ingress":
		result = engine.EvaluateIngress(ctx, text, scope)
	case "egress":
		result = engine.EvaluateEgress(ctx, text, scope)
	case "direct", "":
		result = engine.Evaluate(ctx, text, scope)
	default:
		return fmt.Errorf("invalid direction %q: must be ingress, egress or direct", evaluateFlags.direction)
	}

	var out any = evaluationReport{result}
	if format == cli.FormatJSON {
		out = result
	}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	if evaluateFlags.failOnBlock && result.IsBlocked {
		return &cli.ExitError{Code: cli.ExitBlocked, Reason: result.Metadata.Reason}
	}
	return nil
}

func evaluationText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read standard input: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// evaluationReport renders a result for terminals.
type evaluationReport struct {
	result *arbiter.EvaluationResult
}

func (r evaluationReport) String() string {
	md := r.result.Metadata
	var b strings.Builder
	fmt.Fprintf(&b, "Verdict:     %s\n", r.result.Verdict())
	fmt.Fprintf(&b, "Reason:      %s\n", md.Reason)
	if md.Policy != "" {
		fmt.Fprintf(&b, "Policy:      %s\n", md.Policy)
	}
	fmt.Fprintf(&b, "Redactions:  %d\n", md.Redactions)
	fmt.Fprintf(&b, "Drift:       detected=%t entropy=%.4f p_value=%g\n", md.Drift.Detected, md.Drift.Entropy, md.Drift.PValue)
	if md.Health != "" {
		fmt.Fprintf(&b, "Health:      %s\n", md.Health)
	}
	for _, ev := range md.Evidence {
		fmt.Fprintf(&b, "  - [%s] %s: %s\n", ev.Kind, ev.Source, ev.Detail)
	}
	if !r.result.IsBlocked {
		fmt.Fprintf(&b, "Text:        %s", r.result.TransformedText)
	} else {
		b.WriteString("Text:        (blocked)")
	}
	return b.String()
}
