package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/arbiter/store"
	"policyguard/gateway/pkg/cli"
)

var policyFlags struct {
	format string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage policies",
	Long: `Inspect and edit the policies of the configured store.

Subcommands operate on the backend selected by policy.backend in the
configuration. Writes to a file backend rewrite the policy file; a running
gateway with policy.watch enabled picks them up.

Examples:
  # List policies
  policyguard policy list

  # Check policy files before committing them
  policyguard policy validate policies/*.yaml

  # Disable a policy
  policyguard policy toggle finance-strict`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all policies",
	Args:  cobra.NoArgs,
	RunE:  listPolicies,
}

var policyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one policy as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  showPolicy,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate policy files",
	Long: `Parse and validate policy documents without loading them into a store.

Every file is checked and every problem reported; the command fails if any
file is invalid or two files define the same policy ID.`,
	Args: cobra.MinimumNArgs(1),
	RunE: validatePolicies,
}

var policyApplyCmd = &cobra.Command{
	Use:   "apply <file>...",
	Short: "Create or replace policies from files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  applyPolicies,
}

var policyToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip a policy between active and inactive",
	Args:  cobra.ExactArgs(1),
	RunE:  togglePolicy,
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a policy",
	Args:  cobra.ExactArgs(1),
	RunE:  deletePolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyShowCmd, policyValidateCmd, policyApplyCmd, policyToggleCmd, policyDeleteCmd)

	policyListCmd.Flags().StringVar(&policyFlags.format, "format", "text", "output format: text, json, csv")
}

// policyTable renders policies as rows.
type policyTable []arbiter.Policy

func (t policyTable) Header() []string {
	return []string{"ID", "NAME", "CATEGORY", "ACTIVE", "TAGS", "PII"}
}

func (t policyTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		rows = append(rows, []string{
			p.ID,
			p.Name,
			string(p.Category),
			strconv.FormatBool(p.IsActive),
			strings.Join(p.Tags, ","),
			piiSummary(p.PIIConfig),
		})
	}
	return rows
}

func piiSummary(cfg map[arbiter.PIIKind]arbiter.PIIAction) string {
	parts := make([]string, 0, len(cfg))
	for kind, action := range cfg {
		parts = append(parts, fmt.Sprintf("%s=%s", kind, action))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// withPolicyStore opens the configured store for one command.
func withPolicyStore(cmd *cobra.Command, name string, fn func(store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Policy.Watch = false

	logger, err := newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	st, err := openPolicyStore(commandContext(cmd), &cfg.Policy, logger, nil)
	if err != nil {
		return cli.NewCommandError(name, err)
	}
	defer st.Close()

	if err := fn(st); err != nil {
		return cli.NewCommandError(name, err)
	}
	return nil
}

func listPolicies(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(policyFlags.format)
	if err != nil {
		return err
	}
	return withPolicyStore(cmd, "policy list", func(st store.Store) error {
		policies, err := st.List(commandContext(cmd))
		if err != nil {
			return err
		}
		var out any = policyTable(policies)
		if format == cli.FormatJSON {
			out = policies
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), out)
	})
}

func showPolicy(cmd *cobra.Command, args []string) error {
	return withPolicyStore(cmd, "policy show", func(st store.Store) error {
		p, err := st.Get(commandContext(cmd), args[0])
		if err != nil {
			return err
		}
		return cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), p)
	})
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	seen := make(map[string]string)
	failed := 0

	for _, path := range args {
		policies, err := store.ParseFile(path)
		if err == nil {
			err = validateEach(policies, path, seen)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s (%d policies)\n", path, len(policies))
	}

	if failed > 0 {
		return cli.NewCommandError("policy validate", fmt.Errorf("%d of %d files invalid", failed, len(args)))
	}
	return nil
}

func validateEach(policies []arbiter.Policy, path string, seen map[string]string) error {
	for i := range policies {
		p := &policies[i]
		if err := store.Validate(p); err != nil {
			return fmt.Errorf("policy %d (%q): %w", i, p.ID, err)
		}
		if prev, ok := seen[p.ID]; ok {
			return fmt.Errorf("duplicate policy ID %q (also in %s)", p.ID, prev)
		}
		seen[p.ID] = path
	}
	return nil
}

func applyPolicies(cmd *cobra.Command, args []string) error {
	var all []arbiter.Policy
	seen := make(map[string]string)
	for _, path := range args {
		policies, err := store.ParseFile(path)
		if err != nil {
			return cli.NewCommandError("policy apply", err)
		}
		if err := validateEach(policies, path, seen); err != nil {
			return cli.NewCommandError("policy apply", fmt.Errorf("%s: %w", path, err))
		}
		all = append(all, policies...)
	}

	return withPolicyStore(cmd, "policy apply", func(st store.Store) error {
		ctx := commandContext(cmd)
		for _, p := range all {
			if err := st.Put(ctx, p); err != nil {
				return fmt.Errorf("policy %q: %w", p.ID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ applied %s\n", p.ID)
		}
		return nil
	})
}

func togglePolicy(cmd *cobra.Command, args []string) error {
	return withPolicyStore(cmd, "policy toggle", func(st store.Store) error {
		p, err := store.Toggle(commandContext(cmd), st, args[0])
		if err != nil {
			return err
		}
		state := "inactive"
		if p.IsActive {
			state = "active"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "policy %s is now %s\n", p.ID, state)
		return nil
	})
}

func deletePolicy(cmd *cobra.Command, args []string) error {
	return withPolicyStore(cmd, "policy delete", func(st store.Store) error {
		if err := st.Delete(commandContext(cmd), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "policy %s deleted\n", args[0])
		return nil
	})
}
