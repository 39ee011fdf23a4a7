package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"policyguard/gateway/pkg/cli"
	"policyguard/gateway/pkg/evidence"
	"policyguard/gateway/pkg/evidence/export"
	"policyguard/gateway/pkg/evidence/query"
	"policyguard/gateway/pkg/evidence/retention"
)

// evidenceFilter holds the filter flags shared by query and export.
type evidenceFilter struct {
	since     string
	until     string
	requestID string
	agent     string
	route     string
	direction string
	verdict   string
	policy    string
	provider  string
	limit     int
	offset    int
	sortBy    string
	sortOrder string
}

func (f *evidenceFilter) bind(fs *pflag.FlagSet, defaultLimit int) {
	fs.StringVar(&f.since, "since", "", "start time: RFC 3339, YYYY-MM-DD or a lookback such as 24h or 7d")
	fs.StringVar(&f.until, "until", "", "end time, same formats as --since")
	fs.StringVar(&f.requestID, "request-id", "", "filter by request ID")
	fs.StringVar(&f.agent, "agent", "", "filter by agent ID")
	fs.StringVar(&f.route, "route", "", "filter by route")
	fs.StringVar(&f.direction, "direction", "", "filter by direction (ingress, egress, direct)")
	fs.StringVar(&f.verdict, "verdict", "", "filter by verdict (ALLOW, REDACT, BLOCK)")
	fs.StringVar(&f.policy, "policy", "", "filter by deciding policy")
	fs.StringVar(&f.provider, "provider", "", "filter by upstream provider")
	fs.IntVar(&f.limit, "limit", defaultLimit, "max results")
	fs.IntVar(&f.offset, "offset", 0, "pagination offset")
	fs.StringVar(&f.sortBy, "sort-by", "", "sort field: recorded_time, entropy, redactions, latency")
	fs.StringVar(&f.sortOrder, "sort-order", "", "sort order: asc, desc")
}

// build converts the flags into a validated query.
func (f *evidenceFilter) build(now time.Time) (*evidence.Query, error) {
	q := &evidence.Query{
		RequestID: f.requestID,
		AgentID:   f.agent,
		Route:     f.route,
		Direction: f.direction,
		Verdict:   f.verdict,
		Policy:    f.policy,
		Provider:  f.provider,
		Limit:     f.limit,
		Offset:    f.offset,
		SortBy:    f.sortBy,
		SortOrder: f.sortOrder,
	}
	if f.since != "" {
		t, err := query.ParseTime(f.since, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		q.StartTime = &t
	}
	if f.until != "" {
		t, err := query.ParseTime(f.until, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --until: %w", err)
		}
		q.EndTime = &t
	}
	if err := query.Validate(q); err != nil {
		return nil, err
	}
	return q, nil
}

var evidenceFlags struct {
	query  evidenceFilter
	export evidenceFilter

	format       string
	exportFormat string
	output       string

	pruneDays       int
	pruneMaxRecords int64
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Query evidence records",
	Long: `Query, export and prune the audit trail of policy evaluations.

Every evaluation made by the gateway is recorded with its verdict, the
deciding policy, drift figures and a hash of the evaluated text. The text
itself is never stored.

Examples:
  # Blocks in the last day
  policyguard evidence query --since 24h --verdict BLOCK

  # Everything one agent did in November, as CSV
  policyguard evidence export --agent billing-bot --since 2026-11-01 --until 2026-12-01 --format csv -o nov.csv

  # Apply the retention policy now
  policyguard evidence prune`,
}

var evidenceQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query evidence records",
	Args:  cobra.NoArgs,
	RunE:  queryEvidence,
}

var evidenceExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export evidence records",
	Long: `Stream matching evidence records as JSON or CSV.

Records are streamed from storage, so exports are not bounded by memory.
A --limit of 0 exports every match.`,
	Args: cobra.NoArgs,
	RunE: exportEvidence,
}

var evidencePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete evidence older than the retention period",
	Long: `Apply evidence.retention immediately instead of waiting for the
schedule. Records are archived first when retention.archive_path is set.`,
	Args: cobra.NoArgs,
	RunE: pruneEvidence,
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.AddCommand(evidenceQueryCmd, evidenceExportCmd, evidencePruneCmd)

	evidenceFlags.query.bind(evidenceQueryCmd.Flags(), 100)
	evidenceQueryCmd.Flags().StringVar(&evidenceFlags.format, "format", "text", "output format: text, json, csv")

	evidenceFlags.export.bind(evidenceExportCmd.Flags(), 0)
	evidenceExportCmd.Flags().StringVar(&evidenceFlags.exportFormat, "format", "json", "export format: json, json-pretty, csv")
	evidenceExportCmd.Flags().StringVarP(&evidenceFlags.output, "output", "o", "", "output file (default: stdout)")

	evidencePruneCmd.Flags().IntVar(&evidenceFlags.pruneDays, "days", -1, "override retention days (0 keeps everything)")
	evidencePruneCmd.Flags().Int64Var(&evidenceFlags.pruneMaxRecords, "max-records", -1, "override the record cap (0 means unlimited)")
}

// recordTable renders evidence records as rows.
type recordTable []*evidence.Record

func (t recordTable) Header() []string {
	return []string{"TIME", "REQUEST_ID", "DIRECTION", "AGENT", "ROUTE", "VERDICT", "POLICY", "REDACTIONS", "DRIFT"}
}

func (t recordTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		rows = append(rows, []string{
			r.RecordedTime.UTC().Format(time.RFC3339),
			r.RequestID,
			r.Direction,
			r.AgentID,
			r.Route,
			r.Verdict,
			r.Policy,
			strconv.Itoa(r.Redactions),
			strconv.FormatBool(r.DriftDetected),
		})
	}
	return rows
}

func withEvidenceStorage(cmd *cobra.Command, name string, fn func(evidence.Storage) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr()); err != nil {
		return err
	}

	st, err := openEvidenceStorage(&cfg.Evidence)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := fn(st); err != nil {
		return cli.NewCommandError(name, err)
	}
	return nil
}

func queryEvidence(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(evidenceFlags.format)
	if err != nil {
		return err
	}
	q, err := evidenceFlags.query.build(time.Now())
	if err != nil {
		return err
	}
	query.ApplyDefaults(q)

	return withEvidenceStorage(cmd, "evidence query", func(st evidence.Storage) error {
		records, err := st.Query(commandContext(cmd), q)
		if err != nil {
			return err
		}
		var out any = recordTable(records)
		if format == cli.FormatJSON {
			out = records
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), out)
	})
}

func exportEvidence(cmd *cobra.Command, args []string) error {
	exp, err := export.New(evidenceFlags.exportFormat)
	if err != nil {
		return err
	}
	q, err := evidenceFlags.export.build(time.Now())
	if err != nil {
		return err
	}

	return withEvidenceStorage(cmd, "evidence export", func(st evidence.Storage) error {
		var w io.Writer = cmd.OutOrStdout()
		if evidenceFlags.output != "" {
			f, err := os.Create(evidenceFlags.output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := export.Stream(commandContext(cmd), st, q, exp, w); err != nil {
			return err
		}
		if evidenceFlags.output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ evidence exported to %s\n", evidenceFlags.output)
		}
		return nil
	})
}

func pruneEvidence(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	retentionCfg := retention.FromConfig(cfg.Evidence.Retention)
	if evidenceFlags.pruneDays >= 0 {
		retentionCfg.RetentionDays = evidenceFlags.pruneDays
	}
	if evidenceFlags.pruneMaxRecords >= 0 {
		retentionCfg.MaxRecords = evidenceFlags.pruneMaxRecords
	}

	return withEvidenceStorage(cmd, "evidence prune", func(st evidence.Storage) error {
		deleted, err := retention.NewPruner(st, retentionCfg).Prune(commandContext(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ pruned %d evidence records\n", deleted)
		return nil
	})
}
