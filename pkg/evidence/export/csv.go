package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"policyguard/gateway/pkg/evidence"
)

// Header is the CSV column order.
var Header = []string{
	"id", "request_id", "recorded_time",
	"direction", "agent_id", "route", "provider", "model",
	"verdict", "blocked", "reason", "policy", "redactions", "health",
	"drift_detected", "entropy", "p_value",
	"evidence", "text_hash", "text_length", "latency_ms",
}

// CSVExporter writes one row per record. The evidence list is embedded as
// a JSON cell.
type CSVExporter struct {
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export implements evidence.Exporter.
func (e *CSVExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	ch := make(chan *evidence.Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return e.ExportStream(ctx, ch, w)
}

// ExportStream writes rows from recordsCh until it is closed, flushing
// every 100 rows.
func (e *CSVExporter) ExportStream(ctx context.Context, recordsCh <-chan *evidence.Record, w io.Writer) error {
	writer := csv.NewWriter(w)
	n := 0
	fail := func(err error) error { return evidence.NewExportError("csv", n, err) }

	if e.IncludeHeader {
		if err := writer.Write(Header); err != nil {
			return fail(err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			writer.Flush()
			return ctx.Err()

		case r, ok := <-recordsCh:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return fail(err)
				}
				return nil
			}
			row, err := toRow(r)
			if err != nil {
				return fail(err)
			}
			if err := writer.Write(row); err != nil {
				return fail(err)
			}
			n++
			if n%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return fail(err)
				}
			}
		}
	}
}

func toRow(r *evidence.Record) ([]string, error) {
	ev, err := json.Marshal(r.Evidence)
	if err != nil {
		return nil, err
	}
	if r.Evidence == nil {
		ev = []byte("[]")
	}
	return []string{
		r.ID,
		r.RequestID,
		r.RecordedTime.UTC().Format(time.RFC3339Nano),
		r.Direction,
		r.AgentID,
		r.Route,
		r.Provider,
		r.Model,
		r.Verdict,
		strconv.FormatBool(r.Blocked),
		r.Reason,
		r.Policy,
		strconv.Itoa(r.Redactions),
		r.Health,
		strconv.FormatBool(r.DriftDetected),
		fmt.Sprintf("%.4f", r.Entropy),
		fmt.Sprintf("%.6f", r.PValue),
		string(ev),
		r.TextHash,
		strconv.Itoa(r.TextLength),
		strconv.FormatInt(r.Latency.Milliseconds(), 10),
	}, nil
}
