package export

import (
	"context"
	"fmt"
	"io"

	"policyguard/gateway/pkg/evidence"
)

// StreamExporter is an exporter that can also consume a record stream.
type StreamExporter interface {
	evidence.Exporter
	ExportStream(ctx context.Context, recordsCh <-chan *evidence.Record, w io.Writer) error
}

// New returns the exporter for format ("json", "json-pretty" or "csv").
func New(format string) (StreamExporter, error) {
	switch format {
	case "json":
		return NewJSONExporter(false), nil
	case "json-pretty":
		return NewJSONExporter(true), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unknown export format %q: must be json, json-pretty or csv", format)
	}
}

// Stream runs query against storage and writes the results with exp.
func Stream(ctx context.Context, storage evidence.Storage, query *evidence.Query, exp StreamExporter, w io.Writer) error {
	recordsCh, errCh, err := storage.QueryStream(ctx, query)
	if err != nil {
		return err
	}
	if err := exp.ExportStream(ctx, recordsCh, w); err != nil {
		// Drain so the producer can exit.
		for range recordsCh {
		}
		return err
	}
	return <-errCh
}
