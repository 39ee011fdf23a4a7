package export

import (
	"context"
	"encoding/json"
	"io"

	"policyguard/gateway/pkg/evidence"
)

// JSONExporter writes records as a JSON array.
type JSONExporter struct {
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export implements evidence.Exporter.
func (e *JSONExporter) Export(ctx context.Context, records []*evidence.Record, w io.Writer) error {
	ch := make(chan *evidence.Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return e.ExportStream(ctx, ch, w)
}

// ExportStream writes records from recordsCh until it is closed.
func (e *JSONExporter) ExportStream(ctx context.Context, recordsCh <-chan *evidence.Record, w io.Writer) error {
	n := 0
	fail := func(err error) error { return evidence.NewExportError("json", n, err) }

	if _, err := io.WriteString(w, "["); err != nil {
		return fail(err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case r, ok := <-recordsCh:
			if !ok {
				end := "]\n"
				if e.Pretty && n > 0 {
					end = "\n]\n"
				}
				if _, err := io.WriteString(w, end); err != nil {
					return fail(err)
				}
				return nil
			}

			sep := ""
			switch {
			case n > 0 && e.Pretty:
				sep = ",\n  "
			case n > 0:
				sep = ","
			case e.Pretty:
				sep = "\n  "
			}
			data, err := e.marshal(r)
			if err != nil {
				return fail(err)
			}
			if _, err := io.WriteString(w, sep); err != nil {
				return fail(err)
			}
			if _, err := w.Write(data); err != nil {
				return fail(err)
			}
			n++
		}
	}
}

func (e *JSONExporter) marshal(r *evidence.Record) ([]byte, error) {
	if e.Pretty {
		return json.MarshalIndent(r, "  ", "  ")
	}
	return json.Marshal(r)
}
