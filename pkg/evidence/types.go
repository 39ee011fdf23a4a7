package evidence

import (
	"context"
	"io"
	"time"

	"policyguard/gateway/pkg/arbiter"
)

// Record is the audit entry for one evaluation.
type Record struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"request_id"`
	RecordedTime time.Time `json:"recorded_time"`

	// Who and where
	Direction string `json:"direction"`
	AgentID   string `json:"agent_id"`
	Route     string `json:"route"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	CallerKey string `json:"caller_key,omitempty"` // hashed credential

	// Verdict
	Verdict    string `json:"verdict"` // ALLOW, REDACT, BLOCK
	Blocked    bool   `json:"blocked"`
	Reason     string `json:"reason"`
	Policy     string `json:"policy"`
	Redactions int    `json:"redactions"`
	Health     string `json:"health,omitempty"`

	// Drift
	DriftDetected bool    `json:"drift_detected"`
	Entropy       float64 `json:"entropy"`
	PValue        float64 `json:"p_value"`

	Evidence []arbiter.Evidence `json:"evidence"`

	// Input fingerprint
	TextHash   string `json:"text_hash"`
	TextLength int    `json:"text_length"`

	Latency time.Duration `json:"latency"`
}

// Query filters evidence records. Zero values match everything.
type Query struct {
	StartTime *time.Time `json:"start_time,omitempty"` // inclusive
	EndTime   *time.Time `json:"end_time,omitempty"`   // inclusive

	RequestID string `json:"request_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	Route     string `json:"route,omitempty"`
	Direction string `json:"direction,omitempty"`
	Verdict   string `json:"verdict,omitempty"`
	Policy    string `json:"policy,omitempty"`
	Provider  string `json:"provider,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	SortBy    string `json:"sort_by,omitempty"`    // "recorded_time", "entropy", "redactions", "latency"
	SortOrder string `json:"sort_order,omitempty"` // "asc", "desc"
}

// Storage persists evidence records. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns matching records, newest first unless the query sorts
	// otherwise. No match yields an empty slice.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// QueryStream delivers matching records over a channel. Both channels
	// are closed when the query ends; errCh carries at most one error.
	QueryStream(ctx context.Context, query *Query) (<-chan *Record, <-chan error, error)

	// Count returns the number of matching records.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes matching records and returns how many were removed.
	// Limit, Offset and sorting are ignored.
	Delete(ctx context.Context, query *Query) (int64, error)

	Close() error
}

// Exporter renders records to a writer.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}

// Matches reports whether r satisfies the query's filters. Pagination and
// sorting are not considered.
func (q *Query) Matches(r *Record) bool {
	if q.StartTime != nil && r.RecordedTime.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.RecordedTime.After(*q.EndTime) {
		return false
	}
	for _, f := range []struct{ want, got string }{
		{q.RequestID, r.RequestID},
		{q.AgentID, r.AgentID},
		{q.Route, r.Route},
		{q.Direction, r.Direction},
		{q.Verdict, r.Verdict},
		{q.Policy, r.Policy},
		{q.Provider, r.Provider},
	} {
		if f.want != "" && f.want != f.got {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.Evidence != nil {
		c.Evidence = make([]arbiter.Evidence, len(r.Evidence))
		copy(c.Evidence, r.Evidence)
	}
	return &c
}
