package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/evidence"
)

var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testRecord(i int, verdict string) *evidence.Record {
	return &evidence.Record{
		ID:           fmt.Sprintf("rec-%02d", i),
		RequestID:    fmt.Sprintf("req-%02d", i),
		RecordedTime: baseTime.Add(time.Duration(i) * time.Minute),
		Direction:    "ingress",
		AgentID:      "billing-bot",
		Route:        "/v1/chat/completions",
		Provider:     "openai",
		Verdict:      verdict,
		Blocked:      verdict == "BLOCK",
		Reason:       "Allow: No violations detected.",
		Policy:       "Privacy Core",
		Redactions:   i,
		Entropy:      float64(i) / 10,
		PValue:       1,
		Evidence: []arbiter.Evidence{
			{Kind: arbiter.EvidencePII, Source: "Privacy Core", Detail: "email", Action: arbiter.ActionRedact, Matches: 1},
		},
		TextHash:   "abc",
		TextLength: 42,
		Latency:    time.Duration(i) * time.Millisecond,
	}
}

func backends(t *testing.T) map[string]evidence.Storage {
	t.Helper()
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "evidence.db")
	sqlite, err := NewSQLiteStorage(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]evidence.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

func seed(t *testing.T, s evidence.Storage) {
	t.Helper()
	for i := 0; i < 10; i++ {
		verdict := "ALLOW"
		if i%3 == 0 {
			verdict = "BLOCK"
		}
		if err := s.Store(context.Background(), testRecord(i, verdict)); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := testRecord(1, "REDACT")
			if err := s.Store(context.Background(), want); err != nil {
				t.Fatalf("Store() error = %v", err)
			}

			got, err := s.Query(context.Background(), &evidence.Query{RequestID: "req-01"})
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("Query() = %d records, want 1", len(got))
			}
			r := got[0]
			if !r.RecordedTime.Equal(want.RecordedTime) {
				t.Errorf("RecordedTime = %v, want %v", r.RecordedTime, want.RecordedTime)
			}
			if r.Verdict != "REDACT" || r.Policy != want.Policy || r.Latency != want.Latency {
				t.Errorf("Query() = %+v", r)
			}
			if len(r.Evidence) != 1 || r.Evidence[0].Detail != "email" || r.Evidence[0].Matches != 1 {
				t.Errorf("Evidence = %+v", r.Evidence)
			}
		})
	}
}

func TestStorage_Filters(t *testing.T) {
	start := baseTime.Add(2 * time.Minute)
	end := baseTime.Add(5 * time.Minute)

	tests := []struct {
		name  string
		query evidence.Query
		want  int64
	}{
		{"all", evidence.Query{}, 10},
		{"verdict", evidence.Query{Verdict: "BLOCK"}, 4},
		{"agent", evidence.Query{AgentID: "billing-bot"}, 10},
		{"other agent", evidence.Query{AgentID: "nobody"}, 0},
		{"time range", evidence.Query{StartTime: &start, EndTime: &end}, 4},
		{"combined", evidence.Query{Verdict: "BLOCK", StartTime: &start, EndTime: &end}, 1},
	}

	for name, s := range backends(t) {
		seed(t, s)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				n, err := s.Count(context.Background(), &tt.query)
				if err != nil {
					t.Fatalf("Count() error = %v", err)
				}
				if n != tt.want {
					t.Errorf("Count() = %d, want %d", n, tt.want)
				}
				got, _ := s.Query(context.Background(), &tt.query)
				if int64(len(got)) != tt.want {
					t.Errorf("Query() = %d records, want %d", len(got), tt.want)
				}
			})
		}
	}
}

func TestStorage_SortAndPaginate(t *testing.T) {
	for name, s := range backends(t) {
		seed(t, s)
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, _ := s.Query(ctx, &evidence.Query{Limit: 3})
			if len(got) != 3 || got[0].ID != "rec-09" || got[2].ID != "rec-07" {
				t.Errorf("default order = %v", ids(got))
			}

			got, _ = s.Query(ctx, &evidence.Query{SortOrder: "asc", Offset: 8})
			if len(got) != 2 || got[0].ID != "rec-08" {
				t.Errorf("asc offset = %v", ids(got))
			}

			got, _ = s.Query(ctx, &evidence.Query{SortBy: "redactions", SortOrder: "desc", Limit: 1})
			if len(got) != 1 || got[0].ID != "rec-09" {
				t.Errorf("by redactions = %v", ids(got))
			}

			got, _ = s.Query(ctx, &evidence.Query{Offset: 50})
			if got == nil || len(got) != 0 {
				t.Errorf("past end = %v, want empty non-nil", got)
			}
		})
	}
}

func TestStorage_QueryStream(t *testing.T) {
	for name, s := range backends(t) {
		seed(t, s)
		t.Run(name, func(t *testing.T) {
			recordsCh, errCh, err := s.QueryStream(context.Background(), &evidence.Query{Verdict: "ALLOW"})
			if err != nil {
				t.Fatalf("QueryStream() error = %v", err)
			}
			n := 0
			for range recordsCh {
				n++
			}
			if err := <-errCh; err != nil {
				t.Fatalf("stream error = %v", err)
			}
			if n != 6 {
				t.Errorf("streamed %d records, want 6", n)
			}
		})
	}
}

func TestStorage_Delete(t *testing.T) {
	for name, s := range backends(t) {
		seed(t, s)
		t.Run(name, func(t *testing.T) {
			cutoff := baseTime.Add(4 * time.Minute)
			n, err := s.Delete(context.Background(), &evidence.Query{EndTime: &cutoff})
			if err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if n != 5 {
				t.Errorf("Delete() = %d, want 5", n)
			}
			left, _ := s.Count(context.Background(), &evidence.Query{})
			if left != 5 {
				t.Errorf("Count() after delete = %d, want 5", left)
			}
		})
	}
}

func TestMemoryStorage_IsolatesCopies(t *testing.T) {
	s := NewMemoryStorage()
	r := testRecord(1, "ALLOW")
	_ = s.Store(context.Background(), r)
	r.Evidence[0].Detail = "mutated"

	got, _ := s.Query(context.Background(), &evidence.Query{})
	if got[0].Evidence[0].Detail != "email" {
		t.Error("stored record shares evidence slice with caller")
	}
}

func ids(rs []*evidence.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
