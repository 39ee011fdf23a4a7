package query

import (
	"errors"
	"testing"
	"time"

	"policyguard/gateway/pkg/evidence"
)

func TestValidate(t *testing.T) {
	now := time.Now()
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		query   evidence.Query
		wantErr bool
	}{
		{"empty", evidence.Query{}, false},
		{"full", evidence.Query{StartTime: &past, EndTime: &now, Verdict: "BLOCK", Direction: "egress", SortBy: "entropy", SortOrder: "asc", Limit: 10}, false},
		{"negative limit", evidence.Query{Limit: -1}, true},
		{"limit too large", evidence.Query{Limit: MaxLimit + 1}, true},
		{"negative offset", evidence.Query{Offset: -5}, true},
		{"bad sort field", evidence.Query{SortBy: "cost"}, true},
		{"bad sort order", evidence.Query{SortOrder: "sideways"}, true},
		{"inverted range", evidence.Query{StartTime: &now, EndTime: &past}, true},
		{"bad verdict", evidence.Query{Verdict: "allow"}, true},
		{"bad direction", evidence.Query{Direction: "sideways"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var qerr *evidence.QueryError
			if err != nil && !errors.As(err, &qerr) {
				t.Errorf("Validate() error type = %T, want *evidence.QueryError", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	q := &evidence.Query{}
	ApplyDefaults(q)
	if q.Limit != DefaultLimit || q.SortBy != "recorded_time" || q.SortOrder != "desc" {
		t.Errorf("ApplyDefaults() = %+v", q)
	}

	q = &evidence.Query{Limit: 5, SortBy: "latency", SortOrder: "asc"}
	ApplyDefaults(q)
	if q.Limit != 5 || q.SortBy != "latency" || q.SortOrder != "asc" {
		t.Errorf("ApplyDefaults() overwrote explicit values: %+v", q)
	}
}

func TestParseTime(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2026-06-01T08:30:00Z", time.Date(2026, 6, 1, 8, 30, 0, 0, time.UTC), false},
		{"2026-06-01", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), false},
		{"24h", now.Add(-24 * time.Hour), false},
		{"90m", now.Add(-90 * time.Minute), false},
		{"7d", time.Date(2026, 6, 8, 12, 0, 0, 0, time.UTC), false},
		{"", time.Time{}, true},
		{"yesterday", time.Time{}, true},
		{"-3h", time.Time{}, true},
		{"xd", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
