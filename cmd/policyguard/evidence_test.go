package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/evidence"
	"policyguard/gateway/pkg/evidence/storage"
)

func seedEvidence(t *testing.T, env *testEnv, records ...*evidence.Record) {
	t.Helper()
	st, err := storage.NewSQLiteStorage(storage.SQLiteConfigFrom(config.SQLiteConfig{Path: env.evidenceFile}))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	for _, r := range records {
		if err := st.Store(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
}

func testRecord(id, verdict string, age time.Duration) *evidence.Record {
	return &evidence.Record{
		ID:           id,
		RequestID:    "req-" + id,
		RecordedTime: time.Now().Add(-age).UTC(),
		Direction:    "ingress",
		AgentID:      "billing-bot",
		Route:        "/v1/chat/completions",
		Verdict:      verdict,
		Blocked:      verdict == "BLOCK",
		Reason:       "test",
		Policy:       "Privacy",
		TextHash:     "abc",
		Evidence:     []arbiter.Evidence{},
	}
}

func resetEvidenceFlags(t *testing.T) {
	t.Helper()
	old := evidenceFlags
	evidenceFlags.query = evidenceFilter{limit: 100}
	evidenceFlags.export = evidenceFilter{}
	evidenceFlags.format = "text"
	evidenceFlags.exportFormat = "json"
	evidenceFlags.output = ""
	evidenceFlags.pruneDays = -1
	evidenceFlags.pruneMaxRecords = -1
	t.Cleanup(func() { evidenceFlags = old })
}

func TestQueryEvidence(t *testing.T) {
	env := newTestEnv(t)
	seedEvidence(t, env,
		testRecord("1", "ALLOW", 3*time.Hour),
		testRecord("2", "BLOCK", 2*time.Hour),
		testRecord("3", "BLOCK", 48*time.Hour),
	)

	tests := []struct {
		name    string
		set     func()
		want    []string
		notWant []string
	}{
		{
			name: "all",
			set:  func() {},
			want: []string{"TIME", "req-1", "req-2", "req-3"},
		},
		{
			name:    "verdict",
			set:     func() { evidenceFlags.query.verdict = "BLOCK" },
			want:    []string{"req-2", "req-3"},
			notWant: []string{"req-1"},
		},
		{
			name:    "since lookback",
			set:     func() { evidenceFlags.query.since = "1d" },
			want:    []string{"req-1", "req-2"},
			notWant: []string{"req-3"},
		},
		{
			name:    "csv",
			set:     func() { evidenceFlags.format = "csv"; evidenceFlags.query.requestID = "req-2" },
			want:    []string{"TIME,REQUEST_ID,DIRECTION", ",req-2,ingress,billing-bot,"},
			notWant: []string{"req-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEvidenceFlags(t)
			tt.set()

			cmd, out := testCommand("")
			if err := queryEvidence(cmd, nil); err != nil {
				t.Fatalf("queryEvidence() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out.String(), nw) {
					t.Errorf("output contains %q:\n%s", nw, out)
				}
			}
		})
	}
}

func TestQueryEvidence_InvalidFilters(t *testing.T) {
	tests := []struct {
		name string
		set  func()
	}{
		{"bad since", func() { evidenceFlags.query.since = "yesterday" }},
		{"bad verdict", func() { evidenceFlags.query.verdict = "MAYBE" }},
		{"bad direction", func() { evidenceFlags.query.direction = "up" }},
		{"reversed range", func() { evidenceFlags.query.since = "1h"; evidenceFlags.query.until = "2d" }},
		{"bad format", func() { evidenceFlags.format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newTestEnv(t)
			resetEvidenceFlags(t)
			tt.set()

			cmd, _ := testCommand("")
			if err := queryEvidence(cmd, nil); err == nil {
				t.Error("queryEvidence() succeeded")
			}
		})
	}
}

func TestExportEvidence(t *testing.T) {
	env := newTestEnv(t)
	seedEvidence(t, env,
		testRecord("1", "ALLOW", time.Hour),
		testRecord("2", "REDACT", 2*time.Hour),
	)
	resetEvidenceFlags(t)

	out := filepath.Join(env.dir, "export.json")
	evidenceFlags.output = out

	cmd, _ := testCommand("")
	if err := exportEvidence(cmd, nil); err != nil {
		t.Fatalf("exportEvidence() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var records []*evidence.Record
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("export is not a JSON array: %v\n%s", err, data)
	}
	if len(records) != 2 {
		t.Errorf("exported %d records, want 2", len(records))
	}
}

func TestExportEvidence_CSVToStdout(t *testing.T) {
	env := newTestEnv(t)
	seedEvidence(t, env, testRecord("1", "BLOCK", time.Hour))
	resetEvidenceFlags(t)
	evidenceFlags.exportFormat = "csv"

	cmd, out := testCommand("")
	if err := exportEvidence(cmd, nil); err != nil {
		t.Fatalf("exportEvidence() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "req-1") {
		t.Errorf("csv =\n%s", out)
	}

	evidenceFlags.exportFormat = "xml"
	if err := exportEvidence(cmd, nil); err == nil {
		t.Error("exportEvidence() accepted an unknown format")
	}
}

func TestPruneEvidence(t *testing.T) {
	env := newTestEnv(t)
	seedEvidence(t, env,
		testRecord("new", "ALLOW", time.Hour),
		testRecord("old", "ALLOW", 10*24*time.Hour),
		testRecord("older", "BLOCK", 20*24*time.Hour),
	)
	resetEvidenceFlags(t)
	evidenceFlags.pruneDays = 7

	cmd, out := testCommand("")
	if err := pruneEvidence(cmd, nil); err != nil {
		t.Fatalf("pruneEvidence() error = %v", err)
	}
	if !strings.Contains(out.String(), "pruned 2 evidence records") {
		t.Errorf("output = %q", out)
	}

	cmd, out = testCommand("")
	if err := queryEvidence(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "req-new") || strings.Contains(out.String(), "req-old") {
		t.Errorf("remaining records:\n%s", out)
	}
}
