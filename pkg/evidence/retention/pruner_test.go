package retention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/evidence"
	"policyguard/gateway/pkg/evidence/storage"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// seedDays stores one record per age in days.
func seedDays(t *testing.T, s evidence.Storage, ages ...int) {
	t.Helper()
	for _, age := range ages {
		r := &evidence.Record{
			ID:           fmt.Sprintf("rec-%03d", age),
			RecordedTime: now.AddDate(0, 0, -age),
			Verdict:      "ALLOW",
		}
		if err := s.Store(context.Background(), r); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
}

func newPruner(s evidence.Storage, cfg *Config) *Pruner {
	p := NewPruner(s, cfg)
	p.now = func() time.Time { return now }
	return p
}

func TestPrune(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		ages      []int
		deleted   int64
		remaining []string
	}{
		{
			name:      "by age",
			cfg:       Config{RetentionDays: 30},
			ages:      []int{1, 10, 29, 31, 100},
			deleted:   2,
			remaining: []string{"rec-001", "rec-010", "rec-029"},
		},
		{
			name:      "by count keeps newest",
			cfg:       Config{MaxRecords: 2},
			ages:      []int{1, 2, 3, 4},
			deleted:   2,
			remaining: []string{"rec-001", "rec-002"},
		},
		{
			name:      "age then count",
			cfg:       Config{RetentionDays: 10, MaxRecords: 1},
			ages:      []int{1, 5, 20},
			deleted:   2,
			remaining: []string{"rec-001"},
		},
		{
			name:      "under limits",
			cfg:       Config{RetentionDays: 365, MaxRecords: 10},
			ages:      []int{1, 2},
			deleted:   0,
			remaining: []string{"rec-001", "rec-002"},
		},
		{
			name:      "disabled",
			cfg:       Config{},
			ages:      []int{1, 1000},
			deleted:   0,
			remaining: []string{"rec-001", "rec-1000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := storage.NewMemoryStorage()
			seedDays(t, s, tt.ages...)
			cfg := tt.cfg

			n, err := newPruner(s, &cfg).Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if n != tt.deleted {
				t.Errorf("Prune() deleted %d, want %d", n, tt.deleted)
			}

			left, _ := s.Query(context.Background(), &evidence.Query{SortOrder: "asc"})
			got := make(map[string]bool, len(left))
			for _, r := range left {
				got[r.ID] = true
			}
			if len(left) != len(tt.remaining) {
				t.Errorf("remaining = %d records, want %d", len(left), len(tt.remaining))
			}
			for _, id := range tt.remaining {
				if !got[id] {
					t.Errorf("record %s was pruned", id)
				}
			}
		})
	}
}

func TestPrune_Archives(t *testing.T) {
	s := storage.NewMemoryStorage()
	seedDays(t, s, 1, 40, 50)
	dir := filepath.Join(t.TempDir(), "archive")

	n, err := newPruner(s, &Config{RetentionDays: 30, ArchivePath: dir}).Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Prune() deleted %d, want 2", n)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "evidence-age-*.json"))
	if len(files) != 1 {
		t.Fatalf("archive files = %v, want 1", files)
	}
	data, _ := os.ReadFile(files[0])
	var archived []*evidence.Record
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatalf("archive is not JSON: %v", err)
	}
	if len(archived) != 2 || archived[0].ID != "rec-050" {
		t.Errorf("archived = %d records, first %v", len(archived), archived)
	}
}

func TestFromConfig(t *testing.T) {
	c := FromConfig(config.RetentionConfig{Days: 7, MaxRecords: 100, PruneSchedule: "@hourly", ArchivePath: "/tmp/a"})
	if c.RetentionDays != 7 || c.MaxRecords != 100 || c.PruneSchedule != "@hourly" || c.ArchivePath != "/tmp/a" {
		t.Errorf("FromConfig() = %+v", c)
	}
}

// failingStorage fails every delete and count.
type failingStorage struct {
	evidence.Storage
	err error
}

func (f *failingStorage) Delete(context.Context, *evidence.Query) (int64, error) { return 0, f.err }
func (f *failingStorage) Count(context.Context, *evidence.Query) (int64, error)  { return 0, f.err }

func TestPrune_StorageFailure(t *testing.T) {
	diskFull := errors.New("disk full")
	tests := []struct {
		name string
		cfg  Config
	}{
		{"by age", Config{RetentionDays: 30}},
		{"by count", Config{MaxRecords: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPruner(&failingStorage{Storage: storage.NewMemoryStorage(), err: diskFull}, &tt.cfg)

			_, err := p.Prune(context.Background())
			var retErr *evidence.RetentionError
			if !errors.As(err, &retErr) {
				t.Fatalf("Prune() error = %v, want RetentionError", err)
			}
			if retErr.RetentionDays != tt.cfg.RetentionDays {
				t.Errorf("RetentionDays = %d, want %d", retErr.RetentionDays, tt.cfg.RetentionDays)
			}
			if !errors.Is(err, diskFull) {
				t.Errorf("Prune() error = %v, want wrapped %v", err, diskFull)
			}
		})
	}
}
