package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/evidence"
	"policyguard/gateway/pkg/evidence/export"
)

// Config configures a Pruner.
type Config struct {
	// RetentionDays is how long records are kept. 0 disables age pruning.
	RetentionDays int

	// MaxRecords caps the record count. 0 means unlimited.
	MaxRecords int64

	// PruneSchedule is a standard cron expression. Empty disables the
	// scheduler.
	PruneSchedule string

	// ArchivePath receives a JSON export of each batch before deletion.
	// Empty disables archiving.
	ArchivePath string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// FromConfig converts the evidence retention section.
func FromConfig(cfg config.RetentionConfig) *Config {
	return &Config{
		RetentionDays: cfg.Days,
		MaxRecords:    cfg.MaxRecords,
		PruneSchedule: cfg.PruneSchedule,
		ArchivePath:   cfg.ArchivePath,
	}
}

// Pruner enforces retention on an evidence store.
type Pruner struct {
	storage   evidence.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
	now       func() time.Time
}

// NewPruner creates a pruner for storage.
func NewPruner(storage evidence.Storage, cfg *Config) *Pruner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := &Pruner{
		storage: storage,
		config:  cfg,
		logger:  slog.Default().With("component", "evidence.retention"),
		now:     time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes records older than the retention period, then the oldest
// records beyond MaxRecords. It returns the total deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		n, err := p.pruneByAge(ctx)
		if err != nil {
			return total, evidence.NewRetentionError(p.config.RetentionDays, err)
		}
		total += n
	}

	if p.config.MaxRecords > 0 {
		n, err := p.pruneByCount(ctx)
		if err != nil {
			return total, evidence.NewRetentionError(p.config.RetentionDays, err)
		}
		total += n
	}

	p.logger.Info("evidence pruning completed",
		"deleted_count", total,
		"retention_days", p.config.RetentionDays,
		"max_records", p.config.MaxRecords,
	)
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	return p.deleteThrough(ctx, cutoff, "age")
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &evidence.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	// The newest record that must go sits just past the kept window.
	edge, err := p.storage.Query(ctx, &evidence.Query{
		SortBy:    "recorded_time",
		SortOrder: "desc",
		Offset:    int(p.config.MaxRecords),
		Limit:     1,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to find cutoff record: %w", err)
	}
	if len(edge) == 0 {
		return 0, nil
	}
	return p.deleteThrough(ctx, edge[0].RecordedTime, "count")
}

// deleteThrough archives and deletes every record at or before cutoff.
func (p *Pruner) deleteThrough(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	query := &evidence.Query{EndTime: &cutoff}

	if p.config.ArchivePath != "" {
		if err := p.archive(ctx, query, reason); err != nil {
			return 0, err
		}
	}

	n, err := p.storage.Delete(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	p.logger.Debug("pruned records", "reason", reason, "cutoff", cutoff, "deleted_count", n)
	return n, nil
}

func (p *Pruner) archive(ctx context.Context, query *evidence.Query, reason string) error {
	n, err := p.storage.Count(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to count records for archiving: %w", err)
	}
	if n == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	name := fmt.Sprintf("evidence-%s-%s.json", reason, p.now().UTC().Format("20060102-150405.000000000"))
	path := filepath.Join(p.config.ArchivePath, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	q := *query
	q.SortOrder = "asc"
	if err := export.Stream(ctx, p.storage, &q, export.NewJSONExporter(false), f); err != nil {
		return fmt.Errorf("failed to archive records: %w", err)
	}

	p.logger.Info("evidence archived", "archive_file", path, "record_count", n)
	return nil
}

// Start begins scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the next scheduled run, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
