package storage

import (
	"fmt"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/evidence"
)

// NewFromConfig opens the configured evidence backend.
func NewFromConfig(cfg *config.EvidenceConfig) (evidence.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStorage(), nil
	case "sqlite":
		return NewSQLiteStorage(SQLiteConfigFrom(cfg.SQLite))
	default:
		return nil, fmt.Errorf("unknown evidence backend %q", cfg.Backend)
	}
}
