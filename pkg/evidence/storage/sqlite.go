package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/evidence"
)

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file.
	Path string

	// MaxOpenConns limits open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns limits idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/evidence.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteConfigFrom converts the evidence sqlite section.
func SQLiteConfigFrom(cfg config.SQLiteConfig) *SQLiteConfig {
	c := DefaultSQLiteConfig()
	if cfg.Path != "" {
		c.Path = cfg.Path
	}
	if cfg.MaxOpenConns > 0 {
		c.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.BusyTimeout > 0 {
		c.BusyTimeout = cfg.BusyTimeout
	}
	return c
}

// SQLiteStorage stores evidence in SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database and creates the schema.
func NewSQLiteStorage(cfg *SQLiteConfig) (*SQLiteStorage, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "evidence.storage.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite storage initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return evidence.NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return evidence.NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store implements evidence.Storage.
func (s *SQLiteStorage) Store(ctx context.Context, r *evidence.Record) error {
	evJSON := []byte("[]")
	if len(r.Evidence) > 0 {
		var err error
		if evJSON, err = json.Marshal(r.Evidence); err != nil {
			return evidence.NewStorageError("sqlite", "store", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequestID, r.RecordedTime.UnixNano(),
		r.Direction, r.AgentID, r.Route, r.Provider, r.Model, r.CallerKey,
		r.Verdict, r.Blocked, r.Reason, r.Policy, r.Redactions, r.Health,
		r.DriftDetected, r.Entropy, r.PValue, string(evJSON),
		r.TextHash, r.TextLength, int64(r.Latency),
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query implements evidence.Storage.
func (s *SQLiteStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	q, args := s.selectQuery(query)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*evidence.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// QueryStream implements evidence.Storage.
func (s *SQLiteStorage) QueryStream(ctx context.Context, query *evidence.Query) (<-chan *evidence.Record, <-chan error, error) {
	q, args := s.selectQuery(query)
	recordsCh := make(chan *evidence.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			errCh <- evidence.NewStorageError("sqlite", "query_stream", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				errCh <- evidence.NewStorageError("sqlite", "scan", err)
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- r:
			}
		}
		if err := rows.Err(); err != nil {
			errCh <- evidence.NewStorageError("sqlite", "query_stream", err)
		}
	}()

	return recordsCh, errCh, nil
}

// Count implements evidence.Storage.
func (s *SQLiteStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := buildWhereClause(query)
	q := "SELECT COUNT(*) FROM evidence"
	if where != "" {
		q += " WHERE " + where
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Delete implements evidence.Storage.
func (s *SQLiteStorage) Delete(ctx context.Context, query *evidence.Query) (int64, error) {
	where, args := buildWhereClause(query)
	q := "DELETE FROM evidence"
	if where != "" {
		q += " WHERE " + where
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements evidence.Storage.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return evidence.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

func (s *SQLiteStorage) selectQuery(query *evidence.Query) (string, []any) {
	where, args := buildWhereClause(query)
	q := "SELECT " + columns + " FROM evidence"
	if where != "" {
		q += " WHERE " + where
	}

	col, ok := sortColumns[query.SortBy]
	if !ok {
		col = "recorded_time"
	}
	order := "DESC"
	if query.SortOrder == "asc" {
		order = "ASC"
	}
	q += fmt.Sprintf(" ORDER BY %s %s, id %s", col, order, order)

	if query.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", query.Limit)
	} else if query.Offset > 0 {
		q += " LIMIT -1"
	}
	if query.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", query.Offset)
	}
	return q, args
}

// buildWhereClause returns the WHERE clause without the keyword.
func buildWhereClause(query *evidence.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if query.StartTime != nil {
		conds = append(conds, "recorded_time >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conds = append(conds, "recorded_time <= ?")
		args = append(args, query.EndTime.UnixNano())
	}
	for _, f := range []struct{ col, val string }{
		{"request_id", query.RequestID},
		{"agent_id", query.AgentID},
		{"route", query.Route},
		{"direction", query.Direction},
		{"verdict", query.Verdict},
		{"policy", query.Policy},
		{"provider", query.Provider},
	} {
		if f.val != "" {
			conds = append(conds, f.col+" = ?")
			args = append(args, f.val)
		}
	}
	return strings.Join(conds, " AND "), args
}

func scanRecord(rows *sql.Rows) (*evidence.Record, error) {
	var (
		r                 evidence.Record
		recorded, latency int64
		evJSON            string
	)
	err := rows.Scan(
		&r.ID, &r.RequestID, &recorded,
		&r.Direction, &r.AgentID, &r.Route, &r.Provider, &r.Model, &r.CallerKey,
		&r.Verdict, &r.Blocked, &r.Reason, &r.Policy, &r.Redactions, &r.Health,
		&r.DriftDetected, &r.Entropy, &r.PValue, &evJSON,
		&r.TextHash, &r.TextLength, &latency,
	)
	if err != nil {
		return nil, err
	}
	r.RecordedTime = time.Unix(0, recorded).UTC()
	r.Latency = time.Duration(latency)
	if err := json.Unmarshal([]byte(evJSON), &r.Evidence); err != nil {
		return nil, fmt.Errorf("record %s: corrupt evidence column: %w", r.ID, err)
	}
	return &r, nil
}
