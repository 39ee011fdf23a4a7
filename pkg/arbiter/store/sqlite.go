package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"policyguard/gateway/pkg/arbiter"
)

// Schema is the policy table layout. PII configuration and tags are stored
// as JSON documents.
const Schema = `
CREATE TABLE IF NOT EXISTS policies (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	pii_config TEXT NOT NULL DEFAULT '{}',
	tags TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_active ON policies(is_active);
`

const selectColumns = `id, name, description, category, is_active, pii_config, tags, created_at, updated_at`

// OpenSQLite opens a SQLite database in WAL mode.
func OpenSQLite(path string, busyTimeout time.Duration) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// SQLStore keeps policies in a SQL database. Any database error surfaces
// to the engine, which fails closed.
type SQLStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLStore creates the schema on db and returns a store using it. The
// store takes ownership of db.
func NewSQLStore(db *sql.DB, logger *slog.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLStore{
		db:     db,
		logger: logger.With("component", "policy.store.sqlite"),
		now:    time.Now,
	}, nil
}

// GetActivePolicies implements arbiter.PolicyStore.
func (s *SQLStore) GetActivePolicies(ctx context.Context, agentID, route string) ([]arbiter.Policy, error) {
	policies, err := s.query(ctx, `SELECT `+selectColumns+` FROM policies WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return inScope(policies, agentID, route), nil
}

// List implements Writer.
func (s *SQLStore) List(ctx context.Context) ([]arbiter.Policy, error) {
	return s.query(ctx, `SELECT `+selectColumns+` FROM policies ORDER BY id`)
}

// Get implements Writer.
func (s *SQLStore) Get(ctx context.Context, id string) (arbiter.Policy, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM policies WHERE id = ?`, id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return arbiter.Policy{}, notFound(id)
	}
	if err != nil {
		return arbiter.Policy{}, fmt.Errorf("failed to get policy %q: %w", id, err)
	}
	return p, nil
}

// Put implements Writer.
func (s *SQLStore) Put(ctx context.Context, p arbiter.Policy) error {
	if err := Validate(&p); err != nil {
		return err
	}
	piiConfig, err := json.Marshal(p.PIIConfig)
	if err != nil {
		return fmt.Errorf("failed to encode pii_config: %w", err)
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	now := s.now().UTC()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policies (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			is_active = excluded.is_active,
			pii_config = excluded.pii_config,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Description, string(p.Category), boolToInt(p.IsActive),
		string(piiConfig), string(tags), created.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store policy %q: %w", p.ID, err)
	}
	s.logger.Debug("stored policy", "policy_id", p.ID)
	return nil
}

// Delete implements Writer.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy %q: %w", id, err)
	}
	return requireAffected(res, id)
}

// SetActive implements Writer.
func (s *SQLStore) SetActive(ctx context.Context, id string, active bool) (arbiter.Policy, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE policies SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), s.now().UTC().UnixNano(), id)
	if err != nil {
		return arbiter.Policy{}, fmt.Errorf("failed to update policy %q: %w", id, err)
	}
	if err := requireAffected(res, id); err != nil {
		return arbiter.Policy{}, err
	}
	return s.Get(ctx, id)
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) query(ctx context.Context, q string) ([]arbiter.Policy, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	policies := []arbiter.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policies: %w", err)
	}
	return policies, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (arbiter.Policy, error) {
	var (
		p                arbiter.Policy
		category         string
		active           int
		piiConfig, tags  string
		created, updated int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &category, &active,
		&piiConfig, &tags, &created, &updated); err != nil {
		return arbiter.Policy{}, err
	}
	p.Category = arbiter.Category(category)
	p.IsActive = active != 0
	if err := json.Unmarshal([]byte(piiConfig), &p.PIIConfig); err != nil {
		return arbiter.Policy{}, fmt.Errorf("policy %q: corrupt pii_config: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return arbiter.Policy{}, fmt.Errorf("policy %q: corrupt tags: %w", p.ID, err)
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return p, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
