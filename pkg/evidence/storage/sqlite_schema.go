package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the evidence tables. Times are unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS evidence (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    recorded_time INTEGER NOT NULL,

    direction TEXT NOT NULL,
    agent_id TEXT NOT NULL,
    route TEXT NOT NULL DEFAULT '',
    provider TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL DEFAULT '',
    caller_key TEXT NOT NULL DEFAULT '',

    verdict TEXT NOT NULL,
    blocked INTEGER NOT NULL,
    reason TEXT NOT NULL,
    policy TEXT NOT NULL,
    redactions INTEGER NOT NULL,
    health TEXT NOT NULL DEFAULT '',

    drift_detected INTEGER NOT NULL,
    entropy REAL NOT NULL,
    p_value REAL NOT NULL,

    evidence TEXT NOT NULL DEFAULT '[]',

    text_hash TEXT NOT NULL,
    text_length INTEGER NOT NULL,
    latency INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_recorded_time ON evidence(recorded_time);
CREATE INDEX IF NOT EXISTS idx_evidence_request_id ON evidence(request_id);
CREATE INDEX IF NOT EXISTS idx_evidence_agent_id ON evidence(agent_id);
CREATE INDEX IF NOT EXISTS idx_evidence_verdict ON evidence(verdict);
CREATE INDEX IF NOT EXISTS idx_evidence_policy ON evidence(policy);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion returns the newest applied schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const columns = `id, request_id, recorded_time,
	direction, agent_id, route, provider, model, caller_key,
	verdict, blocked, reason, policy, redactions, health,
	drift_detected, entropy, p_value, evidence,
	text_hash, text_length, latency`

// sortColumns maps query sort fields to columns.
var sortColumns = map[string]string{
	"recorded_time": "recorded_time",
	"entropy":       "entropy",
	"redactions":    "redactions",
	"latency":       "latency",
}
