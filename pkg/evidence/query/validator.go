package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"policyguard/gateway/pkg/evidence"
)

const (
	// DefaultLimit is used when a query sets no limit.
	DefaultLimit = 100

	// MaxLimit caps a single query.
	MaxLimit = 10000
)

// ValidSortFields lists the sortable fields.
var ValidSortFields = map[string]bool{
	"recorded_time": true,
	"entropy":       true,
	"redactions":    true,
	"latency":       true,
}

var validDirections = map[string]bool{"ingress": true, "egress": true, "direct": true}

var validVerdicts = map[string]bool{"ALLOW": true, "REDACT": true, "BLOCK": true}

// Validate checks a query before it reaches storage.
func Validate(q *evidence.Query) error {
	if q.Limit < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return evidence.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return evidence.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortBy != "" && !ValidSortFields[q.SortBy] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort field: %s", q.SortBy))
	}
	if q.SortOrder != "" && q.SortOrder != "asc" && q.SortOrder != "desc" {
		return evidence.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return evidence.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	if q.Direction != "" && !validDirections[q.Direction] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid direction: %s", q.Direction))
	}
	if q.Verdict != "" && !validVerdicts[q.Verdict] {
		return evidence.NewQueryError(q, fmt.Errorf("invalid verdict: %s (must be ALLOW, REDACT or BLOCK)", q.Verdict))
	}
	return nil
}

// ApplyDefaults fills in the limit and sort.
func ApplyDefaults(q *evidence.Query) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortBy == "" {
		q.SortBy = "recorded_time"
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

// ParseTime accepts an RFC 3339 timestamp, a YYYY-MM-DD date, or a
// lookback such as "90m", "24h" or "7d" measured from now.
func ParseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("invalid day count %q", s)
		}
		return now.AddDate(0, 0, -n), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339, YYYY-MM-DD or a lookback like 24h or 7d", s)
	}
	return now.Add(-d), nil
}
