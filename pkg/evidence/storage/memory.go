package storage

import (
	"context"
	"sort"
	"sync"

	"policyguard/gateway/pkg/evidence"
)

// MemoryStorage keeps records in memory. Records are lost on restart.
type MemoryStorage struct {
	records map[string]*evidence.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]*evidence.Record)}
}

// Store implements evidence.Storage.
func (s *MemoryStorage) Store(_ context.Context, record *evidence.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

// Query implements evidence.Storage.
func (s *MemoryStorage) Query(_ context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectRecords(query), nil
}

// QueryStream implements evidence.Storage.
func (s *MemoryStorage) QueryStream(ctx context.Context, query *evidence.Query) (<-chan *evidence.Record, <-chan error, error) {
	s.mu.RLock()
	results := s.selectRecords(query)
	s.mu.RUnlock()

	recordsCh := make(chan *evidence.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)
		for _, r := range results {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case recordsCh <- r:
			}
		}
	}()
	return recordsCh, errCh, nil
}

// Count implements evidence.Storage.
func (s *MemoryStorage) Count(_ context.Context, query *evidence.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.records {
		if query.Matches(r) {
			n++
		}
	}
	return n, nil
}

// Delete implements evidence.Storage.
func (s *MemoryStorage) Delete(_ context.Context, query *evidence.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.records {
		if query.Matches(r) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Close implements evidence.Storage.
func (s *MemoryStorage) Close() error { return nil }

// Size returns the number of stored records.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// selectRecords must be called with the read lock held.
func (s *MemoryStorage) selectRecords(query *evidence.Query) []*evidence.Record {
	results := []*evidence.Record{}
	for _, r := range s.records {
		if query.Matches(r) {
			results = append(results, r.Clone())
		}
	}

	less := lessFunc(query.SortBy)
	desc := query.SortOrder != "asc"
	sort.SliceStable(results, func(i, j int) bool {
		if desc {
			return less(results[j], results[i])
		}
		return less(results[i], results[j])
	})

	if query.Offset >= len(results) {
		return []*evidence.Record{}
	}
	results = results[query.Offset:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results
}

func lessFunc(field string) func(a, b *evidence.Record) bool {
	switch field {
	case "entropy":
		return func(a, b *evidence.Record) bool { return a.Entropy < b.Entropy }
	case "redactions":
		return func(a, b *evidence.Record) bool { return a.Redactions < b.Redactions }
	case "latency":
		return func(a, b *evidence.Record) bool { return a.Latency < b.Latency }
	default:
		return func(a, b *evidence.Record) bool {
			if a.RecordedTime.Equal(b.RecordedTime) {
				return a.ID < b.ID
			}
			return a.RecordedTime.Before(b.RecordedTime)
		}
	}
}
