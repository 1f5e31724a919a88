package requirements

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process store for local/dev use.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

func (s *MemoryStore) Save(_ context.Context, record Record) (Record, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = time.Now().UTC()
	}
	record = cloneRecord(record)

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byID[record.ID]; ok {
		s.records[i] = record
	} else {
		s.byID[record.ID] = len(s.records)
		s.records = append(s.records, record)
	}
	return cloneRecord(record), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(s.records[i]), nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		r := s.records[i]
		if sessionID != "" && r.SessionID != sessionID {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneRecord(r Record) Record {
	r.Requirements.Customization = slices.Clone(r.Requirements.Customization)
	r.Requirements.Raw = slices.Clone(r.Requirements.Raw)
	r.Attachments = slices.Clone(r.Attachments)
	return r
}
