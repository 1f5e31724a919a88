package session

import (
	"context"
	"sync"
	"time"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

type entry struct {
	turns          []protocol.Turn
	startedAt      time.Time
	lastActivityAt time.Time
}

// Info summarizes a stored session.
type Info struct {
	ID             string    `json:"session_id"`
	Turns          int       `json:"turns"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// MemoryStore keeps history in process memory for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	limit    int
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryStore{
		sessions: make(map[string]*entry),
		limit:    limit,
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) ([]protocol.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return []protocol.Turn{}, nil
	}
	out := make([]protocol.Turn, len(e.turns))
	for i, t := range e.turns {
		out[i] = t.Clone()
	}
	return out, nil
}

func (s *MemoryStore) AppendUser(_ context.Context, sessionID string, turn protocol.UserTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(sessionID)
	DeactivateLatest(e.turns)
	e.turns = append(e.turns, protocol.NewUserTurn(turn).Clone())
	e.lastActivityAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AppendAssistant(_ context.Context, sessionID string, turn protocol.AssistantTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(sessionID)
	e.turns = Trim(append(e.turns, protocol.NewAssistantTurn(turn.Clone())), s.limit)
	e.lastActivityAt = time.Now().UTC()
	return nil
}

// Info reports metadata for a known session.
func (s *MemoryStore) Info(sessionID string) (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return Info{}, false
	}
	return Info{
		ID:             sessionID,
		Turns:          len(e.turns),
		StartedAt:      e.startedAt,
		LastActivityAt: e.lastActivityAt,
	}, true
}

// Count returns the number of sessions seen so far.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) entryLocked(sessionID string) *entry {
	e, ok := s.sessions[sessionID]
	if !ok {
		now := time.Now().UTC()
		e = &entry{startedAt: now, lastActivityAt: now}
		s.sessions[sessionID] = e
	}
	return e
}
