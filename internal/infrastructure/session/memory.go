package session

import (
	"context"
	"sync"
	"time"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

// MemoryStore is the default single-process conversation store. Postgres
// takes over when SESSION_STORE=postgres; the semantics here mirror it:
// gapless indexes, atomic exchanges, reset keeps the session id valid.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	turns    map[string][]domain.Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		turns:    make(map[string][]domain.Turn),
	}
}

func (s *MemoryStore) EnsureSession(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		copySession := *existing
		return &copySession, nil
	}

	now := time.Now().UTC()
	created := &domain.Session{ID: sessionID, CreatedAt: now, UpdatedAt: now}
	s.sessions[sessionID] = created
	copySession := *created
	return &copySession, nil
}

func (s *MemoryStore) Recent(_ context.Context, sessionID string, n int) ([]domain.Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[sessionID]
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]domain.Turn(nil), turns...), nil
}

func (s *MemoryStore) AppendExchange(_ context.Context, sessionID string, user, assistant domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "append exchange", errSessionMissing(sessionID))
	}

	now := time.Now().UTC()
	user.SessionID = sessionID
	user.Index = len(s.turns[sessionID])
	assistant.SessionID = sessionID
	assistant.Index = user.Index + 1
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if assistant.CreatedAt.IsZero() {
		assistant.CreatedAt = now
	}

	s.turns[sessionID] = append(s.turns[sessionID], user, assistant)
	session.TurnCount = len(s.turns[sessionID])
	session.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, sessionID)
	if session, ok := s.sessions[sessionID]; ok {
		session.TurnCount = 0
		session.UpdatedAt = time.Now().UTC()
	}
	return nil
}

type errSessionMissing string

func (e errSessionMissing) Error() string {
	return "session " + string(e) + " does not exist"
}
