package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"affairs-quiz-web/internal/app"
	"affairs-quiz-web/internal/guest"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - It still keeps a local in-memory map of sessions because a session
//     owns a live countdown and subscriber channels that cannot move
//     between processes.
//   - Redis marks session liveness per (quiz, guest), so other instances
//     can see which attempts are in flight.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(quizID int64, id guest.Identity, create func() *app.Session) (*app.Session, bool) {
	key := s.key(quizID, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[key]; ok {
		return session, false
	}
	session := create()
	s.sessions[key] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), key, "1", s.ttl).Err()
	return session, true
}

func (s *SessionStore) Get(quizID int64, id guest.Identity) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[s.key(quizID, id)]
	return session, ok
}

func (s *SessionStore) Delete(quizID int64, id guest.Identity) {
	key := s.key(quizID, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok {
		return
	}
	session.Close()
	delete(s.sessions, key)
	_ = s.client.Del(context.Background(), key).Err()
}

func (s *SessionStore) key(quizID int64, id guest.Identity) string {
	return fmt.Sprintf("quiz:session:%d:%s", quizID, id)
}
