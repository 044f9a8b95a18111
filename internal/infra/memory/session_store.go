package memory

import (
	"fmt"
	"sync"

	"affairs-quiz-web/internal/app"
	"affairs-quiz-web/internal/guest"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// keyed per (quiz, guest) pair.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(quizID int64, id guest.Identity, create func() *app.Session) (*app.Session, bool) {
	key := sessionKey(quizID, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[key]; ok {
		return session, false
	}
	session := create()
	s.sessions[key] = session
	return session, true
}

func (s *SessionStore) Get(quizID int64, id guest.Identity) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionKey(quizID, id)]
	return session, ok
}

func (s *SessionStore) Delete(quizID int64, id guest.Identity) {
	key := sessionKey(quizID, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[key]
	if !ok {
		return
	}
	session.Close()
	delete(s.sessions, key)
}

func sessionKey(quizID int64, id guest.Identity) string {
	return fmt.Sprintf("%d:%s", quizID, id)
}
