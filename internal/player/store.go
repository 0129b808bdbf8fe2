package player

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// Store maps guilds to their live sessions. The lock only covers the map;
// per-guild work happens under each Session's own mutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[snowflake.ID]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[snowflake.ID]*Session)}
}

// Get returns the session for guildID, or nil when the guild has none.
func (s *Store) Get(guildID snowflake.ID) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[guildID]
}

// getOrCreate returns the registered session, registering a new pending one
// if the guild has none yet.
func (s *Store) getOrCreate(guildID snowflake.ID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[guildID]; ok {
		return sess, false
	}
	sess := newSession(guildID)
	s.sessions[guildID] = sess
	return sess, true
}

// remove deletes the entry only if it still points at sess.
func (s *Store) remove(guildID snowflake.ID, sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[guildID]; ok && cur == sess {
		delete(s.sessions, guildID)
		return true
	}
	return false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) Guilds() []snowflake.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]snowflake.ID, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}
