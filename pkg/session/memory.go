package session

import (
	"context"
	"sync"
	"time"

	"github.com/xhad/docqa/internal/models"
)

type memorySession struct {
	messages []models.Message
	expires  time.Time
}

// MemoryStore keeps transcripts in process with the same cap and sliding
// expiry as RedisStore. Used when no Redis URL is configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	config   RedisStoreConfig
	now      func() time.Time

	nextSweep time.Time
}

func NewMemoryStore(config RedisStoreConfig) *MemoryStore {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.MaxMessages <= 0 {
		config.MaxMessages = DefaultMaxMessages
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		config:   config,
		now:      time.Now,
	}
}

func (s *MemoryStore) Append(_ context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.After(s.nextSweep) {
		s.sweep(now)
		s.nextSweep = now.Add(s.config.TTL)
	}

	sess, ok := s.sessions[sessionID]
	if !ok || now.After(sess.expires) {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}

	sess.messages = append(sess.messages, models.Message{Role: role, Content: content})
	if over := len(sess.messages) - s.config.MaxMessages; over > 0 {
		sess.messages = append([]models.Message(nil), sess.messages[over:]...)
	}
	sess.expires = now.Add(s.config.TTL)
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]models.Message, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || limit <= 0 {
		return []models.Message{}, nil
	}
	if s.now().After(sess.expires) {
		delete(s.sessions, sessionID)
		return []models.Message{}, nil
	}

	start := len(sess.messages) - limit
	if start < 0 {
		start = 0
	}
	return append([]models.Message(nil), sess.messages[start:]...), nil
}

// sweep drops expired transcripts. Append runs it at most once per TTL, so an
// abandoned session is gone within two TTLs.
func (s *MemoryStore) sweep(now time.Time) {
	for id, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, id)
		}
	}
}
