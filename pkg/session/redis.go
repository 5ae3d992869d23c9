// Package session keeps per-session chat transcripts in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xhad/docqa/internal/models"
)

const (
	DefaultTTL         = 30 * time.Minute
	DefaultMaxMessages = 50
	keyPrefix          = "chat:"
)

var ErrNoSession = errors.New("session id is required")

type RedisStoreConfig struct {
	URL         string
	TTL         time.Duration
	MaxMessages int
}

// RedisStore appends messages to a capped Redis list per session. Every
// append pushes the expiry window forward.
type RedisStore struct {
	client *redis.Client
	config RedisStoreConfig
}

func NewRedisStore(config RedisStoreConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), config), nil
}

func NewRedisStoreWithClient(client *redis.Client, config RedisStoreConfig) *RedisStore {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.MaxMessages <= 0 {
		config.MaxMessages = DefaultMaxMessages
	}
	return &RedisStore{client: client, config: config}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *RedisStore) Append(ctx context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	data, err := json.Marshal(models.Message{Role: role, Content: content})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	k := key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, k, data)
		pipe.LTrim(ctx, k, int64(-s.config.MaxMessages), -1)
		pipe.Expire(ctx, k, s.config.TTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// History returns the last limit messages of a session, oldest first.
func (s *RedisStore) History(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	if limit <= 0 {
		return []models.Message{}, nil
	}

	raw, err := s.client.LRange(ctx, key(sessionID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	messages := make([]models.Message, 0, len(raw))
	for _, r := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
