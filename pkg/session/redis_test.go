package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docqa/internal/models"
)

func newTestStore(t *testing.T, config RedisStoreConfig) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreWithClient(client, config), mr
}

func TestRedisStore_AppendAndHistory(t *testing.T) {
	s, mr := newTestStore(t, RedisStoreConfig{})
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "abc", models.RoleUser, "What is the leave policy?"))
	require.NoError(t, s.Append(ctx, "abc", models.RoleAssistant, "20 days per year."))
	require.NoError(t, s.Append(ctx, "other", models.RoleUser, "unrelated"))

	history, err := s.History(ctx, "abc", 10)
	require.NoError(t, err)
	assert.Equal(t, []models.Message{
		{Role: models.RoleUser, Content: "What is the leave policy?"},
		{Role: models.RoleAssistant, Content: "20 days per year."},
	}, history)

	last, err := s.History(ctx, "abc", 1)
	require.NoError(t, err)
	assert.Equal(t, []models.Message{{Role: models.RoleAssistant, Content: "20 days per year."}}, last)

	assert.True(t, mr.Exists("chat:abc"))
	assert.Equal(t, DefaultTTL, mr.TTL("chat:abc"))
}

func TestRedisStore_CapsMessages(t *testing.T) {
	s, _ := newTestStore(t, RedisStoreConfig{MaxMessages: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "abc", models.RoleUser, fmt.Sprintf("m%d", i)))
	}

	history, err := s.History(ctx, "abc", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m2", history[0].Content)
	assert.Equal(t, "m4", history[2].Content)
}

func TestRedisStore_SlidingExpiry(t *testing.T) {
	s, mr := newTestStore(t, RedisStoreConfig{TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "abc", models.RoleUser, "first"))
	mr.FastForward(50 * time.Second)
	require.NoError(t, s.Append(ctx, "abc", models.RoleUser, "second"))
	mr.FastForward(50 * time.Second)

	history, err := s.History(ctx, "abc", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	mr.FastForward(time.Minute)
	history, err = s.History(ctx, "abc", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRedisStore_Validation(t *testing.T) {
	s, _ := newTestStore(t, RedisStoreConfig{})
	ctx := context.Background()

	assert.ErrorIs(t, s.Append(ctx, "", models.RoleUser, "x"), ErrNoSession)
	_, err := s.History(ctx, "", 5)
	assert.ErrorIs(t, err, ErrNoSession)

	none, err := s.History(ctx, "abc", 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = NewRedisStore(RedisStoreConfig{URL: "not a url"})
	assert.Error(t, err)
}
