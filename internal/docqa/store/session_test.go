package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/json"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	sess := model.NewSession("s1", now)
	sess.Messages = append(sess.Messages, model.Message{Role: model.RoleUser, Content: "hi"})
	require.NoError(t, s.Put(ctx, sess, time.Minute))

	// Mutating the caller copy does not affect the stored one.
	sess.Messages[0].Content = "changed"

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hi", got.Messages[0].Content)

	missing, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := s.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, s.Delete(ctx, "s1"))
	got, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemorySessionStoreSlidingExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, model.NewSession("s1", now), 10*time.Minute))

	now = now.Add(8 * time.Minute)
	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got, "access before expiry")

	// Expiry restarted at the last access.
	now = now.Add(8 * time.Minute)
	got, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(11 * time.Minute)
	got, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	ids, err := s.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func appendMessage(content string) UpdateFunc {
	return func(sess *model.Session) (*model.Session, error) {
		if sess == nil {
			sess = model.NewSession("u1", time.Now())
		}
		sess.Messages = append(sess.Messages, model.Message{Role: model.RoleUser, Content: content})
		return sess, nil
	}
}

// concurrentAppends runs n concurrent Updates on one session and returns the stored message count.
func concurrentAppends(t *testing.T, s SessionStore, n int) int {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Update(ctx, "u1", time.Minute, appendMessage(fmt.Sprintf("m%d", i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	return len(got.Messages)
}

func TestMemorySessionStoreConcurrentUpdate(t *testing.T) {
	assert.Equal(t, 20, concurrentAppends(t, NewMemorySessionStore(), 20))
}

func TestMemorySessionStoreUpdateErrorKeepsSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	require.NoError(t, s.Update(ctx, "u1", time.Minute, appendMessage("first")))

	err := s.Update(ctx, "u1", time.Minute, func(*model.Session) (*model.Session, error) {
		return nil, fmt.Errorf("rejected")
	})
	require.Error(t, err)

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
}

func TestArchiver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archives")
	a := NewArchiver(dir)
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	a.now = func() time.Time { return at }

	sess := model.NewSession("0123456789abcdef", at)
	sess.Messages = append(sess.Messages, model.Message{Role: model.RoleUser, Content: "q"})

	path, err := a.Archive(sess)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "session_01234567_20260304_050607.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got model.Session
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, sess.ID, got.ID)
	assert.Len(t, got.Messages, 1)
}

func TestFileNameShortID(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "session_abc_20260101_000000.json", FileName("abc", at))
}

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSessionStore(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	prefix := "docqa-test-session:"
	s := NewRedisSessionStore(client, prefix)
	t.Cleanup(func() { _ = s.Delete(ctx, "r1") })

	now := time.Now().UTC().Truncate(time.Second)
	sess := model.NewSession("r1", now)
	sess.Messages = append(sess.Messages, model.Message{Role: model.RoleAssistant, Content: "hello", Timestamp: now})
	require.NoError(t, s.Put(ctx, sess, time.Minute))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.True(t, now.Equal(got.CreatedAt))

	ttl := client.TTL(ctx, prefix+"r1").Val()
	assert.Greater(t, ttl, 50*time.Second)

	ids, err := s.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "r1")

	require.NoError(t, s.Delete(ctx, "r1"))
	got, err = s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionStoreConcurrentUpdate(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedisSessionStore(client, "docqa-test-update:")
	require.NoError(t, s.Delete(ctx, "u1"))
	t.Cleanup(func() { _ = s.Delete(ctx, "u1") })

	assert.Equal(t, 8, concurrentAppends(t, s, 8))
	assert.Greater(t, client.TTL(ctx, "docqa-test-update:u1").Val(), 50*time.Second)
}
