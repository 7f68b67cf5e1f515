package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/json"
)

// DefaultSessionKeyPrefix 会话键前缀。
const DefaultSessionKeyPrefix = "session:"

// maxUpdateRetries 乐观锁冲突时 Update 的最大尝试次数。
const maxUpdateRetries = 10

// RedisSessionStore 基于 Redis 的会话存储，键为 "<prefix><id>"，值为会话 JSON。
type RedisSessionStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisSessionStore 创建 Redis 会话存储。
func NewRedisSessionStore(client *goredis.Client, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = DefaultSessionKeyPrefix
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

// Name 返回存储名称。
func (s *RedisSessionStore) Name() string {
	return "redis"
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

// Get 读取会话，存在时按原 TTL 续期。
func (s *RedisSessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	key := s.key(id)

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !stderrors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	data, err := getCmd.Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	if ttl := ttlCmd.Val(); ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return nil, fmt.Errorf("refresh session %s: %w", id, err)
		}
	}
	return &session, nil
}

// Put 以 ttl 写入会话。
func (s *RedisSessionStore) Put(ctx context.Context, session *model.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("put session %s: %w", session.ID, err)
	}
	return nil
}

// Update 使用 WATCH/MULTI 乐观锁读改写会话，键被并发修改时重试。
func (s *RedisSessionStore) Update(ctx context.Context, id string, ttl time.Duration, fn UpdateFunc) error {
	key := s.key(id)

	txf := func(tx *goredis.Tx) error {
		var current *model.Session
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case stderrors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			current = &model.Session{}
			if err := json.Unmarshal(data, current); err != nil {
				return fmt.Errorf("decode session %s: %w", id, err)
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, goredis.TxFailedErr) {
			return fmt.Errorf("update session %s: %w", id, err)
		}
	}
	return fmt.Errorf("update session %s: too many concurrent writers", id)
}

// Delete 删除会话。
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// ListActiveIDs 使用 SCAN 列出所有会话 ID（有序）。
func (s *RedisSessionStore) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping 检查 Redis 连通性。
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
