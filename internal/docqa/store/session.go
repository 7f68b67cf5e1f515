package store

import (
	"context"
	"time"

	"github.com/kart-io/sentinel-docqa/internal/model"
)

// UpdateFunc 收到当前会话（不存在时为 nil），返回要写入的会话。可能被调用多次。
type UpdateFunc func(session *model.Session) (*model.Session, error)

// SessionStore 带 TTL 的会话键值存储。Get 刷新 TTL（滑动过期）。
// 会话不存在或已过期时 Get 返回 (nil, nil)。
// Update 原子地读改写一个会话，并发更新同一会话不会丢失写入。
type SessionStore interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Put(ctx context.Context, session *model.Session, ttl time.Duration) error
	Update(ctx context.Context, id string, ttl time.Duration, fn UpdateFunc) error
	Delete(ctx context.Context, id string) error
	ListActiveIDs(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Name() string
}
