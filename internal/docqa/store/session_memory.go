package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/sentinel-docqa/internal/model"
)

type memoryEntry struct {
	session  *model.Session
	ttl      time.Duration
	expireAt time.Time
}

// MemorySessionStore 进程内会话存储，语义与 Redis 实现一致。
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemorySessionStore 创建进程内会话存储。
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Name 返回存储名称。
func (s *MemorySessionStore) Name() string {
	return "memory"
}

// Get 返回会话副本并刷新过期时间。
func (s *MemorySessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	now := s.now()
	if e.ttl > 0 && !now.Before(e.expireAt) {
		delete(s.entries, id)
		return nil, nil
	}
	e.expireAt = now.Add(e.ttl)
	return e.session.Clone(), nil
}

// Put 保存会话副本。ttl <= 0 表示永不过期。
func (s *MemorySessionStore) Put(_ context.Context, session *model.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[session.ID] = &memoryEntry{
		session:  session.Clone(),
		ttl:      ttl,
		expireAt: s.now().Add(ttl),
	}
	return nil
}

// Update 在锁内读改写会话。
func (s *MemorySessionStore) Update(_ context.Context, id string, ttl time.Duration, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var current *model.Session
	if e, ok := s.entries[id]; ok && (e.ttl <= 0 || now.Before(e.expireAt)) {
		current = e.session.Clone()
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	s.entries[id] = &memoryEntry{
		session:  next.Clone(),
		ttl:      ttl,
		expireAt: now.Add(ttl),
	}
	return nil
}

// Delete 删除会话。
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// ListActiveIDs 返回未过期的会话 ID（有序），同时清理已过期条目。
func (s *MemorySessionStore) ListActiveIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ids := make([]string, 0, len(s.entries))
	for id, e := range s.entries {
		if e.ttl > 0 && !now.Before(e.expireAt) {
			delete(s.entries, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ping 总是成功。
func (s *MemorySessionStore) Ping(context.Context) error {
	return nil
}
