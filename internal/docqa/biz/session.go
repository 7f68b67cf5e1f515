package biz

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/internal/docqa/metrics"
	"github.com/kart-io/sentinel-docqa/internal/docqa/store"
	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/id"
)

// SessionConfig 会话管理配置。
type SessionConfig struct {
	// TTL 会话空闲过期时间。
	TTL time.Duration
}

// SessionManager 管理会话历史。外部存储出错时降级为进程内存储并记录告警，
// 查询路径不会因会话存储失败而失败。降级后直到进程重启都使用进程内存储。
type SessionManager struct {
	primary  store.SessionStore
	fallback *store.MemorySessionStore
	archiver *store.Archiver
	ttl      time.Duration
	metrics  *metrics.DocQAMetrics

	degraded atomic.Bool
	now      func() time.Time
	newID    func() string
}

// NewSessionManager 创建会话管理器。primary 为 nil 时直接使用进程内存储。
func NewSessionManager(
	primary store.SessionStore,
	archiver *store.Archiver,
	config *SessionConfig,
	m *metrics.DocQAMetrics,
) *SessionManager {
	if m == nil {
		m = metrics.Default()
	}
	sm := &SessionManager{
		primary:  primary,
		fallback: store.NewMemorySessionStore(),
		archiver: archiver,
		ttl:      config.TTL,
		metrics:  m,
		now:      time.Now,
		newID:    id.NewSessionID,
	}
	if primary == nil {
		sm.primary = sm.fallback
	}
	return sm
}

// StoreName 返回当前生效的存储名称。
func (sm *SessionManager) StoreName() string {
	return sm.active().Name()
}

// Degraded 报告是否已降级为进程内存储。
func (sm *SessionManager) Degraded() bool {
	return sm.degraded.Load()
}

func (sm *SessionManager) active() store.SessionStore {
	if sm.degraded.Load() {
		return sm.fallback
	}
	return sm.primary
}

// do 在当前存储上执行 op，主存储失败时降级并在进程内存储上重试一次。
// 调用方上下文取消或超时导致的失败不视为存储故障，直接返回。
func (sm *SessionManager) do(ctx context.Context, op func(s store.SessionStore) error) error {
	s := sm.active()
	err := op(s)
	if err == nil || s == store.SessionStore(sm.fallback) {
		return err
	}
	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if sm.degraded.CompareAndSwap(false, true) {
		sm.metrics.SetSessionDegraded(true)
		logger.Warnw("session store unavailable, falling back to in-process memory",
			"store", s.Name(),
			"error", err.Error(),
		)
	}
	return op(sm.fallback)
}

// Create 创建新会话。
func (sm *SessionManager) Create(ctx context.Context) (*model.Session, error) {
	return sm.createWithID(ctx, sm.newID())
}

func (sm *SessionManager) createWithID(ctx context.Context, sessionID string) (*model.Session, error) {
	session := model.NewSession(sessionID, sm.now())
	if err := sm.do(ctx, func(s store.SessionStore) error {
		return s.Put(ctx, session, sm.ttl)
	}); err != nil {
		return nil, errors.ErrSessionStore.WithCause(err)
	}

	sm.metrics.RecordSessionCreated()
	logger.Infow("session created", "session_id", sessionID)
	return session, nil
}

// Get 读取会话并刷新过期时间。会话不存在返回 ErrSessionNotFound。
func (sm *SessionManager) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := sm.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.ErrSessionNotFound.WithMessagef("session %s not found", sessionID)
	}
	return session, nil
}

func (sm *SessionManager) lookup(ctx context.Context, sessionID string) (*model.Session, error) {
	var session *model.Session
	err := sm.do(ctx, func(s store.SessionStore) error {
		var err error
		session, err = s.Get(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, errors.ErrSessionStore.WithCause(err)
	}
	return session, nil
}

// Ensure 返回会话；sessionID 为空时创建新会话，未知 ID 时以该 ID 创建会话。
func (sm *SessionManager) Ensure(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return sm.Create(ctx)
	}
	session, err := sm.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return sm.createWithID(ctx, sessionID)
	}
	return session, nil
}

// AddExchange 追加一问一答：用户消息携带来源，助手消息不带来源。会话不存在时自动创建。
func (sm *SessionManager) AddExchange(ctx context.Context, sessionID, query, response string, sources []model.ScoredChunk) error {
	now := sm.now()
	return sm.append(ctx, sessionID,
		model.Message{Role: model.RoleUser, Content: query, Timestamp: now, Sources: sources},
		model.Message{Role: model.RoleAssistant, Content: response, Timestamp: now},
	)
}

// append 原子地追加消息，会话不存在时以 sessionID 创建。
func (sm *SessionManager) append(ctx context.Context, sessionID string, messages ...model.Message) error {
	var created bool
	err := sm.do(ctx, func(s store.SessionStore) error {
		return s.Update(ctx, sessionID, sm.ttl, func(session *model.Session) (*model.Session, error) {
			now := sm.now()
			created = session == nil
			if created {
				session = model.NewSession(sessionID, now)
			}
			session.Messages = append(session.Messages, messages...)
			session.LastActive = now
			return session, nil
		})
	})
	if err != nil {
		return errors.ErrSessionStore.WithCause(err)
	}
	if created {
		sm.metrics.RecordSessionCreated()
	}
	return nil
}

// Clear 归档后清空会话消息，会话保持有效。
func (sm *SessionManager) Clear(ctx context.Context, sessionID string) error {
	session, err := sm.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if len(session.Messages) > 0 {
		sm.archive(session.Clone())
	}

	session.Messages = []model.Message{}
	session.LastActive = sm.now()
	if err := sm.do(ctx, func(s store.SessionStore) error {
		return s.Put(ctx, session, sm.ttl)
	}); err != nil {
		return errors.ErrSessionStore.WithCause(err)
	}

	logger.Infow("session cleared", "session_id", sessionID)
	return nil
}

// End 结束会话：记录结束时间、归档并删除。返回归档文件路径（归档失败时为空）。
func (sm *SessionManager) End(ctx context.Context, sessionID string) (string, error) {
	session, err := sm.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}

	ended := sm.now()
	session.EndedAt = &ended
	path := sm.archive(session)

	if err := sm.do(ctx, func(s store.SessionStore) error {
		return s.Delete(ctx, sessionID)
	}); err != nil {
		return path, errors.ErrSessionStore.WithCause(err)
	}

	logger.Infow("session ended", "session_id", sessionID, "archive", path)
	return path, nil
}

// ListActive 返回活跃会话 ID。
func (sm *SessionManager) ListActive(ctx context.Context) ([]string, error) {
	var ids []string
	err := sm.do(ctx, func(s store.SessionStore) error {
		var err error
		ids, err = s.ListActiveIDs(ctx)
		return err
	})
	if err != nil {
		return nil, errors.ErrSessionStore.WithCause(err)
	}
	return ids, nil
}

// Ping 检查当前存储连通性。
func (sm *SessionManager) Ping(ctx context.Context) error {
	return sm.active().Ping(ctx)
}

func (sm *SessionManager) archive(session *model.Session) string {
	if sm.archiver == nil {
		return ""
	}
	path, err := sm.archiver.Archive(session)
	if err != nil {
		logger.Errorw("failed to archive session", "session_id", session.ID, "error", err.Error())
		return ""
	}
	sm.metrics.RecordSessionArchived()
	logger.Infow("session archived", "session_id", session.ID, "path", path)
	return path
}
