package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

// sessionSaveTimeout 写入一轮对话的超时，独立于请求上下文。
const sessionSaveTimeout = 5 * time.Second

// ServiceConfig 服务配置。
type ServiceConfig struct {
	// RecentExchanges 放入 prompt 的最近对话轮数。
	RecentExchanges int
	// MaxHistory 进程内历史保留的对话轮数。
	MaxHistory int
	// Defaults 请求未指定时使用的解码参数。
	Defaults GenerationParams
	// HealthTimeout 健康检查探测后端的超时。
	HealthTimeout time.Duration
}

// QueryRequest 查询请求。可选解码参数为 nil 时使用默认值。
type QueryRequest struct {
	Query       string
	SessionID   string
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
}

// QueryResult 查询结果。
type QueryResult struct {
	Response  string              `json:"response"`
	Sources   []model.ScoredChunk `json:"sources"`
	SessionID string              `json:"session_id,omitempty"`
	Mode      model.ResponseMode  `json:"mode"`
}

// HealthStatus 健康状态。
type HealthStatus struct {
	Status           string `json:"status"`
	DocumentsLoaded  int    `json:"documents_loaded"`
	ChunksCreated    int    `json:"chunks_created"`
	ModelLoaded      bool   `json:"model_loaded"`
	BackendReachable bool   `json:"backend_reachable"`
	SessionStore     string `json:"session_store,omitempty"`
	SessionDegraded  bool   `json:"session_degraded,omitempty"`
}

// Service 文档问答服务，供 HTTP 与 MCP 共用。
type Service struct {
	kb           *KnowledgeBase
	orchestrator *Orchestrator
	sessions     *SessionManager
	history      *History
	generator    llm.GenerationProvider
	config       *ServiceConfig
}

// NewService 创建文档问答服务。sessions 为 nil 时只使用进程内历史。
func NewService(
	kb *KnowledgeBase,
	orchestrator *Orchestrator,
	sessions *SessionManager,
	generator llm.GenerationProvider,
	config *ServiceConfig,
) *Service {
	if config.HealthTimeout <= 0 {
		config.HealthTimeout = 5 * time.Second
	}
	return &Service{
		kb:           kb,
		orchestrator: orchestrator,
		sessions:     sessions,
		history:      NewHistory(config.MaxHistory),
		generator:    generator,
		config:       config,
	}
}

// KnowledgeBase 返回知识库。
func (s *Service) KnowledgeBase() *KnowledgeBase {
	return s.kb
}

// SessionsEnabled 报告是否启用了会话存储。
func (s *Service) SessionsEnabled() bool {
	return s.sessions != nil
}

// Query 回答一次查询。除参数错误与索引未就绪外不返回错误，
// 后端失败以道歉文本返回。
func (s *Service) Query(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.ErrInvalidParam.WithMessage("query cannot be empty")
	}
	if !s.kb.Ready() {
		return nil, errors.ErrIndexUnbuilt
	}

	params := s.params(req)

	if s.sessions != nil {
		if result, ok := s.querySession(ctx, query, req.SessionID, params); ok {
			return result, nil
		}
	}

	answer := s.orchestrator.Answer(ctx, query, s.history.RecentContext(s.config.RecentExchanges), params)
	s.history.AddExchange(query, answer.Response, answer.Sources)
	return &QueryResult{
		Response: answer.Response,
		Sources:  answer.Sources,
		Mode:     answer.Mode,
	}, nil
}

// querySession 使用会话历史回答。会话存储失败时返回 false，由调用方改用进程内历史。
func (s *Service) querySession(ctx context.Context, query, sessionID string, params GenerationParams) (*QueryResult, bool) {
	session, err := s.sessions.Ensure(ctx, sessionID)
	if err != nil {
		logger.Warnw("session unavailable, using in-process history", "session_id", sessionID, "error", err.Error())
		return nil, false
	}

	history := RecentContext(session.Messages, s.config.RecentExchanges)
	answer := s.orchestrator.Answer(ctx, query, history, params)

	// 生成超时或客户端断开后请求上下文已结束，对话仍需写入会话。
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionSaveTimeout)
	defer cancel()
	if err := s.sessions.AddExchange(saveCtx, session.ID, query, answer.Response, answer.Sources); err != nil {
		logger.Warnw("failed to record exchange", "session_id", session.ID, "error", err.Error())
	}

	return &QueryResult{
		Response:  answer.Response,
		Sources:   answer.Sources,
		SessionID: session.ID,
		Mode:      answer.Mode,
	}, true
}

func (s *Service) params(req *QueryRequest) GenerationParams {
	p := s.config.Defaults
	if req.MaxTokens != nil {
		p.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		p.TopP = *req.TopP
	}
	return p
}

// Clear 清空会话历史（先归档）；sessionID 为空时清空进程内历史。
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" || s.sessions == nil {
		s.history.Clear()
		logger.Infow("in-process history cleared")
		return nil
	}
	return s.sessions.Clear(ctx, sessionID)
}

// EndSession 结束并归档会话，返回归档文件路径。
func (s *Service) EndSession(ctx context.Context, sessionID string) (string, error) {
	if s.sessions == nil {
		return "", errors.ErrBadRequest.WithMessage("sessions are disabled")
	}
	return s.sessions.End(ctx, sessionID)
}

// ListSessions 返回活跃会话 ID。
func (s *Service) ListSessions(ctx context.Context) ([]string, error) {
	if s.sessions == nil {
		return []string{}, nil
	}
	return s.sessions.ListActive(ctx)
}

// Documents 返回已加载文档。
func (s *Service) Documents() []model.DocumentInfo {
	return s.kb.Documents()
}

// Stats 返回知识库状态。
func (s *Service) Stats() KnowledgeStats {
	return s.kb.Stats()
}

// Rebuild 强制重建索引。
func (s *Service) Rebuild(ctx context.Context) error {
	return s.kb.Rebuild(ctx)
}

// Health 返回健康状态，并探测生成后端与模型。
func (s *Service) Health(ctx context.Context) *HealthStatus {
	stats := s.kb.Stats()
	status := &HealthStatus{
		Status:          "healthy",
		DocumentsLoaded: stats.DocumentsLoaded,
		ChunksCreated:   stats.ChunksCreated,
	}
	if !stats.Ready {
		status.Status = "not_ready"
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.HealthTimeout)
	defer cancel()
	status.BackendReachable, status.ModelLoaded = CheckBackend(ctx, s.generator)

	if s.sessions != nil {
		status.SessionStore = s.sessions.StoreName()
		status.SessionDegraded = s.sessions.Degraded()
	}
	return status
}

// CheckBackend 探测生成后端是否可达，以及配置的模型是否在模型列表中。
// 后端不支持探测时视为可达。
func CheckBackend(ctx context.Context, generator llm.GenerationProvider) (reachable, modelLoaded bool) {
	pinger, ok := generator.(llm.Pinger)
	if !ok {
		return true, true
	}

	models, err := pinger.ListModels(ctx)
	if err != nil {
		logger.Debugw("generation backend unreachable", "provider", generator.Name(), "error", err.Error())
		return false, false
	}

	namer, ok := generator.(llm.ModelNamer)
	if !ok {
		return true, true
	}
	return true, HasModel(models, namer.Model())
}

// HasModel 报告 models 是否包含 name（忽略 ":latest" 标签差异）。
func HasModel(models []string, name string) bool {
	want := strings.TrimSuffix(name, ":latest")
	for _, m := range models {
		if strings.TrimSuffix(m, ":latest") == want {
			return true
		}
	}
	return false
}
