// Package handler provides HTTP handlers for the document QA service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-docqa/internal/docqa/biz"
	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/infra/middleware"
	"github.com/kart-io/sentinel-docqa/pkg/response"
)

// Service 是处理器依赖的问答服务能力，由 *biz.Service 实现。
type Service interface {
	Query(ctx context.Context, req *biz.QueryRequest) (*biz.QueryResult, error)
	Clear(ctx context.Context, sessionID string) error
	EndSession(ctx context.Context, sessionID string) (string, error)
	ListSessions(ctx context.Context) ([]string, error)
	Documents() []model.DocumentInfo
	Stats() biz.KnowledgeStats
	Rebuild(ctx context.Context) error
	Health(ctx context.Context) *biz.HealthStatus
}

// MetricsExporter 导出 Prometheus 文本格式指标。
type MetricsExporter interface {
	Export(namespace, subsystem string) string
}

// DocQAHandler 文档问答 HTTP 处理器。
type DocQAHandler struct {
	service      Service
	metrics      MetricsExporter
	queryTimeout time.Duration
}

// NewDocQAHandler 创建处理器。queryTimeout 为 0 时不额外限制查询耗时。
func NewDocQAHandler(service Service, metrics MetricsExporter, queryTimeout time.Duration) *DocQAHandler {
	return &DocQAHandler{
		service:      service,
		metrics:      metrics,
		queryTimeout: queryTimeout,
	}
}

// QueryRequest 查询请求体。
type QueryRequest struct {
	Query       string   `json:"query" binding:"required"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
	SessionID   string   `json:"session_id"`
}

// Source 回答引用的片段。
type Source struct {
	Content        string  `json:"content"`
	SourceFile     string  `json:"source_file"`
	ChunkID        string  `json:"chunk_id"`
	RelevanceScore float64 `json:"relevance_score"`
}

// QueryResponse 查询响应。
type QueryResponse struct {
	Response  string   `json:"response"`
	Sources   []Source `json:"sources"`
	SessionID string   `json:"session_id,omitempty"`
	Mode      string   `json:"mode"`
}

// ClearRequest 清空历史请求体。
type ClearRequest struct {
	SessionID string `json:"session_id"`
}

// Query 回答一次问题。
func (h *DocQAHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithMessage(err.Error()))
		return
	}

	h.answer(c, &biz.QueryRequest{
		Query:       req.Query,
		SessionID:   req.SessionID,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
}

// Chat 以查询参数提问，使用默认解码参数。
func (h *DocQAHandler) Chat(c *gin.Context) {
	message := c.Query("message")
	if message == "" {
		response.Fail(c, errors.ErrInvalidParam.WithMessage("message is required"))
		return
	}
	h.answer(c, &biz.QueryRequest{
		Query:     message,
		SessionID: c.Query("session_id"),
	})
}

func (h *DocQAHandler) answer(c *gin.Context, req *biz.QueryRequest) {
	ctx := c.Request.Context()
	if h.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queryTimeout)
		defer cancel()
	}

	result, err := h.service.Query(ctx, req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, toQueryResponse(result))
}

func toQueryResponse(result *biz.QueryResult) *QueryResponse {
	sources := make([]Source, 0, len(result.Sources))
	for _, s := range result.Sources {
		sources = append(sources, Source{
			Content:        s.Content,
			SourceFile:     s.SourceFile,
			ChunkID:        s.Key(),
			RelevanceScore: s.Score,
		})
	}
	return &QueryResponse{
		Response:  result.Response,
		Sources:   sources,
		SessionID: result.SessionID,
		Mode:      string(result.Mode),
	}
}

// Clear 清空指定会话或进程内历史。
func (h *DocQAHandler) Clear(c *gin.Context) {
	var req ClearRequest
	// 请求体可选
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, errors.ErrInvalidParam.WithMessage(err.Error()))
			return
		}
	}
	if req.SessionID == "" {
		req.SessionID = c.Query("session_id")
	}

	if err := h.service.Clear(c.Request.Context(), req.SessionID); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Conversation history cleared", "session_id": req.SessionID})
}

// EndSession 结束并归档会话。
func (h *DocQAHandler) EndSession(c *gin.Context) {
	id := c.Param("id")
	path, err := h.service.EndSession(c.Request.Context(), id)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": id, "archive": path})
}

// ListSessions 列出活跃会话。
func (h *DocQAHandler) ListSessions(c *gin.Context) {
	ids, err := h.service.ListSessions(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"sessions": ids, "count": len(ids)})
}

// Documents 列出已加载文档。
func (h *DocQAHandler) Documents(c *gin.Context) {
	docs := h.service.Documents()
	response.OK(c, gin.H{"documents": docs, "count": len(docs)})
}

// Stats 返回知识库状态。
func (h *DocQAHandler) Stats(c *gin.Context) {
	response.OK(c, h.service.Stats())
}

// Rebuild 强制重建索引，失败时旧索引继续服务。
func (h *DocQAHandler) Rebuild(c *gin.Context) {
	if err := h.service.Rebuild(c.Request.Context()); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, h.service.Stats())
}

// Health 健康检查，知识库未就绪时返回 503。
func (h *DocQAHandler) Health(c *gin.Context) {
	status := h.service.Health(c.Request.Context())
	httpCode, code := http.StatusOK, errors.OK.Code
	if status.Status != "healthy" {
		httpCode, code = errors.ErrIndexUnbuilt.HTTPStatus(), errors.ErrIndexUnbuilt.Code
	}
	c.JSON(httpCode, response.Response{
		Code:      code,
		Message:   status.Status,
		Data:      status,
		RequestID: middleware.GetRequestID(c),
		Timestamp: time.Now().UnixMilli(),
	})
}

// Metrics 以 Prometheus 文本格式输出指标。
func (h *DocQAHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.metrics.Export("sentinel", "docqa")))
}
