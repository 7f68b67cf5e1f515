// Package mcp exposes the document QA service as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kart-io/logger"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kart-io/sentinel-docqa/internal/docqa/biz"
	"github.com/kart-io/sentinel-docqa/internal/model"
)

// Tool names.
const (
	ToolAskDocuments  = "ask_documents"
	ToolListDocuments = "list_documents"
	ToolEndSession    = "end_session"
)

// Service 是 MCP 工具依赖的问答服务能力。
type Service interface {
	Query(ctx context.Context, req *biz.QueryRequest) (*biz.QueryResult, error)
	EndSession(ctx context.Context, sessionID string) (string, error)
	Documents() []model.DocumentInfo
}

// Server 文档问答 MCP 服务。
type Server struct {
	service Service
	mcp     *mcpserver.MCPServer
}

// NewServer 创建 MCP 服务并注册工具。
func NewServer(service Service, name, version string) *Server {
	s := &Server{
		service: service,
		mcp:     mcpserver.NewMCPServer(name, version, mcpserver.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool(ToolAskDocuments,
		mcp.WithDescription("Answer a question using the loaded documentation. Returns the answer with its source excerpts."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question to answer")),
		mcp.WithString("session_id", mcp.Description("Conversation session to continue; a new one is created when omitted")),
	), s.AskDocuments)

	s.mcp.AddTool(mcp.NewTool(ToolListDocuments,
		mcp.WithDescription("List the documents in the knowledge base."),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.ListDocuments)

	s.mcp.AddTool(mcp.NewTool(ToolEndSession,
		mcp.WithDescription("End a conversation session and archive its history."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to end")),
	), s.EndSession)

	return s
}

// MCPServer 返回底层 mcp-go 服务。
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// Serve 在给定输入输出上处理 JSON-RPC 消息，直到 ctx 取消。
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logger.Infow("MCP server listening on stdio")
	return mcpserver.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// AskDocuments 处理 ask_documents。
func (s *Server) AskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query argument is required and must be a non-empty string"), nil
	}

	result, err := s.service.Query(ctx, &biz.QueryRequest{
		Query:     query,
		SessionID: request.GetString("session_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("query failed", err), nil
	}
	return mcp.NewToolResultStructured(result, formatAnswer(result)), nil
}

// ListDocuments 处理 list_documents。
func (s *Server) ListDocuments(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs := s.service.Documents()
	if len(docs) == 0 {
		return mcp.NewToolResultText("No documents loaded."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d documents loaded:\n", len(docs))
	for _, d := range docs {
		fmt.Fprintf(&sb, "- %s (%s, %d chunks)\n", d.ID, d.Type, d.ChunkCount)
	}
	return mcp.NewToolResultStructured(map[string]any{"documents": docs, "count": len(docs)}, sb.String()), nil
}

// EndSession 处理 end_session。
func (s *Server) EndSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil || id == "" {
		return mcp.NewToolResultError("session_id argument is required"), nil
	}

	path, err := s.service.EndSession(ctx, id)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to end session", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s ended and archived to %s", id, path)), nil
}

func formatAnswer(result *biz.QueryResult) string {
	var sb strings.Builder
	sb.WriteString(result.Response)

	if len(result.Sources) > 0 {
		sb.WriteString("\n\nSources:")
		for _, src := range result.Sources {
			fmt.Fprintf(&sb, "\n- %s (relevance %.2f)", src.SourceFile, src.Score)
		}
	}
	if result.SessionID != "" {
		fmt.Fprintf(&sb, "\n\nsession_id: %s", result.SessionID)
	}
	return sb.String()
}
