// Package router registers the document QA HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/internal/docqa/handler"
)

// Register 注册文档问答路由。
func Register(engine *gin.Engine, h *handler.DocQAHandler) {
	logger.Info("Registering document QA routes...")

	engine.GET("/health", h.Health)
	engine.GET("/metrics", h.Metrics)

	v1 := engine.Group("/v1")
	{
		v1.POST("/query", h.Query)
		v1.GET("/chat", h.Chat)
		v1.POST("/clear", h.Clear)

		v1.GET("/documents", h.Documents)
		v1.GET("/stats", h.Stats)
		v1.POST("/index/rebuild", h.Rebuild)

		sessions := v1.Group("/sessions")
		{
			sessions.GET("", h.ListSessions)
			sessions.POST("/:id/end", h.EndSession)
		}
	}

	logger.Info("HTTP routes registered")
}
