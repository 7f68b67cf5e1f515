// Package http provides the gin based HTTP server.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	apierrors "github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/infra/middleware"
	options "github.com/kart-io/sentinel-docqa/pkg/options/http"
)

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	engine *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a gin engine with recovery, request id and access log middleware.
func NewServer(opts *options.Options) *Server {
	if opts == nil {
		opts = options.NewOptions()
	}

	gin.SetMode(opts.Mode)
	engine := gin.New()

	// 中间件须在注册路由前应用，子路由组才会继承
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":       apierrors.ErrRouteNotFound.Code,
			"message":    apierrors.ErrRouteNotFound.MessageEN,
			"request_id": middleware.GetRequestID(c),
		})
	})

	return &Server{opts: opts, engine: engine}
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once the server is listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start listens and serves until ctx is done or the server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	logger.Infow("HTTP server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	logger.Infow("HTTP server shutting down")
	return srv.Shutdown(ctx)
}
