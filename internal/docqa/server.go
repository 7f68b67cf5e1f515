// Package docqasvc provides the document QA server implementation.
package docqasvc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-docqa/internal/docqa/biz"
	"github.com/kart-io/sentinel-docqa/internal/docqa/handler"
	"github.com/kart-io/sentinel-docqa/internal/docqa/loader"
	"github.com/kart-io/sentinel-docqa/internal/docqa/mcp"
	"github.com/kart-io/sentinel-docqa/internal/docqa/metrics"
	"github.com/kart-io/sentinel-docqa/internal/docqa/router"
	"github.com/kart-io/sentinel-docqa/internal/docqa/store"
	"github.com/kart-io/sentinel-docqa/internal/docqa/watcher"
	"github.com/kart-io/sentinel-docqa/pkg/infra/app"
	"github.com/kart-io/sentinel-docqa/pkg/infra/pool"
	httpserver "github.com/kart-io/sentinel-docqa/pkg/infra/server/http"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
	"github.com/kart-io/sentinel-docqa/pkg/llm/resilience"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/sentinel-docqa/pkg/llm/ollama"
	_ "github.com/kart-io/sentinel-docqa/pkg/llm/openai"
	docqaopts "github.com/kart-io/sentinel-docqa/pkg/options/docqa"
	httpopts "github.com/kart-io/sentinel-docqa/pkg/options/http"
	llmopts "github.com/kart-io/sentinel-docqa/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-docqa/pkg/options/logger"
	redisopts "github.com/kart-io/sentinel-docqa/pkg/options/redis"
)

// Name is the name of the application.
const Name = "sentinel-docqa"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	RedisOptions      *redisopts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	GenerationOptions *llmopts.ProviderOptions
	CacheOptions      *llmopts.CacheOptions
	BreakerOptions    *llmopts.BreakerOptions
	CorpusOptions     *docqaopts.CorpusOptions
	RetrievalOptions  *docqaopts.RetrievalOptions
	DecodingOptions   *docqaopts.DecodingOptions
	SessionOptions    *docqaopts.SessionOptions
	MCPOptions        *docqaopts.MCPOptions
	QueryTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

// Server represents the document QA server.
type Server struct {
	cfg     *Config
	service *biz.Service
	http    *httpserver.Server
	mcp     *mcp.Server
	watcher *watcher.Watcher

	closers []func()
}

// NewServer initializes and returns a new Server instance.
// 知识库初始化失败（目录缺失、无文档、后端不可用）时返回错误。
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.WithService(Name, app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting document QA service...")

	s := &Server{cfg: cfg}
	m := metrics.Default()

	// 2. 初始化 Redis（不可用时会话与缓存降级为进程内）
	redisClient := s.connectRedis(ctx)

	// 3. 初始化 LLM 供应商
	embedder, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	rawEmbedder := embedder
	var embeddingCache biz.CacheClearer
	if redisClient != nil && cfg.CacheOptions.Enabled {
		cached := llm.NewCachedEmbeddingProvider(embedder, redisClient, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.TTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix,
			Model:     cfg.EmbeddingOptions.Model,
		})
		embedder, embeddingCache = cached, cached
		logger.Infow("Embedding cache enabled", "ttl", cfg.CacheOptions.TTL.String())
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	generator, err := llm.NewGenerationProvider(cfg.GenerationOptions.Provider, cfg.GenerationOptions.ToConfigMap())
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to initialize generation provider: %w", err)
	}
	logger.Infow("Generation provider initialized",
		"provider", cfg.GenerationOptions.Provider,
		"model", cfg.GenerationOptions.Model,
	)
	checkBackend(ctx, generator, cfg.GenerationOptions.Model)
	if b := cfg.BreakerOptions; b != nil && b.MaxFailures > 0 {
		generator = resilience.NewGuardedGenerationProvider(generator, &resilience.Config{
			MaxFailures: b.MaxFailures,
			Cooldown:    b.Cooldown,
		})
		logger.Infow("Generation circuit breaker enabled",
			"max_failures", b.MaxFailures,
			"cooldown", b.Cooldown.String(),
		)
	}

	// 4. 初始化知识库
	extractPool, err := pool.NewPool("docx-extract", pool.ExtractionPool, pool.ExtractionPoolConfig(cfg.CorpusOptions.Workers))
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to create extraction pool: %w", err)
	}
	s.closers = append(s.closers, extractPool.Release)

	docLoader := loader.New(extractPool)
	segmenter := biz.NewSegmenter(embedder, cfg.RetrievalOptions.SimilarityThreshold)
	index := biz.NewVectorIndex(embedder, store.NewArtifactStore(cfg.CorpusOptions.DataDir)).
		WithDimensionProber(rawEmbedder)
	kb := biz.NewKnowledgeBase(docLoader, segmenter, index, &biz.KnowledgeConfig{
		DocumentsDir:   cfg.CorpusOptions.DocumentsDir,
		EmbeddingModel: cfg.EmbeddingOptions.Model,
		EmbeddingCache: embeddingCache,
	}, m)

	if err := kb.Initialize(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("failed to initialize knowledge base: %w", err)
	}
	stats := kb.Stats()
	logger.Infow("Knowledge base ready",
		"documents", stats.DocumentsLoaded,
		"chunks", stats.ChunksCreated,
		"dimension", stats.Dimension,
		"loaded_from_disk", stats.LoadedFromDisk,
	)

	// 5. 初始化会话
	var sessions *biz.SessionManager
	if cfg.SessionOptions.Enabled {
		var primary store.SessionStore
		if redisClient != nil {
			primary = store.NewRedisSessionStore(redisClient, cfg.SessionOptions.KeyPrefix)
		}
		sessions = biz.NewSessionManager(primary,
			store.NewArchiver(cfg.SessionOptions.ArchiveFolder),
			&biz.SessionConfig{TTL: cfg.SessionOptions.TTL}, m)
		logger.Infow("Session manager initialized",
			"store", sessions.StoreName(),
			"ttl", cfg.SessionOptions.TTL.String(),
			"archive", cfg.SessionOptions.ArchiveFolder,
		)
	} else {
		logger.Info("Sessions are disabled, using in-process history")
	}

	// 6. 初始化 Biz 层
	orchestrator := biz.NewOrchestrator(
		biz.NewRetriever(index),
		generator,
		biz.NewPromptBuilder(cfg.DecodingOptions.Product),
		&biz.OrchestratorConfig{
			CandidateCount: cfg.RetrievalOptions.CandidateCount,
			MinThreshold:   cfg.RetrievalOptions.MinThreshold,
			ContextSize:    cfg.RetrievalOptions.ContextSize,
		},
		m,
	)
	s.service = biz.NewService(kb, orchestrator, sessions, generator, &biz.ServiceConfig{
		RecentExchanges: cfg.SessionOptions.RecentExchanges,
		MaxHistory:      cfg.SessionOptions.MaxHistory,
		Defaults: biz.GenerationParams{
			MaxTokens:   cfg.DecodingOptions.MaxTokens,
			Temperature: cfg.DecodingOptions.Temperature,
			TopP:        cfg.DecodingOptions.TopP,
		},
	})

	// 7. 目录监听
	if cfg.CorpusOptions.Watch {
		w, err := watcher.New(watcher.Config{
			Dir:      cfg.CorpusOptions.DocumentsDir,
			Debounce: cfg.CorpusOptions.WatchDebounce,
			Filter:   docLoader.Supported,
		}, kb.Refresh)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to watch documents directory: %w", err)
		}
		s.watcher = w
		s.closers = append(s.closers, func() { _ = w.Close() })
	}

	// 8. 初始化对外接口
	if cfg.MCPOptions.Enabled {
		s.mcp = mcp.NewServer(s.service, Name, app.GetVersion())
		logger.Info("MCP surface initialized")
	} else {
		s.http = httpserver.NewServer(cfg.HTTPOptions)
		router.Register(s.http.Engine(), handler.NewDocQAHandler(s.service, m, cfg.QueryTimeout))
	}

	logger.Info("Document QA service is ready")
	return s, nil
}

func (s *Server) connectRedis(ctx context.Context) *goredis.Client {
	opts := s.cfg.RedisOptions
	if opts == nil || !opts.Enabled {
		logger.Info("Redis is disabled, sessions and embeddings stay in process")
		return nil
	}

	client, err := opts.NewClient(ctx)
	if err != nil {
		logger.Warnw("failed to connect to redis, falling back to in-process storage", "error", err.Error())
		return nil
	}
	s.closers = append(s.closers, func() { _ = client.Close() })
	logger.Infow("Redis client initialized", "addr", opts.Addr(), "database", opts.Database)
	return client
}

// checkBackend 启动时探测生成后端，不可达或模型缺失只告警。
func checkBackend(ctx context.Context, generator llm.GenerationProvider, model string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	reachable, loaded := biz.CheckBackend(ctx, generator)
	switch {
	case !reachable:
		logger.Warnw("generation backend is not reachable, queries will return apologies until it is", "provider", generator.Name())
	case !loaded:
		logger.Warnw("generation model is not available on the backend", "provider", generator.Name(), "model", model)
	default:
		logger.Infow("generation backend reachable", "provider", generator.Name(), "model", model)
	}
}

// Service 返回问答服务。
func (s *Server) Service() *biz.Service {
	return s.service
}

// Run starts the configured surface and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	if s.watcher != nil {
		go func() {
			if err := s.watcher.Run(ctx); err != nil {
				logger.Errorw("corpus watcher exited", "error", err.Error())
			}
		}()
	}

	if s.mcp != nil {
		return s.mcp.Serve(ctx, os.Stdin, os.Stdout)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down document QA service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Document QA service stopped")
	return nil
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func printBanner(cfg *Config) {
	fmt.Fprintf(os.Stderr, "Starting %s...\n", Name)
	fmt.Fprintf(os.Stderr, "  Documents: %s\n", filepath.Clean(cfg.CorpusOptions.DocumentsDir))
	fmt.Fprintf(os.Stderr, "  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Fprintf(os.Stderr, "  Generation: %s (%s)\n", cfg.GenerationOptions.Provider, cfg.GenerationOptions.Model)
	if cfg.MCPOptions.Enabled {
		fmt.Fprintln(os.Stderr, "  Surface: MCP (stdio)")
	} else {
		fmt.Fprintf(os.Stderr, "  Surface: HTTP (%s)\n", cfg.HTTPOptions.Addr)
	}
}
