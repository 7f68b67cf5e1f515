package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-docqa/internal/docqa/metrics"
	"github.com/kart-io/sentinel-docqa/internal/model"
	"github.com/kart-io/sentinel-docqa/pkg/errors"
	"github.com/kart-io/sentinel-docqa/pkg/llm"
)

// 查询失败时返回给用户的文本。
const (
	ApologyFailure = "I apologize, but I encountered an error generating a response."
	ApologyTimeout = "I apologize, but the request timed out. Please try again."
)

// 固定的次要解码参数。
const (
	fixedTopK              = 20
	fixedRepeatPenalty     = 1.2
	fixedNoRepeatNgramSize = 3
)

// ChunkRetriever 按查询返回按相关度降序排列的候选分块。
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]model.ScoredChunk, error)
}

// OrchestratorConfig 编排器配置。
type OrchestratorConfig struct {
	// CandidateCount 每次查询召回的候选数。
	CandidateCount int
	// MinThreshold 动态阈值下限。
	MinThreshold float64
	// ContextSize 注入 prompt 的最大分块数。
	ContextSize int
	// GenerateTimeout 单次生成调用的超时，0 表示只使用后端自身超时。
	GenerateTimeout time.Duration
}

// DefaultOrchestratorConfig 返回默认配置。
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		CandidateCount: 10,
		MinThreshold:   0.6,
		ContextSize:    7,
	}
}

// GenerationParams 单次查询的解码参数。
type GenerationParams struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultGenerationParams 返回默认解码参数。
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{MaxTokens: 750, Temperature: 0.2, TopP: 0.7}
}

// Orchestrator 查询编排器：检索、动态阈值过滤、选择回答模式、生成、清理。
// 所有单次查询错误都在这里转换为道歉文本，不向调用方返回错误。
type Orchestrator struct {
	retriever ChunkRetriever
	generator llm.GenerationProvider
	prompts   *PromptBuilder
	config    *OrchestratorConfig
	metrics   *metrics.DocQAMetrics
}

// NewOrchestrator 创建查询编排器。
func NewOrchestrator(
	retriever ChunkRetriever,
	generator llm.GenerationProvider,
	prompts *PromptBuilder,
	config *OrchestratorConfig,
	m *metrics.DocQAMetrics,
) *Orchestrator {
	if config == nil {
		config = DefaultOrchestratorConfig()
	}
	if prompts == nil {
		prompts = NewPromptBuilder("")
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Orchestrator{
		retriever: retriever,
		generator: generator,
		prompts:   prompts,
		config:    config,
		metrics:   m,
	}
}

// Answer 回答一次查询。history 为已渲染的最近对话窗口，可以为空。
func (o *Orchestrator) Answer(ctx context.Context, query, history string, params GenerationParams) *model.Answer {
	start := time.Now()
	answer := o.safeAnswer(ctx, query, history, params)
	answer.Elapsed = time.Since(start)
	o.metrics.RecordQuery(string(answer.Mode))

	logger.Infow("query answered",
		"mode", answer.Mode,
		"sources", len(answer.Sources),
		"threshold", answer.Threshold,
		"elapsed_ms", answer.Elapsed.Milliseconds(),
	)
	return answer
}

// safeAnswer 将后端或检索中的 panic 转换为道歉回复。
func (o *Orchestrator) safeAnswer(ctx context.Context, query, history string, params GenerationParams) (answer *model.Answer) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("query panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			answer = apology(fmt.Errorf("panic: %v", r))
		}
	}()
	return o.answer(ctx, query, history, params)
}

func (o *Orchestrator) answer(ctx context.Context, query, history string, params GenerationParams) *model.Answer {
	// RETRIEVE
	retrieveStart := time.Now()
	candidates, err := o.retriever.Retrieve(ctx, query, o.config.CandidateCount)
	if err != nil {
		o.metrics.RecordRetrieval(time.Since(retrieveStart), 0, err)
		logger.Errorw("retrieval failed", "error", err.Error())
		return apology(err)
	}

	// NO_CONTEXT
	if len(candidates) == 0 {
		o.metrics.RecordRetrieval(time.Since(retrieveStart), 0, nil)
		logger.Infow("no relevant chunks, using general response")
		return o.general(ctx, query, history, params, 0)
	}

	// THRESHOLD_FILTER
	kept, threshold := FilterByThreshold(candidates, o.config.MinThreshold, o.config.ContextSize)
	o.metrics.RecordRetrieval(time.Since(retrieveStart), len(kept), nil)
	logger.Debugw("dynamic threshold applied",
		"candidates", len(candidates),
		"threshold", threshold,
		"kept", len(kept),
	)
	if len(kept) == 0 {
		return o.general(ctx, query, history, params, threshold)
	}

	// DOCUMENT_RESPONSE
	text, err := o.generate(ctx, o.prompts.Document(query, kept, history), params)
	if err != nil {
		return apology(err)
	}
	return &model.Answer{
		Response:  text,
		Sources:   kept,
		Mode:      model.ModeDocument,
		Threshold: threshold,
	}
}

// general GENERAL_RESPONSE：不含文档内容，来源为空。
func (o *Orchestrator) general(ctx context.Context, query, history string, params GenerationParams, threshold float64) *model.Answer {
	text, err := o.generate(ctx, o.prompts.General(query, history), params)
	if err != nil {
		return apology(err)
	}
	return &model.Answer{
		Response:  text,
		Sources:   []model.ScoredChunk{},
		Mode:      model.ModeGeneral,
		Threshold: threshold,
	}
}

// generate 单次调用生成后端（不重试），截断停止序列后清理输出。
func (o *Orchestrator) generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if o.config.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.GenerateTimeout)
		defer cancel()
	}

	opts := llm.GenerateOptions{
		NumPredict:        params.MaxTokens,
		Temperature:       params.Temperature,
		TopP:              params.TopP,
		TopK:              fixedTopK,
		RepeatPenalty:     fixedRepeatPenalty,
		NoRepeatNgramSize: fixedNoRepeatNgramSize,
		Stop:              StopSequences,
	}

	start := time.Now()
	raw, err := o.generator.Generate(ctx, prompt, opts)
	timedOut := isTimeout(err)
	o.metrics.RecordGeneration(time.Since(start), timedOut, err)
	if err != nil {
		logger.Errorw("generation failed",
			"provider", o.generator.Name(),
			"timeout", timedOut,
			"error", err.Error(),
		)
		return "", err
	}

	return CleanResponse(TruncateAtStop(raw, StopSequences)), nil
}

func apology(err error) *model.Answer {
	text := ApologyFailure
	if isTimeout(err) {
		text = ApologyTimeout
	}
	return &model.Answer{
		Response: text,
		Sources:  []model.ScoredChunk{},
		Mode:     model.ModeError,
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	return errors.IsCode(err, errors.ErrBackendTimeout.Code) || stderrors.Is(err, context.DeadlineExceeded)
}
