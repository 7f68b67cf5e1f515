// Package docqa provides document question-answering configuration options.
package docqa

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// CorpusOptions 文档语料与索引产物配置。
type CorpusOptions struct {
	// DocumentsDir 文档目录，递归扫描。
	DocumentsDir string `json:"documents-dir" mapstructure:"documents-dir"`
	// DataDir 索引产物目录（faiss_index.bin, document_chunks.json）。
	DataDir string `json:"data-dir" mapstructure:"data-dir"`
	// Watch 文档目录变化时自动重建索引。
	Watch bool `json:"watch" mapstructure:"watch"`
	// WatchDebounce 合并连续文件事件的等待时间。
	WatchDebounce time.Duration `json:"watch-debounce" mapstructure:"watch-debounce"`
	// Workers 并发解析文档的 worker 数。
	Workers int `json:"workers" mapstructure:"workers"`
}

// NewCorpusOptions 创建默认语料配置。
func NewCorpusOptions() *CorpusOptions {
	return &CorpusOptions{
		DocumentsDir:  "documents",
		DataDir:       "data",
		Watch:         false,
		WatchDebounce: 2 * time.Second,
		Workers:       4,
	}
}

// AddFlags adds corpus flags.
func (o *CorpusOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.DocumentsDir, "corpus.documents-dir", o.DocumentsDir, "Directory scanned recursively for .docx documents.")
	fs.StringVar(&o.DataDir, "corpus.data-dir", o.DataDir, "Directory holding the persisted index artifacts.")
	fs.BoolVar(&o.Watch, "corpus.watch", o.Watch, "Rebuild the index when the documents directory changes.")
	fs.DurationVar(&o.WatchDebounce, "corpus.watch-debounce", o.WatchDebounce, "Quiet period before a watched change triggers a rebuild.")
	fs.IntVar(&o.Workers, "corpus.workers", o.Workers, "Concurrent document extraction workers.")
}

// Validate validates corpus options.
func (o *CorpusOptions) Validate() []error {
	var errs []error
	if o.DocumentsDir == "" {
		errs = append(errs, fmt.Errorf("corpus.documents-dir cannot be empty"))
	}
	if o.DataDir == "" {
		errs = append(errs, fmt.Errorf("corpus.data-dir cannot be empty"))
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("corpus.workers must be positive"))
	}
	if o.Watch && o.WatchDebounce <= 0 {
		errs = append(errs, fmt.Errorf("corpus.watch-debounce must be positive"))
	}
	return errs
}

// RetrievalOptions 分段与检索配置。
type RetrievalOptions struct {
	// SimilarityThreshold 相邻句子相似度低于该值时切分。
	SimilarityThreshold float64 `json:"similarity-threshold" mapstructure:"similarity-threshold"`
	// CandidateCount 每次查询召回的候选数。
	CandidateCount int `json:"candidate-count" mapstructure:"candidate-count"`
	// MinThreshold 动态阈值下限。
	MinThreshold float64 `json:"min-threshold" mapstructure:"min-threshold"`
	// ContextSize 注入 prompt 的最大分块数。
	ContextSize int `json:"context-size" mapstructure:"context-size"`
}

// NewRetrievalOptions 创建默认检索配置。
func NewRetrievalOptions() *RetrievalOptions {
	return &RetrievalOptions{
		SimilarityThreshold: 0.7,
		CandidateCount:      10,
		MinThreshold:        0.6,
		ContextSize:         7,
	}
}

// AddFlags adds retrieval flags.
func (o *RetrievalOptions) AddFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&o.SimilarityThreshold, "retrieval.similarity-threshold", o.SimilarityThreshold, "Adjacent-sentence similarity below which a new chunk starts.")
	fs.IntVar(&o.CandidateCount, "retrieval.candidate-count", o.CandidateCount, "Candidates retrieved per query.")
	fs.Float64Var(&o.MinThreshold, "retrieval.min-threshold", o.MinThreshold, "Floor of the dynamic relevance threshold.")
	fs.IntVar(&o.ContextSize, "retrieval.context-size", o.ContextSize, "Maximum chunks placed in the prompt.")
}

// Validate validates retrieval options.
func (o *RetrievalOptions) Validate() []error {
	var errs []error
	if o.SimilarityThreshold < -1 || o.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval.similarity-threshold must be within [-1, 1]"))
	}
	if o.CandidateCount <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.candidate-count must be positive"))
	}
	if o.ContextSize <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.context-size must be positive"))
	}
	if o.MinThreshold < 0 || o.MinThreshold > 1 {
		errs = append(errs, fmt.Errorf("retrieval.min-threshold must be within [0, 1]"))
	}
	return errs
}

// DecodingOptions 生成解码默认值，可被单次请求覆盖。
type DecodingOptions struct {
	MaxTokens   int     `json:"max-tokens" mapstructure:"max-tokens"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	TopP        float64 `json:"top-p" mapstructure:"top-p"`
	// Product 出现在 prompt 角色描述中的产品名。
	Product string `json:"product" mapstructure:"product"`
}

// NewDecodingOptions 创建默认解码配置。
func NewDecodingOptions() *DecodingOptions {
	return &DecodingOptions{
		MaxTokens:   750,
		Temperature: 0.2,
		TopP:        0.7,
		Product:     "the product",
	}
}

// AddFlags adds decoding flags.
func (o *DecodingOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.MaxTokens, "generation.max-tokens", o.MaxTokens, "Default maximum tokens to generate.")
	fs.Float64Var(&o.Temperature, "generation.temperature", o.Temperature, "Default sampling temperature.")
	fs.Float64Var(&o.TopP, "generation.top-p", o.TopP, "Default nucleus sampling probability.")
	fs.StringVar(&o.Product, "generation.product", o.Product, "Product name used in the assistant role framing.")
}

// Validate validates decoding options.
func (o *DecodingOptions) Validate() []error {
	var errs []error
	if o.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("generation.max-tokens must be positive"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("generation.temperature must be within [0, 2]"))
	}
	if o.TopP <= 0 || o.TopP > 1 {
		errs = append(errs, fmt.Errorf("generation.top-p must be within (0, 1]"))
	}
	return errs
}

// SessionOptions 会话存储配置。
type SessionOptions struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	TTL           time.Duration `json:"ttl" mapstructure:"ttl"`
	ArchiveFolder string        `json:"archive-folder" mapstructure:"archive-folder"`
	KeyPrefix     string        `json:"key-prefix" mapstructure:"key-prefix"`
	// MaxHistory 进程内历史保留的对话轮数。
	MaxHistory int `json:"max-history" mapstructure:"max-history"`
	// RecentExchanges 放入 prompt 的最近对话轮数。
	RecentExchanges int `json:"recent-exchanges" mapstructure:"recent-exchanges"`
}

// NewSessionOptions 创建默认会话配置。
func NewSessionOptions() *SessionOptions {
	return &SessionOptions{
		Enabled:         true,
		TTL:             30 * time.Minute,
		ArchiveFolder:   "session_archives",
		KeyPrefix:       "session:",
		MaxHistory:      5,
		RecentExchanges: 5,
	}
}

// AddFlags adds session flags.
func (o *SessionOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "session.enabled", o.Enabled, "Keep per-session history in the session store.")
	fs.DurationVar(&o.TTL, "session.ttl", o.TTL, "Idle time after which a session expires.")
	fs.StringVar(&o.ArchiveFolder, "session.archive-folder", o.ArchiveFolder, "Directory receiving archived sessions.")
	fs.StringVar(&o.KeyPrefix, "session.key-prefix", o.KeyPrefix, "Session key prefix in the store.")
	fs.IntVar(&o.MaxHistory, "session.max-history", o.MaxHistory, "Exchanges kept by the in-process history.")
	fs.IntVar(&o.RecentExchanges, "session.recent-exchanges", o.RecentExchanges, "Exchanges rendered into the prompt.")
}

// Validate validates session options.
func (o *SessionOptions) Validate() []error {
	var errs []error
	if o.Enabled && o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be positive"))
	}
	if o.Enabled && o.ArchiveFolder == "" {
		errs = append(errs, fmt.Errorf("session.archive-folder cannot be empty"))
	}
	if o.MaxHistory <= 0 {
		errs = append(errs, fmt.Errorf("session.max-history must be positive"))
	}
	if o.RecentExchanges < 0 {
		errs = append(errs, fmt.Errorf("session.recent-exchanges cannot be negative"))
	}
	return errs
}

// MCPOptions MCP 服务配置。
type MCPOptions struct {
	// Enabled 为 true 时在 stdio 上提供 MCP 服务而不是 HTTP。
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// NewMCPOptions 创建默认 MCP 配置。
func NewMCPOptions() *MCPOptions {
	return &MCPOptions{}
}

// AddFlags adds MCP flags.
func (o *MCPOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "mcp.enabled", o.Enabled, "Serve MCP tools on stdio instead of HTTP.")
}
