// Package options contains flags and options for initializing the document QA server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	docqasvc "github.com/kart-io/sentinel-docqa/internal/docqa"
	"github.com/kart-io/sentinel-docqa/pkg/infra/app"
	docqaopts "github.com/kart-io/sentinel-docqa/pkg/options/docqa"
	httpopts "github.com/kart-io/sentinel-docqa/pkg/options/http"
	llmopts "github.com/kart-io/sentinel-docqa/pkg/options/llm"
	logopts "github.com/kart-io/sentinel-docqa/pkg/options/logger"
	redisopts "github.com/kart-io/sentinel-docqa/pkg/options/redis"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// RedisOptions backs the session store and the embedding cache.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// GenerationOptions contains generation provider configuration.
	GenerationOptions *llmopts.ProviderOptions `json:"generation-backend" mapstructure:"generation-backend"`

	// CacheOptions contains embedding cache configuration.
	CacheOptions *llmopts.CacheOptions `json:"cache" mapstructure:"cache"`

	// BreakerOptions guards the generation backend.
	BreakerOptions *llmopts.BreakerOptions `json:"breaker" mapstructure:"breaker"`

	CorpusOptions    *docqaopts.CorpusOptions    `json:"corpus" mapstructure:"corpus"`
	RetrievalOptions *docqaopts.RetrievalOptions `json:"retrieval" mapstructure:"retrieval"`
	DecodingOptions  *docqaopts.DecodingOptions  `json:"generation" mapstructure:"generation"`
	SessionOptions   *docqaopts.SessionOptions   `json:"session" mapstructure:"session"`
	MCPOptions       *docqaopts.MCPOptions       `json:"mcp" mapstructure:"mcp"`

	// QueryTimeout bounds one HTTP query end to end. Zero disables it.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

var _ app.CliOptions = (*ServerOptions)(nil)

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		RedisOptions:      redisopts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		GenerationOptions: llmopts.NewGenerationOptions(),
		CacheOptions:      llmopts.NewCacheOptions(),
		BreakerOptions:    llmopts.NewBreakerOptions(),
		CorpusOptions:     docqaopts.NewCorpusOptions(),
		RetrievalOptions:  docqaopts.NewRetrievalOptions(),
		DecodingOptions:   docqaopts.NewDecodingOptions(),
		SessionOptions:    docqaopts.NewSessionOptions(),
		MCPOptions:        docqaopts.NewMCPOptions(),
		QueryTimeout:      0,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.GenerationOptions.AddFlags(fss.FlagSet("generation"), "generation-backend")
	o.DecodingOptions.AddFlags(fss.FlagSet("generation"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"), "cache")
	o.BreakerOptions.AddFlags(fss.FlagSet("generation"), "breaker")
	o.CorpusOptions.AddFlags(fss.FlagSet("corpus"))
	o.RetrievalOptions.AddFlags(fss.FlagSet("retrieval"))
	o.SessionOptions.AddFlags(fss.FlagSet("session"))
	o.MCPOptions.AddFlags(fss.FlagSet("mcp"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.QueryTimeout, "query-timeout", o.QueryTimeout, "Upper bound for one HTTP query (0 disables)")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return err
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.GenerationOptions.Complete(); err != nil {
		return fmt.Errorf("generation-backend: %w", err)
	}

	// stdout 承载 MCP 协议，日志改写到 stderr
	if o.MCPOptions.Enabled {
		for i, p := range o.LogOptions.OutputPaths {
			if p == "stdout" {
				o.LogOptions.OutputPaths[i] = "stderr"
			}
		}
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	if err := o.LogOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, prefixed("embedding", o.EmbeddingOptions.Validate())...)
	errs = append(errs, prefixed("generation-backend", o.GenerationOptions.Validate())...)
	errs = append(errs, o.CacheOptions.Validate()...)
	errs = append(errs, o.BreakerOptions.Validate()...)
	errs = append(errs, o.CorpusOptions.Validate()...)
	errs = append(errs, o.RetrievalOptions.Validate()...)
	errs = append(errs, o.DecodingOptions.Validate()...)
	errs = append(errs, o.SessionOptions.Validate()...)

	if o.QueryTimeout < 0 {
		errs = append(errs, fmt.Errorf("query-timeout cannot be negative"))
	}
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must be positive"))
	}

	return utilerrors.NewAggregate(errs)
}

func prefixed(prefix string, errs []error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		out = append(out, fmt.Errorf("%s: %w", prefix, err))
	}
	return out
}

// Config builds a docqasvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*docqasvc.Config, error) {
	return &docqasvc.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		RedisOptions:      o.RedisOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		GenerationOptions: o.GenerationOptions,
		CacheOptions:      o.CacheOptions,
		BreakerOptions:    o.BreakerOptions,
		CorpusOptions:     o.CorpusOptions,
		RetrievalOptions:  o.RetrievalOptions,
		DecodingOptions:   o.DecodingOptions,
		SessionOptions:    o.SessionOptions,
		MCPOptions:        o.MCPOptions,
		QueryTimeout:      o.QueryTimeout,
		ShutdownTimeout:   o.ShutdownTimeout,
	}, nil
}
