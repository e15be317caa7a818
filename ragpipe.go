// Package ragpipe provides a top-level convenience entry point for building
// retrieval-fusion question answering pipelines with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/ragpipe"
//
//	p, err := ragpipe.New(ragpipe.DefaultConfig(), ragpipe.Deps{
//	    Vector:  myVectorStore,
//	    Keyword: myKeywordStore,
//	    LLM:     myLLM,
//	})
//	answer := p.Run(ctx, "what is the refund policy?")
//
// This is a thin wrapper around [pipeline.New]; both produce identical
// results. Use this package when you prefer the shorter import path.
package ragpipe

import (
	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/pipeline"
)

// Pipeline is the assembled question answering pipeline.
type Pipeline = pipeline.Pipeline

// Deps carries the external collaborators of a pipeline.
type Deps = pipeline.Deps

// Tool wraps a pipeline as a named callable tool.
type Tool = pipeline.Tool

// Option configures the pipeline created by [New].
type Option = pipeline.Option

// New builds a pipeline from a declarative configuration.
// All configuration errors surface here, never at request time.
func New(cfg config.PipelineConfig, deps Deps, opts ...Option) (*Pipeline, error) {
	return pipeline.New(cfg, deps, opts...)
}

// DefaultConfig returns the production baseline configuration.
func DefaultConfig() config.PipelineConfig {
	return config.Default()
}

// LoadConfig loads configuration from a YAML file with environment
// variable overrides (RAGPIPE_ prefix).
func LoadConfig(path string) (config.PipelineConfig, error) {
	return config.NewLoader().WithConfigPath(path).Load()
}

// Re-export pipeline options so callers never need to import pipeline/.

// WithLogger sets a custom zap logger.
var WithLogger = pipeline.WithLogger

// WithMetrics registers Prometheus metrics on the given registerer.
var WithMetrics = pipeline.WithMetrics

// WithRateLimiter gates LLM calls with a rate limiter.
var WithRateLimiter = pipeline.WithRateLimiter

// NewTool wraps a pipeline as a named tool for agent frameworks.
var NewTool = pipeline.NewTool
