package config

import (
	"fmt"
	"time"

	"github.com/BaSui01/ragpipe/types"
)

// 检索器类型的闭集。动态策略查找通过固定表解析，
// 未知类型在构造期立即拒绝，不走开放式反射。
const (
	RetrieverKeyword             = "keyword"
	RetrieverBaselineVector      = "baseline_vector"
	RetrieverSmallerChunksVector = "smaller_chunks_vector"
	RetrieverMix                 = "mix"
)

// KnownRetrieverTypes 返回所有合法的检索器类型名。
func KnownRetrieverTypes() []string {
	return []string{
		RetrieverKeyword,
		RetrieverBaselineVector,
		RetrieverSmallerChunksVector,
		RetrieverMix,
	}
}

// 分块器类型的闭集。
const (
	SplitterCharacter          = "character"
	SplitterRecursiveCharacter = "recursive_character"
)

// QA 链类型的闭集。
const (
	ChainStuff     = "stuff"
	ChainMapReduce = "map_reduce"
)

// FailurePolicy 控制单个检索器失败时融合引擎的行为。
type FailurePolicy string

const (
	// DegradeGracefully 丢弃失败策略的贡献并继续，单个不健康的索引
	// 不应让整个回答落空。默认策略。
	DegradeGracefully FailurePolicy = "degrade"
	// RequireAll 任一检索器失败即整体失败。
	RequireAll FailurePolicy = "require_all"
)

// SplitterConfig 声明某个检索策略如何对源文档分块。
type SplitterConfig struct {
	// Type 分块器类型（character / recursive_character）
	Type string `yaml:"type" json:"type"`
	// ChunkSize 块大小（size_unit 计）
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// ChunkOverlap 相邻块重叠大小
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
	// Separators 递归分块的分隔符优先级，空则使用默认
	Separators []string `yaml:"separators,omitempty" json:"separators,omitempty"`
	// SizeUnit 尺寸单位："rune"（默认）或 "token"（tiktoken 计数）
	SizeUnit string `yaml:"size_unit,omitempty" json:"size_unit,omitempty"`
	// TokenModel SizeUnit 为 token 时使用的 tiktoken 模型
	TokenModel string `yaml:"token_model,omitempty" json:"token_model,omitempty"`
}

// ChildSplitterConfig 供 smaller_chunks_vector 在更细粒度上二次分块。
type ChildSplitterConfig = SplitterConfig

// RetrievalParams 单个检索器的检索参数。
type RetrievalParams struct {
	// TopK 召回候选数上限
	TopK int `yaml:"top_k" json:"top_k"`
	// MinScore 低于该分数的候选被丢弃（0 不过滤）
	MinScore float64 `yaml:"min_score,omitempty" json:"min_score,omitempty"`
	// Timeout 单次检索调用超时（0 使用管线默认）
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// VectorWeight / KeywordWeight 仅 mix 策略内部融合使用
	VectorWeight  float64 `yaml:"vector_weight,omitempty" json:"vector_weight,omitempty"`
	KeywordWeight float64 `yaml:"keyword_weight,omitempty" json:"keyword_weight,omitempty"`
}

// RetrieverConfig 单个检索策略的声明。
type RetrieverConfig struct {
	// Type 检索器类型，见 KnownRetrieverTypes
	Type string `yaml:"type" json:"type"`
	// Splitter 该策略的分块参数
	Splitter SplitterConfig `yaml:"splitter" json:"splitter"`
	// ChildSplitter 仅 smaller_chunks_vector 使用：子块粒度
	ChildSplitter *ChildSplitterConfig `yaml:"child_splitter,omitempty" json:"child_splitter,omitempty"`
	// Retrieval 检索参数
	Retrieval RetrievalParams `yaml:"retrieval" json:"retrieval"`
}

// GenerateConfig 生成阶段参数。
type GenerateConfig struct {
	// ChainType QA 链类型（stuff / map_reduce）
	ChainType string `yaml:"chain_type" json:"chain_type"`
	// PromptType 提示模板名，空则使用链的默认模板
	PromptType string `yaml:"prompt_type,omitempty" json:"prompt_type,omitempty"`
	// MaxContent 组装上下文的内容尺寸预算（字节）。0 产生空上下文，
	// 合成仍会执行，不是错误。
	MaxContent int `yaml:"max_content" json:"max_content"`
}

// PostRetrievalConfig 检索后处理开关。
type PostRetrievalConfig struct {
	// SortBySourceAndIndex 预算截断之后按 (source, chunk_index) 排序，
	// 保证同一文档的多个块以原文阅读顺序进入模型
	SortBySourceAndIndex bool `yaml:"sort_by_source_and_index" json:"sort_by_source_and_index"`
}

// CacheConfig 可选的 Redis 答案缓存。
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Addr    string        `yaml:"addr,omitempty" json:"addr,omitempty"`
	TTL     time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// PipelineConfig 是管线的完整声明式配置。
type PipelineConfig struct {
	// Collection 检索目标集合/索引名
	Collection string `yaml:"collection" json:"collection"`
	// Retrievers 检索策略集合，顺序即融合顺序
	Retrievers []RetrieverConfig `yaml:"retrievers" json:"retrievers"`
	// Generate 生成参数
	Generate GenerateConfig `yaml:"generate" json:"generate"`
	// PostRetrieval 检索后处理
	PostRetrieval PostRetrievalConfig `yaml:"post_retrieval" json:"post_retrieval"`
	// FailurePolicy 检索器失败策略，默认优雅降级
	FailurePolicy FailurePolicy `yaml:"failure_policy,omitempty" json:"failure_policy,omitempty"`
	// Cache 可选答案缓存
	Cache CacheConfig `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// Validate 校验配置结构。配置错误在构造期是致命的。
func (c *PipelineConfig) Validate() error {
	if c.Collection == "" {
		return types.NewError(types.ErrConfigInvalid, "collection must be set")
	}
	if len(c.Retrievers) == 0 {
		return types.NewError(types.ErrConfigInvalid, "at least one retriever must be configured")
	}
	known := make(map[string]bool, 4)
	for _, t := range KnownRetrieverTypes() {
		known[t] = true
	}
	for i, r := range c.Retrievers {
		if !known[r.Type] {
			return types.NewError(types.ErrUnknownRetriever,
				fmt.Sprintf("retriever[%d]: unknown retriever type %q", i, r.Type))
		}
		if err := validateSplitter(&r.Splitter, fmt.Sprintf("retriever[%d].splitter", i)); err != nil {
			return err
		}
		if r.ChildSplitter != nil {
			if err := validateSplitter(r.ChildSplitter, fmt.Sprintf("retriever[%d].child_splitter", i)); err != nil {
				return err
			}
		}
		if r.Retrieval.TopK <= 0 {
			return types.NewError(types.ErrConfigInvalid,
				fmt.Sprintf("retriever[%d]: top_k must be positive, got %d", i, r.Retrieval.TopK))
		}
	}
	if c.Generate.MaxContent < 0 {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("generate.max_content must be >= 0, got %d", c.Generate.MaxContent))
	}
	if c.Generate.ChainType == "" {
		return types.NewError(types.ErrConfigInvalid, "generate.chain_type must be set")
	}
	switch c.Generate.ChainType {
	case ChainStuff, ChainMapReduce:
	default:
		return types.NewError(types.ErrUnknownChain,
			fmt.Sprintf("unknown chain_type %q", c.Generate.ChainType))
	}
	switch c.FailurePolicy {
	case "", DegradeGracefully, RequireAll:
	default:
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("unknown failure_policy %q", c.FailurePolicy))
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return types.NewError(types.ErrConfigInvalid, "cache.addr must be set when cache is enabled")
	}
	return nil
}

func validateSplitter(s *SplitterConfig, path string) error {
	switch s.Type {
	case SplitterCharacter, SplitterRecursiveCharacter:
	default:
		return types.NewError(types.ErrUnknownSplitter,
			fmt.Sprintf("%s: unknown splitter type %q", path, s.Type))
	}
	if s.ChunkSize <= 0 {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("%s: chunk_size must be positive, got %d", path, s.ChunkSize))
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("%s: chunk_overlap must be in [0, chunk_size), got %d", path, s.ChunkOverlap))
	}
	switch s.SizeUnit {
	case "", "rune", "token":
	default:
		return types.NewError(types.ErrConfigInvalid,
			fmt.Sprintf("%s: unknown size_unit %q", path, s.SizeUnit))
	}
	return nil
}

// Policy 返回生效的失败策略（空值回落到优雅降级）。
func (c *PipelineConfig) Policy() FailurePolicy {
	if c.FailurePolicy == "" {
		return DegradeGracefully
	}
	return c.FailurePolicy
}
