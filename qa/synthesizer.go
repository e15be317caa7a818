package qa

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/ragpipe/assemble"
	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/types"
)

// LLM 是语言模型客户端的最小契约。
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// map_reduce 链的 map 阶段模板：对单个块提取与问题相关的内容。
const mapPrompt = `Use the following portion of a long document to see if any of the text is relevant to answer the question.
Return any relevant text verbatim. If none of it is relevant, return "NONE".

{{.Context}}

Question: {{.Question}}
Relevant text, if any:`

// Synthesizer 把上下文块与问题合成为答案。
type Synthesizer struct {
	llm       LLM
	prompt    *Prompt
	mapper    *Prompt
	chainType string
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// Option 配置 Synthesizer 的可选行为。
type Option func(*Synthesizer)

// WithRateLimiter 为每次模型调用加上限流闸门。
func WithRateLimiter(l *rate.Limiter) Option {
	return func(s *Synthesizer) { s.limiter = l }
}

// NewSynthesizer 构造合成器。未知 chain_type 或 prompt_type 立即报错。
func NewSynthesizer(cfg config.GenerateConfig, llm LLM, logger *zap.Logger, opts ...Option) (*Synthesizer, error) {
	if llm == nil {
		return nil, types.NewError(types.ErrConfigInvalid, "synthesizer requires an LLM client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	chainType := cfg.ChainType
	if chainType == "" {
		chainType = config.ChainStuff
	}
	switch chainType {
	case config.ChainStuff, config.ChainMapReduce:
	default:
		return nil, types.NewError(types.ErrUnknownChain, "unknown chain type: "+chainType)
	}

	prompt, err := NewPrompt(cfg.PromptType)
	if err != nil {
		return nil, err
	}

	s := &Synthesizer{
		llm:       llm,
		prompt:    prompt,
		chainType: chainType,
		logger:    logger,
	}
	if chainType == config.ChainMapReduce {
		tpl, err := parseInline("map", mapPrompt)
		if err != nil {
			return nil, err
		}
		s.mapper = tpl
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Synthesize 基于入选块回答 query。空块列表照常走模板与模型，
// 由提示词把"无证据"的情况兜住。
func (s *Synthesizer) Synthesize(ctx context.Context, chunks []types.DocumentChunk, query string) (types.Answer, error) {
	var text string
	var err error
	switch s.chainType {
	case config.ChainMapReduce:
		text, err = s.mapReduce(ctx, chunks, query)
	default:
		text, err = s.stuff(ctx, chunks, query)
	}
	if err != nil {
		return types.Answer{}, err
	}

	return types.Answer{
		Text:    strings.TrimSpace(text),
		Sources: sourceIDs(chunks),
	}, nil
}

// stuff 把全部上下文拼进一次调用。
func (s *Synthesizer) stuff(ctx context.Context, chunks []types.DocumentChunk, query string) (string, error) {
	prompt, err := s.prompt.Render(PromptData{
		Context:  assemble.Render(chunks),
		Question: query,
		Sources:  sourceNames(chunks),
	})
	if err != nil {
		return "", err
	}
	return s.generate(ctx, prompt)
}

// mapReduce 先对每个块单独提问，再把中间结果归并为最终答案。
func (s *Synthesizer) mapReduce(ctx context.Context, chunks []types.DocumentChunk, query string) (string, error) {
	intermediate := make([]string, 0, len(chunks))
	for _, c := range chunks {
		prompt, err := s.mapper.Render(PromptData{Context: c.Content, Question: query})
		if err != nil {
			return "", err
		}
		out, err := s.generate(ctx, prompt)
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" || strings.EqualFold(out, "NONE") {
			continue
		}
		intermediate = append(intermediate, out)
	}

	prompt, err := s.prompt.Render(PromptData{
		Context:  strings.Join(intermediate, "\n\n"),
		Question: query,
		Sources:  sourceNames(chunks),
	})
	if err != nil {
		return "", err
	}
	return s.generate(ctx, prompt)
}

func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	out, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", types.WrapError(types.ErrSynthesisFailed, "llm generate", err)
	}
	return out, nil
}

func sourceIDs(chunks []types.DocumentChunk) []types.ChunkID {
	ids := make([]types.ChunkID, len(chunks))
	for i, c := range chunks {
		ids[i] = c.Identity()
	}
	return ids
}

func sourceNames(chunks []types.DocumentChunk) []string {
	seen := make(map[string]bool, len(chunks))
	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.Source] {
			continue
		}
		seen[c.Source] = true
		names = append(names, c.Source)
	}
	return names
}
