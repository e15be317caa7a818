package assemble

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/types"
)

// Assembler 按生成配置装配上下文：先预算截断，再可选重排。
type Assembler struct {
	maxContent           int
	sortBySourceAndIndex bool
	logger               *zap.Logger
}

// New 根据生成与检索后配置构建装配器。
// maxContent 为 0 时预算为零，所有候选都被排除。
func New(gen config.GenerateConfig, post config.PostRetrievalConfig, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		maxContent:           gen.MaxContent,
		sortBySourceAndIndex: post.SortBySourceAndIndex,
		logger:               logger,
	}
}

// Assemble 从融合候选中选出上下文块。输入顺序即候选排名。
func (a *Assembler) Assemble(candidates []types.DocumentChunk) []types.DocumentChunk {
	selected := Truncate(candidates, a.maxContent)
	if len(selected) < len(candidates) {
		a.logger.Debug("context budget reached",
			zap.Int("candidates", len(candidates)),
			zap.Int("selected", len(selected)),
			zap.Int("max_content", a.maxContent))
	}
	if a.sortBySourceAndIndex {
		SortBySourceAndIndex(selected)
	}
	return selected
}

// Truncate 返回 candidates 在 maxContent 字节预算下的严格前缀。
// 块是原子的：第一个放不下的块处即截断，不跳过继续装填。
func Truncate(candidates []types.DocumentChunk, maxContent int) []types.DocumentChunk {
	used := 0
	out := make([]types.DocumentChunk, 0, len(candidates))
	for _, c := range candidates {
		size := len(c.Content)
		if used+size > maxContent {
			break
		}
		used += size
		out = append(out, c)
	}
	return out
}

// SortBySourceAndIndex 就地稳定排序，使同源块按原文顺序相邻。
func SortBySourceAndIndex(chunks []types.DocumentChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Source != chunks[j].Source {
			return chunks[i].Source < chunks[j].Source
		}
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
}

// Render 把入选块拼成提交给模型的上下文文本。
func Render(chunks []types.DocumentChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n\n")
}
