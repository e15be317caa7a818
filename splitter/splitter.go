package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/ragpipe/config"
	"github.com/BaSui01/ragpipe/types"
)

// Splitter 将源文档文本切分为检索块。
type Splitter interface {
	Split(text string) []string
}

// SizeFunc 度量一段文本的尺寸（rune 或 token）。
type SizeFunc func(text string) int

// RuneSizer 按 Unicode 码点计数。
func RuneSizer(text string) int {
	return utf8.RuneCountInString(text)
}

// 递归分块的默认分隔符优先级：段落 > 行 > 中英文句子 > 单词。
var defaultSeparators = []string{"\n\n", "\n", "。", "！", "？", ". ", "! ", "? ", " ", ""}

// New 按配置构造分块器。未知类型是构造期错误。
func New(cfg config.SplitterConfig) (Splitter, error) {
	size := RuneSizer
	if cfg.SizeUnit == "token" {
		s, err := TokenSizer(cfg.TokenModel)
		if err != nil {
			return nil, err
		}
		size = s
	}

	switch cfg.Type {
	case config.SplitterCharacter:
		return &CharacterSplitter{
			Separator:    "\n\n",
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			Size:         size,
		}, nil
	case config.SplitterRecursiveCharacter:
		seps := cfg.Separators
		if len(seps) == 0 {
			seps = defaultSeparators
		}
		return &RecursiveCharacterSplitter{
			Separators:   seps,
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			Size:         size,
		}, nil
	default:
		return nil, types.NewError(types.ErrUnknownSplitter,
			"unknown splitter type "+cfg.Type)
	}
}

// CharacterSplitter 按单一分隔符分割，再把片段装箱到 ChunkSize。
type CharacterSplitter struct {
	Separator    string
	ChunkSize    int
	ChunkOverlap int
	Size         SizeFunc
}

// Split 实现 Splitter。
func (s *CharacterSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	parts := splitKeepSeparator(text, s.Separator)
	return mergeParts(parts, s.ChunkSize, s.ChunkOverlap, s.sizeFn())
}

func (s *CharacterSplitter) sizeFn() SizeFunc {
	if s.Size != nil {
		return s.Size
	}
	return RuneSizer
}

// RecursiveCharacterSplitter 按分隔符优先级递归分割：用当前级分隔符切开，
// 超出 ChunkSize 的片段下沉到下一级分隔符继续切分，
// 保持语义边界的同时保证块尺寸上限。
type RecursiveCharacterSplitter struct {
	Separators   []string
	ChunkSize    int
	ChunkOverlap int
	Size         SizeFunc
}

// Split 实现 Splitter。
func (s *RecursiveCharacterSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return s.split(text, s.Separators)
}

func (s *RecursiveCharacterSplitter) split(text string, separators []string) []string {
	size := s.sizeFn()

	// 选用在文本中实际出现的最高优先级分隔符
	sep := ""
	rest := separators
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = splitByRunes(text, s.ChunkSize, size)
	} else {
		parts = splitKeepSeparator(text, sep)
	}

	chunks := make([]string, 0, len(parts))
	var good []string

	for _, part := range parts {
		if size(part) <= s.ChunkSize {
			good = append(good, part)
			continue
		}
		// 先冲刷已累积的小片段，保持原文顺序
		if len(good) > 0 {
			chunks = append(chunks, mergeParts(good, s.ChunkSize, s.ChunkOverlap, size)...)
			good = nil
		}
		// 超限片段下沉到下一级分隔符
		if len(rest) == 0 {
			chunks = append(chunks, splitByRunes(part, s.ChunkSize, size)...)
		} else {
			chunks = append(chunks, s.split(part, rest)...)
		}
	}

	if len(good) > 0 {
		chunks = append(chunks, mergeParts(good, s.ChunkSize, s.ChunkOverlap, size)...)
	}
	return chunks
}

func (s *RecursiveCharacterSplitter) sizeFn() SizeFunc {
	if s.Size != nil {
		return s.Size
	}
	return RuneSizer
}

// splitKeepSeparator 分割文本并把分隔符保留在前一片段尾部。
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		return []string{text}
	}
	raw := strings.Split(text, sep)
	parts := make([]string, 0, len(raw))
	for i, p := range raw {
		if i < len(raw)-1 {
			p += sep
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// mergeParts 把片段装箱到 chunkSize，相邻块之间保留 overlap 的尾部重叠。
func mergeParts(parts []string, chunkSize, overlap int, size SizeFunc) []string {
	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(window, ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, part := range parts {
		pl := size(part)
		if total+pl > chunkSize && total > 0 {
			flush()
			// 从窗口头部弹出直到满足重叠预算
			for total > overlap || (total+pl > chunkSize && total > 0) {
				total -= size(window[0])
				window = window[1:]
			}
		}
		window = append(window, part)
		total += pl
	}
	flush()
	return chunks
}

// splitByRunes 最后手段：按 rune 硬切，保证单块不超过 chunkSize。
func splitByRunes(text string, chunkSize int, size SizeFunc) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	// token 尺寸下近似：按比例换算每块 rune 数
	perChunk := chunkSize
	if s := size(text); s > 0 && s != len(runes) {
		perChunk = chunkSize * len(runes) / s
		if perChunk <= 0 {
			perChunk = 1
		}
	}

	chunks := make([]string, 0, len(runes)/perChunk+1)
	for i := 0; i < len(runes); i += perChunk {
		end := i + perChunk
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[i:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
