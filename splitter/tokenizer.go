package splitter

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// 模型名到 tiktoken 编码的映射。
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// TokenSizer 返回基于 tiktoken 的 SizeFunc。
// model 为空或未知时回落到 cl100k_base。
// 编码初始化失败是构造期错误（可能需要下载编码数据）。
func TokenSizer(model string) (SizeFunc, error) {
	encoding := "cl100k_base"
	if e, ok := modelEncodings[model]; ok {
		encoding = e
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("init tiktoken encoding %s: %w", encoding, err)
	}

	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}
