package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/ragpipe/internal/tlsutil"
	"github.com/BaSui01/ragpipe/types"
)

// OpenAIConfig 描述一个 OpenAI 兼容的对话补全端点。
// 大多数托管与自建推理服务（vLLM、Ollama 等）都暴露这套接口。
type OpenAIConfig struct {
	// BaseURL API 根地址，例如 https://api.openai.com
	BaseURL string
	// APIKey Bearer 鉴权密钥，空则不带 Authorization 头
	APIKey string
	// Model 请求使用的模型名
	Model string
	// Temperature 采样温度
	Temperature float64
	// Timeout HTTP 超时，零值回落到 60s
	Timeout time.Duration
	// EndpointPath 补全端点路径，空则使用 /v1/chat/completions
	EndpointPath string
}

// OpenAIClient 通过 OpenAI 兼容协议实现 LLM。
type OpenAIClient struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIClient 构造客户端，HTTP 层使用加固的 TLS 配置。
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) *OpenAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIClient{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate 发送单轮用户消息并返回首个候选的文本。
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", types.WrapError(types.ErrSynthesisFailed, "marshal chat request", err)
	}

	url := c.cfg.BaseURL + c.cfg.EndpointPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", types.WrapError(types.ErrSynthesisFailed, "build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", types.WrapError(types.ErrSynthesisFailed, "chat completion request", err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", types.WrapError(types.ErrSynthesisFailed, "read chat response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("chat completion returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("model", c.cfg.Model))
		e := types.NewError(types.ErrSynthesisFailed,
			fmt.Sprintf("chat completion status %d: %s", resp.StatusCode, truncateBody(data)))
		// 限流与服务端错误可重试，客户端错误不重试
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			e = e.WithRetryable(true)
		}
		return "", e
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", types.WrapError(types.ErrSynthesisFailed, "decode chat response", err)
	}
	if parsed.Error != nil {
		return "", types.NewError(types.ErrSynthesisFailed, "chat completion error: "+parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", types.NewError(types.ErrSynthesisFailed, "chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncateBody(data []byte) string {
	const limit = 512
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
