package types

// Answer 是合成阶段的结构化结果。
//
// 公共 Run 契约是全函数（总是返回字符串、从不抛错），因此需要区分
// “基于证据的回答”与“降级/诊断回答”的调用方应当读取 Sources 与
// Degraded 字段，而不是依赖错误传播。
type Answer struct {
	// Text 答案文本。失败被包含（contained）时为诊断文本。
	Text string `json:"text"`
	// Sources 实际进入上下文窗口的证据块，按最终顺序排列
	Sources []ChunkID `json:"sources,omitempty"`
	// Degraded 为 true 表示 Text 是诊断文本而非模型生成的回答
	Degraded bool `json:"degraded,omitempty"`
	// FailureReason 降级原因（仅 Degraded 时非空）
	FailureReason string `json:"failure_reason,omitempty"`
}

// DiagnosticAnswer 构造一个降级答案，把失败以答案形态呈现。
func DiagnosticAnswer(err error) Answer {
	return Answer{
		Text:          err.Error(),
		Degraded:      true,
		FailureReason: string(GetErrorCode(err)),
	}
}
