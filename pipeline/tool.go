package pipeline

import "context"

// Tool 把管线包装成可被代理框架调用的命名工具。
// Run 与 RunAsync 保持管线的全函数语义：输入任意字符串，
// 输出一个答案形字符串，永不报错。
type Tool struct {
	// Name 工具名
	Name string
	// Description 给调度方（人或模型）看的用途描述
	Description string
	// Run 同步执行
	Run func(ctx context.Context, query string) string
	// RunAsync 异步执行，结果通过容量为 1 的通道交付
	RunAsync func(ctx context.Context, query string) <-chan string
}

// NewTool 从管线构造工具。
func NewTool(name, description string, p *Pipeline) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Run:         p.Run,
		RunAsync:    p.RunAsync,
	}
}
