package qa

import (
	"strings"
	"text/template"

	"github.com/BaSui01/ragpipe/types"
)

// 提示词模板名。注册表封闭：不在表中的名字构造即失败。
const (
	PromptBase        = "base"
	PromptWithSources = "with_sources"
	PromptChineseQA   = "chinese_qa"
)

const basePrompt = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.Context}}

Question: {{.Question}}
Helpful Answer:`

const withSourcesPrompt = `Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
Cite the sources you used, picked from the list below.

Context:
{{.Context}}

Sources:
{{range .Sources}}- {{.}}
{{end}}
Question: {{.Question}}
Answer with sources:`

const chineseQAPrompt = `请基于以下已知信息，简洁和专业地回答用户的问题。
如果无法从已知信息中得到答案，请说 "根据已知信息无法回答该问题"，不允许编造内容。

已知信息：
{{.Context}}

问题：{{.Question}}
回答：`

var promptTemplates = map[string]string{
	PromptBase:        basePrompt,
	PromptWithSources: withSourcesPrompt,
	PromptChineseQA:   chineseQAPrompt,
}

// PromptData 是模板的渲染输入。
type PromptData struct {
	Context  string
	Question string
	Sources  []string
}

// Prompt 是一个已解析的提示词模板。
type Prompt struct {
	name string
	tpl  *template.Template
}

// NewPrompt 按名字查注册表并解析模板。空名字使用 base。
func NewPrompt(name string) (*Prompt, error) {
	if name == "" {
		name = PromptBase
	}
	text, ok := promptTemplates[name]
	if !ok {
		return nil, types.NewError(types.ErrUnknownPrompt, "unknown prompt type: "+name)
	}
	tpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, types.WrapError(types.ErrUnknownPrompt, "parse prompt "+name, err)
	}
	return &Prompt{name: name, tpl: tpl}, nil
}

// parseInline 解析不在注册表里的内部模板（如 map 阶段提示词）。
func parseInline(name, text string) (*Prompt, error) {
	tpl, err := template.New(name).Parse(text)
	if err != nil {
		return nil, types.WrapError(types.ErrUnknownPrompt, "parse prompt "+name, err)
	}
	return &Prompt{name: name, tpl: tpl}, nil
}

// Name returns the registry name of the prompt.
func (p *Prompt) Name() string { return p.name }

// Render 渲染模板。空上下文照常渲染，由模板文本自行兜底。
func (p *Prompt) Render(data PromptData) (string, error) {
	var sb strings.Builder
	if err := p.tpl.Execute(&sb, data); err != nil {
		return "", types.WrapError(types.ErrSynthesisFailed, "render prompt "+p.name, err)
	}
	return sb.String(), nil
}
