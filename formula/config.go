package formula

import (
	"fmt"

	"github.com/ByLCY/formulary/binding"
)

// 默认版式参数。
const (
	DefaultMarginHorizontal = "20pt"
	DefaultMarginVertical   = "20pt"
	DefaultAlignment        = "center + horizon"
)

// templateSkeleton 定义 display 函数：页面随内容自适应，按给定边距排版，
// 执行覆盖配置后按对齐表达式放置公式。
const templateSkeleton = "#let display(body) = context {\n" +
	"  set page(width: auto, height: auto, margin: (x: ${margin.x}, y: ${margin.y}))\n" +
	"  ${override}\n" +
	"  align([#body], ${align})\n" +
	"}\n"

// RenderConfig 保存一组版式参数及由其派生的模板，构造后不可变。
// 参数不做任何校验，调用方自行保证代入的标记合法。
type RenderConfig struct {
	marginH  string
	marginV  string
	align    string
	override string
	template string
}

// ConfigOption 修改 RenderConfig 的构造参数。
type ConfigOption func(*RenderConfig)

// WithMargins 设置水平与垂直边距，例如 "20pt"、"1cm"。
func WithMargins(horizontal, vertical string) ConfigOption {
	return func(c *RenderConfig) {
		c.marginH = horizontal
		c.marginV = vertical
	}
}

// WithAlignment 设置对齐表达式，例如 "left + top"。
func WithAlignment(align string) ConfigOption {
	return func(c *RenderConfig) { c.align = align }
}

// WithOverrideConfig 设置在页面规则之后执行的任意标记片段。
func WithOverrideConfig(snippet string) ConfigOption {
	return func(c *RenderConfig) { c.override = snippet }
}

// NewRenderConfig 按默认值构造配置并派生模板。
func NewRenderConfig(opts ...ConfigOption) *RenderConfig {
	c := &RenderConfig{
		marginH: DefaultMarginHorizontal,
		marginV: DefaultMarginVertical,
		align:   DefaultAlignment,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	values := c.values()
	if missing := unbound(templateSkeleton, values); len(missing) > 0 {
		panic(fmt.Sprintf("formula: 模板占位符未绑定: %v", missing))
	}
	c.template = binding.Interpolate(templateSkeleton, values)
	return c
}

func (c *RenderConfig) values() binding.Values {
	return binding.Values{
		"margin": map[string]string{
			"x": c.marginH,
			"y": c.marginV,
		},
		"override": c.override,
		"align":    c.align,
	}
}

// unbound 返回 text 中在 values 里找不到的占位符路径。
func unbound(text string, values binding.Values) []string {
	var missing []string
	for _, path := range binding.Placeholders(text) {
		if _, ok := binding.Lookup(values, path); !ok {
			missing = append(missing, path)
		}
	}
	return missing
}

func (c *RenderConfig) MarginHorizontal() string { return c.marginH }
func (c *RenderConfig) MarginVertical() string   { return c.marginV }
func (c *RenderConfig) Alignment() string        { return c.align }
func (c *RenderConfig) OverrideConfig() string   { return c.override }

// Template 返回派生出的模板，每次渲染都以它作为前缀。
func (c *RenderConfig) Template() string { return c.template }

// Source 拼接模板与公式，得到完整的标记源文本。
func (c *RenderConfig) Source(formula string) string {
	return c.template + "\n#display[" + formula + "]"
}
