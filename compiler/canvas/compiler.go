// Package canvascompiler 不依赖外部工具链编译生成的公式源文件：用 markup
// 解析器读回 display 定义，经 canvas 内置的 TeX 引擎排版公式，输出 SVG 或 PDF。
//
// 与 typst 一致，display 正文按标记处理：只有 $...$ 之间的内容按数学排版，
// 其余文字以正体文本输出。因此 #display[x^2] 在两个后端中都显示为字面文本
// "x^2"，需要写成 #display[$ x^2 $] 才会排成上标。标记中的强调、粗体等语法
// 不做解释，数学部分只支持 latex.go 中列出的常用子集。
package canvascompiler

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/formulary/compiler"
	"github.com/ByLCY/formulary/layout"
	"github.com/ByLCY/formulary/markup"
)

// canvas.ParseLaTeX 排版使用的基准字号（pt）。
const latexBaseSizePt = 10.0

// DefaultFontSizePt 与 Typst 默认正文字号一致。
const DefaultFontSizePt = 11.0

// Options 配置 canvas 后端。
type Options struct {
	FontSizePt float64 // 源文件未设置 text(size:) 时使用；0 取默认值
	Fill       layout.Color
	Logger     *slog.Logger
	// Debug 在每次编译后收到排版结果，可用于写出调试 JSON。
	Debug func(*layout.Result)
}

// Compiler 通过 github.com/tdewolff/canvas 绘制公式。
type Compiler struct {
	opts   Options
	logger *slog.Logger
}

var _ compiler.Compiler = (*Compiler)(nil)

// New 创建基于 canvas 的编译器。
func New(opts Options) *Compiler {
	if opts.FontSizePt <= 0 {
		opts.FontSizePt = DefaultFontSizePt
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compiler{opts: opts, logger: logger}
}

// UnsupportedFormatError 表示请求了 svg 与 pdf 以外的格式。
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("canvas 后端不支持输出格式 %q（仅支持 svg 与 pdf）", e.Format)
}

// Compile 读取源文件并输出为请求的格式。
func (c *Compiler) Compile(ctx context.Context, sourcePath, format string) ([]byte, error) {
	if format == "" {
		format = compiler.FormatSVG
	}
	if format != compiler.FormatSVG && format != compiler.FormatPDF {
		return nil, &UnsupportedFormatError{Format: format}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("读取源文件失败: %w", err)
	}
	defer f.Close()

	doc, err := markup.Parse(sourcePath, f)
	if err != nil {
		return nil, fmt.Errorf("解析源文件 %s 失败: %w", sourcePath, err)
	}
	res, path, err := c.Layout(doc)
	if err != nil {
		return nil, err
	}
	if c.opts.Debug != nil {
		c.opts.Debug(res)
	}
	c.logger.Debug("canvas 排版完成",
		slog.String("source", sourcePath),
		slog.String("latex", res.LaTeX),
		slog.String("fill", res.Fill.Hex()),
		slog.Float64("page_width_mm", res.Page.Width),
		slog.Float64("page_height_mm", res.Page.Height))
	return c.draw(res, path, format)
}

// Layout 排版文档中的公式并放置到页面上。返回的路径以毫米为单位，
// 包围盒左下角位于原点。
func (c *Compiler) Layout(doc *markup.Document) (*layout.Result, *canvas.Path, error) {
	body, ok := doc.Body()
	if !ok {
		return nil, nil, fmt.Errorf("源文件中没有 #display[...] 调用")
	}
	s := doc.Settings()

	fontPt := c.opts.FontSizePt
	baseMM := fontPt * layout.PtToMm
	if s.TextSize != "" {
		l, err := layout.ParseLength(s.TextSize)
		if err != nil {
			return nil, nil, fmt.Errorf("文字大小无效: %w", err)
		}
		fontPt = l.ToPT(baseMM)
	}
	fontMM := fontPt * layout.PtToMm

	fill := c.opts.Fill
	if s.TextFill != "" {
		col, err := parseFill(s.TextFill)
		if err != nil {
			c.logger.Warn("忽略不支持的文字颜色", slog.String("fill", s.TextFill), slog.Any("error", err))
		} else {
			fill = col
		}
	}

	spec, err := pageSpec(s, fontMM)
	if err != nil {
		return nil, nil, err
	}

	latex := ToLaTeX(body)
	path := &canvas.Path{}
	if latex != "$$" {
		path, err = canvas.ParseLaTeX(latex)
		if err != nil {
			return nil, nil, fmt.Errorf("排版公式 %s 失败: %w", latex, err)
		}
		scale := fontPt / latexBaseSizePt
		path = path.Transform(canvas.Identity.Scale(scale, scale))
	}

	var content layout.Size
	if !path.Empty() {
		bounds := path.Bounds()
		path = path.Translate(-bounds.X0, -bounds.Y0)
		content = layout.Size{Width: bounds.W(), Height: bounds.H()}
	}
	page, box := layout.Place(spec, content)

	return &layout.Result{
		Page:     page,
		Margin:   spec.Margin,
		Content:  box,
		Align:    s.Align,
		FontSize: fontMM,
		Fill:     fill,
		Formula:  body,
		LaTeX:    latex,
	}, path, nil
}

func pageSpec(s markup.Settings, fontMM float64) (layout.PageSpec, error) {
	var spec layout.PageSpec
	var err error
	if spec.Width, err = pageLength(s.Width, fontMM); err != nil {
		return spec, fmt.Errorf("页面宽度无效: %w", err)
	}
	if spec.Height, err = pageLength(s.Height, fontMM); err != nil {
		return spec, fmt.Errorf("页面高度无效: %w", err)
	}
	sides := []struct {
		name string
		src  string
		dst  *float64
	}{
		{"top", s.Margins.Top, &spec.Margin.Top},
		{"right", s.Margins.Right, &spec.Margin.Right},
		{"bottom", s.Margins.Bottom, &spec.Margin.Bottom},
		{"left", s.Margins.Left, &spec.Margin.Left},
	}
	for _, side := range sides {
		v, err := pageLength(side.src, fontMM)
		if err != nil {
			return spec, fmt.Errorf("%s 边距无效: %w", side.name, err)
		}
		if v != nil {
			*side.dst = *v
		}
	}
	if s.Align != "" {
		a, err := layout.ParseAlignment(s.Align)
		if err != nil {
			return spec, err
		}
		spec.Align = a
	}
	return spec, nil
}

// pageLength 解析长度；空值与 auto 返回 nil。
func pageLength(src string, fontMM float64) (*float64, error) {
	src = strings.TrimSpace(src)
	if src == "" || src == "auto" {
		return nil, nil
	}
	l, err := layout.ParseLength(src)
	if err != nil {
		return nil, err
	}
	mm := l.ToMM(fontMM)
	return &mm, nil
}

// parseFill 支持颜色名与 rgb("#hex")。
func parseFill(src string) (layout.Color, error) {
	v := strings.TrimSpace(src)
	if strings.HasPrefix(v, "rgb(") && strings.HasSuffix(v, ")") {
		v = strings.Trim(strings.TrimSpace(v[4:len(v)-1]), `"`)
		if !strings.HasPrefix(v, "#") {
			return layout.Color{}, fmt.Errorf("rgb() 仅支持十六进制颜色: %s", src)
		}
	}
	return layout.ParseColor(v)
}

func (c *Compiler) draw(res *layout.Result, path *canvas.Path, format string) ([]byte, error) {
	cv := canvas.New(res.Page.Width, res.Page.Height)
	ctx := canvas.NewContext(cv)
	if !path.Empty() {
		// 布局以左上角为原点，canvas 默认坐标 y 轴向上。
		y := res.Page.Height - res.Content.Y - res.Content.Height
		ctx.SetFillColor(colorFromLayout(res.Fill))
		ctx.DrawPath(res.Content.X, y, path)
	}

	var buf bytes.Buffer
	switch format {
	case compiler.FormatPDF:
		writer := pdf.New(&buf, res.Page.Width, res.Page.Height, nil)
		cv.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("写入 PDF 失败: %w", err)
		}
	default:
		writer := svg.New(&buf, res.Page.Width, res.Page.Height, nil)
		cv.RenderTo(writer)
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("写入 SVG 失败: %w", err)
		}
	}
	return buf.Bytes(), nil
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}
