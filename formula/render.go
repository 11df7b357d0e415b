package formula

import (
	"context"
	"log/slog"
	"time"

	"github.com/ByLCY/formulary/compiler"
)

// Displayer 负责把已写入磁盘的图片展示给用户。
type Displayer interface {
	Display(path string) error
}

// Request 描述一次渲染调用。零值 Format 视为 "svg"。
type Request struct {
	Formula    string
	Name       string
	Format     string
	SourcePath string
	ImagePath  string
	Preview    bool
}

// NewRequest 返回带默认值的请求：svg 格式并开启预览。
func NewRequest(formula string) Request {
	return Request{Formula: formula, Format: compiler.FormatSVG, Preview: true}
}

// Result 记录本次渲染实际写入的文件。
type Result struct {
	SourcePath string
	ImagePath  string
	Format     string
}

// Renderer 将公式按 RenderConfig 的模板编译并写入磁盘。
// 同一 Renderer 可反复调用；每次调用都会重新编译并覆盖两个文件。
type Renderer struct {
	config    *RenderConfig
	compiler  compiler.Compiler
	fs        FileSystem
	display   Displayer
	outputDir string
	logger    *slog.Logger
}

// Option 配置 Renderer 的可替换依赖。
type Option func(*Renderer)

// WithFileSystem 替换文件系统，默认 OSFS。
func WithFileSystem(fsys FileSystem) Option {
	return func(r *Renderer) { r.fs = fsys }
}

// WithDisplayer 设置预览使用的展示器。
func WithDisplayer(d Displayer) Option {
	return func(r *Renderer) { r.display = d }
}

// WithOutputDir 设置 name 模式的输出目录，默认 "output"。
func WithOutputDir(dir string) Option {
	return func(r *Renderer) { r.outputDir = dir }
}

// WithLogger 设置日志记录器，默认丢弃所有日志。
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

// NewRenderer 创建渲染器；cfg 为 nil 时使用默认配置。
func NewRenderer(cfg *RenderConfig, c compiler.Compiler, opts ...Option) *Renderer {
	if cfg == nil {
		cfg = NewRenderConfig()
	}
	r := &Renderer{
		config:    cfg,
		compiler:  c,
		fs:        OSFS{},
		outputDir: DefaultOutputDir,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Config 返回渲染器使用的配置。
func (r *Renderer) Config() *RenderConfig { return r.config }

// Render 解析输出路径，写入标记源文件，调用编译器并写入图片，最后按需预览。
// 编译器与文件系统的错误原样返回；源文件写入后若失败不会清理。
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	if r.compiler == nil {
		return nil, NewConfigError("compiler", "未配置编译器")
	}
	format := req.Format
	if format == "" {
		format = compiler.FormatSVG
	}

	paths, err := r.resolvePaths(req)
	if err != nil {
		return nil, err
	}
	logger := r.logger.With(
		slog.String("source", paths.source),
		slog.String("image", paths.image),
		slog.String("format", format),
	)

	if err := r.fs.WriteFile(paths.source, []byte(r.config.Source(req.Formula))); err != nil {
		return nil, err
	}
	logger.Debug("已写入标记源文件")

	start := time.Now()
	data, err := r.compiler.Compile(ctx, paths.source, format)
	if err != nil {
		logger.Debug("编译失败", slog.Any("error", err))
		return nil, err
	}
	logger.Debug("compiled", slog.Int("bytes", len(data)), slog.Duration("elapsed", time.Since(start)))

	if err := r.fs.WriteFile(paths.image, data); err != nil {
		return nil, err
	}
	logger.Info("公式渲染完成")

	result := &Result{SourcePath: paths.source, ImagePath: paths.image, Format: format}
	if !req.Preview {
		return result, nil
	}
	if format != compiler.FormatSVG {
		return result, &PreviewError{Format: format}
	}
	if r.display == nil {
		return result, NewConfigError("preview", "未配置预览器")
	}
	if err := r.display.Display(paths.image); err != nil {
		return result, err
	}
	return result, nil
}
