package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ByLCY/formulary/compiler"
	canvascompiler "github.com/ByLCY/formulary/compiler/canvas"
	"github.com/ByLCY/formulary/compiler/typst"
	"github.com/ByLCY/formulary/config"
	"github.com/ByLCY/formulary/formula"
	"github.com/ByLCY/formulary/layout"
	"github.com/ByLCY/formulary/preview"
)

// Version 在构建时注入。
var Version = "0.1.0"

var (
	colorText    = lipgloss.Color("#c0caf5")
	colorDim     = lipgloss.Color("#565f89")
	colorSuccess = lipgloss.Color("#9ece6a")
	colorWarn    = lipgloss.Color("#f7768e")

	headerStyle  = lipgloss.NewStyle().Foreground(colorText)
	formulaStyle = lipgloss.NewStyle().Foreground(colorDim)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarn)
)

// options 保存命令行参数。
type options struct {
	outputPath  string
	marginH     string
	marginV     string
	align       string
	override    string
	configPath  string
	backend     string
	typstBinary string
	root        string
	fontPaths   []string
	saveConfig  string
	preview     bool
	copy        bool
	debugPath   string
	logLevel    string
}

// deps 收拢 run 的外部依赖，测试中可替换。
type deps struct {
	stdout       io.Writer
	stderr       io.Writer
	fs           formula.FileSystem
	newCompiler  func(cfg config.Config, debugPath string, logger *slog.Logger) (compiler.Compiler, error)
	newDisplayer func(logger *slog.Logger) formula.Displayer
	copyText     func(string) error
	readFile     func(string) ([]byte, error)
}

func defaultDeps() deps {
	return deps{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		fs:          formula.OSFS{},
		newCompiler: newCompiler,
		newDisplayer: func(logger *slog.Logger) formula.Displayer {
			if !preview.IsTerminal(os.Stdout) {
				logger.Warn("标准输出不是终端，可能无法显示预览")
			}
			return preview.NewTerminal(os.Stdout, logger)
		},
		copyText: clipboard.WriteAll,
		readFile: os.ReadFile,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(defaultDeps()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render(fmt.Sprintf("✗ 渲染公式失败: %v", err)))
		os.Exit(1)
	}
}

func newRootCmd(d deps) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "formulary <formula>",
		Short: "将数学公式渲染为 SVG 图片",
		Long: `formulary 将公式嵌入页面模板，编译后写出图片。

示例:
  formulary 'x^2 + y^2 = 1'
  formulary 'sum_(i=1)^n i = frac(n(n+1), 2)' -o sum.svg --align 'left + top'
  formulary 'e^(i pi) + 1 = 0' --backend canvas --preview`,
		Args:          cobra.ExactArgs(1),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			if opts.saveConfig != "" {
				if err := config.Save(opts.saveConfig, cfg); err != nil {
					return err
				}
			}
			return run(cmd.Context(), args[0], opts, cfg, d)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.outputPath, "output_path", "o", "output.svg", "输出 SVG 图片的路径")
	f.StringVar(&opts.marginH, "margin_h", formula.DefaultMarginHorizontal, "水平边距")
	f.StringVar(&opts.marginV, "margin_v", formula.DefaultMarginVertical, "垂直边距")
	f.StringVar(&opts.align, "align", formula.DefaultAlignment, "公式对齐方式")
	f.StringVar(&opts.override, "override_config", "", "插入在页面设置之后的额外标记")
	f.StringVar(&opts.configPath, "config", "", "提供默认值的 JSON 配置文件，必须存在")
	f.StringVar(&opts.backend, "backend", config.BackendTypst, "编译后端: typst 或 canvas")
	f.StringVar(&opts.typstBinary, "typst", typst.DefaultBinary, "typst 可执行文件路径")
	f.StringVar(&opts.root, "root", "", "typst 的项目根目录 (--root)")
	f.StringArrayVar(&opts.fontPaths, "font-path", nil, "typst 额外字体目录，可重复指定")
	f.BoolVar(&opts.preview, "preview", false, "在终端内预览生成的图片")
	f.BoolVar(&opts.copy, "copy", false, "将生成的 SVG 内容复制到剪贴板")
	f.StringVar(&opts.debugPath, "debug", "", "排版调试 JSON 输出路径 (仅 canvas 后端)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "日志级别: debug、info、warn 或 error")
	f.StringVar(&opts.saveConfig, "save-config", "", "将合并后的配置写入该路径后再渲染")
	return cmd
}

// resolveConfig 读取配置文件，再用显式给出的参数覆盖。显式指定的配置文件
// 必须存在。
func resolveConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadStrict(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	changed := cmd.Flags().Changed
	if opts.configPath == "" || changed("margin_h") {
		cfg.Layout.MarginHorizontal = opts.marginH
	}
	if opts.configPath == "" || changed("margin_v") {
		cfg.Layout.MarginVertical = opts.marginV
	}
	if opts.configPath == "" || changed("align") {
		cfg.Layout.Align = opts.align
	}
	if opts.configPath == "" || changed("override_config") {
		cfg.Layout.OverrideConfig = opts.override
	}
	if opts.configPath == "" || changed("backend") {
		cfg.Compiler.Backend = opts.backend
	}
	if opts.configPath == "" || changed("typst") {
		cfg.Compiler.TypstBinary = opts.typstBinary
	}
	if changed("root") {
		cfg.Compiler.Root = opts.root
	}
	if changed("font-path") {
		cfg.Compiler.FontPaths = opts.fontPaths
	}
	if opts.configPath == "" || changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, cfg.Validate()
}

// run 校验输出路径，构造后端并完成一次渲染。
func run(ctx context.Context, text string, opts options, cfg config.Config, d deps) error {
	if _, ext := formula.SplitExt(opts.outputPath); ext != formula.ImageExt {
		return formula.NewConfigError("output_path", fmt.Sprintf("输出文件必须是 SVG 文件，当前为 %q", opts.outputPath))
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(d.stderr, &slog.HandlerOptions{Level: level}))

	comp, err := d.newCompiler(cfg, opts.debugPath, logger)
	if err != nil {
		return err
	}
	rendererOpts := []formula.Option{
		formula.WithLogger(logger),
		formula.WithOutputDir(cfg.OutputDir),
	}
	if d.fs != nil {
		rendererOpts = append(rendererOpts, formula.WithFileSystem(d.fs))
	}
	if opts.preview && d.newDisplayer != nil {
		rendererOpts = append(rendererOpts, formula.WithDisplayer(d.newDisplayer(logger)))
	}
	r := formula.NewRenderer(formula.NewRenderConfig(cfg.RenderOptions()...), comp, rendererOpts...)

	fmt.Fprintln(d.stdout, headerStyle.Render("正在将以下公式渲染到 "+opts.outputPath))
	fmt.Fprintf(d.stdout, "\n\t%s\n\n", formulaStyle.Render(text))

	res, err := r.Render(ctx, formula.Request{
		Formula:   text,
		Format:    compiler.FormatSVG,
		ImagePath: opts.outputPath,
		Preview:   opts.preview,
	})
	if err != nil {
		return fmt.Errorf("渲染 %s 失败: %w", opts.outputPath, err)
	}

	if opts.copy {
		copyImage(d, res.ImagePath)
	}
	fmt.Fprintln(d.stderr, successStyle.Render("✓ 已生成 "+res.ImagePath))
	return nil
}

// copyImage 复制失败只给出警告。
func copyImage(d deps, path string) {
	data, err := d.readFile(path)
	if err == nil {
		err = d.copyText(string(data))
	}
	if err != nil {
		fmt.Fprintln(d.stderr, warnStyle.Render(fmt.Sprintf("⚠ 复制到剪贴板失败: %v", err)))
		return
	}
	fmt.Fprintln(d.stderr, successStyle.Render("✓ 已复制到剪贴板"))
}

func newCompiler(cfg config.Config, debugPath string, logger *slog.Logger) (compiler.Compiler, error) {
	switch cfg.Compiler.Backend {
	case config.BackendCanvas:
		opts := canvascompiler.Options{FontSizePt: cfg.Compiler.FontSizePt, Logger: logger}
		if debugPath != "" {
			opts.Debug = func(res *layout.Result) {
				if err := writeDebug(res, debugPath); err != nil {
					logger.Warn("输出排版调试信息失败", slog.Any("error", err))
				}
			}
		}
		return canvascompiler.New(opts), nil
	default:
		tc := typst.New(typst.Options{
			Binary:    cfg.Compiler.TypstBinary,
			Root:      cfg.Compiler.Root,
			FontPaths: cfg.Compiler.FontPaths,
			Logger:    logger,
		})
		if !tc.Available() {
			return nil, fmt.Errorf("找不到 typst 可执行文件 %q，可通过 --typst 指定或改用 --backend canvas", cfg.Compiler.TypstBinary)
		}
		if debugPath != "" {
			logger.Warn("--debug 仅在 canvas 后端生效")
		}
		return tc, nil
	}
}

func writeDebug(result *layout.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
