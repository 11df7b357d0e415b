// Package typst 通过调用 typst 命令行编译标记源文件。
package typst

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ByLCY/formulary/compiler"
)

// DefaultBinary 是 Options.Binary 为空时在 PATH 中查找的可执行文件名。
const DefaultBinary = "typst"

// Options 配置 typst 调用参数。
type Options struct {
	Binary    string   // 可执行文件名或路径
	Root      string   // 通过 --root 传入的项目根目录；为空时沿用 typst 默认值
	FontPaths []string // 通过 --font-path 追加的字体目录
	Logger    *slog.Logger
}

// Compiler 每次调用都执行一次 `typst compile`，调用之间不保留状态。
type Compiler struct {
	opts   Options
	logger *slog.Logger
}

var _ compiler.Compiler = (*Compiler)(nil)

// New 创建基于 typst 的编译器。
func New(opts Options) *Compiler {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compiler{opts: opts, logger: logger}
}

// Available 报告配置的可执行文件能否找到。
func (c *Compiler) Available() bool {
	_, err := exec.LookPath(c.opts.Binary)
	return err == nil
}

// CompileError 保留 typst 失败前输出的诊断信息。
type CompileError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CompileError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("typst %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("typst: %s", msg)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Compile 将输出写入临时目录，读回字节后删除该目录。
func (c *Compiler) Compile(ctx context.Context, sourcePath, format string) ([]byte, error) {
	if format == "" {
		format = compiler.FormatSVG
	}
	tmp, err := os.MkdirTemp("", "formulary-typst-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	out := filepath.Join(tmp, "out."+format)
	args := c.args(sourcePath, out, format)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.opts.Binary, args...)
	cmd.Stderr = &stderr
	c.logger.Debug("执行 typst", slog.String("binary", c.opts.Binary), slog.Any("args", args))
	if err := cmd.Run(); err != nil {
		return nil, &CompileError{Args: args, Stderr: stderr.String(), Err: err}
	}
	if stderr.Len() > 0 {
		c.logger.Warn("typst 诊断输出", slog.String("stderr", strings.TrimSpace(stderr.String())))
	}
	return os.ReadFile(out)
}

func (c *Compiler) args(source, out, format string) []string {
	args := []string{"compile", "--format", format}
	if c.opts.Root != "" {
		args = append(args, "--root", c.opts.Root)
	}
	for _, p := range c.opts.FontPaths {
		if p != "" {
			args = append(args, "--font-path", p)
		}
	}
	return append(args, source, out)
}
