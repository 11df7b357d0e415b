// Package config 读取命令行工具可选的 JSON 配置文件。
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/ByLCY/formulary/formula"
)

// 支持的编译后端。
const (
	BackendTypst  = "typst"
	BackendCanvas = "canvas"
)

// Layout 对应 RenderConfig 的各项参数。
type Layout struct {
	MarginHorizontal string `json:"margin_h"`
	MarginVertical   string `json:"margin_v"`
	Align            string `json:"align"`
	OverrideConfig   string `json:"override_config,omitempty"`
}

// Compiler 选择并配置编译后端。
type Compiler struct {
	Backend     string   `json:"backend"`
	TypstBinary string   `json:"typst_binary"`
	Root        string   `json:"root,omitempty"` // 仅 typst 后端
	FontPaths   []string `json:"font_paths,omitempty"`
	FontSizePt  float64  `json:"font_size_pt,omitempty"` // 仅 canvas 后端
}

// Config 对应整个配置文件。
type Config struct {
	Layout    Layout   `json:"layout"`
	Compiler  Compiler `json:"compiler"`
	OutputDir string   `json:"output_dir"`
	LogLevel  string   `json:"log_level"`
}

// Default 返回未指定配置文件时的默认配置。
func Default() Config {
	return Config{
		Layout: Layout{
			MarginHorizontal: formula.DefaultMarginHorizontal,
			MarginVertical:   formula.DefaultMarginVertical,
			Align:            formula.DefaultAlignment,
		},
		Compiler: Compiler{
			Backend:     BackendTypst,
			TypstBinary: "typst",
		},
		OutputDir: formula.DefaultOutputDir,
		LogLevel:  "warn",
	}
}

// Load 在默认配置之上读取 path。文件不存在时返回默认配置且不报错，
// 需要文件必须存在的调用方应使用 LoadStrict。
func Load(path string) (Config, error) {
	cfg, err := LoadStrict(path)
	if err != nil && os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

// LoadStrict 与 Load 相同，但文件不存在时返回包装了 os.ErrNotExist 的错误。
func LoadStrict(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("配置文件 %s 无效: %w", path, err)
	}
	return cfg, nil
}

// Save 原子地将 cfg 写入 path，必要时创建父目录。
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// Validate 检查枚举类字段。
func (c Config) Validate() error {
	switch c.Compiler.Backend {
	case BackendTypst, BackendCanvas:
	default:
		return formula.NewConfigError("backend", fmt.Sprintf("未知的编译后端 %q", c.Compiler.Backend))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RenderOptions 把 layout 部分转换为 RenderConfig 选项。
func (c Config) RenderOptions() []formula.ConfigOption {
	return []formula.ConfigOption{
		formula.WithMargins(c.Layout.MarginHorizontal, c.Layout.MarginVertical),
		formula.WithAlignment(c.Layout.Align),
		formula.WithOverrideConfig(c.Layout.OverrideConfig),
	}
}

// ParseLogLevel 将 debug、info、warn、error 映射为 slog 级别。
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, formula.NewConfigError("log_level", fmt.Sprintf("未知的日志级别 %q", s))
	}
}
