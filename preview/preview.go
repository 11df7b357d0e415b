// Package preview 在终端内直接显示渲染好的公式。
package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Protocol 决定内联图片使用的转义序列。
type Protocol int

const (
	ProtocolITerm2 Protocol = iota // OSC 1337，WezTerm 等终端同样支持
	ProtocolKitty                  // kitty 图形协议
)

// 每段 kitty 转义序列的载荷上限。
const kittyChunk = 4096

// DefaultScale 按 SVG 标称尺寸的两倍栅格化预览。
const DefaultScale = 2.0

// DetectProtocol 根据环境变量选择协议。
func DetectProtocol(getenv func(string) string) Protocol {
	if getenv("KITTY_WINDOW_ID") != "" || strings.Contains(getenv("TERM"), "kitty") {
		return ProtocolKitty
	}
	return ProtocolITerm2
}

// IsTerminal 报告 f 是否连接到终端。
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Terminal 将 SVG 栅格化后以内联图片写入 Out。
type Terminal struct {
	Out      io.Writer
	Protocol Protocol
	Scale    float64
	Logger   *slog.Logger
}

// NewTerminal 创建写入 out 的预览器，协议按进程环境变量检测。
func NewTerminal(out io.Writer, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Terminal{
		Out:      out,
		Protocol: DetectProtocol(os.Getenv),
		Scale:    DefaultScale,
		Logger:   logger,
	}
}

// Display 实现 formula.Displayer。
func (t *Terminal) Display(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取预览文件失败: %w", err)
	}
	img, err := Rasterize(bytes.NewReader(data), t.Scale)
	if err != nil {
		return err
	}
	if t.Logger != nil {
		t.Logger.Debug("显示预览", slog.String("path", path), slog.Int("png_bytes", len(img)))
	}
	return WriteImage(t.Out, t.Protocol, img)
}

// WriteImage 以内联图片转义序列写出 PNG，末尾追加换行。
func WriteImage(w io.Writer, p Protocol, img []byte) error {
	payload := base64.StdEncoding.EncodeToString(img)
	var b strings.Builder
	switch p {
	case ProtocolKitty:
		for i := 0; i < len(payload); i += kittyChunk {
			end := min(i+kittyChunk, len(payload))
			more := 0
			if end < len(payload) {
				more = 1
			}
			if i == 0 {
				fmt.Fprintf(&b, "\x1b_Gf=100,a=T,m=%d;%s\x1b\\", more, payload[i:end])
			} else {
				fmt.Fprintf(&b, "\x1b_Gm=%d;%s\x1b\\", more, payload[i:end])
			}
		}
	default:
		fmt.Fprintf(&b, "\x1b]1337;File=inline=1;size=%d;preserveAspectRatio=1:%s\a", len(img), payload)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
