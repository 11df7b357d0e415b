package compiler

import "context"

// 常用输出格式标识。
const (
	FormatSVG = "svg"
	FormatPDF = "pdf"
)

// Compiler 将磁盘上的标记源文件编译为指定格式的图像字节。
// 标记有误或格式不受支持时返回错误，调用方不做转换直接上抛。
type Compiler interface {
	Compile(ctx context.Context, sourcePath, format string) ([]byte, error)
}

// Func 让普通函数满足 Compiler 接口，便于替换后端或编写测试替身。
type Func func(ctx context.Context, sourcePath, format string) ([]byte, error)

func (f Func) Compile(ctx context.Context, sourcePath, format string) ([]byte, error) {
	return f(ctx, sourcePath, format)
}
