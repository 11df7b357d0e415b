package formula

import (
	"errors"
	"fmt"
)

// 可用 errors.Is 判断的错误类别。
var (
	ErrConfig             = errors.New("配置错误")
	ErrUnsupportedPreview = errors.New("不支持预览的格式")
)

// ConfigError 表示调用参数组合无效，例如既没有 name 也没有图片路径且不预览。
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("配置错误: %s", e.Message)
	}
	return fmt.Sprintf("配置错误: %s: %s", e.Field, e.Message)
}

// Is 使 ConfigError 与 ErrConfig 匹配。
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfig {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok
}

// NewConfigError 创建 ConfigError。
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// PreviewError 表示请求预览的格式不受支持，仅 svg 可以预览。
type PreviewError struct {
	Format string
}

func (e *PreviewError) Error() string {
	return fmt.Sprintf("仅 svg 格式支持预览，当前为 %q", e.Format)
}

func (e *PreviewError) Is(target error) bool {
	if target == ErrUnsupportedPreview {
		return true
	}
	_, ok := target.(*PreviewError)
	return ok
}
