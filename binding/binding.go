package binding

import (
	"fmt"
	"regexp"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Values 是占位符可引用的嵌套取值表，叶子节点通常为字符串。
type Values map[string]any

// Interpolate 将 text 中的 ${path.to.value} 替换为 values 中对应的值。
// 替换只作用于 text 本身：被代入的值即使包含 ${...} 也原样保留，不会再次展开。
// 路径不存在时保留原占位符。
func Interpolate(text string, values Values) string {
	if values == nil {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		path := strings.TrimSpace(groups[1])
		if path == "" {
			return match
		}
		if val, ok := Lookup(values, path); ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

// Placeholders 按出现顺序返回 text 中引用的全部路径（去重）。
func Placeholders(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, groups := range exprPattern.FindAllStringSubmatch(text, -1) {
		path := strings.TrimSpace(groups[1])
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

// Lookup 沿点号分隔的路径在 values 中取值。
func Lookup(values Values, path string) (any, bool) {
	var current any = values
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, false
		}
		var ok bool
		current, ok = descend(current, segment)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func descend(current any, key string) (any, bool) {
	switch c := current.(type) {
	case Values:
		val, ok := c[key]
		return val, ok
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case map[string]string:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}
