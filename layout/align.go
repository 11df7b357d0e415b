package layout

import (
	"fmt"
	"strings"
)

// HAlign 水平对齐。
type HAlign int

const (
	AlignLeft HAlign = iota
	AlignCenter
	AlignRight
)

// VAlign 垂直对齐。
type VAlign int

const (
	AlignTop VAlign = iota
	AlignHorizon
	AlignBottom
)

// Alignment 由可选的水平分量与垂直分量组成，例如 "center + horizon"。
// 未给出的分量按起始边（左/上）处理。
type Alignment struct {
	H HAlign `json:"h"`
	V VAlign `json:"v"`
}

// ParseAlignment 解析以 "+" 连接的对齐表达式。每个方向最多出现一次。
func ParseAlignment(expr string) (Alignment, error) {
	var a Alignment
	if strings.TrimSpace(expr) == "" {
		return a, fmt.Errorf("对齐表达式为空")
	}
	var hSet, vSet bool
	for _, term := range strings.Split(expr, "+") {
		name := strings.ToLower(strings.TrimSpace(term))
		switch name {
		case "left", "start", "center", "right", "end":
			if hSet {
				return a, fmt.Errorf("对齐表达式 %q 重复设置了水平方向", expr)
			}
			hSet = true
			switch name {
			case "center":
				a.H = AlignCenter
			case "right", "end":
				a.H = AlignRight
			default:
				a.H = AlignLeft
			}
		case "top", "horizon", "bottom":
			if vSet {
				return a, fmt.Errorf("对齐表达式 %q 重复设置了垂直方向", expr)
			}
			vSet = true
			switch name {
			case "horizon":
				a.V = AlignHorizon
			case "bottom":
				a.V = AlignBottom
			default:
				a.V = AlignTop
			}
		default:
			return a, fmt.Errorf("未知的对齐方式 %q", strings.TrimSpace(term))
		}
	}
	return a, nil
}

// Offset 返回尺寸为 (w, h) 的内容在 (containerW, containerH) 容器内的左上角偏移。
// 内容不小于容器时该方向偏移为 0。
func (a Alignment) Offset(containerW, containerH, w, h float64) (float64, float64) {
	var dx, dy float64
	if containerW > w {
		switch a.H {
		case AlignCenter:
			dx = (containerW - w) / 2
		case AlignRight:
			dx = containerW - w
		}
	}
	if containerH > h {
		switch a.V {
		case AlignHorizon:
			dy = (containerH - h) / 2
		case AlignBottom:
			dy = containerH - h
		}
	}
	return dx, dy
}
