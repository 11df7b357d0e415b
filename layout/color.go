package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Color 采用 0-255 的 RGB 数值，零值为黑色。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// namedColors 对应 Typst 预定义的颜色常量。
var namedColors = map[string]string{
	"black":   "000000",
	"gray":    "aaaaaa",
	"silver":  "dddddd",
	"white":   "ffffff",
	"navy":    "001f3f",
	"blue":    "0074d9",
	"aqua":    "7fdbff",
	"teal":    "39cccc",
	"eastern": "239dad",
	"purple":  "b10dc9",
	"fuchsia": "f012be",
	"maroon":  "85144b",
	"red":     "ff4136",
	"orange":  "ff851b",
	"yellow":  "ffdc00",
	"olive":   "3d9970",
	"green":   "2ecc40",
	"lime":    "01ff70",
}

// ParseColor 解析颜色名或 #rgb / #rrggbb / #rrggbbaa 形式的十六进制颜色。
func ParseColor(value string) (Color, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if hex, ok := namedColors[v]; ok {
		v = hex
	}
	v = strings.TrimPrefix(v, "#")
	switch len(v) {
	case 3:
		v = string([]byte{v[0], v[0], v[1], v[1], v[2], v[2]})
	case 6, 8:
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	var rgb [3]int
	for i := range rgb {
		n, err := strconv.ParseUint(v[i*2:i*2+2], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
		}
		rgb[i] = int(n)
	}
	return Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

// Hex 返回 #rrggbb 形式。
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
