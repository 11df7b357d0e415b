package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit 记录长度值书写时的原始单位。
type Unit int

const (
	UnitNone Unit = iota // 无单位
	UnitMM               // 毫米
	UnitCM               // 厘米
	UnitIN               // 英寸
	UnitPT               // 磅
	UnitEM               // 相对当前字号
)

// pt 与 mm 之间的换算系数。
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
)

// UnitToString 返回单位的简写。
func UnitToString(u Unit) string {
	switch u {
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitPT:
		return "pt"
	case UnitEM:
		return "em"
	default:
		return ""
	}
}

// Length 保存数值及其单位。
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'g', -1, 64) + UnitToString(l.Unit)
}

// ToMM 换算为毫米。em 按 fontSizeMM 换算，无单位的数值视为毫米。
func (l Length) ToMM(fontSizeMM float64) float64 {
	switch l.Unit {
	case UnitCM:
		return l.Value * 10
	case UnitIN:
		return l.Value * 25.4
	case UnitPT:
		return l.Value * PtToMm
	case UnitEM:
		return l.Value * fontSizeMM
	default:
		return l.Value
	}
}

// ToPT 换算为磅。
func (l Length) ToPT(fontSizeMM float64) float64 { return l.ToMM(fontSizeMM) * MmToPt }

var unitSuffixes = []struct {
	s string
	u Unit
}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}, {"em", UnitEM}}

// ParseLength 解析 "20pt"、"1.5cm"、"0.5em" 这类字符串。
func ParseLength(value string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, fmt.Errorf("长度为空")
	}
	unit := UnitNone
	num := v
	for _, suf := range unitSuffixes {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, fmt.Errorf("无效的长度 %q", value)
	}
	return Length{Value: f, Unit: unit}, nil
}
