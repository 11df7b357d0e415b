package markup

import "strings"

// Margins 保存四边的边距表达式，空字符串表示未设置。
type Margins struct {
	Top, Right, Bottom, Left string
}

// Settings 是文档最终生效的页面与文字设置，均保留源文本形式。
// 后出现的 set 规则覆盖先出现的。
type Settings struct {
	Width     string
	Height    string
	Margins   Margins
	Align     string
	TextSize  string
	TextFill  string
	Overrides []string
}

// Settings 依次折叠定义中的语句，得到最终设置。
func (d *Document) Settings() Settings {
	var s Settings
	if d == nil || d.Definition == nil {
		return s
	}
	for _, st := range d.Definition.Statements {
		switch {
		case st.Set != nil:
			s.applySet(st.Set)
		case st.Align != nil:
			s.Align = st.Align.Alignment.Text()
		case st.Raw != nil:
			s.Overrides = append(s.Overrides, st.Raw.Text())
		}
	}
	return s
}

// Body 返回最后一次 display 调用的正文。
func (d *Document) Body() (string, bool) {
	if d == nil || len(d.Displays) == 0 {
		return "", false
	}
	return d.Displays[len(d.Displays)-1].Body.String(), true
}

func (s *Settings) applySet(rule *SetRule) {
	switch rule.Target {
	case "page":
		for _, arg := range rule.Args {
			switch arg.Name {
			case "width":
				s.Width = arg.Value.Text()
			case "height":
				s.Height = arg.Value.Text()
			case "margin":
				s.applyMargin(arg.Value)
			}
		}
	case "text":
		for _, arg := range rule.Args {
			switch arg.Name {
			case "size":
				s.TextSize = arg.Value.Text()
			case "fill":
				s.TextFill = arg.Value.Text()
			case "":
				s.applyPositionalText(arg.Value.Text())
			}
		}
	default:
		s.Overrides = append(s.Overrides, "set "+rule.Target+"(...)")
	}
}

// applyMargin 接受单个值，或以 x、y、left、right、top、bottom、rest
// 为键的字典。
func (s *Settings) applyMargin(v *Value) {
	if v.Dict == nil {
		all := v.Text()
		s.Margins = Margins{Top: all, Right: all, Bottom: all, Left: all}
		return
	}
	var m, explicit Margins
	rest := ""
	for _, e := range v.Dict.Entries {
		val := e.Value.Text()
		switch e.Name {
		case "x":
			m.Left, m.Right = val, val
		case "y":
			m.Top, m.Bottom = val, val
		case "left":
			explicit.Left = val
		case "right":
			explicit.Right = val
		case "top":
			explicit.Top = val
		case "bottom":
			explicit.Bottom = val
		case "rest":
			rest = val
		}
	}
	s.Margins = Margins{
		Top:    pick(explicit.Top, m.Top, rest),
		Right:  pick(explicit.Right, m.Right, rest),
		Bottom: pick(explicit.Bottom, m.Bottom, rest),
		Left:   pick(explicit.Left, m.Left, rest),
	}
}

// applyPositionalText 把以数字开头的参数当作字号，其余当作颜色。
func (s *Settings) applyPositionalText(v string) {
	if v == "" {
		return
	}
	if c := v[0]; c >= '0' && c <= '9' {
		s.TextSize = v
		return
	}
	s.TextFill = v
}

func pick(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
