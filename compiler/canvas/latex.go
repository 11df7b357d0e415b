package canvascompiler

import (
	"strings"
	"unicode"
)

// Typst 数学符号名与对应的 plain TeX 命令。
var symbols = map[string]string{
	"alpha": `\alpha`, "beta": `\beta`, "gamma": `\gamma`, "delta": `\delta`,
	"epsilon": `\varepsilon`, "epsilon.alt": `\epsilon`, "zeta": `\zeta`, "eta": `\eta`,
	"theta": `\theta`, "theta.alt": `\vartheta`, "iota": `\iota`, "kappa": `\kappa`,
	"lambda": `\lambda`, "mu": `\mu`, "nu": `\nu`, "xi": `\xi`, "pi": `\pi`,
	"rho": `\rho`, "sigma": `\sigma`, "tau": `\tau`, "upsilon": `\upsilon`,
	"phi": `\varphi`, "phi.alt": `\phi`, "chi": `\chi`, "psi": `\psi`, "omega": `\omega`,
	"Gamma": `\Gamma`, "Delta": `\Delta`, "Theta": `\Theta`, "Lambda": `\Lambda`,
	"Xi": `\Xi`, "Pi": `\Pi`, "Sigma": `\Sigma`, "Upsilon": `\Upsilon`,
	"Phi": `\Phi`, "Psi": `\Psi`, "Omega": `\Omega`,

	"infinity": `\infty`, "oo": `\infty`, "sum": `\sum`, "product": `\prod`, "prod": `\prod`,
	"integral": `\int`, "integral.cont": `\oint`, "partial": `\partial`, "nabla": `\nabla`,
	"times": `\times`, "div": `\div`, "dot": `\cdot`, "dot.op": `\cdot`, "ast": `\ast`,
	"plus.minus": `\pm`, "minus.plus": `\mp`, "approx": `\approx`, "equiv": `\equiv`,
	"prop": `\propto`, "in": `\in`, "in.not": `\notin`, "subset": `\subset`,
	"subset.eq": `\subseteq`, "supset": `\supset`, "supset.eq": `\supseteq`,
	"union": `\cup`, "sect": `\cap`, "forall": `\forall`, "exists": `\exists`,
	"emptyset": `\emptyset`, "arrow.r": `\rightarrow`, "arrow.l": `\leftarrow`,
	"arrow.r.double": `\Rightarrow`, "arrow.l.r": `\leftrightarrow`, "arrow.r.long.bar": `\longmapsto`,
	"dots": `\ldots`, "dots.h": `\ldots`, "dots.c": `\cdots`, "dots.v": `\vdots`, "dots.down": `\ddots`,
	"ell": `\ell`, "planck.reduce": `\hbar`, "angle": `\angle`, "degree": `^\circ`,
	"lt.eq": `\le`, "gt.eq": `\ge`, "eq.not": `\ne`, "lt.double": `\ll`, "gt.double": `\gg`,
	"quad": `\quad`, "wide": `\qquad`, "thin": `\,`, "med": `\>`, "thick": `\;`,
	"star": `\star`, "circle.small": `\circ`, "compose": `\circ`, "not": `\neg`,
	"and": `\wedge`, "or": `\vee`, "top": `\top`, "bot": `\bot`, "perp": `\perp`,
	"bar.v": `|`, "bar.v.double": `\|`,
}

// TeX 以正体排版的运算符名。
var operators = map[string]bool{
	"sin": true, "cos": true, "tan": true, "cot": true, "sec": true, "csc": true,
	"arcsin": true, "arccos": true, "arctan": true, "sinh": true, "cosh": true, "tanh": true,
	"coth": true, "log": true, "ln": true, "lg": true, "exp": true, "lim": true,
	"limsup": true, "liminf": true, "max": true, "min": true, "sup": true, "inf": true,
	"det": true, "dim": true, "gcd": true, "deg": true, "arg": true, "ker": true,
	"hom": true, "Pr": true,
}

// 多字符简写。
var shorthands = []struct{ typst, tex string }{
	{"<->", `\leftrightarrow `},
	{"...", `\ldots `},
	{"<=", `\le `},
	{">=", `\ge `},
	{"!=", `\ne `},
	{"->", `\to `},
	{"=>", `\Rightarrow `},
	{"<-", `\leftarrow `},
	{"<<", `\ll `},
	{">>", `\gg `},
}

var greekRunes = map[rune]string{
	'α': "alpha", 'β': "beta", 'γ': "gamma", 'δ': "delta", 'ε': "epsilon", 'ζ': "zeta",
	'η': "eta", 'θ': "theta", 'ι': "iota", 'κ': "kappa", 'λ': "lambda", 'μ': "mu",
	'ν': "nu", 'ξ': "xi", 'π': "pi", 'ρ': "rho", 'σ': "sigma", 'τ': "tau",
	'υ': "upsilon", 'φ': "phi", 'χ': "chi", 'ψ': "psi", 'ω': "omega",
	'Γ': "Gamma", 'Δ': "Delta", 'Θ': "Theta", 'Λ': "Lambda", 'Ξ': "Xi", 'Π': "Pi",
	'Σ': "Sigma", 'Φ': "Phi", 'Ψ': "Psi", 'Ω': "Omega", '∞': "infinity",
	'∑': "sum", '∏': "product", '∫': "integral", '∂': "partial", '∇': "nabla",
	'×': "times", '÷': "div", '·': "dot", '±': "plus.minus", '≈': "approx",
	'≤': "lt.eq", '≥': "gt.eq", '≠': "eq.not", '∈': "in", '→': "arrow.r",
}

// ToLaTeX 将 display 正文转换为 `$...$` 包裹的 LaTeX 公式。正文按标记处理：
// $...$ 内的 Typst 数学语法被转换，其余文字折叠空白后以 \hbox 正体输出，
// 标记中的 \ 转义保留其后的字符。数学部分只转换常用子集：符号名、运算符名、
// 带括号参数的上下标、字符串，以及 frac/sqrt/root/abs/norm/binom/vec 和重音函数。
func ToLaTeX(body string) string {
	var parts []string
	for _, seg := range splitMath(body) {
		if seg.math {
			if m := strings.TrimSpace(convertMath(seg.text)); m != "" {
				parts = append(parts, m)
			}
			continue
		}
		if t := strings.Join(strings.Fields(seg.text), " "); t != "" {
			parts = append(parts, `\hbox{`+escapeText(t)+`}`)
		}
	}
	return "$" + strings.Join(parts, " ") + "$"
}

type segment struct {
	text string
	math bool
}

// splitMath 按未转义的 $ 切分正文。未闭合的 $ 之后全部视为数学。
func splitMath(body string) []segment {
	var out []segment
	var cur strings.Builder
	math := false
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			i++
			if math {
				cur.WriteRune(r)
			}
			cur.WriteRune(runes[i])
		case r == '$':
			out = append(out, segment{text: cur.String(), math: math})
			cur.Reset()
			math = !math
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, segment{text: cur.String(), math: math})
}

func convertMath(src string) string {
	c := &converter{src: []rune(src)}
	c.run()
	return c.b.String()
}

type converter struct {
	src []rune
	pos int
	b   strings.Builder
}

func (c *converter) peek() rune {
	if c.pos >= len(c.src) {
		return 0
	}
	return c.src[c.pos]
}

func (c *converter) run() {
	for c.pos < len(c.src) {
		c.atom()
	}
}

// atom 转换并消耗一个元素。
func (c *converter) atom() {
	r := c.src[c.pos]
	switch {
	case unicode.IsSpace(r):
		for c.pos < len(c.src) && unicode.IsSpace(c.src[c.pos]) {
			c.pos++
		}
		c.b.WriteByte(' ')
	case isLetter(r):
		c.ident()
	case unicode.IsDigit(r):
		start := c.pos
		for c.pos < len(c.src) && (unicode.IsDigit(c.src[c.pos]) || c.src[c.pos] == '.' && c.pos+1 < len(c.src) && unicode.IsDigit(c.src[c.pos+1])) {
			c.pos++
		}
		c.b.WriteString(string(c.src[start:c.pos]))
	case r == '"':
		c.pos++
		start := c.pos
		for c.pos < len(c.src) && c.src[c.pos] != '"' {
			c.pos++
		}
		c.b.WriteString(`\hbox{` + escapeText(string(c.src[start:c.pos])) + `}`)
		if c.pos < len(c.src) {
			c.pos++
		}
	case r == '^' || r == '_':
		c.pos++
		c.b.WriteRune(r)
		c.script()
	case r == '\\':
		c.pos++
		if c.pos < len(c.src) {
			e := c.src[c.pos]
			c.pos++
			switch {
			case unicode.IsSpace(e):
				c.b.WriteByte(' ')
			case e == '{' || e == '}' || e == '$' || e == '#' || e == '%' || e == '&' || e == '_':
				c.b.WriteString(`\` + string(e))
			default:
				c.b.WriteRune(e)
			}
		}
	case r == '#':
		c.pos++
	case r == '&':
		c.pos++
	case r == '{' || r == '}':
		c.pos++
		c.b.WriteString(`\` + string(r))
	case r == '*':
		c.pos++
		c.b.WriteString(`\ast `)
	default:
		if tex, n := c.shorthand(); n > 0 {
			c.pos += n
			c.b.WriteString(tex)
			return
		}
		if name, ok := greekRunes[r]; ok {
			c.pos++
			c.b.WriteString(symbols[name] + " ")
			return
		}
		c.pos++
		c.b.WriteRune(r)
	}
}

func (c *converter) shorthand() (string, int) {
	rest := string(c.src[c.pos:min(c.pos+3, len(c.src))])
	for _, s := range shorthands {
		if strings.HasPrefix(rest, s.typst) {
			return s.tex, len([]rune(s.typst))
		}
	}
	return "", 0
}

// ident 处理名称、带点的符号修饰与函数调用。
func (c *converter) ident() {
	start := c.pos
	for c.pos < len(c.src) && isLetter(c.src[c.pos]) {
		c.pos++
	}
	name := string(c.src[start:c.pos])
	if len([]rune(name)) == 1 && c.peek() != '.' {
		c.b.WriteString(name)
		return
	}
	// 只要仍是已知符号就继续吸收修饰后缀
	for c.peek() == '.' {
		end := c.pos + 1
		for end < len(c.src) && isLetter(c.src[end]) {
			end++
		}
		candidate := name + string(c.src[c.pos:end])
		if end == c.pos+1 || !hasSymbolPrefix(candidate) {
			break
		}
		name = candidate
		c.pos = end
	}
	if c.peek() == '(' {
		if fn, ok := functions[name]; ok {
			c.pos++
			args := c.args()
			c.b.WriteString(fn(args))
			return
		}
	}
	switch {
	case symbols[name] != "":
		c.b.WriteString(symbols[name] + " ")
	case operators[name]:
		c.b.WriteString(`\` + name + " ")
	case len([]rune(name)) == 1:
		c.b.WriteString(name)
	default:
		c.b.WriteString(`{\rm ` + name + `}`)
	}
}

func hasSymbolPrefix(name string) bool {
	for k := range symbols {
		if k == name || strings.HasPrefix(k, name+".") {
			return true
		}
	}
	return false
}

// script 转换 ^ 或 _ 的参数并用花括号包裹。与 Typst 一致，
// 带括号的参数去掉括号。
func (c *converter) script() {
	for c.pos < len(c.src) && c.src[c.pos] == ' ' {
		c.pos++
	}
	if c.pos >= len(c.src) {
		c.b.WriteString("{}")
		return
	}
	if c.src[c.pos] == '(' {
		c.pos++
		inner := c.until(')')
		c.b.WriteString("{" + convertMath(inner) + "}")
		return
	}
	sub := &converter{src: c.src, pos: c.pos}
	sub.atom()
	c.pos = sub.pos
	c.b.WriteString("{" + strings.TrimSpace(sub.b.String()) + "}")
}

// until 返回到匹配的闭合符之前的文本，并消耗闭合符。
func (c *converter) until(closing rune) string {
	start := c.pos
	depth := 0
	for c.pos < len(c.src) {
		switch c.src[c.pos] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 && c.src[c.pos] == closing {
				inner := string(c.src[start:c.pos])
				c.pos++
				return inner
			}
			depth--
		}
		c.pos++
	}
	return string(c.src[start:])
}

// args 读取到右括号为止的调用参数，按顶层逗号切分后逐个转换。
func (c *converter) args() []string {
	inner := c.until(')')
	var out []string
	depth, start := 0, 0
	runes := []rune(inner)
	for i, r := range runes {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(convertMath(string(runes[start:i]))))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" || len(out) > 0 {
		out = append(out, strings.TrimSpace(convertMath(tail)))
	}
	return out
}

var functions = map[string]func(args []string) string{
	"frac": func(a []string) string {
		return `\frac{` + arg(a, 0) + `}{` + arg(a, 1) + `}`
	},
	"sqrt": func(a []string) string { return `\sqrt{` + arg(a, 0) + `}` },
	"root": func(a []string) string {
		return `\root ` + arg(a, 0) + ` \of {` + arg(a, 1) + `}`
	},
	"abs":  func(a []string) string { return `\left|` + arg(a, 0) + `\right|` },
	"norm": func(a []string) string { return `\left\|` + arg(a, 0) + `\right\|` },
	"binom": func(a []string) string {
		return `{` + arg(a, 0) + ` \choose ` + arg(a, 1) + `}`
	},
	"vec": func(a []string) string {
		return `\pmatrix{` + strings.Join(a, `\cr `) + `\cr}`
	},
	"hat":       accent(`\hat`),
	"tilde":     accent(`\tilde`),
	"dot":       accent(`\dot`),
	"bar":       func(a []string) string { return `\overline{` + arg(a, 0) + `}` },
	"overline":  func(a []string) string { return `\overline{` + arg(a, 0) + `}` },
	"underline": func(a []string) string { return `\underline{` + arg(a, 0) + `}` },
	"arrow":     accent(`\vec`),
	"upright":   style(`\rm`),
	"bold":      style(`\bf`),
	"italic":    style(`\it`),
}

func accent(cmd string) func([]string) string {
	return func(a []string) string { return cmd + `{` + arg(a, 0) + `}` }
}

func style(cmd string) func([]string) string {
	return func(a []string) string { return `{` + cmd + ` ` + arg(a, 0) + `}` }
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func isLetter(r rune) bool {
	return r < unicode.MaxASCII && unicode.IsLetter(r)
}

var textEscaper = strings.NewReplacer(
	`\`, `$\backslash$`, `{`, `\{`, `}`, `\}`, `$`, `\$`, `#`, `\#`,
	`%`, `\%`, `&`, `\&`, `_`, `\_`, `^`, `\char94{}`, `~`, `\char126{}`,
)

// escapeText 转义 \hbox 中对 TeX 有特殊含义的字符。
func escapeText(s string) string {
	return textEscaper.Replace(s)
}
