package markup

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// 遇到 `#display[` 后词法分析器切换到 Content 状态，公式正文原样保留，
// 包括空白与嵌套的方括号。
var (
	markupLexer = lexer.MustStateful(lexer.Rules{
		"Root": {
			{Name: "Whitespace", Pattern: `[ \t\r]+`},
			{Name: "Newline", Pattern: `\n`},
			{Name: "BlockComment", Pattern: `/\*(?s:.*?)\*/`},
			{Name: "Comment", Pattern: `//[^\n]*`},
			{Name: "DisplayOpen", Pattern: `#display\[`, Action: lexer.Push("Content")},
			{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
			{Name: "Length", Pattern: `\d+(?:\.\d+)?(?:pt|mm|cm|in|em|fr|%)`},
			{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
			{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
			{Name: "Punct", Pattern: `[#(){}\[\],:=+\-*/.;<>!?&|^$@~'\\]`},
			{Name: "Other", Pattern: `\S`},
		},
		"Content": {
			{Name: "Escaped", Pattern: `\\(?s:.)`},
			{Name: "Open", Pattern: `\[`, Action: lexer.Push("Content")},
			{Name: "Close", Pattern: `\]`, Action: lexer.Pop()},
			{Name: "Text", Pattern: `[^\[\]\\]+`},
		},
	})

	newlineTokenType = mustTokenType("Newline")
	punctTokenType   = mustTokenType("Punct")

	documentParser = participle.MustBuild[Document](
		participle.Lexer(markupLexer),
		participle.Elide("Whitespace", "Comment", "BlockComment"),
		participle.UseLookahead(16),
	)
)

// Document 是生成的公式源文件：display 定义及其后的一次或多次调用。
type Document struct {
	Pos        lexer.Position `parser:"" json:"-"`
	Definition *Definition    `parser:"Newline* @@? Newline*"`
	Displays   []*Display     `parser:"( @@ Newline* )*"`
}

// Definition 对应 `#let display(body) = context { ... }`。
type Definition struct {
	Name       string       `parser:"'#' 'let' @Ident"`
	Param      string       `parser:"'(' @Ident ')' '='"`
	Context    bool         `parser:"@'context'?"`
	Statements []*Statement `parser:"'{' Newline* ( @@ Newline* )* '}'"`
}

// Statement 是定义体中的一行。
type Statement struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Set   *SetRule       `parser:"  @@"`
	Align *AlignCall     `parser:"| @@"`
	Raw   *Line          `parser:"| @@"`
}

// SetRule 对应 `set target(arg, key: value, ...)`。
type SetRule struct {
	Target string `parser:"'set' @Ident"`
	Args   []*Arg `parser:"'(' Newline* ( @@ ( ',' Newline* @@ )* ','? )? Newline* ')'"`
}

// AlignCall 对应 `align([#body], alignment)`。
type AlignCall struct {
	Body      string `parser:"'align' '(' '[' '#' @Ident ']' ','"`
	Alignment *Expr  `parser:"@@ ')'"`
}

// Arg 是具名或位置参数。
type Arg struct {
	Name  string `parser:"( @Ident ':' )?"`
	Value *Value `parser:"@@"`
}

// Value 是括号参数组或普通表达式。
type Value struct {
	Dict *Dict `parser:"  @@"`
	Expr *Expr `parser:"| @@"`
}

// Dict 对应 `(key: value, ...)`。
type Dict struct {
	Entries []*Arg `parser:"'(' Newline* @@ ( ',' Newline* @@ )* ','? Newline* ')'"`
}

// Display 对应 `#display[...]`。
type Display struct {
	Pos  lexer.Position `parser:"" json:"-"`
	Body *Content       `parser:"DisplayOpen @@ Close"`
}

// Content 是方括号内的标记，保留嵌套分组。
type Content struct {
	Fragments []*Fragment `parser:"@@*"`
}

// Fragment 是文本或嵌套的 `[...]` 分组。
type Fragment struct {
	Text  *string  `parser:"  @( Text | Escaped )"`
	Group *Content `parser:"| Open @@ Close"`
}

// String 原样返回方括号之间的内容。
func (c *Content) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	c.write(&b)
	return b.String()
}

func (c *Content) write(b *strings.Builder) {
	for _, f := range c.Fragments {
		switch {
		case f.Text != nil:
			b.WriteString(*f.Text)
		case f.Group != nil:
			b.WriteByte('[')
			f.Group.write(b)
			b.WriteByte(']')
		}
	}
}

// Expr 记录到所在结构结束为止的原始 token。
type Expr struct {
	Tokens []lexer.Token
}

// Parse 为 Expr 实现 participle.Parseable，遇到顶层的逗号、闭合括号或换行时停止。
func (e *Expr) Parse(lex *lexer.PeekingLexer) error {
	var tokens []lexer.Token
	depth := 0
	for {
		tok := lex.Peek()
		if tok.EOF() || stopExpr(tok, depth) {
			break
		}
		if tok.Type == punctTokenType {
			switch tok.Value {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}
		tokens = append(tokens, *lex.Next())
	}
	if len(tokens) == 0 {
		return participle.NextMatch
	}
	e.Tokens = tokens
	return nil
}

func stopExpr(tok *lexer.Token, depth int) bool {
	if depth > 0 {
		return false
	}
	if tok.Type == newlineTokenType {
		return true
	}
	if tok.Type == punctTokenType {
		switch tok.Value {
		case ",", ")", "]", "}":
			return true
		}
	}
	return false
}

// Line 记录一条到行尾为止的任意语句，括号内可以跨行。
type Line struct {
	Expr
}

// Parse 为 Line 实现 participle.Parseable。
func (l *Line) Parse(lex *lexer.PeekingLexer) error {
	var tokens []lexer.Token
	depth := 0
	for {
		tok := lex.Peek()
		if tok.EOF() {
			break
		}
		if depth <= 0 && (tok.Type == newlineTokenType || (tok.Type == punctTokenType && tok.Value == "}")) {
			break
		}
		if tok.Type == punctTokenType {
			switch tok.Value {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}
		tokens = append(tokens, *lex.Next())
	}
	if len(tokens) == 0 {
		return participle.NextMatch
	}
	l.Tokens = tokens
	return nil
}

// Text 还原表达式源文本，连续空白折叠为一个空格。
func (e *Expr) Text() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	end := -1
	for i, tok := range e.Tokens {
		if i > 0 && tok.Pos.Offset > end {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Value)
		end = tok.Pos.Offset + len(tok.Value)
	}
	return b.String()
}

// Text 返回值的源文本，参数组输出为 `(k: v, ...)`。
func (v *Value) Text() string {
	switch {
	case v == nil:
		return ""
	case v.Dict != nil:
		parts := make([]string, 0, len(v.Dict.Entries))
		for _, a := range v.Dict.Entries {
			if a.Name != "" {
				parts = append(parts, a.Name+": "+a.Value.Text())
			} else {
				parts = append(parts, a.Value.Text())
			}
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return v.Expr.Text()
	}
}

// Parse 从 io.Reader 解析生成的源文件。
func Parse(filename string, r io.Reader) (*Document, error) {
	return documentParser.Parse(filename, r)
}

// ParseString 解析内存中的源文本。
func ParseString(filename, input string) (*Document, error) {
	return documentParser.ParseString(filename, input)
}

func mustTokenType(name string) lexer.TokenType {
	tt, ok := markupLexer.Symbols()[name]
	if !ok {
		panic(fmt.Sprintf("未定义的 token %s", name))
	}
	return tt
}
