package canvascompiler

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ByLCY/formulary/formula"
	"github.com/ByLCY/formulary/layout"
	"github.com/ByLCY/formulary/markup"
)

const eps = 1e-6

func parse(t *testing.T, src string) *markup.Document {
	t.Helper()
	doc, err := markup.ParseString("test.typ", src)
	if err != nil {
		t.Fatalf("parse failed: %v\n%s", err, src)
	}
	return doc
}

func TestCompileRejectsFormats(t *testing.T) {
	_, err := New(Options{}).Compile(context.Background(), "missing.typ", "png")
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) || unsupported.Format != "png" {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
}

func TestCompileMissingSource(t *testing.T) {
	_, err := New(Options{}).Compile(context.Background(), filepath.Join(t.TempDir(), "none.typ"), "svg")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestCompileHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(Options{}).Compile(ctx, "x.typ", "svg"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// 空公式只剩边距：页面为左右、上下各 20pt。
func TestLayoutEmptyFormula(t *testing.T) {
	doc := parse(t, formula.NewRenderConfig().Source(""))
	res, path, err := New(Options{}).Layout(doc)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if !path.Empty() {
		t.Fatalf("expected empty path")
	}
	want := 40 * layout.PtToMm
	if math.Abs(res.Page.Width-want) > eps || math.Abs(res.Page.Height-want) > eps {
		t.Fatalf("page = %+v, want %.3f square", res.Page, want)
	}
	if res.LaTeX != "$$" {
		t.Fatalf("latex = %q", res.LaTeX)
	}
}

func TestLayoutAutoPageWrapsContent(t *testing.T) {
	doc := parse(t, formula.NewRenderConfig(formula.WithMargins("10mm", "5mm")).Source("$ x^2 $"))
	res, _, err := New(Options{}).Layout(doc)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if res.Content.Width <= 0 || res.Content.Height <= 0 {
		t.Fatalf("content should have a size: %+v", res.Content)
	}
	if math.Abs(res.Page.Width-(res.Content.Width+20)) > eps {
		t.Fatalf("page width %.3f, content %.3f", res.Page.Width, res.Content.Width)
	}
	if math.Abs(res.Page.Height-(res.Content.Height+10)) > eps {
		t.Fatalf("page height %.3f, content %.3f", res.Page.Height, res.Content.Height)
	}
	if math.Abs(res.Content.X-10) > eps || math.Abs(res.Content.Y-5) > eps {
		t.Fatalf("content origin = %+v", res.Content)
	}
}

func TestLayoutFixedPage(t *testing.T) {
	src := `#let display(body) = context {
  set page(width: 100mm, height: 40mm, margin: 10mm)
  set text(size: 22pt, fill: rgb("#0F62FE"))
  align([#body], right + bottom)
}

#display[$ x $]`
	res, _, err := New(Options{}).Layout(parse(t, src))
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if res.Page != (layout.Size{Width: 100, Height: 40}) {
		t.Fatalf("page = %+v", res.Page)
	}
	if res.Fill != (layout.Color{R: 15, G: 98, B: 254}) {
		t.Fatalf("fill = %+v", res.Fill)
	}
	if math.Abs(res.FontSize-22*layout.PtToMm) > eps {
		t.Fatalf("font size = %.4f", res.FontSize)
	}
	if math.Abs(res.Content.X+res.Content.Width-90) > eps || math.Abs(res.Content.Y+res.Content.Height-30) > eps {
		t.Fatalf("content not aligned to bottom right: %+v", res.Content)
	}
}

func TestLayoutEmMarginsFollowTextSize(t *testing.T) {
	src := formula.NewRenderConfig(
		formula.WithMargins("1em", "0pt"),
		formula.WithOverrideConfig("set text(size: 20pt)"),
	).Source("")
	res, _, err := New(Options{}).Layout(parse(t, src))
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if math.Abs(res.Margin.Left-20*layout.PtToMm) > eps {
		t.Fatalf("left margin = %.4f", res.Margin.Left)
	}
}

func TestLayoutUnsupportedFillKeepsDefault(t *testing.T) {
	src := formula.NewRenderConfig(formula.WithOverrideConfig("set text(fill: luma(40))")).Source("")
	fill := layout.Color{R: 1, G: 2, B: 3}
	res, _, err := New(Options{Fill: fill}).Layout(parse(t, src))
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if res.Fill != fill {
		t.Fatalf("fill = %+v", res.Fill)
	}
}

func TestLayoutErrors(t *testing.T) {
	c := New(Options{})
	noDisplay := parse(t, "#let display(body) = context {\n  align([#body], center)\n}\n")
	if _, _, err := c.Layout(noDisplay); err == nil {
		t.Fatalf("expected error without display call")
	}
	badMargin := parse(t, formula.NewRenderConfig(formula.WithMargins("wide", "1pt")).Source("x"))
	if _, _, err := c.Layout(badMargin); err == nil {
		t.Fatalf("expected error for invalid margin")
	}
	badAlign := parse(t, formula.NewRenderConfig(formula.WithAlignment("middle")).Source("x"))
	if _, _, err := c.Layout(badAlign); err == nil {
		t.Fatalf("expected error for invalid alignment")
	}
}

func TestCompileWritesSVGAndPDF(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "f.typ")
	if err := os.WriteFile(src, []byte(formula.NewRenderConfig().Source("$ frac(a, b) + sqrt(2) $")), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	var debugged *layout.Result
	c := New(Options{Debug: func(r *layout.Result) { debugged = r }})

	out, err := c.Compile(context.Background(), src, "svg")
	if err != nil {
		t.Fatalf("Compile svg: %v", err)
	}
	if !bytes.Contains(out, []byte("<svg")) {
		t.Fatalf("output is not svg: %.80s", out)
	}
	if debugged == nil || debugged.LaTeX != `$\frac{a}{b} + \sqrt{2}$` {
		t.Fatalf("debug hook got %+v", debugged)
	}

	out, err = c.Compile(context.Background(), src, "pdf")
	if err != nil {
		t.Fatalf("Compile pdf: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not pdf: %.20q", out)
	}
}
