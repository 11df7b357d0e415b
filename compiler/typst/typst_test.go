package typst

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

// fakeTypst 写出一个假的 typst：把参数写入输出文件，源文件含 FAIL 时报错退出。
func fakeTypst(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	script := `#!/bin/sh
for a in "$@"; do prev="$last"; last="$a"; done
if grep -q FAIL "$prev"; then
  echo "error: unexpected FAIL" >&2
  exit 1
fi
printf '%s\n' "$*" > "$last"
`
	path := filepath.Join(t.TempDir(), "typst")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake typst: %v", err)
	}
	return path
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formula.typ")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestCompileReturnsOutputBytes(t *testing.T) {
	c := New(Options{Binary: fakeTypst(t), FontPaths: []string{"/fonts"}})
	src := writeSource(t, "#display[x]")

	data, err := c.Compile(context.Background(), src, "svg")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	got := string(data)
	if !strings.HasPrefix(got, "compile --format svg --font-path /fonts "+src+" ") {
		t.Fatalf("unexpected invocation: %q", got)
	}
}

func TestCompileFailureKeepsDiagnostics(t *testing.T) {
	c := New(Options{Binary: fakeTypst(t)})
	src := writeSource(t, "FAIL")

	_, err := c.Compile(context.Background(), src, "svg")
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if !strings.Contains(ce.Stderr, "unexpected FAIL") {
		t.Fatalf("stderr not captured: %q", ce.Stderr)
	}
	if !strings.Contains(err.Error(), "unexpected FAIL") {
		t.Fatalf("error message lacks diagnostics: %v", err)
	}
}

func TestCompileMissingBinary(t *testing.T) {
	c := New(Options{Binary: filepath.Join(t.TempDir(), "no-such-typst")})
	if c.Available() {
		t.Fatalf("missing binary reported as available")
	}
	_, err := c.Compile(context.Background(), "x.typ", "svg")
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Err == nil {
		t.Fatalf("expected CompileError wrapping exec failure, got %v", err)
	}
}

func TestArgs(t *testing.T) {
	c := New(Options{Root: "/proj", FontPaths: []string{"a", "", "b"}})
	got := c.args("in.typ", "out.pdf", "pdf")
	want := []string{
		"compile", "--format", "pdf",
		"--root", "/proj",
		"--font-path", "a", "--font-path", "b",
		"in.typ", "out.pdf",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v\nwant %v", got, want)
	}
	if c.opts.Binary != DefaultBinary {
		t.Fatalf("default binary = %q", c.opts.Binary)
	}
}
