package formula

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ByLCY/formulary/compiler"
)

// fakeCompiler 从 MemFS 读取源文件，返回可由源内容与格式推导的字节。
type fakeCompiler struct {
	fs    *MemFS
	calls []string
	err   error
}

func (f *fakeCompiler) Compile(_ context.Context, sourcePath, format string) ([]byte, error) {
	f.calls = append(f.calls, sourcePath+"|"+format)
	if f.err != nil {
		return nil, f.err
	}
	src, err := f.fs.ReadFile(sourcePath)
	if err != nil {
		return nil, err
	}
	return compiledBytes(src, format), nil
}

func compiledBytes(src []byte, format string) []byte {
	return append([]byte("<"+format+">"), src...)
}

type recordingDisplayer struct {
	paths []string
	err   error
}

func (d *recordingDisplayer) Display(path string) error {
	d.paths = append(d.paths, path)
	return d.err
}

func newTestRenderer(opts ...Option) (*Renderer, *MemFS, *fakeCompiler, *recordingDisplayer) {
	mem := NewMemFS()
	fc := &fakeCompiler{fs: mem}
	disp := &recordingDisplayer{}
	opts = append([]Option{WithFileSystem(mem), WithDisplayer(disp)}, opts...)
	return NewRenderer(NewRenderConfig(), fc, opts...), mem, fc, disp
}

func TestRenderRoundTrip(t *testing.T) {
	r, mem, _, disp := newTestRenderer()
	req := NewRequest("x^2 + y^2 = 1")
	req.ImagePath = "test.svg"
	req.Preview = false

	res, err := r.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if res.SourcePath != "test.typ" || res.ImagePath != "test.svg" {
		t.Fatalf("unexpected paths: %+v", res)
	}

	src, err := mem.ReadFile("test.typ")
	if err != nil {
		t.Fatalf("source not written: %v", err)
	}
	wantSrc := r.Config().Template() + "\n#display[x^2 + y^2 = 1]"
	if string(src) != wantSrc {
		t.Fatalf("source mismatch:\n got: %q\nwant: %q", src, wantSrc)
	}
	img, err := mem.ReadFile("test.svg")
	if err != nil {
		t.Fatalf("image not written: %v", err)
	}
	if string(img) != string(compiledBytes([]byte(wantSrc), "svg")) {
		t.Fatalf("image bytes differ from compiler output: %q", img)
	}
	if len(disp.paths) != 0 {
		t.Fatalf("displayer called without preview: %v", disp.paths)
	}
}

func TestRenderNameShorthand(t *testing.T) {
	r, mem, fc, _ := newTestRenderer()
	req := NewRequest("a")
	req.Name = "foo"
	req.Preview = false

	if _, err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	want := []string{filepath.Join("output", "foo.svg"), filepath.Join("output", "foo.typ")}
	if got := mem.Files(); !reflect.DeepEqual(got, want) {
		t.Fatalf("files = %v, want %v", got, want)
	}
	if !mem.IsDir("output") {
		t.Fatalf("output directory not created")
	}
	if len(fc.calls) != 1 || fc.calls[0] != filepath.Join("output", "foo.typ")+"|svg" {
		t.Fatalf("unexpected compiler calls: %v", fc.calls)
	}
}

// name 模式下图片扩展名始终为 .svg。
func TestRenderNameShorthandKeepsSVGExtension(t *testing.T) {
	r, mem, fc, _ := newTestRenderer(WithOutputDir("renders"))
	req := Request{Formula: "a", Name: "bar", Format: "pdf"}

	res, err := r.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if res.ImagePath != filepath.Join("renders", "bar.svg") {
		t.Fatalf("image path = %q", res.ImagePath)
	}
	if fc.calls[0] != filepath.Join("renders", "bar.typ")+"|pdf" {
		t.Fatalf("compiler call = %q", fc.calls[0])
	}
	if _, err := mem.ReadFile(res.ImagePath); err != nil {
		t.Fatalf("image not written: %v", err)
	}
}

func TestRenderWithoutDestinationFails(t *testing.T) {
	r, mem, fc, _ := newTestRenderer()
	req := NewRequest("a")
	req.Preview = false

	_, err := r.Render(context.Background(), req)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "image_path" {
		t.Fatalf("unexpected error value: %#v", err)
	}
	if files := mem.Files(); len(files) != 0 {
		t.Fatalf("files written before failing: %v", files)
	}
	if len(fc.calls) != 0 {
		t.Fatalf("compiler invoked: %v", fc.calls)
	}
}

func TestRenderPreviewDefaults(t *testing.T) {
	r, mem, _, disp := newTestRenderer()

	res, err := r.Render(context.Background(), NewRequest("a"))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if res.SourcePath != "output.typ" || res.ImagePath != "output.svg" {
		t.Fatalf("unexpected default paths: %+v", res)
	}
	if !reflect.DeepEqual(mem.Files(), []string{"output.svg", "output.typ"}) {
		t.Fatalf("files = %v", mem.Files())
	}
	if !reflect.DeepEqual(disp.paths, []string{"output.svg"}) {
		t.Fatalf("displayed = %v", disp.paths)
	}
}

func TestRenderPreviewRejectsNonSVG(t *testing.T) {
	r, mem, _, disp := newTestRenderer()
	req := NewRequest("a")
	req.Format = "png"
	req.ImagePath = "out.png"

	res, err := r.Render(context.Background(), req)
	if !errors.Is(err, ErrUnsupportedPreview) {
		t.Fatalf("expected unsupported preview error, got %v", err)
	}
	if res == nil || res.ImagePath != "out.png" {
		t.Fatalf("result should describe written files, got %+v", res)
	}
	img, readErr := mem.ReadFile("out.png")
	if readErr != nil {
		t.Fatalf("image must be written before the preview check: %v", readErr)
	}
	if string(img[:5]) != "<png>" {
		t.Fatalf("unexpected image bytes: %q", img)
	}
	if len(disp.paths) != 0 {
		t.Fatalf("displayer must not be called: %v", disp.paths)
	}
}

func TestRenderPreviewWithoutDisplayer(t *testing.T) {
	mem := NewMemFS()
	r := NewRenderer(nil, &fakeCompiler{fs: mem}, WithFileSystem(mem))
	_, err := r.Render(context.Background(), NewRequest("a"))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRenderDisplayerErrorPropagates(t *testing.T) {
	r, _, _, disp := newTestRenderer()
	disp.err = errors.New("no terminal")
	if _, err := r.Render(context.Background(), NewRequest("a")); err != disp.err {
		t.Fatalf("expected displayer error, got %v", err)
	}
}

func TestRenderCompilerErrorPropagatesUnchanged(t *testing.T) {
	r, mem, fc, _ := newTestRenderer()
	fc.err = errors.New("error: unclosed delimiter")
	req := NewRequest("a [")
	req.ImagePath = "bad.svg"

	_, err := r.Render(context.Background(), req)
	if err != fc.err {
		t.Fatalf("compiler error was altered: %v", err)
	}
	if !reflect.DeepEqual(mem.Files(), []string{"bad.typ"}) {
		t.Fatalf("source file should remain without image, files = %v", mem.Files())
	}
}

func TestRenderExplicitSourcePath(t *testing.T) {
	r, mem, _, _ := newTestRenderer()
	req := Request{Formula: "a", SourcePath: "src.typ", ImagePath: "img.svg"}
	if _, err := r.Render(context.Background(), req); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !reflect.DeepEqual(mem.Files(), []string{"img.svg", "src.typ"}) {
		t.Fatalf("files = %v", mem.Files())
	}
}

func TestRenderRepeatedCallsRecompile(t *testing.T) {
	r, _, fc, _ := newTestRenderer()
	req := Request{Formula: "a", ImagePath: "a.svg"}
	for i := 0; i < 3; i++ {
		if _, err := r.Render(context.Background(), req); err != nil {
			t.Fatalf("render %d failed: %v", i, err)
		}
	}
	if len(fc.calls) != 3 {
		t.Fatalf("expected 3 compiler calls, got %d", len(fc.calls))
	}
}

func TestRenderMissingParentDirectorySurfacesFSError(t *testing.T) {
	r, _, fc, _ := newTestRenderer()
	req := Request{Formula: "a", ImagePath: "missing/dir/a.svg"}
	_, err := r.Render(context.Background(), req)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if len(fc.calls) != 0 {
		t.Fatalf("compiler must not run when the source cannot be written")
	}
}

func TestRenderWithoutCompiler(t *testing.T) {
	r := NewRenderer(nil, nil, WithFileSystem(NewMemFS()))
	if _, err := r.Render(context.Background(), Request{Formula: "a", ImagePath: "a.svg"}); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRenderOSFS(t *testing.T) {
	dir := t.TempDir()
	c := compiler.Func(func(_ context.Context, sourcePath, format string) ([]byte, error) {
		src, err := os.ReadFile(sourcePath)
		if err != nil {
			return nil, err
		}
		return compiledBytes(src, format), nil
	})
	r := NewRenderer(nil, c, WithOutputDir(filepath.Join(dir, "output")))
	req := Request{Formula: "E = m c^2", Name: "energy", Format: "svg"}

	res, err := r.Render(context.Background(), req)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	src, err := os.ReadFile(res.SourcePath)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	img, err := os.ReadFile(res.ImagePath)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if string(img) != string(compiledBytes(src, "svg")) {
		t.Fatalf("image mismatch: %q", img)
	}
	info, err := os.Stat(res.ImagePath)
	if err != nil {
		t.Fatalf("stat image: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("image permissions = %o", perm)
	}
}

func TestOSFSReplacesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.svg")
	link := filepath.Join(dir, "link.svg")
	if err := os.WriteFile(target, []byte("old"), 0o644); err != nil {
		t.Fatalf("write target: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if err := (OSFS{}).WriteFile(link, []byte("new")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("lstat: %v", err)
	}
	if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
		t.Fatalf("link should be replaced by a regular file, mode = %v", info.Mode())
	}
	if got, _ := os.ReadFile(link); string(got) != "new" {
		t.Fatalf("link content = %q", got)
	}
	if got, _ := os.ReadFile(target); string(got) != "old" {
		t.Fatalf("target must stay untouched, got %q", got)
	}
}
