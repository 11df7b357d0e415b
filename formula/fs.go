package formula

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/natefinch/atomic"
)

// FileSystem 是渲染过程对文件系统的全部依赖：创建目录与覆盖写文件。
type FileSystem interface {
	MkdirAll(path string) error
	WriteFile(path string, data []byte) error
}

// OSFS 直接操作本地文件系统，写文件通过临时文件加 rename 原子完成。
//
// rename 替换的是目录项本身：如果 path 是符号链接，写入后链接被普通文件
// 取代，链接指向的原文件保持不变。
type OSFS struct{}

var _ FileSystem = OSFS{}

func (OSFS) MkdirAll(path string) error { return os.MkdirAll(path, 0o755) }

func (OSFS) WriteFile(path string, data []byte) error {
	_, statErr := os.Stat(path)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	// atomic 以 0600 创建新文件；已存在的文件保留原权限
	if errors.Is(statErr, fs.ErrNotExist) {
		return os.Chmod(path, 0o644)
	}
	return nil
}

// MemFS 是内存中的 FileSystem，供测试与预演使用。
// 与本地文件系统一致：父目录不存在时写入失败，当前目录总是存在。
type MemFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

var _ FileSystem = (*MemFS)(nil)

// NewMemFS 创建空的内存文件系统。
func NewMemFS() *MemFS {
	return &MemFS{
		files: map[string][]byte{},
		dirs:  map[string]bool{".": true},
	}
}

func (m *MemFS) MkdirAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		if _, isFile := m.files[p]; isFile {
			return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
		}
		m.dirs[p] = true
		if parent := filepath.Dir(p); parent == p {
			break
		}
	}
	return nil
}

func (m *MemFS) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clean := filepath.Clean(path)
	if m.dirs[clean] {
		return &fs.PathError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}
	if dir := filepath.Dir(clean); !m.dirs[dir] {
		return &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	m.files[clean] = append([]byte(nil), data...)
	return nil
}

// ReadFile 返回已写入文件内容的副本。
func (m *MemFS) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// Files 返回全部文件路径（已排序）。
func (m *MemFS) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsDir 报告 path 是否为已创建的目录。
func (m *MemFS) IsDir(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirs[filepath.Clean(path)]
}
