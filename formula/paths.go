package formula

import (
	"path/filepath"
	"strings"
)

// 文件扩展名与默认输出位置。
const (
	SourceExt        = ".typ"
	ImageExt         = ".svg"
	DefaultOutputDir = "output"
	defaultSource    = "output" + SourceExt
	defaultImage     = "output" + ImageExt
)

// resolvedPaths 是一次渲染最终使用的两个文件路径。
type resolvedPaths struct {
	source string
	image  string
}

// resolvePaths 依次按 name、显式图片路径、预览默认值确定输出路径。
// name 模式下图片扩展名固定为 .svg，与请求的格式无关。
func (r *Renderer) resolvePaths(req Request) (resolvedPaths, error) {
	if req.Name != "" {
		if err := r.fs.MkdirAll(r.outputDir); err != nil {
			return resolvedPaths{}, err
		}
		return resolvedPaths{
			source: filepath.Join(r.outputDir, req.Name+SourceExt),
			image:  filepath.Join(r.outputDir, req.Name+ImageExt),
		}, nil
	}
	if req.ImagePath != "" {
		source := req.SourcePath
		if source == "" {
			source = ReplaceExt(req.ImagePath, SourceExt)
		}
		return resolvedPaths{source: source, image: req.ImagePath}, nil
	}
	if !req.Preview {
		return resolvedPaths{}, NewConfigError("image_path", "未指定 name 且不预览时必须给出图片路径")
	}
	return resolvedPaths{source: defaultSource, image: defaultImage}, nil
}

// SplitExt 将路径拆成主体与扩展名。文件名开头的点不视为扩展名的起点，
// 因此 ".svg" 没有扩展名，而 "a.tar.gz" 的扩展名是 ".gz"。
func SplitExt(path string) (root, ext string) {
	ext = filepath.Ext(path)
	if ext == "" {
		return path, ""
	}
	base := filepath.Base(path)
	leading := len(base) - len(strings.TrimLeft(base, "."))
	if len(base)-len(ext) < leading {
		return path, ""
	}
	return path[:len(path)-len(ext)], ext
}

// ReplaceExt 用 ext 替换 path 的扩展名；没有扩展名时直接追加。
func ReplaceExt(path, ext string) string {
	root, _ := SplitExt(path)
	return root + ext
}
