package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// MaxPixels 限制预览图任一边的像素数。
const MaxPixels = 4096

// Rasterize 将 SVG 绘制到白色背景上并编码为 PNG。像素尺寸为 viewBox
// 尺寸乘以 scale。
func Rasterize(r io.Reader, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1
	}
	icon, err := oksvg.ReadIconStream(r, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("读取 SVG 失败: %w", err)
	}
	w := int(math.Ceil(icon.ViewBox.W * scale))
	h := int(math.Ceil(icon.ViewBox.H * scale))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("SVG 尺寸无效: %vx%v", icon.ViewBox.W, icon.ViewBox.H)
	}
	if w > MaxPixels || h > MaxPixels {
		shrink := float64(MaxPixels) / float64(max(w, h))
		w = max(1, int(float64(w)*shrink))
		h = max(1, int(float64(h)*shrink))
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("编码 PNG 失败: %w", err)
	}
	return buf.Bytes(), nil
}
