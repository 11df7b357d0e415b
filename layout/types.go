package layout

// 该文件定义公式排版结果，供 canvas 编译器绘制与调试 JSON 共用。所有长度单位均为 mm。

// Result 保存单页公式的排版结果。
type Result struct {
	Page     Size    `json:"page"`
	Margin   Margin  `json:"margin"`
	Content  Box     `json:"content"`
	Align    string  `json:"align"`
	FontSize float64 `json:"fontSize"`
	Fill     Color   `json:"fill"`
	Formula  string  `json:"formula"`
	LaTeX    string  `json:"latex"`
}

// Size 表示宽高。
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Box 以页面左上角为原点描述一个矩形。
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// PageSpec 描述页面约束：Width/Height 为 nil 时页面随内容自适应。
type PageSpec struct {
	Width  *float64
	Height *float64
	Margin Margin
	Align  Alignment
}

// Place 计算内容在页面上的位置。自适应方向上页面等于内容加边距，
// 固定方向上内容在去掉边距后的区域内按对齐方式放置。
func Place(spec PageSpec, content Size) (Size, Box) {
	page := Size{
		Width:  content.Width + spec.Margin.Left + spec.Margin.Right,
		Height: content.Height + spec.Margin.Top + spec.Margin.Bottom,
	}
	if spec.Width != nil {
		page.Width = *spec.Width
	}
	if spec.Height != nil {
		page.Height = *spec.Height
	}
	areaW := page.Width - spec.Margin.Left - spec.Margin.Right
	areaH := page.Height - spec.Margin.Top - spec.Margin.Bottom
	dx, dy := spec.Align.Offset(areaW, areaH, content.Width, content.Height)
	return page, Box{
		X:      spec.Margin.Left + dx,
		Y:      spec.Margin.Top + dy,
		Width:  content.Width,
		Height: content.Height,
	}
}
