package layout

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/natefinch/atomic"
)

// EncodeDebugJSON 将排版结果以缩进 JSON 写入 w。
func EncodeDebugJSON(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteDebugJSON 将排版结果输出到 path，便于调试或可视化。res 为空时不写文件。
func WriteDebugJSON(res *Result, path string) error {
	if res == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := EncodeDebugJSON(&buf, res); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}
