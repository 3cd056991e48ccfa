package worker

import (
	"adBuilder/internal/export"
	"adBuilder/internal/model"
)

// PrintWarning 对应内部打印接口附带的警告。
type PrintWarning struct {
	Code        int      `json:"code"`
	Message     string   `json:"message"`
	MissingKeys []string `json:"missing_keys,omitempty"`
}

// PrintData 是内部打印接口返回、并注入到前端打印页的数据。
type PrintData struct {
	export.Payload
	Warnings []PrintWarning `json:"warnings,omitempty"`
}

// printDocument 是兜底 HTML 渲染的视图模型。
type printDocument struct {
	Title          string
	Pages          []export.Page
	ReadyTimeoutMs int64
}

// 每英寸 96 CSS 像素
const cssPixelsPerInch = 96.0

// paperSize 按第一页画布计算 PDF 纸张尺寸，单位英寸。
func paperSize(data PrintData) (float64, float64) {
	canvas := model.DefaultCanvas
	if len(data.Pages) > 0 && data.Pages[0].Canvas.Width > 0 && data.Pages[0].Canvas.Height > 0 {
		canvas = data.Pages[0].Canvas
	}
	return canvas.Width / cssPixelsPerInch, canvas.Height / cssPixelsPerInch
}
