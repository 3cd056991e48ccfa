// Package geometry 提供放置区块用到的纯坐标计算：画布裁剪、吸附、自动填充与缩放。
package geometry

import (
	"math"

	"adBuilder/internal/model"
)

const (
	// DefaultSnapThreshold 吸附距离，单位为设计单位。
	DefaultSnapThreshold = 40.0

	MinZoom = 0.25
	MaxZoom = 2.0
)

// DefaultBlockRect 区块没有落入任何区域时使用。
var DefaultBlockRect = model.Rect{X: 40, Y: 40, Width: 200, Height: 250}

// ClampToCanvas 把矩形限制在 canvasW x canvasH 内：先把尺寸截到画布大小，
// 再把位置拉回，保证远端边缘不出画布。
func ClampToCanvas(x, y, w, h, canvasW, canvasH float64) model.Rect {
	canvasW = math.Max(0, canvasW)
	canvasH = math.Max(0, canvasH)
	w = clamp(w, 0, canvasW)
	h = clamp(h, 0, canvasH)
	return model.Rect{
		X:      math.Max(0, math.Min(x, canvasW-w)),
		Y:      math.Max(0, math.Min(y, canvasH-h)),
		Width:  w,
		Height: h,
	}
}

// SnapToZone 按列表顺序返回第一个中心点与落点距离在 threshold 内的区域。
// threshold 非正时用默认值。
func SnapToZone(dropX, dropY float64, zones []model.TemplateZone, threshold float64) (string, bool) {
	if threshold <= 0 {
		threshold = DefaultSnapThreshold
	}
	for _, z := range zones {
		cx, cy := z.Rect().Center()
		if math.Hypot(cx-dropX, cy-dropY) <= threshold {
			return z.ID, true
		}
	}
	return "", false
}

// NextEmptyZone 按定义顺序返回第一个没有区块占用的区域。
func NextEmptyZone(zones []model.TemplateZone, blocks []model.PlacedBlock) (model.TemplateZone, bool) {
	occupied := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if b.ZoneID != nil {
			occupied[*b.ZoneID] = struct{}{}
		}
	}
	for _, z := range zones {
		if _, ok := occupied[z.ID]; !ok {
			return z, true
		}
	}
	return model.TemplateZone{}, false
}

// ClampZoom 把缩放限制在 [MinZoom, MaxZoom]。0 表示未设置，与 NaN、无穷一样回落到 1；
// 负数按 MinZoom 处理。
func ClampZoom(zoom float64) float64 {
	if zoom == 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return 1
	}
	return clamp(zoom, MinZoom, MaxZoom)
}

// Scale 把设计单位换算成屏幕像素。
func Scale(v, zoom float64) float64 {
	return v * zoom
}

func ScaleRect(r model.Rect, zoom float64) model.Rect {
	return model.Rect{
		X:      Scale(r.X, zoom),
		Y:      Scale(r.Y, zoom),
		Width:  Scale(r.Width, zoom),
		Height: Scale(r.Height, zoom),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
