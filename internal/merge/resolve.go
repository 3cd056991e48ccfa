// Package merge 把区块覆盖项叠加到 feed 数据与实时价格上，得到可直接渲染的区块描述。
// 解析是纯函数：不修改输入，相同输入总是得到相同输出。
package merge

import (
	"math"

	"adBuilder/internal/geometry"
	"adBuilder/internal/model"
)

// 展示模式
const (
	ModeProductImage   = "product_image"
	ModeLifestyleImage = "lifestyle_image"
	ModePriceCircle    = "price_circle"
	ModeSaleBand       = "sale_band"
	ModeStampOverlay   = "stamp_overlay"
	ModeTextOnly       = "text_only"
)

// 图片类型
const (
	ImageProduct   = "product"
	ImageLifestyle = "lifestyle"
)

const (
	priceCircleRatio = 0.35
	priceCircleMin   = 40.0
	priceCircleMax   = 160.0

	defaultTextLayout = "stacked"
)

// PriceSource 是价格存储的只读接口。
type PriceSource interface {
	GetPrice(upc string) *model.PriceData
	RecentlyUpdated(upc string) bool
}

type Options struct {
	// 超出范围会被限制，0 表示 1
	Zoom float64
	// 区块所属的模板区域，可为空
	Zone *model.TemplateZone
}

// Stamp 是解析后的角标。
type Stamp struct {
	Type  string  `json:"type"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
	Shape string  `json:"shape"`
	Size  float64 `json:"size"`
}

// Image 是选中的图片，区块没有该类型图片时 Placeholder 为 true。
type Image struct {
	Kind        string  `json:"kind"`
	URL         *string `json:"url"`
	Placeholder bool    `json:"placeholder"`
}

// PriceCircle 是浮动的价格圆形装饰。
type PriceCircle struct {
	Size     float64 `json:"size"`
	XPercent float64 `json:"xPercent"`
	YPercent float64 `json:"yPercent"`
}

type Price struct {
	Data            model.PriceData `json:"data"`
	Display         string          `json:"display"`
	Savings         string          `json:"savings,omitempty"`
	FromStore       bool            `json:"fromStore"`
	RecentlyUpdated bool            `json:"recentlyUpdated"`
}

// RenderableBlock 是解析后的扁平结果，几何信息同时给出设计单位和当前缩放下的像素值。
type RenderableBlock struct {
	ID          string     `json:"id"`
	PageID      string     `json:"pageId"`
	BlockDataID string     `json:"blockDataId"`
	ZoneID      *string    `json:"zoneId"`
	BlockType   string     `json:"blockType"`
	Rect        model.Rect `json:"rect"`
	Screen      model.Rect `json:"screen"`
	Zoom        float64    `json:"zoom"`
	ZIndex      int        `json:"zIndex"`

	DisplayMode string `json:"displayMode"`
	ProductName string `json:"productName"`
	Brand       string `json:"brand,omitempty"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Disclaimer  string `json:"disclaimer"`

	Stamps      []Stamp      `json:"stamps"`
	Image       Image        `json:"image"`
	PriceCircle *PriceCircle `json:"priceCircle,omitempty"`
	Price       *Price       `json:"price,omitempty"`
	PriceText   string       `json:"priceText,omitempty"`

	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
	TextLayout      string `json:"textLayout"`
}

// Resolve 计算 pb 的渲染描述。BlockData 未加载时 block 为 nil，
// 结果只包含覆盖项提供的内容。
func Resolve(pb model.PlacedBlock, block *model.BlockData, prices PriceSource, opts Options) RenderableBlock {
	var (
		feed      model.FeedPayload
		blockType string
		upc       string
	)
	if block != nil {
		feed = block.Feed
		blockType = block.BlockType
		upc = block.UPC
	}
	ov := pb.Overrides
	zoom := geometry.ClampZoom(opts.Zoom)

	out := RenderableBlock{
		ID:          pb.ID,
		PageID:      pb.PageID,
		BlockDataID: pb.BlockDataID,
		ZoneID:      copyString(pb.ZoneID),
		BlockType:   blockType,
		Rect:        pb.Rect(),
		Screen:      geometry.ScaleRect(pb.Rect(), zoom),
		Zoom:        zoom,
		ZIndex:      pb.ZIndex,
		ProductName: feed.ProductName,
		Brand:       feed.Brand,
	}

	out.DisplayMode = resolveDisplayMode(ov, blockType)
	out.Headline = resolveTextField(ov, model.OverrideHeadline, feed.Headline)
	out.Description = resolveTextField(ov, model.OverrideDescription, feed.Description)
	out.Disclaimer = resolveTextField(ov, model.OverrideDisclaimer, feed.Disclaimer)
	out.PriceText = resolveTextField(ov, model.OverridePriceText, feed.PriceText)
	out.Stamps = resolveStamps(ov, feed.Stamps, out.DisplayMode, zoom)
	out.Image = resolveImage(ov, feed.Images, out.DisplayMode)
	out.Price = resolvePrice(upc, feed.Price, prices)

	if ov.Bool(model.OverridePriceCircleOverlay) {
		out.PriceCircle = resolvePriceCircle(ov, out.Screen)
	}

	bg, fg := defaultColors(out.DisplayMode)
	out.BackgroundColor = resolveTextField(ov, model.OverrideBackgroundColor, bg)
	out.TextColor = resolveTextField(ov, model.OverrideTextColor, fg)

	layout := defaultTextLayout
	if opts.Zone != nil && opts.Zone.TextLayout != "" {
		layout = opts.Zone.TextLayout
	}
	out.TextLayout = resolveTextField(ov, model.OverrideTextLayout, layout)
	return out
}

// resolveTextField 覆盖项是非空字符串时使用覆盖值，否则用 fallback。
// 空字符串视为未设置，清空输入框不会抹掉继承的 feed 文本。
func resolveTextField(ov model.Overrides, key, fallback string) string {
	if s := ov.String(key); s != "" {
		return s
	}
	return fallback
}

func resolveDisplayMode(ov model.Overrides, blockType string) string {
	if mode := ov.String(model.OverrideDisplayMode); mode != "" {
		return mode
	}
	if blockType == model.BlockTypePromotional {
		return ModeSaleBand
	}
	return ModeProductImage
}

func supportsStamps(mode string) bool {
	switch mode {
	case ModeSaleBand, ModeTextOnly:
		return false
	default:
		return true
	}
}

func resolveStamps(ov model.Overrides, feedStamps []string, mode string, zoom float64) []Stamp {
	types := feedStamps
	if override, ok := ov.Strings(model.OverrideStamps); ok {
		types = override
	}
	if !supportsStamps(mode) || len(types) == 0 {
		return []Stamp{}
	}
	if len(types) > MaxRenderedStamps {
		types = types[:MaxRenderedStamps]
	}

	colors := ov.StringMap(model.OverrideStampColors)
	shapes := ov.StringMap(model.OverrideStampShapes)
	texts := ov.StringMap(model.OverrideStampTexts)
	sizes := ov.FloatMap(model.OverrideStampSizes)

	out := make([]Stamp, 0, len(types))
	for _, t := range types {
		def := StampDefaultFor(t)
		st := Stamp{Type: t, Text: def.Text, Color: def.Color, Shape: def.Shape, Size: DefaultStampSize}
		if v := colors[t]; v != "" {
			st.Color = v
		}
		if v := shapes[t]; v != "" {
			st.Shape = v
		}
		if v := texts[t]; v != "" {
			st.Text = v
		}
		if v, ok := sizes[t]; ok && v > 0 {
			st.Size = v
		}
		st.Size = geometry.Scale(st.Size, zoom)
		out = append(out, st)
	}
	return out
}

func resolveImage(ov model.Overrides, images model.Images, mode string) Image {
	kind := ImageProduct
	if mode == ModeLifestyleImage || ov.String(model.OverrideActiveImage) == ImageLifestyle {
		kind = ImageLifestyle
	}
	url := images.Product
	if kind == ImageLifestyle {
		url = images.Lifestyle
	}
	if url != nil && *url == "" {
		url = nil
	}
	return Image{Kind: kind, URL: copyString(url), Placeholder: url == nil}
}

func resolvePrice(upc string, embedded *model.PriceData, prices PriceSource) *Price {
	var (
		data      *model.PriceData
		fromStore bool
	)
	if upc != "" && prices != nil {
		if p := prices.GetPrice(upc); p != nil {
			data, fromStore = p, true
		}
	}
	if data == nil && embedded != nil {
		cp := *embedded
		data = &cp
	}
	if data == nil {
		return nil
	}
	out := &Price{
		Data:      *data,
		Display:   FormatPrice(data),
		Savings:   FormatSavings(data),
		FromStore: fromStore,
	}
	if upc != "" && prices != nil {
		out.RecentlyUpdated = prices.RecentlyUpdated(upc)
	}
	return out
}

// resolvePriceCircle 按区块在屏幕上的尺寸计算价格圆。
func resolvePriceCircle(ov model.Overrides, screen model.Rect) *PriceCircle {
	scale, ok := ov.Float(model.OverridePriceScale)
	if !ok || scale <= 0 {
		scale = 1
	}
	base := math.Min(screen.Width, screen.Height) * priceCircleRatio
	size := math.Max(priceCircleMin, math.Min(base*scale, priceCircleMax))

	x, ok := ov.Float(model.OverridePriceX)
	if !ok {
		x = 50
	}
	y, ok := ov.Float(model.OverridePriceY)
	if !ok {
		y = 50
	}
	return &PriceCircle{Size: size, XPercent: x, YPercent: y}
}

func defaultColors(mode string) (background, text string) {
	switch mode {
	case ModeSaleBand:
		return "#C8102E", "#FFFFFF"
	case ModeStampOverlay:
		return "#FFF4D6", "#1A1A1A"
	default:
		return "#FFFFFF", "#1A1A1A"
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
