package model

import (
	"strings"
	"time"
)

// PriceType 是 feed 中结构化价格的类型。
type PriceType string

const (
	PriceEach   PriceType = "each"
	PricePerLb  PriceType = "per_lb"
	PriceXForY  PriceType = "x_for_y"
	PriceBOGO   PriceType = "bogo"
	PricePctOff PriceType = "pct_off"
)

// PriceData 表示一个商品的价格。AdPrice 为 nil 时只展示 PriceDisplay 文案。
type PriceData struct {
	PriceType    PriceType `json:"priceType"`
	AdPrice      *float64  `json:"adPrice"`
	RegularPrice *float64  `json:"regularPrice,omitempty"`
	UnitCount    int       `json:"unitCount,omitempty"`
	PercentOff   float64   `json:"percentOff,omitempty"`
	SavingsText  string    `json:"savingsText,omitempty"`
	PriceDisplay string    `json:"priceDisplay,omitempty"`
}

// SameAdPrice 判断两个价格的促销价数值是否相同。
func (p PriceData) SameAdPrice(other PriceData) bool {
	switch {
	case p.AdPrice == nil && other.AdPrice == nil:
		return true
	case p.AdPrice == nil || other.AdPrice == nil:
		return false
	default:
		return *p.AdPrice == *other.AdPrice
	}
}

// 区块类型
const (
	BlockTypeProduct     = "product"
	BlockTypePromotional = "promotional"
)

// Images 区块可提供的两种图片。
type Images struct {
	Product   *string `json:"product"`
	Lifestyle *string `json:"lifestyle"`
}

// FeedPayload 是 BlockData 的商品内容。
type FeedPayload struct {
	ProductName string     `json:"productName"`
	Brand       string     `json:"brand,omitempty"`
	Category    string     `json:"category,omitempty"`
	Price       *PriceData `json:"price,omitempty"`
	PriceText   string     `json:"priceText,omitempty"`
	Images      Images     `json:"images"`
	Stamps      []string   `json:"stamps,omitempty"`
	Headline    string     `json:"headline,omitempty"`
	Description string     `json:"description,omitempty"`
	Disclaimer  string     `json:"disclaimer,omitempty"`
	ValidFrom   *time.Time `json:"validFrom,omitempty"`
	ValidTo     *time.Time `json:"validTo,omitempty"`
	Region      string     `json:"region,omitempty"`
}

// BlockData 是可复用的商品或促销记录，只整体替换，不做局部修改。
type BlockData struct {
	ID        string      `json:"blockId"`
	AdID      string      `json:"adId"`
	UPC       string      `json:"upc,omitempty"`
	BlockType string      `json:"blockType"`
	Feed      FeedPayload `json:"feedJson"`
}

// 区域角色，仅作提示
const (
	ZoneRoleHero       = "hero"
	ZoneRoleFeatured   = "featured"
	ZoneRoleSupporting = "supporting"
	ZoneRoleAccent     = "accent"
	ZoneRoleBanner     = "banner"
	ZoneRoleCallout    = "callout"
)

// Rect 是设计单位下的轴对齐矩形。
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// TemplateZone 是建议的放置位置。
type TemplateZone struct {
	ID                  string   `json:"id" toml:"id"`
	Role                string   `json:"role" toml:"role"`
	X                   float64  `json:"x" toml:"x"`
	Y                   float64  `json:"y" toml:"y"`
	Width               float64  `json:"width" toml:"width"`
	Height              float64  `json:"height" toml:"height"`
	ZIndex              int      `json:"zIndex" toml:"z_index"`
	AllowedContentTypes []string `json:"allowedContentTypes,omitempty" toml:"allowed_content_types"`
	SizeVariant         string   `json:"sizeVariant,omitempty" toml:"size_variant"`
	TextLayout          string   `json:"textLayout,omitempty" toml:"text_layout"`
	SnapHint            string   `json:"snapHint,omitempty" toml:"snap_hint"`
}

func (z TemplateZone) Rect() Rect {
	return Rect{X: z.X, Y: z.Y, Width: z.Width, Height: z.Height}
}

// Canvas 模板尺寸，设计单位。
type Canvas struct {
	Width  float64 `json:"width" toml:"width"`
	Height float64 `json:"height" toml:"height"`
}

// DefaultCanvas 用于没有模板的页面。
var DefaultCanvas = Canvas{Width: 1000, Height: 1400}

// PendingIDPrefix 标记尚未被数据库确认的区块 id。
const PendingIDPrefix = "tmp-"

// IsPendingID 判断 id 是否为本地生成的临时 id。
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, PendingIDPrefix)
}

// BackgroundLayer 是绘制在区块下方的背景装饰。
// Kind 取值 solid、gradient、diagonal_split、wave、full_bleed_image。
type BackgroundLayer struct {
	Kind     string   `json:"kind" toml:"kind"`
	ZIndex   int      `json:"zIndex" toml:"z_index"`
	Colors   []string `json:"colors,omitempty" toml:"colors"`
	Angle    float64  `json:"angle,omitempty" toml:"angle"`
	ImageURL string   `json:"imageUrl,omitempty" toml:"image_url"`
}

// Template 是可复用的页面布局。
type Template struct {
	ID               string            `json:"id" toml:"id"`
	Name             string            `json:"name" toml:"name"`
	IsSystem         bool              `json:"isSystem" toml:"-"`
	Canvas           Canvas            `json:"canvas" toml:"canvas"`
	BackgroundLayers []BackgroundLayer `json:"backgroundLayers" toml:"background_layers"`
	Zones            []TemplateZone    `json:"zones" toml:"zones"`
}

func (t Template) Zone(id string) (TemplateZone, bool) {
	for _, z := range t.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return TemplateZone{}, false
}

// PlacedBlock 是 BlockData 在页面上的一次放置。
type PlacedBlock struct {
	ID          string    `json:"id"`
	PageID      string    `json:"pageId"`
	BlockDataID string    `json:"blockDataId"`
	ZoneID      *string   `json:"zoneId"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	ZIndex      int       `json:"zIndex"`
	Overrides   Overrides `json:"overrides"`
}

func (p PlacedBlock) Rect() Rect {
	return Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

// 页面类型
const (
	PageFrontCover = "front_cover"
	PageBackCover  = "back_cover"
	PageInterior   = "interior"
	PageCenterfold = "centerfold"
)

// Page 包含区块，最多引用一个模板。
type Page struct {
	ID         string        `json:"id"`
	SectionID  string        `json:"sectionId"`
	TemplateID *string       `json:"templateId"`
	PageType   string        `json:"pageType"`
	Position   int           `json:"position"`
	Blocks     []PlacedBlock `json:"blocks"`
}

// Section 是页面分组。
type Section struct {
	ID         string `json:"id"`
	AdID       string `json:"adId"`
	Name       string `json:"name"`
	ThemeColor string `json:"themeColor,omitempty"`
	Position   int    `json:"position"`
	Pages      []Page `json:"pages"`
}

// 广告状态
const (
	StatusDraft     = "draft"
	StatusInReview  = "in_review"
	StatusApproved  = "approved"
	StatusPublished = "published"
)

// 已知地区。地区键不会按此列表校验。
const (
	RegionWestCoast = "WEST_COAST"
	RegionMidwest   = "MIDWEST"
	RegionEastCoast = "EAST_COAST"
)

// Ad 是聚合根。
type Ad struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	RegionIDs []string   `json:"regionIds"`
	ValidFrom *time.Time `json:"validFrom,omitempty"`
	ValidTo   *time.Time `json:"validTo,omitempty"`
	Status    string     `json:"status"`
	Version   int        `json:"version"`
	Sections  []Section  `json:"sections"`
}

// FindBlock 按 id 查找区块。
func (a *Ad) FindBlock(id string) (PlacedBlock, bool) {
	if a == nil {
		return PlacedBlock{}, false
	}
	for _, s := range a.Sections {
		for _, p := range s.Pages {
			for _, b := range p.Blocks {
				if b.ID == id {
					return b, true
				}
			}
		}
	}
	return PlacedBlock{}, false
}

func (a *Ad) FindPage(id string) (Page, bool) {
	if a == nil {
		return Page{}, false
	}
	for _, s := range a.Sections {
		for _, p := range s.Pages {
			if p.ID == id {
				return p, true
			}
		}
	}
	return Page{}, false
}

// PageCount 返回所有分区的页数之和。
func (a *Ad) PageCount() int {
	if a == nil {
		return 0
	}
	n := 0
	for _, s := range a.Sections {
		n += len(s.Pages)
	}
	return n
}

// IsPlaced 判断是否有区块引用 blockDataID。
func (a *Ad) IsPlaced(blockDataID string) bool {
	if a == nil {
		return false
	}
	for _, s := range a.Sections {
		for _, p := range s.Pages {
			for _, b := range p.Blocks {
				if b.BlockDataID == blockDataID {
					return true
				}
			}
		}
	}
	return false
}
