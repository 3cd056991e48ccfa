// Package export 按页生成 PDF 渲染使用的合并数据。
package export

import (
	"sort"
	"time"

	"adBuilder/internal/geometry"
	"adBuilder/internal/merge"
	"adBuilder/internal/model"
)

type Templates interface {
	Template(id string) (model.Template, bool)
}

// Page 是一张可打印的页面。
type Page struct {
	ID          string                  `json:"id"`
	SectionID   string                  `json:"sectionId"`
	SectionName string                  `json:"sectionName"`
	ThemeColor  string                  `json:"themeColor,omitempty"`
	PageType    string                  `json:"pageType"`
	Number      int                     `json:"number"`
	Canvas      model.Canvas            `json:"canvas"`
	Template    *model.Template         `json:"template,omitempty"`
	Blocks      []merge.RenderableBlock `json:"blocks"`
}

// Payload 是完整的导出文档。
type Payload struct {
	AdID        string     `json:"adId"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
	Region      string     `json:"region,omitempty"`
	ValidFrom   *time.Time `json:"validFrom,omitempty"`
	ValidTo     *time.Time `json:"validTo,omitempty"`
	Zoom        float64    `json:"zoom"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Pages       []Page     `json:"pages"`
}

type Options struct {
	Region string
	Zoom   float64
	Now    time.Time
}

// Build 按分区顺序逐页解析所有区块。页内按 zIndex 排序，相同时保持文档顺序。
func Build(ad model.Ad, blocks map[string]model.BlockData, templates Templates, prices merge.PriceSource, opts Options) Payload {
	out := Payload{
		AdID:        ad.ID,
		Name:        ad.Name,
		Status:      ad.Status,
		Version:     ad.Version,
		Region:      opts.Region,
		ValidFrom:   ad.ValidFrom,
		ValidTo:     ad.ValidTo,
		Zoom:        geometry.ClampZoom(opts.Zoom),
		GeneratedAt: opts.Now,
		Pages:       []Page{},
	}
	number := 0
	for _, section := range ad.Sections {
		for _, page := range section.Pages {
			number++
			p := Page{
				ID:          page.ID,
				SectionID:   section.ID,
				SectionName: section.Name,
				ThemeColor:  section.ThemeColor,
				PageType:    page.PageType,
				Number:      number,
				Canvas:      model.DefaultCanvas,
			}
			var tpl model.Template
			hasTpl := false
			if page.TemplateID != nil && templates != nil {
				tpl, hasTpl = templates.Template(*page.TemplateID)
			}
			if hasTpl {
				t := tpl
				p.Template = &t
				if tpl.Canvas.Width > 0 && tpl.Canvas.Height > 0 {
					p.Canvas = tpl.Canvas
				}
			}

			p.Blocks = make([]merge.RenderableBlock, 0, len(page.Blocks))
			for _, pb := range page.Blocks {
				opt := merge.Options{Zoom: opts.Zoom}
				if hasTpl && pb.ZoneID != nil {
					if z, ok := tpl.Zone(*pb.ZoneID); ok {
						opt.Zone = &z
					}
				}
				var bd *model.BlockData
				if b, ok := blocks[pb.BlockDataID]; ok {
					bd = &b
				}
				p.Blocks = append(p.Blocks, merge.Resolve(pb, bd, prices, opt))
			}
			sort.SliceStable(p.Blocks, func(i, j int) bool {
				return p.Blocks[i].ZIndex < p.Blocks[j].ZIndex
			})
			out.Pages = append(out.Pages, p)
		}
	}
	return out
}

// ImageURLs 按出现顺序列出引用到的图片，去重。
func (p Payload) ImageURLs() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, page := range p.Pages {
		if page.Template != nil {
			for _, l := range page.Template.BackgroundLayers {
				add(l.ImageURL)
			}
		}
		for _, b := range page.Blocks {
			if b.Image.URL != nil {
				add(*b.Image.URL)
			}
		}
	}
	return out
}
