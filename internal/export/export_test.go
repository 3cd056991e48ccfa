package export

import (
	"testing"
	"time"

	"adBuilder/internal/editor"
	"adBuilder/internal/model"
	"adBuilder/internal/pricing"
)

func strPtr(s string) *string { return &s }

func TestBuildResolvesPagesInOrder(t *testing.T) {
	ad := model.Ad{
		ID: "ad1", Name: "Week 18", Status: model.StatusApproved, Version: 2,
		Sections: []model.Section{
			{ID: "s1", Name: "Front", Pages: []model.Page{{
				ID: "P1", TemplateID: strPtr("hero"), PageType: model.PageFrontCover,
				Blocks: []model.PlacedBlock{
					{ID: "top", BlockDataID: "bd1", ZoneID: strPtr("z1"), Width: 100, Height: 100, ZIndex: 3},
					{ID: "bottom", BlockDataID: "bd2", Width: 100, Height: 100, ZIndex: 1},
					{ID: "orphan", BlockDataID: "gone", Width: 10, Height: 10, ZIndex: 1},
				},
			}}},
			{ID: "s2", Name: "Produce", Pages: []model.Page{{ID: "P2"}}},
		},
	}
	img := "https://img/a.png"
	blocks := map[string]model.BlockData{
		"bd1": {ID: "bd1", UPC: "A", BlockType: model.BlockTypeProduct, Feed: model.FeedPayload{
			ProductName: "Apples", Images: model.Images{Product: &img},
			Price: &model.PriceData{PriceType: model.PriceEach, AdPrice: func() *float64 { v := 1.99; return &v }()},
		}},
		"bd2": {ID: "bd2", BlockType: model.BlockTypePromotional, Feed: model.FeedPayload{PriceText: "$1 Deals"}},
	}
	templates := editor.TemplateSet{"hero": {
		ID: "hero", Canvas: model.Canvas{Width: 800, Height: 1200},
		Zones:            []model.TemplateZone{{ID: "z1", TextLayout: "overlay"}},
		BackgroundLayers: []model.BackgroundLayer{{Kind: "full_bleed_image", ImageURL: "https://img/bg.png"}},
	}}

	store := pricing.NewStore()
	store.ImportFeed([]model.BlockData{blocks["bd1"]})
	cheaper := 0.99
	store.LoadOverride(model.RegionMidwest, "A", model.PriceData{PriceType: model.PriceEach, AdPrice: &cheaper})

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := Build(ad, blocks, templates, store.In(model.RegionMidwest), Options{Region: model.RegionMidwest, Now: now})

	if len(p.Pages) != 2 || p.Pages[0].Number != 1 || p.Pages[1].Number != 2 {
		t.Fatalf("unexpected pages %+v", p.Pages)
	}
	first := p.Pages[0]
	if first.Canvas.Width != 800 || first.Template == nil || first.SectionName != "Front" {
		t.Fatalf("template not attached: %+v", first)
	}
	if len(first.Blocks) != 3 || first.Blocks[0].ID != "bottom" || first.Blocks[1].ID != "orphan" || first.Blocks[2].ID != "top" {
		t.Fatalf("blocks not ordered by zIndex: %+v", first.Blocks)
	}
	top := first.Blocks[2]
	if top.Price == nil || top.Price.Display != "99¢" {
		t.Fatalf("regional price not applied: %+v", top.Price)
	}
	if top.TextLayout != "overlay" {
		t.Fatalf("zone text layout missing: %q", top.TextLayout)
	}
	if first.Blocks[0].DisplayMode != "sale_band" || first.Blocks[0].PriceText != "$1 Deals" {
		t.Fatalf("promo block: %+v", first.Blocks[0])
	}
	if p.Pages[1].Canvas != model.DefaultCanvas || len(p.Pages[1].Blocks) != 0 {
		t.Fatalf("empty page: %+v", p.Pages[1])
	}
	if p.Zoom != 1 || !p.GeneratedAt.Equal(now) {
		t.Fatalf("payload meta %+v", p)
	}

	urls := p.ImageURLs()
	if len(urls) != 2 || urls[0] != "https://img/bg.png" || urls[1] != img {
		t.Fatalf("image urls %v", urls)
	}
}
