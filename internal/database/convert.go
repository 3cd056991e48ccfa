package database

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"adBuilder/internal/model"
)

func toJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func fromJSON(raw datatypes.JSON, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func adRow(ad model.Ad) (Ad, error) {
	regions, err := toJSON(ad.RegionIDs)
	if err != nil {
		return Ad{}, fmt.Errorf("encode regions: %w", err)
	}
	return Ad{
		ID:        ad.ID,
		Name:      ad.Name,
		RegionIDs: regions,
		ValidFrom: ad.ValidFrom,
		ValidTo:   ad.ValidTo,
		Status:    ad.Status,
		Version:   ad.Version,
	}, nil
}

func adModel(row Ad) (model.Ad, error) {
	ad := model.Ad{
		ID:        row.ID,
		Name:      row.Name,
		ValidFrom: row.ValidFrom,
		ValidTo:   row.ValidTo,
		Status:    row.Status,
		Version:   row.Version,
		RegionIDs: []string{},
		Sections:  []model.Section{},
	}
	if err := fromJSON(row.RegionIDs, &ad.RegionIDs); err != nil {
		return ad, fmt.Errorf("decode regions: %w", err)
	}
	return ad, nil
}

func blockRow(adID string, position int, b model.PlacedBlock) (PlacedBlock, error) {
	ov := b.Overrides
	if ov == nil {
		ov = model.Overrides{}
	}
	overrides, err := toJSON(ov)
	if err != nil {
		return PlacedBlock{}, fmt.Errorf("encode overrides: %w", err)
	}
	return PlacedBlock{
		ID:          b.ID,
		AdID:        adID,
		PageID:      b.PageID,
		BlockDataID: b.BlockDataID,
		ZoneID:      b.ZoneID,
		X:           b.X,
		Y:           b.Y,
		Width:       b.Width,
		Height:      b.Height,
		ZIndex:      b.ZIndex,
		Position:    position,
		Overrides:   overrides,
	}, nil
}

func blockModel(row PlacedBlock) (model.PlacedBlock, error) {
	b := model.PlacedBlock{
		ID:          row.ID,
		PageID:      row.PageID,
		BlockDataID: row.BlockDataID,
		ZoneID:      row.ZoneID,
		X:           row.X,
		Y:           row.Y,
		Width:       row.Width,
		Height:      row.Height,
		ZIndex:      row.ZIndex,
		Overrides:   model.Overrides{},
	}
	if err := fromJSON(row.Overrides, &b.Overrides); err != nil {
		return b, fmt.Errorf("decode overrides of %s: %w", row.ID, err)
	}
	if b.Overrides == nil {
		b.Overrides = model.Overrides{}
	}
	return b, nil
}

func blockDataRow(b model.BlockData) (BlockData, error) {
	feed, err := toJSON(b.Feed)
	if err != nil {
		return BlockData{}, fmt.Errorf("encode feed: %w", err)
	}
	return BlockData{ID: b.ID, AdID: b.AdID, UPC: b.UPC, BlockType: b.BlockType, Feed: feed}, nil
}

func blockDataModel(row BlockData) (model.BlockData, error) {
	b := model.BlockData{ID: row.ID, AdID: row.AdID, UPC: row.UPC, BlockType: row.BlockType}
	if err := fromJSON(row.Feed, &b.Feed); err != nil {
		return b, fmt.Errorf("decode feed of %s: %w", row.ID, err)
	}
	return b, nil
}

// templateContent 是 Template 行中 JSON 部分的结构。
type templateContent struct {
	Canvas           model.Canvas            `json:"canvas"`
	BackgroundLayers []model.BackgroundLayer `json:"backgroundLayers"`
	Zones            []model.TemplateZone    `json:"zones"`
}

func templateRow(t model.Template) (Template, error) {
	content, err := toJSON(templateContent{Canvas: t.Canvas, BackgroundLayers: t.BackgroundLayers, Zones: t.Zones})
	if err != nil {
		return Template{}, fmt.Errorf("encode template: %w", err)
	}
	return Template{ID: t.ID, Name: t.Name, IsSystem: t.IsSystem, Content: content}, nil
}

func templateModel(row Template) (model.Template, error) {
	var c templateContent
	if err := fromJSON(row.Content, &c); err != nil {
		return model.Template{}, fmt.Errorf("decode template %s: %w", row.ID, err)
	}
	return model.Template{
		ID:               row.ID,
		Name:             row.Name,
		IsSystem:         row.IsSystem,
		Canvas:           c.Canvas,
		BackgroundLayers: c.BackgroundLayers,
		Zones:            c.Zones,
	}, nil
}
