package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"adBuilder/internal/model"
)

// ListBlocks 返回广告的所有 BlockData。
func (r *Repository) ListBlocks(ctx context.Context, adID string) ([]model.BlockData, error) {
	var rows []BlockData
	if err := r.db.WithContext(ctx).Where("ad_id = ?", adID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	out := make([]model.BlockData, 0, len(rows))
	for _, row := range rows {
		b, err := blockDataModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// GetBlock 读取单个 BlockData。
func (r *Repository) GetBlock(ctx context.Context, adID, blockID string) (model.BlockData, error) {
	var row BlockData
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND ad_id = ?", blockID, adID).Error; err != nil {
		return model.BlockData{}, fmt.Errorf("get block %s: %w", blockID, err)
	}
	return blockDataModel(row)
}

// UpsertBlocks 保存一批 BlockData。同一广告内 UPC 相同的记录沿用原 id，
// 内容被整体替换；没有 id 的新记录分配 uuid。
func (r *Repository) UpsertBlocks(ctx context.Context, adID string, blocks []model.BlockData) ([]model.BlockData, error) {
	out := make([]model.BlockData, 0, len(blocks))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []BlockData
		if err := tx.Select("id", "upc").Where("ad_id = ? AND upc <> ''", adID).Find(&existing).Error; err != nil {
			return fmt.Errorf("load existing blocks: %w", err)
		}
		byUPC := make(map[string]string, len(existing))
		for _, e := range existing {
			byUPC[e.UPC] = e.ID
		}

		for _, b := range blocks {
			b.AdID = adID
			if id, ok := byUPC[b.UPC]; ok && b.UPC != "" {
				b.ID = id
			}
			if b.ID == "" {
				b.ID = uuid.NewString()
			}
			row, err := blockDataRow(b)
			if err != nil {
				return err
			}
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"upc", "block_type", "feed", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("save block %s: %w", b.ID, err)
			}
			if b.UPC != "" {
				byUPC[b.UPC] = b.ID
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceBlock 整体替换一个已存在的 BlockData。
func (r *Repository) ReplaceBlock(ctx context.Context, b model.BlockData) error {
	row, err := blockDataRow(b)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&BlockData{}).
		Where("id = ? AND ad_id = ?", b.ID, b.AdID).
		Updates(map[string]any{"upc": row.UPC, "block_type": row.BlockType, "feed": row.Feed})
	if res.Error != nil {
		return fmt.Errorf("replace block: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("replace block %s: %w", b.ID, gorm.ErrRecordNotFound)
	}
	return nil
}

// ListTemplates 返回系统模板与自定义模板，系统模板在前。
func (r *Repository) ListTemplates(ctx context.Context) ([]model.Template, error) {
	var rows []Template
	if err := r.db.WithContext(ctx).Order("is_system DESC, name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]model.Template, 0, len(rows))
	for _, row := range rows {
		t, err := templateModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTemplate 读取单个模板。
func (r *Repository) GetTemplate(ctx context.Context, id string) (model.Template, error) {
	var row Template
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return model.Template{}, fmt.Errorf("get template %s: %w", id, err)
	}
	return templateModel(row)
}

// TemplatePreview 返回模板预览图对象键。
func (r *Repository) TemplatePreview(ctx context.Context, id string) (string, error) {
	var row Template
	if err := r.db.WithContext(ctx).Select("id", "preview_image_url").First(&row, "id = ?", id).Error; err != nil {
		return "", fmt.Errorf("get template %s: %w", id, err)
	}
	return row.PreviewImageURL, nil
}

// CreateTemplate 创建自定义模板。
func (r *Repository) CreateTemplate(ctx context.Context, t model.Template) (model.Template, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.IsSystem = false
	row, err := templateRow(t)
	if err != nil {
		return model.Template{}, err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Template{}, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// UpdateTemplate 更新自定义模板，系统模板返回 ErrSystemTemplate。
func (r *Repository) UpdateTemplate(ctx context.Context, t model.Template) (model.Template, error) {
	current, err := r.GetTemplate(ctx, t.ID)
	if err != nil {
		return model.Template{}, err
	}
	if current.IsSystem {
		return model.Template{}, ErrSystemTemplate
	}
	t.IsSystem = false
	row, err := templateRow(t)
	if err != nil {
		return model.Template{}, err
	}
	err = r.db.WithContext(ctx).Model(&Template{}).Where("id = ?", t.ID).
		Updates(map[string]any{"name": row.Name, "content": row.Content}).Error
	if err != nil {
		return model.Template{}, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

// DeleteTemplate 删除自定义模板，并把引用它的页面置为未配置。
func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	current, err := r.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystem {
		return ErrSystemTemplate
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Page{}).Where("template_id = ?", id).Update("template_id", nil).Error; err != nil {
			return fmt.Errorf("detach pages: %w", err)
		}
		if err := tx.Delete(&Template{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		return nil
	})
}

// UpsertSystemTemplate 写入或覆盖一个系统模板（admin seed 使用）。
func (r *Repository) UpsertSystemTemplate(ctx context.Context, t model.Template) error {
	t.IsSystem = true
	row, err := templateRow(t)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "is_system", "content", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert system template %s: %w", t.ID, err)
	}
	return nil
}

// SetTemplatePreview 记录模板预览图的对象键。
func (r *Repository) SetTemplatePreview(ctx context.Context, id, objectKey string) error {
	err := r.db.WithContext(ctx).Model(&Template{}).Where("id = ?", id).Update("preview_image_url", objectKey).Error
	if err != nil {
		return fmt.Errorf("set template preview: %w", err)
	}
	return nil
}

// RegionalPriceEntry 是一条持久化的地区覆盖价。
type RegionalPriceEntry struct {
	Region string          `json:"region"`
	UPC    string          `json:"upc"`
	Price  model.PriceData `json:"price"`
}

// ListRegionalPrices 返回广告的所有地区价格覆盖。
func (r *Repository) ListRegionalPrices(ctx context.Context, adID string) ([]RegionalPriceEntry, error) {
	var rows []RegionalPrice
	if err := r.db.WithContext(ctx).Where("ad_id = ?", adID).Order("region, upc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list regional prices: %w", err)
	}
	out := make([]RegionalPriceEntry, 0, len(rows))
	for _, row := range rows {
		e := RegionalPriceEntry{Region: row.Region, UPC: row.UPC}
		if err := fromJSON(row.Price, &e.Price); err != nil {
			return nil, fmt.Errorf("decode regional price %s/%s: %w", row.Region, row.UPC, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// UpsertRegionalPrice 写入 (ad, region, upc) 的价格覆盖。
func (r *Repository) UpsertRegionalPrice(ctx context.Context, adID string, e RegionalPriceEntry) error {
	price, err := toJSON(e.Price)
	if err != nil {
		return fmt.Errorf("encode price: %w", err)
	}
	row := RegionalPrice{AdID: adID, Region: e.Region, UPC: e.UPC, Price: price}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ad_id"}, {Name: "region"}, {Name: "upc"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert regional price: %w", err)
	}
	return nil
}

// CreateAsset 记录上传的图片。
func (r *Repository) CreateAsset(ctx context.Context, a Asset) error {
	if err := r.db.WithContext(ctx).Create(&a).Error; err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

// AssetExists 判断对象键是否为已登记的资源。
func (r *Repository) AssetExists(ctx context.Context, objectKey string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Asset{}).Where("object_key = ?", objectKey).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count asset: %w", err)
	}
	return n > 0, nil
}

// CreateExport 新建一条待处理的导出记录，snapshot 可为空。
func (r *Repository) CreateExport(ctx context.Context, adID, region string, version int, snapshot []byte) (Export, error) {
	row := Export{ID: uuid.NewString(), AdID: adID, Region: region, Version: version, Status: ExportPending, Snapshot: snapshot}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Export{}, fmt.Errorf("create export: %w", err)
	}
	return row, nil
}

// CompleteExport 标记导出成功。
func (r *Repository) CompleteExport(ctx context.Context, id, objectKey string) error {
	return r.updateExport(ctx, id, map[string]any{"status": ExportCompleted, "object_key": objectKey, "error": ""})
}

// FailExport 标记导出失败。
func (r *Repository) FailExport(ctx context.Context, id, reason string) error {
	return r.updateExport(ctx, id, map[string]any{"status": ExportFailed, "error": reason})
}

func (r *Repository) updateExport(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&Export{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update export: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update export %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// GetExport 读取导出记录。
func (r *Repository) GetExport(ctx context.Context, adID, id string) (Export, error) {
	var row Export
	if err := r.db.WithContext(ctx).First(&row, "id = ? AND ad_id = ?", id, adID).Error; err != nil {
		return Export{}, fmt.Errorf("get export %s: %w", id, err)
	}
	return row, nil
}

// ListExports 返回广告最近的导出记录。
func (r *Repository) ListExports(ctx context.Context, adID string, limit int) ([]Export, error) {
	var rows []Export
	q := r.db.WithContext(ctx).Where("ad_id = ?", adID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return rows, nil
}

// IsNotFound 判断 err 是否包装了 gorm.ErrRecordNotFound。
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
