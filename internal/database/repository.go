package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"adBuilder/internal/model"
)

// ErrSystemTemplate 表示尝试修改只读的系统模板。
var ErrSystemTemplate = errors.New("system templates are read-only")

// Repository 负责广告整图以及相关表的读写。
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建仓储。
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB 返回底层连接。
func (r *Repository) DB() *gorm.DB { return r.db }

// NewAdInput 是创建广告时的参数。
type NewAdInput struct {
	Name      string
	RegionIDs []string
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// CreateAd 创建广告，并附带一个默认分区和封面页，保证至少有一页。
func (r *Repository) CreateAd(ctx context.Context, in NewAdInput) (model.Ad, error) {
	regions := in.RegionIDs
	if regions == nil {
		regions = []string{}
	}
	adID := uuid.NewString()
	sectionID := uuid.NewString()
	ad := model.Ad{
		ID:        adID,
		Name:      in.Name,
		RegionIDs: regions,
		ValidFrom: in.ValidFrom,
		ValidTo:   in.ValidTo,
		Status:    model.StatusDraft,
		Sections: []model.Section{{
			ID:    sectionID,
			AdID:  adID,
			Name:  "Front",
			Pages: []model.Page{{ID: uuid.NewString(), SectionID: sectionID, PageType: model.PageFrontCover, Blocks: []model.PlacedBlock{}}},
		}},
	}

	row, err := adRow(ad)
	if err != nil {
		return model.Ad{}, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create ad: %w", err)
		}
		_, err := saveGraph(tx, ad)
		return err
	})
	if err != nil {
		return model.Ad{}, err
	}
	return ad, nil
}

// ListAds 返回所有广告的基本信息（不含分区）。
func (r *Repository) ListAds(ctx context.Context) ([]model.Ad, error) {
	var rows []Ad
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	out := make([]model.Ad, 0, len(rows))
	for _, row := range rows {
		ad, err := adModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ad)
	}
	return out, nil
}

// LoadAd 读取完整的广告图。不存在时返回包装后的 gorm.ErrRecordNotFound。
func (r *Repository) LoadAd(ctx context.Context, id string) (model.Ad, error) {
	db := r.db.WithContext(ctx)

	var row Ad
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return model.Ad{}, fmt.Errorf("load ad %s: %w", id, err)
	}
	ad, err := adModel(row)
	if err != nil {
		return model.Ad{}, err
	}

	var sections []Section
	if err := db.Where("ad_id = ?", id).Order("position").Find(&sections).Error; err != nil {
		return model.Ad{}, fmt.Errorf("load sections: %w", err)
	}
	var pages []Page
	if err := db.Where("ad_id = ?", id).Order("position").Find(&pages).Error; err != nil {
		return model.Ad{}, fmt.Errorf("load pages: %w", err)
	}
	var blocks []PlacedBlock
	if err := db.Where("ad_id = ?", id).Order("position").Find(&blocks).Error; err != nil {
		return model.Ad{}, fmt.Errorf("load placed blocks: %w", err)
	}

	blocksByPage := make(map[string][]model.PlacedBlock)
	for _, row := range blocks {
		b, err := blockModel(row)
		if err != nil {
			return model.Ad{}, err
		}
		blocksByPage[row.PageID] = append(blocksByPage[row.PageID], b)
	}
	pagesBySection := make(map[string][]model.Page)
	for _, p := range pages {
		bs := blocksByPage[p.ID]
		if bs == nil {
			bs = []model.PlacedBlock{}
		}
		pagesBySection[p.SectionID] = append(pagesBySection[p.SectionID], model.Page{
			ID:         p.ID,
			SectionID:  p.SectionID,
			TemplateID: p.TemplateID,
			PageType:   p.PageType,
			Position:   p.Position,
			Blocks:     bs,
		})
	}
	for _, s := range sections {
		ps := pagesBySection[s.ID]
		if ps == nil {
			ps = []model.Page{}
		}
		ad.Sections = append(ad.Sections, model.Section{
			ID:         s.ID,
			AdID:       s.AdID,
			Name:       s.Name,
			ThemeColor: s.ThemeColor,
			Position:   s.Position,
			Pages:      ps,
		})
	}
	return ad, nil
}

// SaveAd 以整条记录“后写覆盖”的方式持久化广告图：存在的行被更新，缺失的行被删除，
// tmp- 前缀的摆放获得新的服务端 id。返回 旧 id -> 新 id 的映射。
func (r *Repository) SaveAd(ctx context.Context, ad model.Ad) (map[string]string, error) {
	row, err := adRow(ad)
	if err != nil {
		return nil, err
	}
	var ids map[string]string
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Ad{}).Where("id = ?", ad.ID).Updates(map[string]any{
			"name":       row.Name,
			"region_ids": row.RegionIDs,
			"valid_from": row.ValidFrom,
			"valid_to":   row.ValidTo,
			"status":     row.Status,
			"version":    row.Version,
			"updated_at": time.Now(),
		})
		if res.Error != nil {
			return fmt.Errorf("update ad: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("update ad %s: %w", ad.ID, gorm.ErrRecordNotFound)
		}
		var err error
		ids, err = saveGraph(tx, ad)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func saveGraph(tx *gorm.DB, ad model.Ad) (map[string]string, error) {
	ids := make(map[string]string)
	var (
		sections   []Section
		pages      []Page
		blocks     []PlacedBlock
		sectionIDs []string
		pageIDs    []string
		blockIDs   []string
	)
	for si, s := range ad.Sections {
		sections = append(sections, Section{ID: s.ID, AdID: ad.ID, Name: s.Name, ThemeColor: s.ThemeColor, Position: si})
		sectionIDs = append(sectionIDs, s.ID)
		for pi, p := range s.Pages {
			pages = append(pages, Page{ID: p.ID, AdID: ad.ID, SectionID: s.ID, TemplateID: p.TemplateID, PageType: p.PageType, Position: pi})
			pageIDs = append(pageIDs, p.ID)
			for bi, b := range p.Blocks {
				if model.IsPendingID(b.ID) {
					newID := uuid.NewString()
					ids[b.ID] = newID
					b.ID = newID
				}
				b.PageID = p.ID
				row, err := blockRow(ad.ID, bi, b)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, row)
				blockIDs = append(blockIDs, b.ID)
			}
		}
	}

	if err := deleteMissing(tx, &PlacedBlock{}, ad.ID, blockIDs); err != nil {
		return nil, fmt.Errorf("prune placed blocks: %w", err)
	}
	if err := deleteMissing(tx, &Page{}, ad.ID, pageIDs); err != nil {
		return nil, fmt.Errorf("prune pages: %w", err)
	}
	if err := deleteMissing(tx, &Section{}, ad.ID, sectionIDs); err != nil {
		return nil, fmt.Errorf("prune sections: %w", err)
	}

	upsert := clause.OnConflict{UpdateAll: true}
	if len(sections) > 0 {
		if err := tx.Clauses(upsert).Create(&sections).Error; err != nil {
			return nil, fmt.Errorf("save sections: %w", err)
		}
	}
	if len(pages) > 0 {
		if err := tx.Clauses(upsert).Create(&pages).Error; err != nil {
			return nil, fmt.Errorf("save pages: %w", err)
		}
	}
	if len(blocks) > 0 {
		if err := tx.Clauses(upsert).Create(&blocks).Error; err != nil {
			return nil, fmt.Errorf("save placed blocks: %w", err)
		}
	}
	return ids, nil
}

func deleteMissing(tx *gorm.DB, table any, adID string, keep []string) error {
	q := tx.Where("ad_id = ?", adID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	return q.Delete(table).Error
}

// UpdateAdStatus 只更新状态与版本号。
func (r *Repository) UpdateAdStatus(ctx context.Context, adID, status string, version int) error {
	res := r.db.WithContext(ctx).Model(&Ad{}).Where("id = ?", adID).Updates(map[string]any{
		"status":     status,
		"version":    version,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("update ad status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update ad status %s: %w", adID, gorm.ErrRecordNotFound)
	}
	return nil
}

// DeleteAd 删除广告以及所有从属数据。
func (r *Repository) DeleteAd(ctx context.Context, adID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []any{&PlacedBlock{}, &Page{}, &Section{}, &BlockData{}, &RegionalPrice{}, &AdVersion{}, &AuditEntry{}, &Asset{}, &Export{}} {
			if err := tx.Where("ad_id = ?", adID).Delete(table).Error; err != nil {
				return fmt.Errorf("delete ad children: %w", err)
			}
		}
		res := tx.Delete(&Ad{}, "id = ?", adID)
		if res.Error != nil {
			return fmt.Errorf("delete ad: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete ad %s: %w", adID, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// ApplyTransition 在一个事务里写入新状态与版本快照；snapshot 为空时只更新状态。
// 任一步失败都会回滚，广告不会停留在没有快照的 in_review。
func (r *Repository) ApplyTransition(ctx context.Context, adID, status string, version int, snapshot []byte) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Ad{}).Where("id = ?", adID).Updates(map[string]any{
			"status":     status,
			"version":    version,
			"updated_at": time.Now(),
		})
		if res.Error != nil {
			return fmt.Errorf("update ad status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("update ad status %s: %w", adID, gorm.ErrRecordNotFound)
		}
		if snapshot == nil {
			return nil
		}
		row := AdVersion{AdID: adID, Version: version, Snapshot: snapshot}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create version: %w", err)
		}
		return nil
	})
}

// ListVersions 按版本号倒序返回快照。
func (r *Repository) ListVersions(ctx context.Context, adID string) ([]AdVersion, error) {
	var rows []AdVersion
	if err := r.db.WithContext(ctx).Where("ad_id = ?", adID).Order("version DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return rows, nil
}

// AddAudit 写入一条审计记录。
func (r *Repository) AddAudit(ctx context.Context, entry AuditEntry) error {
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("add audit entry: %w", err)
	}
	return nil
}

// ListAudit 返回广告的审计记录。
func (r *Repository) ListAudit(ctx context.Context, adID string) ([]AuditEntry, error) {
	var rows []AuditEntry
	if err := r.db.WithContext(ctx).Where("ad_id = ?", adID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return rows, nil
}
