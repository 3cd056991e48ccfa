package database

import (
	"time"

	"gorm.io/datatypes"
)

// Ad 是广告的根记录。Sections 等子表按 AdID 关联，保存时整体覆盖。
type Ad struct {
	ID        string         `gorm:"primaryKey;size:36"`
	Name      string         `gorm:"size:255"`
	RegionIDs datatypes.JSON // []string
	ValidFrom *time.Time
	ValidTo   *time.Time
	Status    string `gorm:"size:32;index"`
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Section 属于一个 Ad，按 Position 排序。
type Section struct {
	ID         string `gorm:"primaryKey;size:36"`
	AdID       string `gorm:"size:36;index"`
	Name       string `gorm:"size:255"`
	ThemeColor string `gorm:"size:32"`
	Position   int
}

// Page 属于一个 Section，最多引用一个模板。
type Page struct {
	ID         string  `gorm:"primaryKey;size:36"`
	AdID       string  `gorm:"size:36;index"`
	SectionID  string  `gorm:"size:36;index"`
	TemplateID *string `gorm:"size:36"`
	PageType   string  `gorm:"size:32"`
	Position   int
}

// PlacedBlock 是页面上的一次摆放。Overrides 作为不透明 JSON 存储。
type PlacedBlock struct {
	ID          string  `gorm:"primaryKey;size:64"`
	AdID        string  `gorm:"size:36;index"`
	PageID      string  `gorm:"size:36;index"`
	BlockDataID string  `gorm:"size:64;index"`
	ZoneID      *string `gorm:"size:64"`
	X           float64
	Y           float64
	Width       float64
	Height      float64
	ZIndex      int
	Position    int
	Overrides   datatypes.JSON
	UpdatedAt   time.Time
}

// BlockData 保存 feed 导入或手工创建的商品/促销内容。
type BlockData struct {
	ID        string `gorm:"primaryKey;size:64"`
	AdID      string `gorm:"size:36;index"`
	UPC       string `gorm:"size:64;index"`
	BlockType string `gorm:"size:32"`
	Feed      datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Template 表示可复用的页面布局。系统模板只读。
type Template struct {
	ID              string `gorm:"primaryKey;size:36"`
	Name            string `gorm:"size:255"`
	IsSystem        bool   `gorm:"default:false;index"`
	Content         datatypes.JSON // 包含 canvas、backgroundLayers、zones
	PreviewImageURL string         `gorm:"size:512"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AdVersion 是提交审核时冻结的整图快照。
type AdVersion struct {
	ID        uint   `gorm:"primaryKey"`
	AdID      string `gorm:"size:36;uniqueIndex:idx_ad_version"`
	Version   int    `gorm:"uniqueIndex:idx_ad_version"`
	Snapshot  datatypes.JSON
	CreatedAt time.Time
}

// RegionalPrice 按 (ad, region, upc) 唯一。
type RegionalPrice struct {
	ID        uint   `gorm:"primaryKey"`
	AdID      string `gorm:"size:36;uniqueIndex:idx_regional_price"`
	Region    string `gorm:"size:64;uniqueIndex:idx_regional_price"`
	UPC       string `gorm:"size:64;uniqueIndex:idx_regional_price"`
	Price     datatypes.JSON
	UpdatedAt time.Time
}

// AuditEntry 记录状态流转，写入失败不影响主流程。
type AuditEntry struct {
	ID         uint   `gorm:"primaryKey"`
	AdID       string `gorm:"size:36;index"`
	Action     string `gorm:"size:32"`
	FromStatus string `gorm:"size:32"`
	ToStatus   string `gorm:"size:32"`
	Comment    string `gorm:"type:text"`
	CreatedAt  time.Time
}

// Asset 是上传到对象存储的商品图片。
type Asset struct {
	ID          uint   `gorm:"primaryKey"`
	AdID        string `gorm:"size:36;index"`
	ObjectKey   string `gorm:"size:512;uniqueIndex"`
	ContentType string `gorm:"size:128"`
	Size        int64
	CreatedAt   time.Time
}

// Export 跟踪一次 PDF 导出任务。
type Export struct {
	ID        string `gorm:"primaryKey;size:36"`
	AdID      string `gorm:"size:36;index"`
	Version   int
	Region    string `gorm:"size:64"`
	Status    string `gorm:"size:32"`
	ObjectKey string `gorm:"size:512"`
	Error     string `gorm:"type:text"`
	// 入队时冻结的渲染结果，worker 打印的就是这一份
	Snapshot  datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// 导出状态
const (
	ExportPending   = "pending"
	ExportCompleted = "completed"
	ExportFailed    = "failed"
)

// AllModels 用于 AutoMigrate。
func AllModels() []any {
	return []any{
		&Ad{}, &Section{}, &Page{}, &PlacedBlock{}, &BlockData{},
		&Template{}, &AdVersion{}, &RegionalPrice{}, &AuditEntry{},
		&Asset{}, &Export{},
	}
}
