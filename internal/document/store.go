// Package document 持有内存中的广告整图，所有修改都必须经过这里。
// 每次修改都生成新的整图，旧快照对撤销、变更检测和自动保存始终有效。
package document

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"adBuilder/internal/model"
)

// Placement 描述一个待放置的区块。
type Placement struct {
	PageID      string
	BlockDataID string
	ZoneID      *string
	Rect        model.Rect
	ZIndex      int
}

// Store 是单个广告的放置文档模型。
type Store struct {
	mu       sync.RWMutex
	ad       *model.Ad
	dirty    bool
	revision uint64
	newID    func() string
}

type Option func(*Store)

// WithIDGenerator 替换新实体使用的 uuid 生成器，测试用。
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New 包装 ad 的一份拷贝。
func New(ad model.Ad, opts ...Option) *Store {
	s := &Store{
		ad:    cloneAd(&ad),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot 返回当前整图，与内部快照共享存储，调用方不得修改。
func (s *Store) Snapshot() model.Ad {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.ad
}

// Clone 返回当前整图的深拷贝。
func (s *Store) Clone() model.Ad {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *cloneAd(s.ad)
}

// Dirty 表示自上次 MarkClean 以来是否有修改。
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Revision 每次修改加一。
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// MarkClean 仅当 revision 之后没有新修改时清除 dirty。
func (s *Store) MarkClean(revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revision != revision {
		return false
	}
	s.dirty = false
	return true
}

// mutate 在深拷贝上执行 fn，fn 返回 true 时才替换整图。
func (s *Store) mutate(fn func(ad *model.Ad) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneAd(s.ad)
	if !fn(next) {
		return false
	}
	s.ad = next
	s.dirty = true
	s.revision++
	return true
}

func (s *Store) Block(id string) (model.PlacedBlock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ad.FindBlock(id)
}

func (s *Store) Page(id string) (model.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ad.FindPage(id)
}

// BlockIndex 返回区块在所在页列表中的下标。
func (s *Store) BlockIndex(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, idx, ok := locateBlock(s.ad, id)
	return idx, ok
}

// PlaceBlock 追加一个区块并返回临时 id。几何参数原样使用，调用方负责先裁剪。
func (s *Store) PlaceBlock(p Placement) (string, bool) {
	zIndex := p.ZIndex
	if zIndex == 0 {
		zIndex = 1
	}
	block := model.PlacedBlock{
		ID:          model.PendingIDPrefix + s.newID(),
		PageID:      p.PageID,
		BlockDataID: p.BlockDataID,
		ZoneID:      cloneString(p.ZoneID),
		X:           p.Rect.X,
		Y:           p.Rect.Y,
		Width:       p.Rect.Width,
		Height:      p.Rect.Height,
		ZIndex:      zIndex,
		Overrides:   model.Overrides{},
	}
	if !s.InsertBlock(block, -1) {
		return "", false
	}
	return block.ID, true
}

// InsertBlock 把区块插回所在页的 index 位置（-1 表示追加）。
// 同 id 的区块已存在时不做处理并返回 false。
func (s *Store) InsertBlock(block model.PlacedBlock, index int) bool {
	return s.mutate(func(ad *model.Ad) bool {
		if _, ok := ad.FindBlock(block.ID); ok {
			return false
		}
		page := findPage(ad, block.PageID)
		if page == nil {
			return false
		}
		block.Overrides = block.Overrides.Clone()
		block.ZoneID = cloneString(block.ZoneID)
		page.Blocks = insertAt(page.Blocks, block, index)
		return true
	})
}

// ReplacePlacedBlockID 重命名区块，未知 id 直接忽略，可重复调用。
func (s *Store) ReplacePlacedBlockID(oldID, newID string) bool {
	if oldID == newID || newID == "" {
		return false
	}
	return s.mutate(func(ad *model.Ad) bool {
		if _, taken := ad.FindBlock(newID); taken {
			return false
		}
		page, idx, ok := locateBlock(ad, oldID)
		if !ok {
			return false
		}
		page.Blocks[idx].ID = newID
		return true
	})
}

// MoveBlock 移动区块，可以跨页。zoneId 保持不变。
func (s *Store) MoveBlock(id, targetPageID string, x, y float64) bool {
	return s.mutate(func(ad *model.Ad) bool {
		target := findPage(ad, targetPageID)
		if target == nil {
			return false
		}
		page, idx, ok := locateBlock(ad, id)
		if !ok {
			return false
		}
		block := page.Blocks[idx]
		page.Blocks = removeAt(page.Blocks, idx)
		block.PageID = targetPageID
		block.X = x
		block.Y = y
		// target 可能就是原页，删除后重新定位
		target = findPage(ad, targetPageID)
		target.Blocks = append(target.Blocks, block)
		return true
	})
}

// ResizeBlock 设置绝对矩形。
func (s *Store) ResizeBlock(id string, r model.Rect) bool {
	return s.mutate(func(ad *model.Ad) bool {
		page, idx, ok := locateBlock(ad, id)
		if !ok {
			return false
		}
		b := &page.Blocks[idx]
		b.X, b.Y, b.Width, b.Height = r.X, r.Y, r.Width, r.Height
		return true
	})
}

func (s *Store) SetZIndex(id string, zIndex int) bool {
	return s.mutate(func(ad *model.Ad) bool {
		page, idx, ok := locateBlock(ad, id)
		if !ok {
			return false
		}
		page.Blocks[idx].ZIndex = zIndex
		return true
	})
}

// UpdateBlockOverride 把 patch 浅合并进覆盖项，stampColors 这类嵌套 map 整体替换。
func (s *Store) UpdateBlockOverride(id string, patch model.Overrides) bool {
	return s.mutate(func(ad *model.Ad) bool {
		page, idx, ok := locateBlock(ad, id)
		if !ok {
			return false
		}
		page.Blocks[idx].Overrides = page.Blocks[idx].Overrides.Merge(patch)
		return true
	})
}

// SetBlockOverrides 整体替换覆盖项。
func (s *Store) SetBlockOverrides(id string, overrides model.Overrides) bool {
	return s.mutate(func(ad *model.Ad) bool {
		page, idx, ok := locateBlock(ad, id)
		if !ok {
			return false
		}
		page.Blocks[idx].Overrides = overrides.Merge(nil)
		return true
	})
}

// RemoveBlock 删除区块，返回被删区块及其原下标。
func (s *Store) RemoveBlock(id string) (model.PlacedBlock, int, bool) {
	var (
		removed model.PlacedBlock
		index   int
	)
	ok := s.mutate(func(ad *model.Ad) bool {
		page, idx, found := locateBlock(ad, id)
		if !found {
			return false
		}
		removed = page.Blocks[idx]
		index = idx
		page.Blocks = removeAt(page.Blocks, idx)
		return true
	})
	return removed, index, ok
}

// SwapTemplate 替换页面模板并返回旧值，已有区块不动。
func (s *Store) SwapTemplate(pageID string, templateID *string) (*string, bool) {
	var prev *string
	ok := s.mutate(func(ad *model.Ad) bool {
		page := findPage(ad, pageID)
		if page == nil {
			return false
		}
		prev = page.TemplateID
		page.TemplateID = cloneString(templateID)
		return true
	})
	return prev, ok
}

// AddSection 追加分区并返回 id。
func (s *Store) AddSection(name, themeColor string) string {
	section := model.Section{
		ID:         s.newID(),
		Name:       name,
		ThemeColor: themeColor,
		Pages:      []model.Page{},
	}
	s.InsertSection(section, -1)
	return section.ID
}

// InsertSection 把分区插回 index 位置（-1 表示追加）。
func (s *Store) InsertSection(section model.Section, index int) bool {
	return s.mutate(func(ad *model.Ad) bool {
		for _, existing := range ad.Sections {
			if existing.ID == section.ID {
				return false
			}
		}
		section.AdID = ad.ID
		section = cloneSection(section)
		ad.Sections = insertAt(ad.Sections, section, index)
		renumberSections(ad.Sections)
		return true
	})
}

// RemoveSection 删除分区及其所有页面。
func (s *Store) RemoveSection(id string) (model.Section, int, bool) {
	var (
		removed model.Section
		index   int
	)
	ok := s.mutate(func(ad *model.Ad) bool {
		for i, sec := range ad.Sections {
			if sec.ID == id {
				removed = sec
				index = i
				ad.Sections = removeAt(ad.Sections, i)
				renumberSections(ad.Sections)
				return true
			}
		}
		return false
	})
	return removed, index, ok
}

// ReorderSection 把分区移到 newIndex，返回原下标。
func (s *Store) ReorderSection(id string, newIndex int) (int, bool) {
	old := -1
	ok := s.mutate(func(ad *model.Ad) bool {
		for i, sec := range ad.Sections {
			if sec.ID == id {
				old = i
				ad.Sections = move(ad.Sections, i, newIndex)
				renumberSections(ad.Sections)
				return true
			}
		}
		return false
	})
	return old, ok
}

// AddPage 在分区末尾追加页面并返回 id。
func (s *Store) AddPage(sectionID, pageType string, templateID *string) (string, bool) {
	if pageType == "" {
		pageType = model.PageInterior
	}
	page := model.Page{
		ID:         s.newID(),
		SectionID:  sectionID,
		TemplateID: cloneString(templateID),
		PageType:   pageType,
		Blocks:     []model.PlacedBlock{},
	}
	if !s.InsertPage(page, -1) {
		return "", false
	}
	return page.ID, true
}

// InsertPage 把页面插回分区的 index 位置（-1 表示追加）。
func (s *Store) InsertPage(page model.Page, index int) bool {
	return s.mutate(func(ad *model.Ad) bool {
		if _, exists := ad.FindPage(page.ID); exists {
			return false
		}
		section := findSection(ad, page.SectionID)
		if section == nil {
			return false
		}
		section.Pages = insertAt(section.Pages, clonePage(page), index)
		renumberPages(section.Pages)
		return true
	})
}

// DeletePage 删除页面及其区块，返回被删页面和原下标。至少保留一页由调用方保证。
func (s *Store) DeletePage(id string) (model.Page, int, bool) {
	var (
		removed model.Page
		index   int
	)
	ok := s.mutate(func(ad *model.Ad) bool {
		for si := range ad.Sections {
			section := &ad.Sections[si]
			for pi, p := range section.Pages {
				if p.ID == id {
					removed = p
					index = pi
					section.Pages = removeAt(section.Pages, pi)
					renumberPages(section.Pages)
					return true
				}
			}
		}
		return false
	})
	return removed, index, ok
}

// ReorderPage 在分区内移动页面，返回原下标。
func (s *Store) ReorderPage(id string, newIndex int) (int, bool) {
	old := -1
	ok := s.mutate(func(ad *model.Ad) bool {
		for si := range ad.Sections {
			section := &ad.Sections[si]
			for pi, p := range section.Pages {
				if p.ID == id {
					old = pi
					section.Pages = move(section.Pages, pi, newIndex)
					renumberPages(section.Pages)
					return true
				}
			}
		}
		return false
	})
	return old, ok
}

// Details 是页面之外可编辑的广告字段。
type Details struct {
	Name      string
	RegionIDs []string
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// UpdateDetails 替换名称、地区与有效期。
func (s *Store) UpdateDetails(d Details) bool {
	return s.mutate(func(ad *model.Ad) bool {
		ad.Name = d.Name
		ad.RegionIDs = append([]string{}, d.RegionIDs...)
		ad.ValidFrom = cloneTime(d.ValidFrom)
		ad.ValidTo = cloneTime(d.ValidTo)
		return true
	})
}

// SetStatus 记录一次审批流转。
func (s *Store) SetStatus(status string, version int) bool {
	return s.mutate(func(ad *model.Ad) bool {
		if ad.Status == status && ad.Version == version {
			return false
		}
		ad.Status = status
		ad.Version = version
		return true
	})
}
