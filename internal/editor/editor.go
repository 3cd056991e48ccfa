// Package editor 是会话修改文档的唯一入口，所有修改都经过命令历史，可以撤销。
package editor

import (
	"errors"
	"sync"

	"adBuilder/internal/document"
	"adBuilder/internal/geometry"
	"adBuilder/internal/history"
	"adBuilder/internal/model"
)

// ErrLastPage 删除广告的最后一页时返回。
var ErrLastPage = errors.New("editor: an ad must keep at least one page")

var ErrPageNotFound = errors.New("editor: page not found")

// Templates 按 id 查找模板，用于放置决策。
type Templates interface {
	Template(id string) (model.Template, bool)
}

// TemplateSet 是按 id 索引的内存模板集合。
type TemplateSet map[string]model.Template

func (s TemplateSet) Template(id string) (model.Template, bool) {
	t, ok := s[id]
	return t, ok
}

// Point 是落点坐标，单位为设计单位。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlaceRequest 描述一次放置。优先级 Rect > ZoneID > Drop，都没有时填入第一个空区域。
type PlaceRequest struct {
	PageID      string      `json:"pageId"`
	BlockDataID string      `json:"blockDataId"`
	ZoneID      *string     `json:"zoneId"`
	Rect        *model.Rect `json:"rect"`
	Drop        *Point      `json:"drop"`
	ZIndex      int         `json:"zIndex"`
}

// Editor 把文档与命令历史绑定在一起。
type Editor struct {
	mu        sync.Mutex
	doc       *document.Store
	history   *history.History
	templates Templates
	// 已确认的 id，旧 -> 新
	aliases map[string]string
}

// New 创建编辑器，templates 可以为 nil。
func New(doc *document.Store, h *history.History, templates Templates) *Editor {
	if h == nil {
		h = history.New(history.DefaultLimit)
	}
	if templates == nil {
		templates = TemplateSet{}
	}
	return &Editor{
		doc:       doc,
		history:   h,
		templates: templates,
		aliases:   make(map[string]string),
	}
}

// Document 暴露底层文档，仅供读取。
func (e *Editor) Document() *document.Store { return e.doc }

// SetTemplates 替换模板来源，例如模板被修改之后。
func (e *Editor) SetTemplates(t Templates) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t == nil {
		t = TemplateSet{}
	}
	e.templates = t
}

// resolve 沿别名找到区块当前的 id。
func (e *Editor) resolve(id string) string {
	for i := 0; i < len(e.aliases)+1; i++ {
		next, ok := e.aliases[id]
		if !ok {
			return id
		}
		id = next
	}
	return id
}

// ReplacePlacedBlockID 重命名已确认的区块，历史命令仍可通过旧 id 找到它。
func (e *Editor) ReplacePlacedBlockID(oldID, newID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.doc.ReplacePlacedBlockID(e.resolve(oldID), newID) {
		return false
	}
	e.aliases[oldID] = newID
	return true
}

func (e *Editor) ResolveID(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolve(id)
}

func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Undo()
}

func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Redo()
}

func (e *Editor) CanUndo() bool { return e.history.CanUndo() }
func (e *Editor) CanRedo() bool { return e.history.CanRedo() }

// History 返回命令描述与游标。
func (e *Editor) History() ([]string, int) {
	return e.history.Descriptions(), e.history.Cursor()
}

func (e *Editor) pageTemplate(page model.Page) (model.Template, bool) {
	if page.TemplateID == nil {
		return model.Template{}, false
	}
	return e.templates.Template(*page.TemplateID)
}

func (e *Editor) canvasFor(page model.Page) model.Canvas {
	if tpl, ok := e.pageTemplate(page); ok && tpl.Canvas.Width > 0 && tpl.Canvas.Height > 0 {
		return tpl.Canvas
	}
	return model.DefaultCanvas
}

func clampTo(r model.Rect, c model.Canvas) model.Rect {
	return geometry.ClampToCanvas(r.X, r.Y, r.Width, r.Height, c.Width, c.Height)
}

// placement 应用区域策略，并把结果裁剪到页面画布内。
func (e *Editor) placement(page model.Page, req PlaceRequest) (*string, model.Rect) {
	tpl, hasTpl := e.pageTemplate(page)
	canvas := e.canvasFor(page)

	var (
		zoneID *string
		rect   model.Rect
	)
	zone, zoneKnown := model.TemplateZone{}, false
	if req.ZoneID != nil && hasTpl {
		zone, zoneKnown = tpl.Zone(*req.ZoneID)
	}

	switch {
	case req.Rect != nil:
		rect = *req.Rect
		zoneID = req.ZoneID
	case zoneKnown:
		rect = zone.Rect()
		zoneID = &zone.ID
	case req.Drop != nil:
		if id, ok := geometry.SnapToZone(req.Drop.X, req.Drop.Y, tpl.Zones, geometry.DefaultSnapThreshold); ok {
			z, _ := tpl.Zone(id)
			rect = z.Rect()
			zoneID = &z.ID
			break
		}
		rect = geometry.DefaultBlockRect
		rect.X, rect.Y = req.Drop.X, req.Drop.Y
	default:
		if z, ok := geometry.NextEmptyZone(tpl.Zones, page.Blocks); ok {
			rect = z.Rect()
			zoneID = &z.ID
			break
		}
		rect = geometry.DefaultBlockRect
	}
	return zoneID, clampTo(rect, canvas)
}

// PlaceBlock 按放置策略放入区块，返回临时 id。
func (e *Editor) PlaceBlock(req PlaceRequest) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	page, ok := e.doc.Page(req.PageID)
	if !ok || req.BlockDataID == "" {
		return "", false
	}
	zoneID, rect := e.placement(page, req)

	var (
		placedID string
		removed  model.PlacedBlock
		first    = true
	)
	e.history.ExecuteCommand(history.Func{
		Desc: "Place block",
		Do: func() {
			if first {
				first = false
				placedID, _ = e.doc.PlaceBlock(document.Placement{
					PageID:      req.PageID,
					BlockDataID: req.BlockDataID,
					ZoneID:      zoneID,
					Rect:        rect,
					ZIndex:      req.ZIndex,
				})
				return
			}
			e.doc.InsertBlock(removed, -1)
		},
		Revert: func() {
			if b, _, ok := e.doc.RemoveBlock(e.resolve(placedID)); ok {
				removed = b
			}
		},
	})
	return placedID, placedID != ""
}

// restoreBlock 把 prev 放回 index，替换当前占用该 id 的区块。
func (e *Editor) restoreBlock(prev model.PlacedBlock, index int) {
	prev.ID = e.resolve(prev.ID)
	e.doc.RemoveBlock(prev.ID)
	e.doc.InsertBlock(prev, index)
}

// MoveBlock 移动区块并裁剪到目标页画布，zoneId 保持不变。
func (e *Editor) MoveBlock(id, targetPageID string, x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	id = e.resolve(id)
	prev, ok := e.doc.Block(id)
	if !ok {
		return false
	}
	target, ok := e.doc.Page(targetPageID)
	if !ok {
		return false
	}
	index, _ := e.doc.BlockIndex(id)
	r := clampTo(model.Rect{X: x, Y: y, Width: prev.Width, Height: prev.Height}, e.canvasFor(target))

	e.history.ExecuteCommand(history.Func{
		Desc: "Move block",
		Do: func() {
			cur := e.resolve(prev.ID)
			e.doc.MoveBlock(cur, targetPageID, r.X, r.Y)
			e.doc.ResizeBlock(cur, r)
		},
		Revert: func() { e.restoreBlock(prev, index) },
	})
	return true
}

// ResizeBlock 设置绝对矩形，裁剪到页面画布。
func (e *Editor) ResizeBlock(id string, r model.Rect) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resize(id, r, "Resize block")
}

func (e *Editor) resize(id string, r model.Rect, desc string) bool {
	id = e.resolve(id)
	prev, ok := e.doc.Block(id)
	if !ok {
		return false
	}
	page, _ := e.doc.Page(prev.PageID)
	next := clampTo(r, e.canvasFor(page))
	old := prev.Rect()

	e.history.ExecuteCommand(history.Func{
		Desc:   desc,
		Do:     func() { e.doc.ResizeBlock(e.resolve(id), next) },
		Revert: func() { e.doc.ResizeBlock(e.resolve(id), old) },
	})
	return true
}

// FitToZone 把区块重新对齐到它记录的区域。
func (e *Editor) FitToZone(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.doc.Block(e.resolve(id))
	if !ok || b.ZoneID == nil {
		return false
	}
	page, _ := e.doc.Page(b.PageID)
	tpl, ok := e.pageTemplate(page)
	if !ok {
		return false
	}
	zone, ok := tpl.Zone(*b.ZoneID)
	if !ok {
		return false
	}
	return e.resize(b.ID, zone.Rect(), "Fit to zone")
}

func (e *Editor) SetZIndex(id string, zIndex int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	id = e.resolve(id)
	prev, ok := e.doc.Block(id)
	if !ok {
		return false
	}
	e.history.ExecuteCommand(history.Func{
		Desc:   "Change layer order",
		Do:     func() { e.doc.SetZIndex(e.resolve(id), zIndex) },
		Revert: func() { e.doc.SetZIndex(e.resolve(id), prev.ZIndex) },
	})
	return true
}

// UpdateBlockOverride 浅合并覆盖项。
func (e *Editor) UpdateBlockOverride(id string, patch model.Overrides) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	id = e.resolve(id)
	prev, ok := e.doc.Block(id)
	if !ok {
		return false
	}
	patch = patch.Clone()
	old := prev.Overrides.Clone()

	e.history.ExecuteCommand(history.Func{
		Desc:   "Edit block",
		Do:     func() { e.doc.UpdateBlockOverride(e.resolve(id), patch) },
		Revert: func() { e.doc.SetBlockOverrides(e.resolve(id), old) },
	})
	return true
}

func (e *Editor) RemoveBlock(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	id = e.resolve(id)
	prev, ok := e.doc.Block(id)
	if !ok {
		return false
	}
	index, _ := e.doc.BlockIndex(id)

	e.history.ExecuteCommand(history.Func{
		Desc: "Remove block",
		Do:   func() { e.doc.RemoveBlock(e.resolve(id)) },
		Revert: func() {
			restored := prev
			restored.ID = e.resolve(id)
			e.doc.InsertBlock(restored, index)
		},
	})
	return true
}

// SwapTemplate 给页面换模板，区块保持原样。
func (e *Editor) SwapTemplate(pageID string, templateID *string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	page, ok := e.doc.Page(pageID)
	if !ok {
		return false
	}
	prev := page.TemplateID

	e.history.ExecuteCommand(history.Func{
		Desc:   "Change template",
		Do:     func() { e.doc.SwapTemplate(pageID, templateID) },
		Revert: func() { e.doc.SwapTemplate(pageID, prev) },
	})
	return true
}

func (e *Editor) AddSection(name, themeColor string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		id      string
		removed model.Section
		index   = -1
	)
	e.history.ExecuteCommand(history.Func{
		Desc: "Add section",
		Do: func() {
			if id == "" {
				id = e.doc.AddSection(name, themeColor)
				return
			}
			e.doc.InsertSection(removed, index)
		},
		Revert: func() {
			if s, idx, ok := e.doc.RemoveSection(id); ok {
				removed, index = s, idx
			}
		},
	})
	return id
}

func (e *Editor) AddPage(sectionID, pageType string, templateID *string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ad := e.doc.Snapshot()
	found := false
	for _, s := range ad.Sections {
		if s.ID == sectionID {
			found = true
			break
		}
	}
	if !found {
		return "", false
	}

	var (
		id      string
		removed model.Page
		index   = -1
	)
	e.history.ExecuteCommand(history.Func{
		Desc: "Add page",
		Do: func() {
			if id == "" {
				id, _ = e.doc.AddPage(sectionID, pageType, templateID)
				return
			}
			e.doc.InsertPage(removed, index)
		},
		Revert: func() {
			if p, idx, ok := e.doc.DeletePage(id); ok {
				removed, index = p, idx
			}
		},
	})
	return id, id != ""
}

// DeletePage 删除页面及其区块，广告的最后一页不能删除。
func (e *Editor) DeletePage(pageID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ad := e.doc.Snapshot()
	if _, ok := ad.FindPage(pageID); !ok {
		return ErrPageNotFound
	}
	if ad.PageCount() <= 1 {
		return ErrLastPage
	}

	var (
		removed model.Page
		index   int
	)
	e.history.ExecuteCommand(history.Func{
		Desc: "Delete page",
		Do: func() {
			if p, idx, ok := e.doc.DeletePage(pageID); ok {
				removed, index = p, idx
			}
		},
		Revert: func() {
			// 页面上的区块可能已被重命名
			for i := range removed.Blocks {
				removed.Blocks[i].ID = e.resolve(removed.Blocks[i].ID)
			}
			e.doc.InsertPage(removed, index)
		},
	})
	return nil
}

func (e *Editor) ReorderSection(sectionID string, index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := -1
	for i, s := range e.doc.Snapshot().Sections {
		if s.ID == sectionID {
			old = i
		}
	}
	if old < 0 {
		return false
	}
	e.history.ExecuteCommand(history.Func{
		Desc:   "Reorder section",
		Do:     func() { e.doc.ReorderSection(sectionID, index) },
		Revert: func() { e.doc.ReorderSection(sectionID, old) },
	})
	return true
}

// ReorderPage 在分区内移动页面。
func (e *Editor) ReorderPage(pageID string, index int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	page, ok := e.doc.Page(pageID)
	if !ok {
		return false
	}
	old := page.Position
	e.history.ExecuteCommand(history.Func{
		Desc:   "Reorder page",
		Do:     func() { e.doc.ReorderPage(pageID, index) },
		Revert: func() { e.doc.ReorderPage(pageID, old) },
	})
	return true
}
