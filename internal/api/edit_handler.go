package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"adBuilder/internal/editor"
	"adBuilder/internal/model"
	"adBuilder/internal/session"
)

// EditHandler 承载画布上的所有可撤销操作。
type EditHandler struct {
	sessions *session.Manager
}

func NewEditHandler(sessions *session.Manager) *EditHandler {
	return &EditHandler{sessions: sessions}
}

// POST /v1/ads/:id/placements
func (h *EditHandler) PlaceBlock(c *gin.Context) {
	var req editor.PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.PageID == "" || req.BlockDataID == "" {
		BadRequest(c, "pageId and blockDataId are required")
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if _, exists := s.Block(req.BlockDataID); !exists {
		NotFound(c, "block data not found")
		return
	}
	id, placed := s.Editor.PlaceBlock(req)
	if !placed {
		NotFound(c, "page not found")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"placementId": id, "state": newAdResponse(s)})
}

type moveRequest struct {
	PageID string  `json:"pageId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// POST /v1/ads/:id/placements/:pid/move
func (h *EditHandler) MoveBlock(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	target := req.PageID
	if target == "" {
		b, found := s.Document().Block(s.Editor.ResolveID(c.Param("pid")))
		if !found {
			NotFound(c, "placement not found")
			return
		}
		target = b.PageID
	}
	if !s.Editor.MoveBlock(c.Param("pid"), target, req.X, req.Y) {
		NotFound(c, "placement or page not found")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

// PUT /v1/ads/:id/placements/:pid/resize
func (h *EditHandler) ResizeBlock(c *gin.Context) {
	var rect model.Rect
	if err := c.ShouldBindJSON(&rect); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if !s.Editor.ResizeBlock(c.Param("pid"), rect) {
		NotFound(c, "placement not found")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

// POST /v1/ads/:id/placements/:pid/fit
func (h *EditHandler) FitToZone(c *gin.Context) {
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if !s.Editor.FitToZone(c.Param("pid")) {
		Conflict(c, "placement has no zone to fit")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

type zIndexRequest struct {
	ZIndex int `json:"zIndex"`
}

// PUT /v1/ads/:id/placements/:pid/zindex
func (h *EditHandler) SetZIndex(c *gin.Context) {
	var req zIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if !s.Editor.SetZIndex(c.Param("pid"), req.ZIndex) {
		NotFound(c, "placement not found")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

// PATCH /v1/ads/:id/placements/:pid/overrides
// 浅合并；值为 null 的键会被保留为 null，由合并逻辑视为未设置。
func (h *EditHandler) UpdateOverrides(c *gin.Context) {
	var patch model.Overrides
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if len(patch) == 0 {
		BadRequest(c, "empty overrides")
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if !s.Editor.UpdateBlockOverride(c.Param("pid"), patch) {
		NotFound(c, "placement not found")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

// DELETE /v1/ads/:id/placements/:pid
func (h *EditHandler) RemoveBlock(c *gin.Context) {
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if !s.Editor.RemoveBlock(c.Param("pid")) {
		NotFound(c, "placement not found")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

type sectionRequest struct {
	Name       string `json:"name" binding:"required"`
	ThemeColor string `json:"themeColor"`
}

// POST /v1/ads/:id/sections
func (h *EditHandler) AddSection(c *gin.Context) {
	var req sectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	id := s.Editor.AddSection(req.Name, req.ThemeColor)
	c.JSON(http.StatusCreated, gin.H{"sectionId": id, "state": newAdResponse(s)})
}

type reorderRequest struct {
	Index int `json:"index"`
}

// POST /v1/ads/:id/sections/:sectionId/reorder
func (h *EditHandler) ReorderSection(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if !s.Editor.ReorderSection(c.Param("sectionId"), req.Index) {
		NotFound(c, "section not found")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

type pageRequest struct {
	PageType   string  `json:"pageType"`
	TemplateID *string `json:"templateId"`
}

func validPageType(t string) bool {
	switch t {
	case model.PageFrontCover, model.PageBackCover, model.PageInterior, model.PageCenterfold:
		return true
	}
	return false
}

// POST /v1/ads/:id/sections/:sectionId/pages
func (h *EditHandler) AddPage(c *gin.Context) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.PageType == "" {
		req.PageType = model.PageInterior
	}
	if !validPageType(req.PageType) {
		BadRequest(c, "invalid pageType")
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if req.TemplateID != nil {
		if _, found := s.Templates().Template(*req.TemplateID); !found {
			NotFound(c, "template not found")
			return
		}
	}
	id, added := s.Editor.AddPage(c.Param("sectionId"), req.PageType, req.TemplateID)
	if !added {
		NotFound(c, "section not found")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pageId": id, "state": newAdResponse(s)})
}

// DELETE /v1/ads/:id/pages/:pageId
func (h *EditHandler) DeletePage(c *gin.Context) {
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if err := s.Editor.DeletePage(c.Param("pageId")); err != nil {
		switch {
		case errors.Is(err, editor.ErrLastPage):
			Conflict(c, "an ad must keep at least one page")
		case errors.Is(err, editor.ErrPageNotFound):
			NotFound(c, "page not found")
		default:
			Internal(c, "failed to delete page")
		}
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

// POST /v1/ads/:id/pages/:pageId/reorder
func (h *EditHandler) ReorderPage(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if !s.Editor.ReorderPage(c.Param("pageId"), req.Index) {
		NotFound(c, "page not found")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

type swapTemplateRequest struct {
	TemplateID *string `json:"templateId"`
}

// PUT /v1/ads/:id/pages/:pageId/template
// templateId 为 null 时清除模板。
func (h *EditHandler) SwapTemplate(c *gin.Context) {
	var req swapTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	if req.TemplateID != nil {
		if _, found := s.Templates().Template(*req.TemplateID); !found {
			NotFound(c, "template not found")
			return
		}
	}
	if !s.Editor.SwapTemplate(c.Param("pageId"), req.TemplateID) {
		NotFound(c, "page not found")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}
