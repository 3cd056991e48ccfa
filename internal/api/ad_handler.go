package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"adBuilder/internal/api/middleware"
	"adBuilder/internal/database"
	"adBuilder/internal/document"
	"adBuilder/internal/export"
	"adBuilder/internal/session"
	"adBuilder/internal/storage"
)

type prefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// AdHandler 负责广告本身的增删改查、保存、撤销/重做与渲染预览。
type AdHandler struct {
	repo     *database.Repository
	sessions *session.Manager
	storage  prefixDeleter
}

func NewAdHandler(repo *database.Repository, sessions *session.Manager, storage prefixDeleter) *AdHandler {
	return &AdHandler{repo: repo, sessions: sessions, storage: storage}
}

type adDetailsRequest struct {
	Name      string     `json:"name" binding:"required"`
	RegionIDs []string   `json:"regionIds"`
	ValidFrom *time.Time `json:"validFrom"`
	ValidTo   *time.Time `json:"validTo"`
}

func (r adDetailsRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.ValidFrom != nil && r.ValidTo != nil && r.ValidTo.Before(*r.ValidFrom) {
		return errors.New("validTo must not be before validFrom")
	}
	return nil
}

type adListItem struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Version   int        `json:"version"`
	RegionIDs []string   `json:"regionIds"`
	ValidFrom *time.Time `json:"validFrom,omitempty"`
	ValidTo   *time.Time `json:"validTo,omitempty"`
}

// GET /v1/ads
func (h *AdHandler) ListAds(c *gin.Context) {
	ads, err := h.repo.ListAds(c.Request.Context())
	if err != nil {
		Internal(c, "failed to list ads")
		return
	}
	items := make([]adListItem, 0, len(ads))
	for _, ad := range ads {
		items = append(items, adListItem{
			ID:        ad.ID,
			Name:      ad.Name,
			Status:    ad.Status,
			Version:   ad.Version,
			RegionIDs: ad.RegionIDs,
			ValidFrom: ad.ValidFrom,
			ValidTo:   ad.ValidTo,
		})
	}
	c.JSON(http.StatusOK, items)
}

// POST /v1/ads
func (h *AdHandler) CreateAd(c *gin.Context) {
	var req adDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		BadRequest(c, err.Error())
		return
	}
	ad, err := h.repo.CreateAd(c.Request.Context(), database.NewAdInput{
		Name:      strings.TrimSpace(req.Name),
		RegionIDs: req.RegionIDs,
		ValidFrom: req.ValidFrom,
		ValidTo:   req.ValidTo,
	})
	if err != nil {
		middleware.LoggerFromContext(c).Error("create ad", slog.Any("error", err))
		Internal(c, "failed to create ad")
		return
	}
	c.JSON(http.StatusCreated, ad)
}

// GET /v1/ads/:id
func (h *AdHandler) GetAd(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

// PATCH /v1/ads/:id
// 名称、地区与有效期不进入撤销历史。
func (h *AdHandler) UpdateDetails(c *gin.Context) {
	var req adDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	s.Document().UpdateDetails(document.Details{
		Name:      strings.TrimSpace(req.Name),
		RegionIDs: req.RegionIDs,
		ValidFrom: req.ValidFrom,
		ValidTo:   req.ValidTo,
	})
	c.JSON(http.StatusOK, newAdResponse(s))
}

// DELETE /v1/ads/:id
func (h *AdHandler) DeleteAd(c *gin.Context) {
	adID := c.Param("id")
	ctx := c.Request.Context()
	if err := h.repo.DeleteAd(ctx, adID); err != nil {
		if database.IsNotFound(err) {
			NotFound(c, "ad not found")
			return
		}
		Internal(c, "failed to delete ad")
		return
	}
	h.sessions.Invalidate(adID)

	if h.storage != nil {
		log := middleware.LoggerFromContext(c)
		for _, prefix := range []string{storage.ExportPrefix, storage.BlockAssetPrefix} {
			if err := h.storage.DeletePrefix(ctx, prefix+"/"+adID+"/"); err != nil {
				log.Warn("delete ad objects", slog.String("prefix", prefix), slog.Any("error", err))
			}
		}
	}
	c.Status(http.StatusNoContent)
}

// POST /v1/ads/:id/save
func (h *AdHandler) Save(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	if err := h.sessions.Save(c.Request.Context(), s.AdID); err != nil {
		middleware.LoggerFromContext(c).Error("save ad", slog.Any("error", err))
		Internal(c, "failed to save ad")
		return
	}
	c.JSON(http.StatusOK, newAdResponse(s))
}

// GET /v1/ads/:id/render?region=&zoom=
func (h *AdHandler) Render(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	zoom := 1.0
	if raw := c.Query("zoom"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			BadRequest(c, "invalid zoom")
			return
		}
		zoom = v
	}
	region := c.Query("region")
	payload := export.Build(s.Document().Snapshot(), s.Blocks(), s.Templates(), s.Prices.In(region), export.Options{
		Region: region,
		Zoom:   zoom,
		Now:    time.Now().UTC(),
	})
	c.JSON(http.StatusOK, payload)
}

// GET /v1/ads/:id/history
func (h *AdHandler) History(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	descriptions, cursor := s.Editor.History()
	c.JSON(http.StatusOK, gin.H{
		"commands": descriptions,
		"cursor":   cursor,
		"canUndo":  s.Editor.CanUndo(),
		"canRedo":  s.Editor.CanRedo(),
	})
}

// POST /v1/ads/:id/undo
func (h *AdHandler) Undo(c *gin.Context) {
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	s.Editor.Undo()
	c.JSON(http.StatusOK, newAdResponse(s))
}

// POST /v1/ads/:id/redo
func (h *AdHandler) Redo(c *gin.Context) {
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	s.Editor.Redo()
	c.JSON(http.StatusOK, newAdResponse(s))
}
