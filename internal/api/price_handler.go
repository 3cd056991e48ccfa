package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"adBuilder/internal/api/middleware"
	"adBuilder/internal/database"
	"adBuilder/internal/model"
	"adBuilder/internal/session"
)

// PriceHandler 管理地区价格覆盖以及会话的当前地区。
type PriceHandler struct {
	repo     *database.Repository
	sessions *session.Manager
}

func NewPriceHandler(repo *database.Repository, sessions *session.Manager) *PriceHandler {
	return &PriceHandler{repo: repo, sessions: sessions}
}

// GET /v1/ads/:id/prices
func (h *PriceHandler) ListPrices(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	entries, err := h.repo.ListRegionalPrices(c.Request.Context(), s.AdID)
	if err != nil {
		Internal(c, "failed to list prices")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"region":    s.Prices.Region(),
		"overrides": entries,
	})
}

type effectivePrice struct {
	UPC             string           `json:"upc"`
	Region          string           `json:"region"`
	Price           *model.PriceData `json:"price"`
	RecentlyUpdated bool             `json:"recentlyUpdated"`
}

// GET /v1/ads/:id/prices/:upc?region=
func (h *PriceHandler) GetPrice(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	upc := c.Param("upc")
	region := c.Query("region")
	view := s.Prices.In(region)
	if region == "" {
		region = s.Prices.Region()
	}
	c.JSON(http.StatusOK, effectivePrice{
		UPC:             upc,
		Region:          region,
		Price:           view.GetPrice(upc),
		RecentlyUpdated: view.RecentlyUpdated(upc),
	})
}

// PUT /v1/ads/:id/prices/:region/:upc
// 先持久化，再切换会话地区并写入覆盖价，保证刷新后价格一致。
func (h *PriceHandler) SetRegionalPrice(c *gin.Context) {
	var price model.PriceData
	if err := c.ShouldBindJSON(&price); err != nil {
		BadRequest(c, err.Error())
		return
	}
	region := strings.TrimSpace(c.Param("region"))
	upc := strings.TrimSpace(c.Param("upc"))
	if region == "" || upc == "" {
		BadRequest(c, "region and upc are required")
		return
	}
	if price.PriceType == "" {
		price.PriceType = model.PriceEach
	}
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	entry := database.RegionalPriceEntry{Region: region, UPC: upc, Price: price}
	if err := h.repo.UpsertRegionalPrice(c.Request.Context(), s.AdID, entry); err != nil {
		middleware.LoggerFromContext(c).Error("upsert regional price", slog.Any("error", err))
		Internal(c, "failed to save price")
		return
	}
	s.Prices.SetRegion(region)
	s.Prices.SetOverride(upc, price)
	c.JSON(http.StatusOK, effectivePrice{
		UPC:             upc,
		Region:          region,
		Price:           s.Prices.GetPrice(upc),
		RecentlyUpdated: s.Prices.RecentlyUpdated(upc),
	})
}

type regionRequest struct {
	Region string `json:"region"`
}

// PUT /v1/ads/:id/region
// 未知地区不报错，查找时回落到基础价格。
func (h *PriceHandler) SetRegion(c *gin.Context) {
	var req regionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	s.Prices.SetRegion(strings.TrimSpace(req.Region))
	c.JSON(http.StatusOK, gin.H{"region": s.Prices.Region()})
}
