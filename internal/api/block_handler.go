package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"adBuilder/internal/api/middleware"
	"adBuilder/internal/database"
	"adBuilder/internal/feed"
	"adBuilder/internal/metrics"
	"adBuilder/internal/model"
	"adBuilder/internal/session"
)

const maxFeedSize = 10 << 20

// BlockHandler 管理广告的 BlockData（商品与促销内容）。
type BlockHandler struct {
	repo     *database.Repository
	sessions *session.Manager
}

func NewBlockHandler(repo *database.Repository, sessions *session.Manager) *BlockHandler {
	return &BlockHandler{repo: repo, sessions: sessions}
}

type blockItem struct {
	model.BlockData
	Placed bool `json:"placed"`
}

// GET /v1/ads/:id/block-data
func (h *BlockHandler) ListBlocks(c *gin.Context) {
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	ad := s.Document().Snapshot()
	blocks := s.Blocks()
	items := make([]blockItem, 0, len(blocks))
	for _, b := range blocks {
		items = append(items, blockItem{BlockData: b, Placed: ad.IsPlaced(b.ID)})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Feed.ProductName != items[j].Feed.ProductName {
			return items[i].Feed.ProductName < items[j].Feed.ProductName
		}
		return items[i].ID < items[j].ID
	})
	c.JSON(http.StatusOK, items)
}

// POST /v1/ads/:id/block-data
func (h *BlockHandler) CreateBlock(c *gin.Context) {
	var b model.BlockData
	if err := c.ShouldBindJSON(&b); err != nil {
		BadRequest(c, err.Error())
		return
	}
	b = feed.Sanitize(b)
	if err := feed.Validate(b); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	b.ID = ""
	saved, err := h.repo.UpsertBlocks(c.Request.Context(), s.AdID, []model.BlockData{b})
	if err != nil {
		middleware.LoggerFromContext(c).Error("create block", slog.Any("error", err))
		Internal(c, "failed to save block")
		return
	}
	s.PutBlocks(saved)
	c.JSON(http.StatusCreated, saved[0])
}

// PUT /v1/ads/:id/block-data/:blockId
// BlockData 不做局部修改，请求体整体替换原内容。
func (h *BlockHandler) ReplaceBlock(c *gin.Context) {
	var b model.BlockData
	if err := c.ShouldBindJSON(&b); err != nil {
		BadRequest(c, err.Error())
		return
	}
	b = feed.Sanitize(b)
	if err := feed.Validate(b); err != nil {
		BadRequest(c, err.Error())
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	b.ID = c.Param("blockId")
	b.AdID = s.AdID
	if err := h.repo.ReplaceBlock(c.Request.Context(), b); err != nil {
		if database.IsNotFound(err) {
			NotFound(c, "block data not found")
			return
		}
		middleware.LoggerFromContext(c).Error("replace block", slog.Any("error", err))
		Internal(c, "failed to save block")
		return
	}
	s.PutBlocks([]model.BlockData{b})
	c.JSON(http.StatusOK, b)
}

// POST /v1/ads/:id/block-data/import
// 支持 multipart 字段 file，或直接把 JSON/XML 放在请求体中。
func (h *BlockHandler) ImportFeed(c *gin.Context) {
	data, hint, err := readFeed(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	format := feed.DetectFormat(hint, data)
	blocks, err := feed.Parse(bytes.NewReader(data), hint)
	if err != nil {
		if errors.Is(err, feed.ErrUnsupportedFormat) || errors.Is(err, feed.ErrInvalidBlock) {
			BadRequest(c, err.Error())
			return
		}
		Internal(c, "failed to parse feed")
		return
	}
	s, ok := editableSession(c, h.sessions)
	if !ok {
		return
	}
	saved, err := h.repo.UpsertBlocks(c.Request.Context(), s.AdID, blocks)
	if err != nil {
		middleware.LoggerFromContext(c).Error("import feed", slog.Any("error", err))
		Internal(c, "failed to save blocks")
		return
	}
	s.PutBlocks(saved)
	metrics.AddImportedBlocks(format, len(saved))
	middleware.LoggerFromContext(c).Info("feed imported",
		slog.String("format", format),
		slog.Int("blocks", len(saved)),
	)
	c.JSON(http.StatusOK, gin.H{"imported": len(saved), "blocks": saved})
}

func readFeed(c *gin.Context) ([]byte, string, error) {
	if fh, err := c.FormFile("file"); err == nil {
		if fh.Size > maxFeedSize {
			return nil, "", errors.New("feed file too large")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", err
		}
		hint := fh.Header.Get("Content-Type") + " " + fh.Filename
		return data, hint, nil
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFeedSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxFeedSize {
		return nil, "", errors.New("feed too large")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", errors.New("empty feed")
	}
	return data, c.ContentType(), nil
}
