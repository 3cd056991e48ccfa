package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"adBuilder/internal/api/middleware"
	"adBuilder/internal/database"
	"adBuilder/internal/export"
	"adBuilder/internal/session"
	"adBuilder/internal/tasks"
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type exportObjects interface {
	printObjects
	GeneratePresignedURLWithParams(ctx context.Context, objectKey string, duration time.Duration, params map[string]string) (string, error)
}

// ExportHandler 负责 PDF 导出的排队、查询与下载链接，以及 worker 使用的内部打印数据。
type ExportHandler struct {
	repo     *database.Repository
	sessions *session.Manager
	queue    taskEnqueuer
	limiter  hourlyLimiter
	objects  exportObjects
	now      func() time.Time
}

func NewExportHandler(
	repo *database.Repository,
	sessions *session.Manager,
	queue taskEnqueuer,
	counter redisRateCounter,
	objects exportObjects,
	exportsPerHour int,
) *ExportHandler {
	return &ExportHandler{
		repo:     repo,
		sessions: sessions,
		queue:    queue,
		limiter:  hourlyLimiter{client: counter, scope: "export", limit: exportsPerHour},
		objects:  objects,
		now:      time.Now,
	}
}

type exportRequest struct {
	Region string  `json:"region"`
	Zoom   float64 `json:"zoom"`
}

type exportItem struct {
	ID        string    `json:"id"`
	AdID      string    `json:"adId"`
	Version   int       `json:"version"`
	Region    string    `json:"region,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newExportItem(e database.Export) exportItem {
	return exportItem{
		ID:        e.ID,
		AdID:      e.AdID,
		Version:   e.Version,
		Region:    e.Region,
		Status:    e.Status,
		Error:     e.Error,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// POST /v1/ads/:id/export
func (h *ExportHandler) CreateExport(c *gin.Context) {
	var req exportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, err.Error())
			return
		}
	}
	s, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	log := middleware.LoggerFromContext(c)

	if allowed, err := h.limiter.allow(ctx, s.AdID, h.now()); err != nil {
		log.Warn("export rate counter unavailable", slog.Any("error", err))
	} else if !allowed {
		TooManyRequests(c, "export limit reached, try again later")
		return
	}

	// worker 通过内部接口读取数据库状态，导出前先落盘
	if err := h.sessions.Save(ctx, s.AdID); err != nil {
		log.Error("save before export", slog.Any("error", err))
		Internal(c, "failed to save ad")
		return
	}

	region := req.Region
	if region == "" {
		region = s.Prices.Region()
	}
	ad := s.Document().Snapshot()
	// 冻结入队时的渲染结果，之后的编辑不会进入这次导出
	frozen := export.Build(ad, s.Blocks(), s.Templates(), s.Prices.In(region), export.Options{
		Region: region,
		Zoom:   req.Zoom,
		Now:    h.now().UTC(),
	})
	snapshot, err := json.Marshal(frozen)
	if err != nil {
		Internal(c, "failed to snapshot ad")
		return
	}
	row, err := h.repo.CreateExport(ctx, s.AdID, region, ad.Version, snapshot)
	if err != nil {
		log.Error("create export", slog.Any("error", err))
		Internal(c, "failed to create export")
		return
	}

	task, err := tasks.NewPDFGenerateTask(tasks.PDFGeneratePayload{
		ExportID:      row.ID,
		AdID:          s.AdID,
		Region:        region,
		Zoom:          req.Zoom,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		Internal(c, "failed to build export task")
		return
	}
	if _, err := h.queue.EnqueueContext(ctx, task); err != nil {
		log.Error("enqueue export", slog.Any("error", err))
		if ferr := h.repo.FailExport(ctx, row.ID, "enqueue failed"); ferr != nil {
			log.Warn("mark export failed", slog.Any("error", ferr))
		}
		Internal(c, "failed to enqueue export")
		return
	}

	log.Info("export enqueued", slog.String("resource_id", s.AdID), slog.String("export_id", row.ID))
	c.JSON(http.StatusAccepted, newExportItem(row))
}

// GET /v1/ads/:id/exports
func (h *ExportHandler) ListExports(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := h.repo.ListExports(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		Internal(c, "failed to list exports")
		return
	}
	items := make([]exportItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, newExportItem(r))
	}
	c.JSON(http.StatusOK, items)
}

func (h *ExportHandler) findExport(c *gin.Context) (database.Export, bool) {
	row, err := h.repo.GetExport(c.Request.Context(), c.Param("id"), c.Param("exportId"))
	if err != nil {
		if database.IsNotFound(err) {
			NotFound(c, "export not found")
			return database.Export{}, false
		}
		Internal(c, "failed to load export")
		return database.Export{}, false
	}
	return row, true
}

// GET /v1/ads/:id/exports/:exportId
func (h *ExportHandler) GetExport(c *gin.Context) {
	row, ok := h.findExport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newExportItem(row))
}

// GET /v1/ads/:id/exports/:exportId/link
func (h *ExportHandler) GetDownloadLink(c *gin.Context) {
	row, ok := h.findExport(c)
	if !ok {
		return
	}
	if row.Status != database.ExportCompleted || row.ObjectKey == "" {
		Conflict(c, "export is not ready")
		return
	}
	params := map[string]string{
		"response-content-disposition": fmt.Sprintf("attachment; filename=\"ad-%s-v%d.pdf\"", row.AdID, row.Version),
		"response-content-type":        "application/pdf",
	}
	url, err := h.objects.GeneratePresignedURLWithParams(c.Request.Context(), row.ObjectKey, 15*time.Minute, params)
	if err != nil {
		middleware.LoggerFromContext(c).Error("presign export", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GET /v1/internal/ads/:id/print?exportId=&region=&zoom=
// 仅供 worker 调用，由 InternalSecretMiddleware 保护。
// 带 exportId 时返回入队时冻结的快照，否则按当前会话渲染。
func (h *ExportHandler) GetPrintData(c *gin.Context) {
	log := middleware.LoggerFromContext(c)
	var payload export.Payload
	if exportID := c.Query("exportId"); exportID != "" {
		row, err := h.repo.GetExport(c.Request.Context(), c.Param("id"), exportID)
		if err != nil {
			if database.IsNotFound(err) {
				NotFound(c, "export not found")
				return
			}
			log.Error("load export", slog.Any("error", err))
			Internal(c, "failed to load export")
			return
		}
		if len(row.Snapshot) == 0 {
			Conflict(c, "export has no snapshot")
			return
		}
		if err := json.Unmarshal(row.Snapshot, &payload); err != nil {
			log.Error("decode export snapshot", slog.String("export_id", exportID), slog.Any("error", err))
			Internal(c, "failed to decode export snapshot")
			return
		}
	} else {
		s, ok := loadSession(c, h.sessions)
		if !ok {
			return
		}
		zoom := 1.0
		if raw := c.Query("zoom"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				zoom = v
			}
		}
		region := c.Query("region")
		payload = export.Build(s.Document().Snapshot(), s.Blocks(), s.Templates(), s.Prices.In(region), export.Options{
			Region: region,
			Zoom:   zoom,
			Now:    h.now().UTC(),
		})
	}

	data, removed, err := BuildPrintData(c.Request.Context(), h.objects, payload)
	if err != nil {
		log.Error("build print data", slog.Any("error", err))
		Internal(c, "failed to build print data")
		return
	}
	LogRemovedImages(log, removed)
	c.JSON(http.StatusOK, data)
}
