package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"adBuilder/internal/api/middleware"
	"adBuilder/internal/database"
	"adBuilder/internal/model"
	"adBuilder/internal/session"
	"adBuilder/internal/tasks"
)

type urlSigner interface {
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// TemplateHandler 负责模板相关的 API。系统模板只读。
type TemplateHandler struct {
	repo     *database.Repository
	sessions *session.Manager
	queue    taskEnqueuer
	signer   urlSigner
}

func NewTemplateHandler(repo *database.Repository, sessions *session.Manager, queue taskEnqueuer, signer urlSigner) *TemplateHandler {
	return &TemplateHandler{repo: repo, sessions: sessions, queue: queue, signer: signer}
}

type templateListItem struct {
	model.Template
	PreviewURL string `json:"previewUrl,omitempty"`
}

func validateTemplate(t model.Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("name is required")
	}
	if t.Canvas.Width <= 0 || t.Canvas.Height <= 0 {
		return errors.New("canvas width and height must be positive")
	}
	seen := make(map[string]struct{}, len(t.Zones))
	for _, z := range t.Zones {
		if z.ID == "" {
			return errors.New("zone id is required")
		}
		if _, dup := seen[z.ID]; dup {
			return fmt.Errorf("duplicate zone id %q", z.ID)
		}
		seen[z.ID] = struct{}{}
		if z.Width <= 0 || z.Height <= 0 {
			return fmt.Errorf("zone %q must have a positive size", z.ID)
		}
	}
	return nil
}

func (h *TemplateHandler) previewURL(ctx context.Context, log *slog.Logger, id string) string {
	if h.signer == nil {
		return ""
	}
	key, err := h.repo.TemplatePreview(ctx, id)
	if err != nil || key == "" {
		return ""
	}
	url, err := h.signer.GeneratePresignedURL(ctx, key, time.Hour)
	if err != nil {
		log.Warn("presign template preview", slog.String("template_id", id), slog.Any("error", err))
		return ""
	}
	return url
}

// reload 在模板变更后刷新所有会话的模板集合，失败只记日志。
func (h *TemplateHandler) reload(c *gin.Context) {
	if err := h.sessions.ReloadTemplates(c.Request.Context()); err != nil {
		middleware.LoggerFromContext(c).Warn("reload session templates", slog.Any("error", err))
	}
}

// GET /v1/templates
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	list, err := h.repo.ListTemplates(c.Request.Context())
	if err != nil {
		Internal(c, "failed to list templates")
		return
	}
	log := middleware.LoggerFromContext(c)
	items := make([]templateListItem, 0, len(list))
	for _, t := range list {
		items = append(items, templateListItem{
			Template:   t,
			PreviewURL: h.previewURL(c.Request.Context(), log, t.ID),
		})
	}
	c.JSON(http.StatusOK, items)
}

// GET /v1/templates/:id
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	t, err := h.repo.GetTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if database.IsNotFound(err) {
			NotFound(c, "template not found")
			return
		}
		Internal(c, "failed to query template")
		return
	}
	c.JSON(http.StatusOK, templateListItem{
		Template:   t,
		PreviewURL: h.previewURL(c.Request.Context(), middleware.LoggerFromContext(c), t.ID),
	})
}

// POST /v1/templates
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req model.Template
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := validateTemplate(req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	req.ID = ""
	t, err := h.repo.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		middleware.LoggerFromContext(c).Error("create template", slog.Any("error", err))
		Internal(c, "failed to create template")
		return
	}
	h.reload(c)
	h.enqueuePreview(c, t.ID)
	c.JSON(http.StatusCreated, t)
}

// PUT /v1/templates/:id
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	var req model.Template
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := validateTemplate(req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	req.ID = c.Param("id")
	t, err := h.repo.UpdateTemplate(c.Request.Context(), req)
	if err != nil {
		h.writeTemplateError(c, err, "failed to update template")
		return
	}
	h.reload(c)
	h.enqueuePreview(c, t.ID)
	c.JSON(http.StatusOK, t)
}

// DELETE /v1/templates/:id
// 引用该模板的页面变为未配置模板。
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.repo.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		h.writeTemplateError(c, err, "failed to delete template")
		return
	}
	h.reload(c)
	c.Status(http.StatusNoContent)
}

// POST /v1/templates/:id/preview
func (h *TemplateHandler) RequestPreview(c *gin.Context) {
	if _, err := h.repo.GetTemplate(c.Request.Context(), c.Param("id")); err != nil {
		h.writeTemplateError(c, err, "failed to query template")
		return
	}
	if !h.enqueuePreview(c, c.Param("id")) {
		Internal(c, "failed to enqueue preview")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"templateId": c.Param("id")})
}

func (h *TemplateHandler) enqueuePreview(c *gin.Context, id string) bool {
	if h.queue == nil {
		return false
	}
	log := middleware.LoggerFromContext(c)
	task, err := tasks.NewTemplatePreviewTask(id, middleware.GetCorrelationID(c))
	if err != nil {
		log.Warn("build preview task", slog.Any("error", err))
		return false
	}
	if _, err := h.queue.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Warn("enqueue preview task", slog.String("template_id", id), slog.Any("error", err))
		return false
	}
	return true
}

func (h *TemplateHandler) writeTemplateError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrSystemTemplate):
		Forbidden(c, "system templates are read-only")
	case database.IsNotFound(err):
		NotFound(c, "template not found")
	default:
		middleware.LoggerFromContext(c).Error(msg, slog.Any("error", err))
		Internal(c, msg)
	}
}
