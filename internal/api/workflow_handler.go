package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"adBuilder/internal/api/middleware"
	"adBuilder/internal/database"
	"adBuilder/internal/notify"
	"adBuilder/internal/session"
	"adBuilder/internal/workflow"
)

type adNotifier interface {
	Publish(ctx context.Context, adID string, msg any) error
}

// WorkflowHandler 处理审核流转、版本快照与审计记录。
type WorkflowHandler struct {
	repo     *database.Repository
	sessions *session.Manager
	notifier adNotifier
	now      func() time.Time
}

func NewWorkflowHandler(repo *database.Repository, sessions *session.Manager, notifier adNotifier) *WorkflowHandler {
	if notifier == nil {
		notifier = (*notify.Publisher)(nil)
	}
	return &WorkflowHandler{repo: repo, sessions: sessions, notifier: notifier, now: time.Now}
}

type transitionRequest struct {
	Comment string `json:"comment"`
}

// POST /v1/ads/:id/workflow/:action
func (h *WorkflowHandler) Transition(c *gin.Context) {
	var req transitionRequest
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

	// 快照必须与数据库一致，先落盘
	if err := h.sessions.Save(ctx, s.AdID); err != nil {
		log.Error("save before transition", slog.Any("error", err))
		Internal(c, "failed to save ad")
		return
	}

	action := c.Param("action")
	res, err := workflow.Apply(s.Document().Snapshot(), action, req.Comment, h.now().UTC())
	if err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) {
			Conflict(c, err.Error())
			return
		}
		Internal(c, "failed to apply transition")
		return
	}

	var snapshot []byte
	if res.Version != nil {
		snapshot = res.Version.Snapshot
	}
	// 状态与快照同一事务提交，成功后才改会话里的状态
	if err := h.repo.ApplyTransition(ctx, s.AdID, res.Ad.Status, res.Ad.Version, snapshot); err != nil {
		log.Error("apply transition", slog.Any("error", err))
		Internal(c, "failed to update status")
		return
	}
	s.Document().SetStatus(res.Ad.Status, res.Ad.Version)

	audit := database.AuditEntry{
		AdID:       s.AdID,
		Action:     res.Audit.Action,
		FromStatus: res.Audit.FromStatus,
		ToStatus:   res.Audit.ToStatus,
		Comment:    res.Audit.Comment,
	}
	if err := h.repo.AddAudit(ctx, audit); err != nil {
		log.Warn("write audit entry", slog.Any("error", err))
	}

	msg := notify.AdStatusMessage{
		Type:    notify.TypeAdStatus,
		AdID:    s.AdID,
		Status:  res.Ad.Status,
		Version: res.Ad.Version,
	}
	if err := h.notifier.Publish(ctx, s.AdID, msg); err != nil {
		log.Warn("publish status notification", slog.Any("error", err))
	}

	log.Info("ad status changed",
		slog.String("resource_id", s.AdID),
		slog.String("action", action),
		slog.String("from", res.Audit.FromStatus),
		slog.String("to", res.Audit.ToStatus),
	)
	c.JSON(http.StatusOK, newAdResponse(s))
}

type versionItem struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// GET /v1/ads/:id/versions
func (h *WorkflowHandler) ListVersions(c *gin.Context) {
	rows, err := h.repo.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		Internal(c, "failed to list versions")
		return
	}
	items := make([]versionItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, versionItem{Version: r.Version, CreatedAt: r.CreatedAt})
	}
	c.JSON(http.StatusOK, items)
}

// GET /v1/ads/:id/versions/:version
func (h *WorkflowHandler) GetVersion(c *gin.Context) {
	rows, err := h.repo.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		Internal(c, "failed to load version")
		return
	}
	want := c.Param("version")
	for _, r := range rows {
		if strconv.Itoa(r.Version) == want {
			c.Data(http.StatusOK, "application/json; charset=utf-8", r.Snapshot)
			return
		}
	}
	NotFound(c, "version not found")
}

type auditItem struct {
	Action     string    `json:"action"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GET /v1/ads/:id/audit
func (h *WorkflowHandler) ListAudit(c *gin.Context) {
	rows, err := h.repo.ListAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		Internal(c, "failed to list audit entries")
		return
	}
	items := make([]auditItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, auditItem{
			Action:     r.Action,
			FromStatus: r.FromStatus,
			ToStatus:   r.ToStatus,
			Comment:    r.Comment,
			CreatedAt:  r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}
