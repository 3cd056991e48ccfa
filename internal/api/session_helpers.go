package api

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"adBuilder/internal/api/middleware"
	"adBuilder/internal/model"
	"adBuilder/internal/session"
	"adBuilder/internal/workflow"
)

// loadSession 按路由参数 :id 取得会话，失败时自行写入错误响应。
func loadSession(c *gin.Context, sessions *session.Manager) (*session.Session, bool) {
	s, err := sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrAdNotFound) {
			NotFound(c, "ad not found")
			return nil, false
		}
		middleware.LoggerFromContext(c).Error("load editing session", slog.Any("error", err))
		Internal(c, "failed to load ad")
		return nil, false
	}
	return s, true
}

// editableSession 在 loadSession 基础上，广告离开草稿状态时返回 409。
func editableSession(c *gin.Context, sessions *session.Manager) (*session.Session, bool) {
	s, ok := loadSession(c, sessions)
	if !ok {
		return nil, false
	}
	if status := s.Document().Snapshot().Status; !workflow.Editable(status) {
		Conflict(c, "ad is "+status+" and can no longer be edited")
		return nil, false
	}
	return s, true
}

// adResponse 是会话在编辑器中的视图。
type adResponse struct {
	Ad       model.Ad `json:"ad"`
	Dirty    bool     `json:"dirty"`
	Revision uint64   `json:"revision"`
	CanUndo  bool     `json:"canUndo"`
	CanRedo  bool     `json:"canRedo"`
	Region   string   `json:"region"`
}

func newAdResponse(s *session.Session) adResponse {
	doc := s.Document()
	return adResponse{
		Ad:       doc.Snapshot(),
		Dirty:    doc.Dirty(),
		Revision: doc.Revision(),
		CanUndo:  s.Editor.CanUndo(),
		CanRedo:  s.Editor.CanRedo(),
		Region:   s.Prices.Region(),
	}
}
