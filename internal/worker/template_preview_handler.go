package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"adBuilder/internal/database"
	"adBuilder/internal/export"
	"adBuilder/internal/model"
	"adBuilder/internal/pdf"
	"adBuilder/internal/storage"
	"adBuilder/internal/tasks"
)

type templateStore interface {
	GetTemplate(ctx context.Context, id string) (model.Template, error)
	SetTemplatePreview(ctx context.Context, id, objectKey string) error
}

const previewQuality = 80

// TemplatePreviewHandler 负责模板缩略图生成任务。
type TemplatePreviewHandler struct {
	templates       templateStore
	storage         objectUploader
	logger          *slog.Logger
	frontendBaseURL string
	readyTimeout    time.Duration

	capture func(ctx context.Context, tpl model.Template) ([]byte, error)
}

func NewTemplatePreviewHandler(
	templates templateStore,
	storageClient objectUploader,
	logger *slog.Logger,
	cfg HandlerConfig,
) *TemplatePreviewHandler {
	h := &TemplatePreviewHandler{
		templates:       templates,
		storage:         storageClient,
		logger:          logger,
		frontendBaseURL: strings.TrimRight(strings.TrimSpace(cfg.FrontendBaseURL), "/"),
		readyTimeout:    cfg.ReadyTimeout,
	}
	h.capture = h.captureTemplate
	return h
}

func (h *TemplatePreviewHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.TemplatePreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal template preview payload failed", slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("template_id", payload.TemplateID),
		slog.String("correlation_id", payload.CorrelationID),
	)
	log.Info("Starting template preview generation task...")

	tpl, err := h.templates.GetTemplate(ctx, payload.TemplateID)
	if err != nil {
		if database.IsNotFound(err) {
			log.Warn("template not found, skipping task")
			return nil
		}
		log.Error("query template failed", slog.Any("error", err))
		return err
	}

	previewBytes, err := h.capture(ctx, tpl)
	if err != nil {
		log.Error("capture template screenshot failed", slog.Any("error", err))
		return err
	}

	objectName := storage.TemplatePreviewKey(tpl.ID)
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(previewBytes), int64(len(previewBytes)), "image/jpeg"); err != nil {
		log.Error("upload template preview failed", slog.Any("error", err))
		return err
	}

	if err := h.templates.SetTemplatePreview(ctx, tpl.ID, objectName); err != nil {
		log.Error("update template preview failed", slog.Any("error", err))
		return err
	}

	log.Info("Template preview generation completed.")
	return nil
}

// previewData 把模板包装成只有一页、没有区块的打印数据。
func previewData(tpl model.Template) PrintData {
	canvas := model.DefaultCanvas
	if tpl.Canvas.Width > 0 && tpl.Canvas.Height > 0 {
		canvas = tpl.Canvas
	}
	return PrintData{Payload: export.Payload{
		Name: tpl.Name,
		Zoom: 1,
		Pages: []export.Page{{
			ID:       tpl.ID,
			PageType: model.PageInterior,
			Number:   1,
			Canvas:   canvas,
			Template: &tpl,
		}},
	}}
}

func (h *TemplatePreviewHandler) captureTemplate(ctx context.Context, tpl model.Template) ([]byte, error) {
	data := previewData(tpl)
	if h.frontendBaseURL != "" {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal preview data: %w", err)
		}
		targetURL := fmt.Sprintf("%s/print/templates/%s", h.frontendBaseURL, url.PathEscape(tpl.ID))
		page, cleanup, err := renderFrontendPage(h.logger, targetURL, buildPrintDataInjectionScript(raw), h.readyTimeout)
		defer cleanup()
		if err != nil {
			return nil, err
		}
		return capturePreparedScreenshot(page, previewQuality)
	}

	html, err := renderPrintHTML(data, h.readyTimeout)
	if err != nil {
		return nil, err
	}
	return pdf.ScreenshotHTML(ctx, html, "#ad-page-1", previewQuality, pdf.Options{
		ReadyTimeout: h.readyTimeout,
		Logger:       h.logger,
	})
}
