package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"

	"adBuilder/internal/errcode"
	"adBuilder/internal/metrics"
	"adBuilder/internal/notify"
	"adBuilder/internal/pdf"
	"adBuilder/internal/storage"
	"adBuilder/internal/tasks"
)

type exportStore interface {
	CompleteExport(ctx context.Context, id, objectKey string) error
	FailExport(ctx context.Context, id, reason string) error
}

type objectUploader interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// HandlerConfig 任务处理器需要的 worker 配置。
type HandlerConfig struct {
	InternalSecret     string
	InternalAPIBaseURL string
	FrontendBaseURL    string
	ReadyTimeout       time.Duration
}

// PDFTaskHandler 负责消费广告 PDF 导出任务。
type PDFTaskHandler struct {
	exports         exportStore
	storage         objectUploader
	notifier        *notify.Publisher
	logger          *slog.Logger
	print           *printClient
	frontendBaseURL string
	readyTimeout    time.Duration

	render       func(ctx context.Context, adID string, raw []byte, data PrintData) ([]byte, error)
	finalAttempt func(ctx context.Context) bool
}

// NewPDFTaskHandler 创建任务处理器。
func NewPDFTaskHandler(
	exports exportStore,
	storage objectUploader,
	notifier *notify.Publisher,
	logger *slog.Logger,
	cfg HandlerConfig,
) *PDFTaskHandler {
	h := &PDFTaskHandler{
		exports:         exports,
		storage:         storage,
		notifier:        notifier,
		logger:          logger,
		print:           newPrintClient(cfg.InternalAPIBaseURL, cfg.InternalSecret),
		frontendBaseURL: strings.TrimRight(strings.TrimSpace(cfg.FrontendBaseURL), "/"),
		readyTimeout:    cfg.ReadyTimeout,
		finalAttempt:    isFinalAsynqAttempt,
	}
	h.render = h.renderPDF
	return h
}

// ProcessTask 实现 asynq.Handler。
func (h *PDFTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	var payload tasks.PDFGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("ad_id", payload.AdID),
		slog.String("export_id", payload.ExportID),
	)
	log.Info("Starting ad PDF export task...")

	defer func() {
		if retErr == nil || !h.finalAttempt(ctx) {
			return
		}
		metrics.ObserveExport(retErr)
		if err := h.exports.FailExport(ctx, payload.ExportID, retErr.Error()); err != nil {
			log.Error("mark export failed", slog.Any("error", err))
		}
		msg := notify.ExportMessage{
			Type:          notify.TypeExport,
			Status:        "error",
			AdID:          payload.AdID,
			ExportID:      payload.ExportID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.notifier.Publish(ctx, payload.AdID, msg); err != nil {
			log.Error("publish pdf error notification failed", slog.Any("error", err))
		}
	}()

	raw, err := h.print.fetch(ctx, payload.AdID, payload.ExportID, payload.Region, payload.Zoom, payload.CorrelationID)
	if err != nil {
		log.Error("fetch print data failed", slog.Any("error", err))
		return err
	}
	var data PrintData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode print data: %w", err)
	}
	missingKeys, resourceMissing := missingResources(data.Warnings)

	pdfBytes, err := h.render(ctx, payload.AdID, raw, data)
	if err != nil {
		log.Error("render pdf failed", slog.Any("error", err))
		return err
	}

	objectName := storage.ExportKey(payload.AdID, payload.ExportID)
	if _, err := h.storage.UploadFile(ctx, objectName, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	if err := h.exports.CompleteExport(ctx, payload.ExportID, objectName); err != nil {
		log.Error("mark export completed failed", slog.Any("error", err))
		return err
	}
	metrics.ObserveExport(nil)

	msg := notify.ExportMessage{
		Type:          notify.TypeExport,
		Status:        "completed",
		AdID:          payload.AdID,
		ExportID:      payload.ExportID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if resourceMissing {
		msg.ErrorCode = errcode.ResourceMissing
		msg.ErrorMessage = "部分图片资源缺失，已用占位图继续生成"
		msg.MissingKeys = missingKeys
		log.Warn("pdf generated with missing assets",
			slog.Int("missing_count", len(missingKeys)),
			slog.Any("missing_keys", missingKeys),
		)
	}
	// PDF 已经落盘，通知失败不重试任务
	if err := h.notifier.Publish(ctx, payload.AdID, msg); err != nil {
		log.Warn("publish export notification failed", slog.Any("error", err))
	}

	log.Info("PDF export task completed successfully.", slog.Int("bytes", len(pdfBytes)))
	return nil
}

func (h *PDFTaskHandler) renderPDF(ctx context.Context, adID string, raw []byte, data PrintData) ([]byte, error) {
	width, height := paperSize(data)
	if h.frontendBaseURL != "" {
		targetURL := fmt.Sprintf("%s/print/ads/%s", h.frontendBaseURL, url.PathEscape(adID))
		page, cleanup, err := renderFrontendPage(h.logger, targetURL, buildPrintDataInjectionScript(raw), h.readyTimeout)
		defer cleanup()
		if err != nil {
			return nil, err
		}
		return exportPDF(page, width, height)
	}

	html, err := renderPrintHTML(data, h.readyTimeout)
	if err != nil {
		return nil, err
	}
	return pdf.GeneratePDFFromHTML(ctx, html, pdf.Options{
		ReadyTimeout: h.readyTimeout,
		PaperWidth:   width,
		PaperHeight:  height,
		Logger:       h.logger,
	})
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}

func missingResources(warnings []PrintWarning) (missingKeys []string, hasWarning bool) {
	uniq := make(map[string]struct{})
	for _, w := range warnings {
		if w.Code != errcode.ResourceMissing {
			continue
		}
		hasWarning = true
		for _, k := range w.MissingKeys {
			key := strings.TrimSpace(k)
			if key == "" {
				continue
			}
			if _, ok := uniq[key]; ok {
				continue
			}
			uniq[key] = struct{}{}
			missingKeys = append(missingKeys, key)
		}
	}
	return missingKeys, hasWarning
}
