package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePDFGenerate     = "pdf:generate"
	TypeTemplatePreview = "template:preview"
)

// PDFGeneratePayload 描述一次广告导出。Export 行由 API 预先创建。
type PDFGeneratePayload struct {
	ExportID      string  `json:"export_id"`
	AdID          string  `json:"ad_id"`
	Region        string  `json:"region,omitempty"`
	Zoom          float64 `json:"zoom,omitempty"`
	CorrelationID string  `json:"correlation_id"`
}

// NewPDFGenerateTask 构造一个广告 PDF 导出任务。
func NewPDFGenerateTask(p PDFGeneratePayload) (*asynq.Task, error) {
	if p.ExportID == "" || p.AdID == "" {
		return nil, fmt.Errorf("pdf task requires export and ad ids")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFGenerate, payload, asynq.MaxRetry(3)), nil
}

// TemplatePreviewPayload 请求为模板生成预览图。
type TemplatePreviewPayload struct {
	TemplateID    string `json:"template_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewTemplatePreviewTask 构造模板预览任务。
func NewTemplatePreviewTask(templateID, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TemplatePreviewPayload{
		TemplateID:    templateID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTemplatePreview, payload, asynq.MaxRetry(1)), nil
}
