// Package notify 通过 Redis Pub/Sub 按广告发布消息，API 的 websocket 会转发给打开该广告的所有设计师。
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 消息类型，字段名与前端解析保持一致。
const (
	TypeExport       = "export"
	TypePriceUpdated = "price_updated"
	TypeAdStatus     = "ad_status"
)

// Channel 返回广告对应的 Pub/Sub 频道。
func Channel(adID string) string {
	return "ad_notify:" + adID
}

// ExportMessage 报告一次 PDF 导出的结果。
type ExportMessage struct {
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	AdID          string   `json:"ad_id"`
	ExportID      string   `json:"export_id"`
	CorrelationID string   `json:"correlation_id"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message"`
	MissingKeys   []string `json:"missing_keys,omitempty"`
}

// PriceUpdatedMessage 通知前端某个 UPC 的价格刚刚变化，用于闪烁提示。
type PriceUpdatedMessage struct {
	Type string `json:"type"`
	AdID string `json:"ad_id"`
	UPC  string `json:"upc"`
}

// AdStatusMessage 通知工作流状态变化。
type AdStatusMessage struct {
	Type    string `json:"type"`
	AdID    string `json:"ad_id"`
	Status  string `json:"status"`
	Version int    `json:"version"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher 序列化消息并发布到广告频道。
type Publisher struct {
	client publisher
}

// NewPublisher 包装 redis 客户端，client 为 nil 时丢弃所有消息。
func NewPublisher(client publisher) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, adID string, msg any) error {
	if p == nil || p.client == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := Channel(adID)
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
