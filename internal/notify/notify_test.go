package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
)

type recordingClient struct {
	channel string
	payload []byte
}

func (r *recordingClient) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	r.channel = channel
	r.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func TestPublishUsesAdChannel(t *testing.T) {
	rec := &recordingClient{}
	p := NewPublisher(rec)

	err := p.Publish(context.Background(), "ad-1", PriceUpdatedMessage{Type: TypePriceUpdated, AdID: "ad-1", UPC: "0001"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rec.channel != "ad_notify:ad-1" {
		t.Fatalf("channel %s", rec.channel)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got["type"] != TypePriceUpdated || got["upc"] != "0001" {
		t.Fatalf("payload %v", got)
	}
}

func TestNilPublisherDrops(t *testing.T) {
	var p *Publisher
	if err := p.Publish(context.Background(), "ad-1", struct{}{}); err != nil {
		t.Fatalf("nil publisher: %v", err)
	}
	if err := NewPublisher(nil).Publish(context.Background(), "ad-1", struct{}{}); err != nil {
		t.Fatalf("nil client: %v", err)
	}
}
