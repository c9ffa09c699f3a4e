// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishRefreshRequest 发布按需采集请求
func (p *Producer) PublishRefreshRequest(ctx context.Context, req *RefreshRequestMessage) (string, error) {
	msg, err := NewMessage(req.RequestID, "ingest_refresh", req.Source, req)
	if err != nil {
		return "", err
	}

	if req.RequestID != "" {
		msg.SetMetadata("request_id", req.RequestID)
	}
	return p.Publish(ctx, StreamIngestRefresh, msg)
}

// PublishIngested 发布采集完成事件
func (p *Producer) PublishIngested(ctx context.Context, event *IngestedEventMessage) (string, error) {
	msg, err := NewMessage(event.BatchID, "news_ingested", event.Source, event)
	if err != nil {
		return "", err
	}

	return p.Publish(ctx, StreamNewsEvents, msg)
}

// RefreshRequestMessage 按需采集请求消息
// Source 为空表示刷新所有配置的新闻源
type RefreshRequestMessage struct {
	RequestID string `json:"request_id"`
	Source    string `json:"source,omitempty"`
}

// IngestedEventMessage 采集完成事件消息
type IngestedEventMessage struct {
	BatchID          string `json:"batch_id"`
	Source           string `json:"source"`
	Inserted         int    `json:"inserted"`
	SkippedDuplicate int    `json:"skipped_duplicate"`
	SkippedInvalid   int    `json:"skipped_invalid"`
}
