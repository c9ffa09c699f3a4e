// Package embedder 提供带重试与降级语义的文本向量化服务
package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/pkg/errors"
	"newsbrief-ai-api/pkg/logger"
	"newsbrief-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("embedder")

// Service 文本向量化服务
// 对底层 provider 的瞬时故障做有限次重试，最终失败统一归为 EmbeddingFailed
type Service struct {
	embedder   embedding.Embedder
	dimension  int
	maxChars   int
	maxRetries int
	retryFrom  time.Duration
}

// NewService 创建向量化服务
func NewService(emb embedding.Embedder, cfg *config.EmbeddingConfig) *Service {
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 384
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 10000
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryFrom := cfg.RetryFrom
	if retryFrom <= 0 {
		retryFrom = 200 * time.Millisecond
	}
	return &Service{
		embedder:   emb,
		dimension:  dimension,
		maxChars:   maxChars,
		maxRetries: maxRetries,
		retryFrom:  retryFrom,
	}
}

// Dimension 向量维度
func (s *Service) Dimension() int {
	return s.dimension
}

// Embed 向量化单条文本
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 批量向量化文本，结果与输入一一对应
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracer.Start(ctx, "embedder.Service.EmbedBatch",
		trace.WithAttributes(attribute.Int("texts", len(texts))))
	defer span.End()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	prepared := make([]string, len(texts))
	for i, text := range texts {
		t := strings.TrimSpace(text)
		if t == "" {
			err := errors.New(errors.CodeInvalidParam, "embedding input text is empty")
			span.RecordError(err)
			return nil, err
		}
		prepared[i] = truncateRunes(t, s.maxChars)
	}

	raw, err := s.embedWithRetry(ctx, prepared)
	if err != nil {
		span.RecordError(err)
		metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, errors.CodeEmbeddingFailed, "embedding provider unavailable")
	}

	if len(raw) != len(prepared) {
		err := fmt.Errorf("embedding count mismatch: want %d, got %d", len(prepared), len(raw))
		span.RecordError(err)
		metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
		return nil, errors.Wrap(err, errors.CodeEmbeddingFailed, "embedding provider unavailable")
	}

	vectors := make([][]float32, len(raw))
	for i, v64 := range raw {
		if len(v64) != s.dimension {
			err := fmt.Errorf("embedding dimension mismatch: want %d, got %d", s.dimension, len(v64))
			span.RecordError(err)
			metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
			return nil, errors.Wrap(err, errors.CodeEmbeddingFailed, "embedding provider unavailable")
		}
		vec := make([]float32, len(v64))
		for j, x := range v64 {
			vec[j] = float32(x)
		}
		vectors[i] = vec
	}

	metrics.EmbeddingCallTotal.WithLabelValues("success").Inc()
	return vectors, nil
}

func (s *Service) embedWithRetry(ctx context.Context, texts []string) ([][]float64, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.retryFrom * time.Duration(1<<(attempt-1))
			logger.Warn(ctx, "embedding call failed, retrying",
				"attempt", attempt, "backoff", backoff.String(), "error", lastErr.Error())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		raw, err := s.embedder.EmbedStrings(ctx, texts)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// truncateRunes 按 rune 截断，避免切断多字节字符
func truncateRunes(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
