// Package ingest 提供新闻入库流水线
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"newsbrief-ai-api/internal/application/embedder"
	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/domain/repository"
	"newsbrief-ai-api/internal/infrastructure/feed"
	"newsbrief-ai-api/internal/infrastructure/messaging"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
	"newsbrief-ai-api/pkg/errors"
	"newsbrief-ai-api/pkg/logger"
	"newsbrief-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("ingest")

// VectorStore 应用层对向量写入的最小依赖（port），由 Milvus 仓储实现
type VectorStore interface {
	Insert(ctx context.Context, collection string, records []*milvus.VectorRecord) error
}

// EventPublisher 批次事件发布依赖（port），由 Redis Stream 生产者实现
type EventPublisher interface {
	PublishIngested(ctx context.Context, event *messaging.IngestedEventMessage) (string, error)
}

// SearchInvalidator 检索缓存失效依赖（port），由 Redis 缓存实现
type SearchInvalidator interface {
	InvalidateSearch(ctx context.Context, kind string) error
}

// 新文章只改变文章检索的结果集
const searchKindArticles = "articles"

// Report 单次入库结果，四项计数之和等于输入条数
type Report struct {
	BatchID          string `json:"batch_id"`
	Source           string `json:"source"`
	Inserted         int64  `json:"inserted"`
	SkippedDuplicate int64  `json:"skipped_duplicate"`
	SkippedInvalid   int64  `json:"skipped_invalid"`
	Failed           int64  `json:"failed"`
}

// Ingestor 新闻入库流水线
// 文章以链接为唯一标识，重复入库是幂等的
type Ingestor struct {
	articles    repository.ArticleRepository
	vectors     VectorStore
	embedder    *embedder.Service
	producer    EventPublisher
	cache       SearchInvalidator
	feeds       *feed.StrategySource
	concurrency int
}

// NewIngestor 创建入库流水线
func NewIngestor(
	articles repository.ArticleRepository,
	vectors VectorStore,
	embedSvc *embedder.Service,
	producer EventPublisher,
	cache SearchInvalidator,
	feeds *feed.StrategySource,
	concurrency int,
) *Ingestor {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Ingestor{
		articles:    articles,
		vectors:     vectors,
		embedder:    embedSvc,
		producer:    producer,
		cache:       cache,
		feeds:       feeds,
		concurrency: concurrency,
	}
}

// IngestBatch 入库一批原始文章
// 每条独立处理：畸形条目和重复链接跳过并计数，不影响批内其它条目
func (ing *Ingestor) IngestBatch(ctx context.Context, source string, raws []feed.RawArticle) (*Report, error) {
	return ing.ingestBatch(ctx, source, raws, 0)
}

// ingestBatch 执行入库；feedSkipped 是采集阶段丢弃的畸形条数，
// 在发布批次事件之前并入 SkippedInvalid，保证事件计数完整
func (ing *Ingestor) ingestBatch(ctx context.Context, source string, raws []feed.RawArticle, feedSkipped int64) (*Report, error) {
	ctx, span := tracer.Start(ctx, "ingest.Ingestor.IngestBatch",
		trace.WithAttributes(
			attribute.String("source", source),
			attribute.Int("articles", len(raws)),
		))
	defer span.End()

	start := time.Now()
	report := &Report{
		BatchID: uuid.New().String(),
		Source:  source,
	}

	var (
		inserted  atomic.Int64
		dupes     atomic.Int64
		invalid   atomic.Int64
		failed    atomic.Int64
		mu        sync.Mutex
		lastErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)

	for _, raw := range raws {
		raw := raw
		g.Go(func() error {
			status, err := ing.ingestOne(gctx, source, raw)
			switch status {
			case statusInserted:
				inserted.Add(1)
			case statusSkippedDuplicate:
				dupes.Add(1)
			case statusSkippedInvalid:
				invalid.Add(1)
			case statusFailed:
				failed.Add(1)
				mu.Lock()
				lastErr = err
				mu.Unlock()
				logger.Error(gctx, "failed to ingest article", err,
					"source", source, "link", raw.Link)
			}
			metrics.IngestArticlesTotal.WithLabelValues(source, string(status)).Inc()
			// 单条失败不终止批次
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeIngestFailed, "ingest batch aborted")
	}

	report.Inserted = inserted.Load()
	report.SkippedDuplicate = dupes.Load()
	report.SkippedInvalid = invalid.Load() + feedSkipped
	report.Failed = failed.Load()

	metrics.IngestBatchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int64("inserted", report.Inserted),
		attribute.Int64("skipped_duplicate", report.SkippedDuplicate),
		attribute.Int64("skipped_invalid", report.SkippedInvalid),
		attribute.Int64("failed", report.Failed),
	)
	logger.Info(ctx, "ingest batch finished",
		"batch_id", report.BatchID,
		"source", source,
		"inserted", report.Inserted,
		"skipped_duplicate", report.SkippedDuplicate,
		"skipped_invalid", report.SkippedInvalid,
		"failed", report.Failed,
		"duration", time.Since(start).String())

	ing.publishIngested(ctx, report)
	ing.invalidateSearchCache(ctx, report)

	// 全军覆没时把底层原因带回调用方；采集阶段丢弃的条目不算在内
	if report.Failed > 0 && report.Inserted == 0 && report.SkippedDuplicate == 0 && invalid.Load() == 0 {
		return report, errors.Wrap(lastErr, errors.CodeIngestFailed, "all articles in batch failed")
	}
	return report, nil
}

type ingestStatus string

const (
	statusInserted         ingestStatus = "inserted"
	statusSkippedDuplicate ingestStatus = "skipped_duplicate"
	statusSkippedInvalid   ingestStatus = "skipped_invalid"
	statusFailed           ingestStatus = "failed"
)

// ingestOne 处理单条文章：校验、去重探测、向量化、条件写入、向量写入
// Postgres 的条件写入是去重的唯一裁决，探测只是省掉明显重复的向量化开销
func (ing *Ingestor) ingestOne(ctx context.Context, source string, raw feed.RawArticle) (ingestStatus, error) {
	article := entity.NewArticle(source, raw.Title, raw.Link, raw.PubDate, raw.Content)
	if !article.IsValid() {
		return statusSkippedInvalid, nil
	}

	exists, err := ing.articles.ExistsByLink(ctx, article.Link)
	if err != nil {
		return statusFailed, err
	}
	if exists {
		return statusSkippedDuplicate, nil
	}

	vector, err := ing.embedder.Embed(ctx, article.Content)
	if err != nil {
		return statusFailed, err
	}

	inserted, err := ing.articles.InsertIfAbsent(ctx, article)
	if err != nil {
		return statusFailed, err
	}
	if !inserted {
		// 探测之后另一并发写入抢先提交了同一链接
		return statusSkippedDuplicate, nil
	}

	record := &milvus.VectorRecord{
		ID:        article.ID,
		Vector:    vector,
		CreatedAt: article.CreatedAt.Unix(),
	}
	if err := ing.vectors.Insert(ctx, milvus.CollectionNewsArticles, []*milvus.VectorRecord{record}); err != nil {
		// 向量写入失败时回滚行记录，保持两侧一致
		if delErr := ing.articles.Delete(ctx, article.ID); delErr != nil {
			logger.Error(ctx, "failed to compensate article row after vector insert failure", delErr,
				"article_id", article.ID)
		}
		return statusFailed, err
	}

	return statusInserted, nil
}

// RefreshSource 采集并入库单个命名源
func (ing *Ingestor) RefreshSource(ctx context.Context, name string) (*Report, error) {
	result, err := ing.feeds.FetchSource(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeFeedFetchError, "failed to fetch source")
	}

	return ing.ingestBatch(ctx, result.Source, result.Articles, int64(result.Stats.Skipped))
}

// RefreshAll 采集并入库全部配置源，单个源失败不影响其它源
func (ing *Ingestor) RefreshAll(ctx context.Context) []*Report {
	results := ing.feeds.FetchAll(ctx)
	reports := make([]*Report, 0, len(results))
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		report, err := ing.ingestBatch(ctx, result.Source, result.Articles, int64(result.Stats.Skipped))
		if err != nil {
			logger.Error(ctx, "failed to ingest source batch", err, "source", result.Source)
		}
		if report != nil {
			reports = append(reports, report)
		}
	}
	return reports
}

func (ing *Ingestor) publishIngested(ctx context.Context, report *Report) {
	if ing.producer == nil {
		return
	}
	_, err := ing.producer.PublishIngested(ctx, &messaging.IngestedEventMessage{
		BatchID:          report.BatchID,
		Source:           report.Source,
		Inserted:         int(report.Inserted),
		SkippedDuplicate: int(report.SkippedDuplicate),
		SkippedInvalid:   int(report.SkippedInvalid),
	})
	if err != nil {
		logger.Warn(ctx, "failed to publish ingested event", "batch_id", report.BatchID, "error", err.Error())
	}
}

// invalidateSearchCache 有新文章落库时使文章检索缓存失效
// 无论批次来自 HTTP 还是采集 worker，失效都发生在流水线内
func (ing *Ingestor) invalidateSearchCache(ctx context.Context, report *Report) {
	if ing.cache == nil || report.Inserted == 0 {
		return
	}
	if err := ing.cache.InvalidateSearch(ctx, searchKindArticles); err != nil {
		logger.Warn(ctx, "failed to invalidate article search cache", "batch_id", report.BatchID, "error", err.Error())
	}
}
