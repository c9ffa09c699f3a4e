// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsbrief-ai-api/pkg/metrics"
)

// Repository 向量仓储
type Repository struct {
	client    *Client
	dimension int
}

// NewRepository 创建向量仓储
func NewRepository(client *Client, dimension int) *Repository {
	if dimension <= 0 {
		dimension = DefaultVectorDimension
	}
	return &Repository{client: client, dimension: dimension}
}

// SearchResult 检索结果
type SearchResult struct {
	ID        string
	Score     float32
	CreatedAt int64
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	collName := r.client.CollectionName(schema.CollectionName)
	schema.CollectionName = collName

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, collName, "vector", idx, false)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Search 在指定集合中检索近邻向量
// 集合不存在时返回空结果而非错误，空库语义由上层保证
func (r *Repository) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]*SearchResult, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("top_k", topK),
		))
	defer span.End()

	start := time.Now()
	collName := r.client.CollectionName(collection)

	if has, err := r.client.milvus.HasCollection(ctx, collName); err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(collection, "error").Inc()
		return nil, fmt.Errorf("failed to check collection: %w", err)
	} else if !has {
		return []*SearchResult{}, nil
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		nil,
		"",
		[]string{"id", "created_at"},
		[]entity.Vector{entity.FloatVector(queryVector)},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		metrics.MilvusSearchTotal.WithLabelValues(collection, "error").Inc()
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var searchResults []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{
				Score: result.Scores[i],
			}
			if idCol, ok := result.Fields.GetColumn("id").(*entity.ColumnVarChar); ok {
				sr.ID = idCol.Data()[i]
			}
			if timeCol, ok := result.Fields.GetColumn("created_at").(*entity.ColumnInt64); ok {
				sr.CreatedAt = timeCol.Data()[i]
			}
			searchResults = append(searchResults, sr)
		}
	}

	metrics.MilvusSearchDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())
	metrics.MilvusSearchTotal.WithLabelValues(collection, "success").Inc()
	span.SetAttributes(attribute.Int("result_count", len(searchResults)))
	return searchResults, nil
}

// Insert 插入向量记录
func (r *Repository) Insert(ctx context.Context, collection string, records []*VectorRecord) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.Insert",
		trace.WithAttributes(
			attribute.String("collection", collection),
			attribute.Int("count", len(records)),
		))
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	collName := r.client.CollectionName(collection)

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	createdAts := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		vectors[i] = rec.Vector
		createdAts[i] = rec.CreatedAt
	}

	idCol := entity.NewColumnVarChar("id", ids)
	vectorCol := entity.NewColumnFloatVector("vector", r.dimension, vectors)
	timeCol := entity.NewColumnInt64("created_at", createdAts)

	if _, err := r.client.milvus.Insert(ctx, collName, "", idCol, vectorCol, timeCol); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert vectors: %w", err)
	}

	return nil
}

// DeleteByID 删除指定 ID 的向量
func (r *Repository) DeleteByID(ctx context.Context, collection, id string) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteByID",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	collName := r.client.CollectionName(collection)

	filter := fmt.Sprintf(`id == "%s"`, id)
	if err := r.client.milvus.Delete(ctx, collName, "", filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete vector: %w", err)
	}

	return nil
}

// ensureCollection 确保单个集合与索引可用（不存在则创建）
// 约束：不做 drop/rebuild 等破坏性操作
func (r *Repository) ensureCollection(ctx context.Context, collection string, schema *entity.Schema) error {
	exists, err := r.client.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, schema); err != nil {
			return err
		}
		// 新建集合时创建索引；若失败，允许后续由运维介入
		_ = r.CreateIndex(ctx, collection)
	}

	return r.client.LoadCollection(ctx, collection)
}

// EnsureNewsArticlesCollection 确保文章向量集合可用
func (r *Repository) EnsureNewsArticlesCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return r.ensureCollection(ctx, CollectionNewsArticles, NewsArticlesSchema(r.dimension))
}

// EnsureSummariesCollection 确保摘要向量集合可用
func (r *Repository) EnsureSummariesCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return r.ensureCollection(ctx, CollectionSummaries, SummariesSchema(r.dimension))
}
