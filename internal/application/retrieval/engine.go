package retrieval

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsbrief-ai-api/internal/application/embedder"
	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/domain/repository"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
	"newsbrief-ai-api/pkg/errors"
	"newsbrief-ai-api/pkg/logger"
)

var tracer = otel.Tracer("retrieval")

// Engine 语义检索引擎
// 向量库只负责召回 ID 与分数，实体内容一律回源 Postgres 水合
type Engine struct {
	embedder  *embedder.Service
	vectors   VectorSearcher
	articles  repository.ArticleRepository
	summaries repository.SummaryRepository

	defaultTopK int
	maxTopK     int
}

// NewEngine 创建检索引擎
func NewEngine(
	embedSvc *embedder.Service,
	vectors VectorSearcher,
	articles repository.ArticleRepository,
	summaries repository.SummaryRepository,
	defaultTopK, maxTopK int,
) *Engine {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if maxTopK <= 0 {
		maxTopK = 50
	}
	return &Engine{
		embedder:    embedSvc,
		vectors:     vectors,
		articles:    articles,
		summaries:   summaries,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
}

// clampTopK 约束返回条数，零值取默认
func (e *Engine) clampTopK(topK int) int {
	if topK <= 0 {
		return e.defaultTopK
	}
	if topK > e.maxTopK {
		return e.maxTopK
	}
	return topK
}

// SearchArticles 按语义检索文章，返回按相似度倒序的命中列表
func (e *Engine) SearchArticles(ctx context.Context, query string, topK int) ([]ArticleHit, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Engine.SearchArticles",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	results, err := e.searchVectors(ctx, milvus.CollectionNewsArticles, query, topK)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(results) == 0 {
		return []ArticleHit{}, nil
	}

	ids, scores := collectIDs(results)
	articles, err := e.articles.GetByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeRetrievalFailed, "failed to hydrate articles")
	}

	hits := make([]ArticleHit, 0, len(articles))
	for _, article := range articles {
		score, ok := scores[article.ID]
		if !ok {
			continue
		}
		hits = append(hits, ArticleHit{Article: article, Score: score})
	}
	if dropped := len(results) - len(hits); dropped > 0 {
		logger.Warn(ctx, "vector hits missing canonical rows", "dropped", dropped)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Article.CreatedAt.After(hits[j].Article.CreatedAt)
	})
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

// SearchSummaries 按语义检索历史摘要
func (e *Engine) SearchSummaries(ctx context.Context, query string, topK int) ([]SummaryHit, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Engine.SearchSummaries",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	results, err := e.searchVectors(ctx, milvus.CollectionSummaries, query, topK)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(results) == 0 {
		return []SummaryHit{}, nil
	}

	ids, scores := collectIDs(results)
	summaries, err := e.summaries.GetByIDs(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, errors.CodeRetrievalFailed, "failed to hydrate summaries")
	}

	hits := make([]SummaryHit, 0, len(summaries))
	for _, summary := range summaries {
		score, ok := scores[summary.ID]
		if !ok {
			continue
		}
		hits = append(hits, SummaryHit{Summary: summary, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Summary.CreatedAt.After(hits[j].Summary.CreatedAt)
	})
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

// RetrieveArticlesByIDs 按 ID 批量取文章，缺失的 ID 静默跳过
func (e *Engine) RetrieveArticlesByIDs(ctx context.Context, ids []string) ([]*entity.Article, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return []*entity.Article{}, nil
	}

	articles, err := e.articles.GetByIDs(ctx, cleaned)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeRetrievalFailed, "failed to get articles")
	}
	return articles, nil
}

func (e *Engine) searchVectors(ctx context.Context, collection, query string, topK int) ([]*milvus.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.CodeInvalidParam, "query is required")
	}
	topK = e.clampTopK(topK)

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := e.vectors.Search(ctx, collection, vector, topK)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeRetrievalFailed, "vector search failed")
	}
	return results, nil
}

func collectIDs(results []*milvus.SearchResult) ([]string, map[string]float64) {
	ids := make([]string, 0, len(results))
	scores := make(map[string]float64, len(results))
	for _, r := range results {
		if r == nil || r.ID == "" {
			continue
		}
		ids = append(ids, r.ID)
		scores[r.ID] = float64(r.Score)
	}
	return ids, scores
}
