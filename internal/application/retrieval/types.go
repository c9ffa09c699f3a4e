// Package retrieval 提供语义检索引擎
package retrieval

import (
	"context"

	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
)

// VectorSearcher 应用层对向量检索的最小依赖（port），由 Milvus 仓储实现
type VectorSearcher interface {
	Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]*milvus.SearchResult, error)
}

// ArticleHit 文章检索命中
type ArticleHit struct {
	Article *entity.Article `json:"article"`
	Score   float64         `json:"score"`
}

// SummaryHit 摘要检索命中
type SummaryHit struct {
	Summary *entity.Summary `json:"summary"`
	Score   float64         `json:"score"`
}
