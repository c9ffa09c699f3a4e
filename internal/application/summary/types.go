// Package summary 提供多文章摘要生成流水线
package summary

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
	wfmodel "newsbrief-ai-api/internal/workflow/model"
)

// ChainInvoker 应用层对摘要生成链的依赖（port）
type ChainInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.SummaryGenerateInput) (*schema.Message, error)
}

// VectorStore 应用层对向量写入的最小依赖（port），由 Milvus 仓储实现
type VectorStore interface {
	Insert(ctx context.Context, collection string, records []*milvus.VectorRecord) error
}

// GenerateInput 摘要生成请求
// ArticleIDs 与 Query 二选一：显式指定文章，或按语义检索选材
type GenerateInput struct {
	ArticleIDs []string
	Query      string
	TopK       int

	Provider string
	Model    string
}

// GenerateOutput 摘要生成结果
type GenerateOutput struct {
	Summary *entity.Summary
	Meta    wfmodel.LLMUsageMeta
}
