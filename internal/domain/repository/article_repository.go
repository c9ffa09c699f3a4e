// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"newsbrief-ai-api/internal/domain/entity"
)

// ArticleFilter 文章过滤条件
type ArticleFilter struct {
	Source       string
	Summarized   *bool
	PubDateAfter time.Time
}

// ArticleRepository 文章仓储接口
type ArticleRepository interface {
	// InsertIfAbsent 条件插入，link 冲突时不写入并返回 false
	// 冲突判定由存储层原子完成，并发提交同一 link 时恰有一个返回 true
	InsertIfAbsent(ctx context.Context, article *entity.Article) (bool, error)

	// ExistsByLink 检查 link 是否已入库
	ExistsByLink(ctx context.Context, link string) (bool, error)

	// GetByID 根据 ID 获取文章，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Article, error)

	// GetByIDs 批量获取文章，缺失的 ID 被静默跳过
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Article, error)

	// List 分页获取文章列表（按创建时间倒序）
	List(ctx context.Context, filter *ArticleFilter, pagination Pagination) (*PagedResult[*entity.Article], error)

	// MarkSummarized 批量标记文章已被摘要消费
	MarkSummarized(ctx context.Context, ids []string) error

	// Delete 删除文章（向量写入失败时的补偿路径）
	Delete(ctx context.Context, id string) error
}
