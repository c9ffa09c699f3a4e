// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"newsbrief-ai-api/internal/domain/entity"
)

// SummaryRepository 摘要仓储接口
type SummaryRepository interface {
	// Create 创建摘要
	Create(ctx context.Context, summary *entity.Summary) error

	// GetByID 根据 ID 获取摘要，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Summary, error)

	// GetByIDs 批量获取摘要，缺失的 ID 被静默跳过
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Summary, error)

	// List 分页获取摘要列表（按创建时间倒序）
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Summary], error)

	// Delete 删除摘要（向量写入失败时的补偿路径）
	Delete(ctx context.Context, id string) error
}
