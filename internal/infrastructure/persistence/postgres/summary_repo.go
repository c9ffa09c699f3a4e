// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/domain/repository"
)

// SummaryRepository 摘要仓储实现
type SummaryRepository struct {
	client *Client
}

// NewSummaryRepository 创建摘要仓储
func NewSummaryRepository(client *Client) *SummaryRepository {
	return &SummaryRepository{client: client}
}

// Create 创建摘要
func (r *SummaryRepository) Create(ctx context.Context, summary *entity.Summary) error {
	ctx, span := tracer.Start(ctx, "postgres.SummaryRepository.Create")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	refsJSON, err := json.Marshal(summary.Refs)
	if err != nil {
		return fmt.Errorf("failed to marshal refs: %w", err)
	}

	query := `
		INSERT INTO summaries (id, title, tldr, summary, refs, news_articles_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := q.ExecContext(ctx, query,
		summary.ID, summary.Title, pq.Array(summary.TLDR), summary.Body,
		refsJSON, pq.Array(summary.ArticleIDs), summary.CreatedAt,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create summary: %w", err)
	}

	return nil
}

// GetByID 根据 ID 获取摘要
func (r *SummaryRepository) GetByID(ctx context.Context, id string) (*entity.Summary, error) {
	ctx, span := tracer.Start(ctx, "postgres.SummaryRepository.GetByID")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	query := `
		SELECT id, title, tldr, summary, refs, news_articles_ids, created_at
		FROM summaries
		WHERE id = $1
	`

	summary, err := scanSummary(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	return summary, nil
}

// GetByIDs 批量获取摘要，缺失的 ID 被静默跳过
func (r *SummaryRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.Summary, error) {
	ctx, span := tracer.Start(ctx, "postgres.SummaryRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []*entity.Summary{}, nil
	}

	q := getQuerier(ctx, r.client.sqlDB)

	query := `
		SELECT id, title, tldr, summary, refs, news_articles_ids, created_at
		FROM summaries
		WHERE id = ANY($1)
	`

	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]*entity.Summary, 0, len(ids))
	for rows.Next() {
		summary, err := scanSummaryRows(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate summaries: %w", err)
	}

	return summaries, nil
}

// List 分页获取摘要列表
func (r *SummaryRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Summary], error) {
	ctx, span := tracer.Start(ctx, "postgres.SummaryRepository.List")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count summaries: %w", err)
	}

	query := `
		SELECT id, title, tldr, summary, refs, news_articles_ids, created_at
		FROM summaries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := q.QueryContext(ctx, query, pagination.Limit(), pagination.Offset())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*entity.Summary
	for rows.Next() {
		summary, err := scanSummaryRows(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return repository.NewPagedResult(summaries, total, pagination), nil
}

// Delete 删除摘要
func (r *SummaryRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.SummaryRepository.Delete")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	query := `DELETE FROM summaries WHERE id = $1`
	if _, err := q.ExecContext(ctx, query, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete summary: %w", err)
	}

	return nil
}

// rowScanner 兼容 *sql.Row 与 *sql.Rows 的扫描接口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row rowScanner) (*entity.Summary, error) {
	var summary entity.Summary
	var refsJSON []byte

	if err := row.Scan(
		&summary.ID, &summary.Title, pq.Array(&summary.TLDR), &summary.Body,
		&refsJSON, pq.Array(&summary.ArticleIDs), &summary.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(refsJSON) > 0 {
		if err := json.Unmarshal(refsJSON, &summary.Refs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal refs: %w", err)
		}
	}

	return &summary, nil
}

func scanSummaryRows(rows *sql.Rows) (*entity.Summary, error) {
	return scanSummary(rows)
}
