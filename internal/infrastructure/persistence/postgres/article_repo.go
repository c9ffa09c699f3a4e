// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/domain/repository"
)

// ArticleRepository 文章仓储实现
type ArticleRepository struct {
	client *Client
}

// NewArticleRepository 创建文章仓储
func NewArticleRepository(client *Client) *ArticleRepository {
	return &ArticleRepository{client: client}
}

// InsertIfAbsent 条件插入文章
// link 的唯一约束由数据库保证，冲突时 ON CONFLICT DO NOTHING 不写入任何行，
// 并发提交同一 link 时恰好一个调用方观察到 rows=1
func (r *ArticleRepository) InsertIfAbsent(ctx context.Context, article *entity.Article) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArticleRepository.InsertIfAbsent")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	query := `
		INSERT INTO news_articles (id, source, title, link, pub_date, content, is_summarized, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (link) DO NOTHING
	`

	result, err := q.ExecContext(ctx, query,
		article.ID, article.Source, article.Title, article.Link,
		article.PubDate, article.Content, article.IsSummarized, article.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to insert article: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows == 1, nil
}

// ExistsByLink 检查 link 是否已入库
func (r *ArticleRepository) ExistsByLink(ctx context.Context, link string) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArticleRepository.ExistsByLink")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM news_articles WHERE link = $1)`
	if err := q.QueryRowContext(ctx, query, link).Scan(&exists); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to check link: %w", err)
	}

	return exists, nil
}

// GetByID 根据 ID 获取文章
func (r *ArticleRepository) GetByID(ctx context.Context, id string) (*entity.Article, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArticleRepository.GetByID")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	query := `
		SELECT id, source, title, link, pub_date, content, is_summarized, created_at
		FROM news_articles
		WHERE id = $1
	`

	var article entity.Article
	err := q.QueryRowContext(ctx, query, id).Scan(
		&article.ID, &article.Source, &article.Title, &article.Link,
		&article.PubDate, &article.Content, &article.IsSummarized, &article.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return &article, nil
}

// GetByIDs 批量获取文章，缺失的 ID 被静默跳过
func (r *ArticleRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.Article, error) {
	ctx, span := tracer.Start(ctx, "postgres.ArticleRepository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []*entity.Article{}, nil
	}

	q := getQuerier(ctx, r.client.sqlDB)

	query := `
		SELECT id, source, title, link, pub_date, content, is_summarized, created_at
		FROM news_articles
		WHERE id = ANY($1)
	`

	rows, err := q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	defer rows.Close()

	articles := make([]*entity.Article, 0, len(ids))
	for rows.Next() {
		var article entity.Article
		if err := rows.Scan(
			&article.ID, &article.Source, &article.Title, &article.Link,
			&article.PubDate, &article.Content, &article.IsSummarized, &article.CreatedAt,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, &article)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}

	return articles, nil
}

// List 分页获取文章列表
func (r *ArticleRepository) List(ctx context.Context, filter *repository.ArticleFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Article], error) {
	ctx, span := tracer.Start(ctx, "postgres.ArticleRepository.List")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	whereClause := "1=1"
	args := []interface{}{}
	argIdx := 1

	if filter != nil {
		if filter.Source != "" {
			whereClause += fmt.Sprintf(" AND source = $%d", argIdx)
			args = append(args, filter.Source)
			argIdx++
		}
		if filter.Summarized != nil {
			whereClause += fmt.Sprintf(" AND is_summarized = $%d", argIdx)
			args = append(args, *filter.Summarized)
			argIdx++
		}
		if !filter.PubDateAfter.IsZero() {
			whereClause += fmt.Sprintf(" AND pub_date >= $%d", argIdx)
			args = append(args, filter.PubDateAfter)
			argIdx++
		}
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM news_articles WHERE %s`, whereClause)
	if err := q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, source, title, link, pub_date, content, is_summarized, created_at
		FROM news_articles
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIdx, argIdx+1)

	args = append(args, pagination.Limit(), pagination.Offset())

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []*entity.Article
	for rows.Next() {
		var article entity.Article
		if err := rows.Scan(
			&article.ID, &article.Source, &article.Title, &article.Link,
			&article.PubDate, &article.Content, &article.IsSummarized, &article.CreatedAt,
		); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, &article)
	}

	return repository.NewPagedResult(articles, total, pagination), nil
}

// MarkSummarized 批量标记文章已被摘要消费
func (r *ArticleRepository) MarkSummarized(ctx context.Context, ids []string) error {
	ctx, span := tracer.Start(ctx, "postgres.ArticleRepository.MarkSummarized")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	q := getQuerier(ctx, r.client.sqlDB)

	query := `UPDATE news_articles SET is_summarized = TRUE WHERE id = ANY($1)`
	if _, err := q.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark articles summarized: %w", err)
	}

	return nil
}

// Delete 删除文章
func (r *ArticleRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ArticleRepository.Delete")
	defer span.End()

	q := getQuerier(ctx, r.client.sqlDB)

	query := `DELETE FROM news_articles WHERE id = $1`
	if _, err := q.ExecContext(ctx, query, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete article: %w", err)
	}

	return nil
}
