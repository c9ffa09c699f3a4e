// Package postgres 提供 PostgreSQL 数据库访问层实现
package postgres

import (
	"context"
	"fmt"
)

// 表结构定义，bootstrap 时执行
// link 上的唯一约束是去重的原子判定点
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS news_articles (
		id            UUID PRIMARY KEY,
		source        VARCHAR(100) NOT NULL,
		title         TEXT NOT NULL,
		link          TEXT NOT NULL UNIQUE,
		pub_date      TIMESTAMPTZ,
		content       TEXT,
		is_summarized BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_articles_source ON news_articles (source)`,
	`CREATE INDEX IF NOT EXISTS idx_news_articles_created_at ON news_articles (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		id                UUID PRIMARY KEY,
		title             TEXT NOT NULL,
		tldr              TEXT[] NOT NULL DEFAULT '{}',
		summary           TEXT NOT NULL,
		refs              JSONB NOT NULL DEFAULT '[]',
		news_articles_ids TEXT[] NOT NULL DEFAULT '{}',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_summaries_created_at ON summaries (created_at DESC)`,
}

// EnsureSchema 创建缺失的表和索引
func (c *Client) EnsureSchema(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "postgres.EnsureSchema")
	defer span.End()

	for _, stmt := range schemaStatements {
		if _, err := c.sqlDB.ExecContext(ctx, stmt); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
