// Package feed 提供新闻源采集适配器
package feed

import (
	"context"
	"time"

	"newsbrief-ai-api/internal/config"
)

// RawArticle 采集到的原始文章，尚未去重入库
type RawArticle struct {
	Source  string
	Title   string
	Link    string
	PubDate time.Time
	Content string
}

// FetchStats 单次采集统计
type FetchStats struct {
	// Fetched 成功解析的条目数
	Fetched int
	// Skipped 被跳过的畸形条目数
	Skipped int
}

// Scanner 单一类型新闻源的采集策略
type Scanner interface {
	// Name 策略名称，与 SourceConfig.Adapter 对应
	Name() string

	// Fetch 拉取并解析一个新闻源，畸形条目跳过并计入统计
	Fetch(ctx context.Context, src config.SourceConfig) ([]RawArticle, *FetchStats, error)
}
