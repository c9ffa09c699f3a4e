// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// SentenceRef 摘要正文中单个句子的来源引用
// Sources 为 1-based 序号，指向生成时输入的文章列表
type SentenceRef struct {
	Sentence string `json:"sentence"`
	Sources  []int  `json:"sources"`
}

// Summary 新闻摘要实体
type Summary struct {
	ID         string        `json:"id" gorm:"type:uuid;primaryKey"`
	Title      string        `json:"title" gorm:"type:text;not null"`
	TLDR       []string      `json:"tldr" gorm:"type:text[]"`
	Body       string        `json:"body" gorm:"column:summary;type:text;not null"`
	Refs       []SentenceRef `json:"refs" gorm:"type:jsonb;serializer:json"`
	ArticleIDs []string      `json:"article_ids" gorm:"column:news_articles_ids;type:text[]"`
	CreatedAt  time.Time     `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Summary) TableName() string {
	return "summaries"
}

// NewSummary 创建新摘要
func NewSummary(title string, tldr []string, body string, refs []SentenceRef, articleIDs []string) *Summary {
	return &Summary{
		ID:         uuid.NewString(),
		Title:      title,
		TLDR:       tldr,
		Body:       body,
		Refs:       refs,
		ArticleIDs: articleIDs,
		CreatedAt:  time.Now().UTC(),
	}
}

// EmbeddingText 返回用于向量化的文本（标题加正文）
func (s *Summary) EmbeddingText() string {
	return s.Title + "\n" + s.Body
}
