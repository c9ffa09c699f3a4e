// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Article 新闻文章实体，以 Link 作为全局唯一标识
type Article struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey"`
	Source       string    `json:"source" gorm:"type:varchar(100);index;not null"`
	Title        string    `json:"title" gorm:"type:text;not null"`
	Link         string    `json:"link" gorm:"type:text;uniqueIndex;not null"`
	PubDate      time.Time `json:"pub_date"`
	Content      string    `json:"content" gorm:"type:text"`
	IsSummarized bool      `json:"is_summarized" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Article) TableName() string {
	return "news_articles"
}

// NewArticle 创建新文章，发布时间统一转为 UTC
func NewArticle(source, title, link string, pubDate time.Time, content string) *Article {
	return &Article{
		ID:        uuid.NewString(),
		Source:    source,
		Title:     title,
		Link:      strings.TrimSpace(link),
		PubDate:   pubDate.UTC(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// IsValid 检查文章是否具备入库的最低条件
func (a *Article) IsValid() bool {
	return strings.TrimSpace(a.Link) != "" && strings.TrimSpace(a.Content) != ""
}
