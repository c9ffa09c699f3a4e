package dto

import (
	"time"

	"newsbrief-ai-api/internal/application/retrieval"
	"newsbrief-ai-api/internal/domain/entity"
)

// ArticleResponse 文章响应
type ArticleResponse struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	PubDate      time.Time `json:"pub_date"`
	Content      string    `json:"content,omitempty"`
	IsSummarized bool      `json:"is_summarized"`
	CreatedAt    time.Time `json:"created_at"`
}

// ArticleHitResponse 文章检索命中
type ArticleHitResponse struct {
	ArticleResponse
	Score float64 `json:"score"`
}

// ListArticlesRequest 文章列表查询参数
type ListArticlesRequest struct {
	Source     string `form:"source"`
	Summarized *bool  `form:"summarized"`
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"page_size,default=20"`
}

// ToArticleResponse 实体转响应
func ToArticleResponse(article *entity.Article, includeContent bool) ArticleResponse {
	resp := ArticleResponse{
		ID:           article.ID,
		Source:       article.Source,
		Title:        article.Title,
		Link:         article.Link,
		PubDate:      article.PubDate,
		IsSummarized: article.IsSummarized,
		CreatedAt:    article.CreatedAt,
	}
	if includeContent {
		resp.Content = article.Content
	}
	return resp
}

// ToArticleHitResponses 检索命中转响应
func ToArticleHitResponses(hits []retrieval.ArticleHit) []ArticleHitResponse {
	out := make([]ArticleHitResponse, 0, len(hits))
	for _, hit := range hits {
		out = append(out, ArticleHitResponse{
			ArticleResponse: ToArticleResponse(hit.Article, false),
			Score:           hit.Score,
		})
	}
	return out
}
