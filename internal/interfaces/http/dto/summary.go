package dto

import (
	"time"

	"newsbrief-ai-api/internal/application/retrieval"
	"newsbrief-ai-api/internal/domain/entity"
)

// SentenceRefResponse 摘要句引用
type SentenceRefResponse struct {
	Sentence string `json:"sentence"`
	Sources  []int  `json:"sources"`
}

// SummaryResponse 摘要响应
type SummaryResponse struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	TLDR       []string              `json:"tldr"`
	Summary    string                `json:"summary"`
	Refs       []SentenceRefResponse `json:"refs"`
	ArticleIDs []string              `json:"article_ids"`
	CreatedAt  time.Time             `json:"created_at"`
}

// SummaryHitResponse 摘要检索命中
type SummaryHitResponse struct {
	SummaryResponse
	Score float64 `json:"score"`
}

// GenerateSummaryRequest 摘要生成请求
// article_ids 与 query 二选一
type GenerateSummaryRequest struct {
	ArticleIDs []string `json:"article_ids"`
	Query      string   `json:"query"`
	TopK       int      `json:"top_k"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
}

// ListSummariesRequest 摘要列表查询参数
type ListSummariesRequest struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"page_size,default=20"`
}

// ToSummaryResponse 实体转响应
func ToSummaryResponse(summary *entity.Summary) SummaryResponse {
	refs := make([]SentenceRefResponse, 0, len(summary.Refs))
	for _, ref := range summary.Refs {
		refs = append(refs, SentenceRefResponse{Sentence: ref.Sentence, Sources: ref.Sources})
	}
	return SummaryResponse{
		ID:         summary.ID,
		Title:      summary.Title,
		TLDR:       summary.TLDR,
		Summary:    summary.Body,
		Refs:       refs,
		ArticleIDs: summary.ArticleIDs,
		CreatedAt:  summary.CreatedAt,
	}
}

// ToSummaryHitResponses 检索命中转响应
func ToSummaryHitResponses(hits []retrieval.SummaryHit) []SummaryHitResponse {
	out := make([]SummaryHitResponse, 0, len(hits))
	for _, hit := range hits {
		out = append(out, SummaryHitResponse{
			SummaryResponse: ToSummaryResponse(hit.Summary),
			Score:           hit.Score,
		})
	}
	return out
}
