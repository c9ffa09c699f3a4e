package dto

import (
	"time"

	"newsbrief-ai-api/internal/application/ingest"
)

// IngestArticleRequest 单条待入库文章
type IngestArticleRequest struct {
	Title   string    `json:"title" binding:"required"`
	Link    string    `json:"link" binding:"required"`
	PubDate time.Time `json:"pub_date"`
	Content string    `json:"content"`
}

// IngestBatchRequest 批量入库请求
type IngestBatchRequest struct {
	Source   string                 `json:"source" binding:"required"`
	Articles []IngestArticleRequest `json:"articles" binding:"required"`
}

// IngestReportResponse 入库结果
type IngestReportResponse struct {
	BatchID          string `json:"batch_id"`
	Source           string `json:"source"`
	Inserted         int64  `json:"inserted"`
	SkippedDuplicate int64  `json:"skipped_duplicate"`
	SkippedInvalid   int64  `json:"skipped_invalid"`
	Failed           int64  `json:"failed"`
}

// RefreshRequest 按需采集请求，source 为空刷新全部源
type RefreshRequest struct {
	Source string `json:"source"`
}

// RefreshResponse 采集请求受理结果
type RefreshResponse struct {
	RequestID string `json:"request_id"`
	Source    string `json:"source,omitempty"`
}

// ToIngestReportResponse 入库结果转响应
func ToIngestReportResponse(report *ingest.Report) IngestReportResponse {
	return IngestReportResponse{
		BatchID:          report.BatchID,
		Source:           report.Source,
		Inserted:         report.Inserted,
		SkippedDuplicate: report.SkippedDuplicate,
		SkippedInvalid:   report.SkippedInvalid,
		Failed:           report.Failed,
	}
}
