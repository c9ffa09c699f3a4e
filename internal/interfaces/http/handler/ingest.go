package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"newsbrief-ai-api/internal/application/ingest"
	"newsbrief-ai-api/internal/infrastructure/feed"
	"newsbrief-ai-api/internal/infrastructure/messaging"
	"newsbrief-ai-api/internal/interfaces/http/dto"
	"newsbrief-ai-api/pkg/errors"
	"newsbrief-ai-api/pkg/logger"
)

// IngestHandler 入库处理器
type IngestHandler struct {
	ingestor *ingest.Ingestor
	producer *messaging.Producer
}

// NewIngestHandler 创建入库处理器
func NewIngestHandler(ingestor *ingest.Ingestor, producer *messaging.Producer) *IngestHandler {
	return &IngestHandler{
		ingestor: ingestor,
		producer: producer,
	}
}

// IngestBatch 批量入库文章
// @Summary 批量入库文章
// @Tags Ingest
// @Accept json
// @Produce json
// @Param body body dto.IngestBatchRequest true "入库请求"
// @Success 200 {object} dto.Response[dto.IngestReportResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/ingest/batch [post]
func (h *IngestHandler) IngestBatch(c *gin.Context) {
	var req dto.IngestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid ingest request: "+err.Error())
		return
	}

	raws := make([]feed.RawArticle, len(req.Articles))
	for i, a := range req.Articles {
		raws[i] = feed.RawArticle{
			Source:  req.Source,
			Title:   a.Title,
			Link:    a.Link,
			PubDate: a.PubDate,
			Content: a.Content,
		}
	}

	ctx := c.Request.Context()
	report, err := h.ingestor.IngestBatch(ctx, req.Source, raws)
	if err != nil {
		logger.Error(ctx, "ingest batch failed", err, "source", req.Source)
		respondError(c, err)
		return
	}

	dto.Success(c, dto.ToIngestReportResponse(report))
}

// Refresh 请求采集新闻源
// 请求写入 Redis Stream，由采集 worker 异步消费
// @Summary 按需采集新闻源
// @Tags Ingest
// @Accept json
// @Produce json
// @Param body body dto.RefreshRequest true "采集请求"
// @Success 202 {object} dto.Response[dto.RefreshResponse]
// @Router /v1/ingest/refresh [post]
func (h *IngestHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		dto.BadRequest(c, "invalid refresh request: "+err.Error())
		return
	}

	if h.producer == nil {
		respondError(c, errors.New(errors.CodeServiceUnavailable, "refresh queue not configured"))
		return
	}

	ctx := c.Request.Context()
	requestID := uuid.New().String()
	if _, err := h.producer.PublishRefreshRequest(ctx, &messaging.RefreshRequestMessage{
		RequestID: requestID,
		Source:    req.Source,
	}); err != nil {
		logger.Error(ctx, "failed to publish refresh request", err, "source", req.Source)
		respondError(c, errors.Wrap(err, errors.CodeCacheError, "failed to enqueue refresh request"))
		return
	}

	dto.Accepted(c, dto.RefreshResponse{
		RequestID: requestID,
		Source:    req.Source,
	})
}
