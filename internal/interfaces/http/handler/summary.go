package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"newsbrief-ai-api/internal/application/retrieval"
	"newsbrief-ai-api/internal/application/summary"
	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/internal/domain/repository"
	"newsbrief-ai-api/internal/infrastructure/persistence/redis"
	"newsbrief-ai-api/internal/interfaces/http/dto"
	"newsbrief-ai-api/pkg/errors"
	"newsbrief-ai-api/pkg/logger"
)

// SummaryHandler 摘要处理器
type SummaryHandler struct {
	cfg       *config.Config
	generator *summary.Generator
	engine    *retrieval.Engine
	summaries repository.SummaryRepository
	cache     *redis.Cache
	cacheTTL  time.Duration
}

// NewSummaryHandler 创建摘要处理器
func NewSummaryHandler(
	cfg *config.Config,
	generator *summary.Generator,
	engine *retrieval.Engine,
	summaries repository.SummaryRepository,
	cache *redis.Cache,
	cacheTTL time.Duration,
) *SummaryHandler {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &SummaryHandler{
		cfg:       cfg,
		generator: generator,
		engine:    engine,
		summaries: summaries,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

// Generate 生成摘要
// @Summary 为一组文章生成结构化摘要
// @Tags Summaries
// @Accept json
// @Produce json
// @Param body body dto.GenerateSummaryRequest true "生成请求"
// @Success 201 {object} dto.Response[dto.SummaryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/summaries [post]
func (h *SummaryHandler) Generate(c *gin.Context) {
	var req dto.GenerateSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid generate request: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	out, err := h.generator.Generate(ctx, summary.GenerateInput{
		ArticleIDs: req.ArticleIDs,
		Query:      req.Query,
		TopK:       req.TopK,
		Provider:   provider,
		Model:      model,
	})
	if err != nil {
		logger.Error(ctx, "summary generation failed", err)
		respondError(c, err)
		return
	}

	// 新摘要改变检索结果集
	if h.cache != nil {
		if err := h.cache.InvalidateSearch(ctx, "summaries"); err != nil {
			logger.Warn(ctx, "failed to invalidate summary search cache", "error", err.Error())
		}
	}
	dto.Created(c, dto.ToSummaryResponse(out.Summary))
}

// Search 语义检索历史摘要
// @Summary 语义检索摘要
// @Tags Summaries
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[[]dto.SummaryHitResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/search/summaries [post]
func (h *SummaryHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid search request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	hits, err := h.searchCached(c, req)
	if err != nil {
		logger.Error(ctx, "summary search failed", err, "query", req.Query)
		respondError(c, err)
		return
	}
	dto.Success(c, hits)
}

func (h *SummaryHandler) searchCached(c *gin.Context, req dto.SearchRequest) ([]dto.SummaryHitResponse, error) {
	ctx := c.Request.Context()

	if h.cache == nil {
		hits, err := h.engine.SearchSummaries(ctx, req.Query, req.TopK)
		if err != nil {
			return nil, err
		}
		return dto.ToSummaryHitResponses(hits), nil
	}

	key := redis.BuildSearchKey("summaries", req.Query, req.TopK)
	data, err := h.cache.GetOrLoadSafe(ctx, key, h.cacheTTL, func() (interface{}, error) {
		hits, err := h.engine.SearchSummaries(ctx, req.Query, req.TopK)
		if err != nil {
			return nil, err
		}
		return dto.ToSummaryHitResponses(hits), nil
	})
	if err != nil {
		return nil, err
	}

	var hits []dto.SummaryHitResponse
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "failed to decode cached search result")
	}
	return hits, nil
}

// List 分页获取摘要列表
// @Summary 摘要列表
// @Tags Summaries
// @Produce json
// @Success 200 {object} dto.Response[[]dto.SummaryResponse]
// @Router /v1/summaries [get]
func (h *SummaryHandler) List(c *gin.Context) {
	var req dto.ListSummariesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		dto.BadRequest(c, "invalid list request: "+err.Error())
		return
	}

	pagination := repository.NewPagination(req.Page, req.PageSize)
	result, err := h.summaries.List(c.Request.Context(), pagination)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to list summaries"))
		return
	}

	items := make([]dto.SummaryResponse, 0, len(result.Items))
	for _, s := range result.Items {
		items = append(items, dto.ToSummaryResponse(s))
	}
	dto.SuccessWithPage(c, items, dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Get 获取单条摘要
// @Summary 摘要详情
// @Tags Summaries
// @Produce json
// @Param id path string true "摘要 ID"
// @Success 200 {object} dto.Response[dto.SummaryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/summaries/{id} [get]
func (h *SummaryHandler) Get(c *gin.Context) {
	id := c.Param("id")

	s, err := h.summaries.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to get summary"))
		return
	}
	if s == nil {
		respondError(c, errors.ErrSummaryNotFound)
		return
	}
	dto.Success(c, dto.ToSummaryResponse(s))
}
