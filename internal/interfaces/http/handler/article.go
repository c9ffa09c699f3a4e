package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"newsbrief-ai-api/internal/application/retrieval"
	"newsbrief-ai-api/internal/domain/repository"
	"newsbrief-ai-api/internal/infrastructure/persistence/redis"
	"newsbrief-ai-api/internal/interfaces/http/dto"
	"newsbrief-ai-api/pkg/errors"
	"newsbrief-ai-api/pkg/logger"
)

// ArticleHandler 文章处理器
type ArticleHandler struct {
	engine   *retrieval.Engine
	articles repository.ArticleRepository
	cache    *redis.Cache
	cacheTTL time.Duration
}

// NewArticleHandler 创建文章处理器
func NewArticleHandler(engine *retrieval.Engine, articles repository.ArticleRepository, cache *redis.Cache, cacheTTL time.Duration) *ArticleHandler {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &ArticleHandler{
		engine:   engine,
		articles: articles,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Search 语义检索文章
// @Summary 语义检索文章
// @Tags Articles
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[[]dto.ArticleHitResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/search/articles [post]
func (h *ArticleHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid search request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	hits, err := h.searchCached(c, req)
	if err != nil {
		logger.Error(ctx, "article search failed", err, "query", req.Query)
		respondError(c, err)
		return
	}
	dto.Success(c, hits)
}

func (h *ArticleHandler) searchCached(c *gin.Context, req dto.SearchRequest) ([]dto.ArticleHitResponse, error) {
	ctx := c.Request.Context()

	if h.cache == nil {
		hits, err := h.engine.SearchArticles(ctx, req.Query, req.TopK)
		if err != nil {
			return nil, err
		}
		return dto.ToArticleHitResponses(hits), nil
	}

	key := redis.BuildSearchKey("articles", req.Query, req.TopK)
	data, err := h.cache.GetOrLoadSafe(ctx, key, h.cacheTTL, func() (interface{}, error) {
		hits, err := h.engine.SearchArticles(ctx, req.Query, req.TopK)
		if err != nil {
			return nil, err
		}
		return dto.ToArticleHitResponses(hits), nil
	})
	if err != nil {
		return nil, err
	}

	var hits []dto.ArticleHitResponse
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "failed to decode cached search result")
	}
	return hits, nil
}

// List 分页获取文章列表
// @Summary 文章列表
// @Tags Articles
// @Produce json
// @Param source query string false "来源过滤"
// @Param summarized query bool false "是否已被摘要消费"
// @Success 200 {object} dto.Response[[]dto.ArticleResponse]
// @Router /v1/articles [get]
func (h *ArticleHandler) List(c *gin.Context) {
	var req dto.ListArticlesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		dto.BadRequest(c, "invalid list request: "+err.Error())
		return
	}

	filter := &repository.ArticleFilter{
		Source:     req.Source,
		Summarized: req.Summarized,
	}
	pagination := repository.NewPagination(req.Page, req.PageSize)

	result, err := h.articles.List(c.Request.Context(), filter, pagination)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to list articles"))
		return
	}

	items := make([]dto.ArticleResponse, 0, len(result.Items))
	for _, article := range result.Items {
		items = append(items, dto.ToArticleResponse(article, false))
	}
	dto.SuccessWithPage(c, items, dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Get 获取单篇文章
// @Summary 文章详情
// @Tags Articles
// @Produce json
// @Param id path string true "文章 ID"
// @Success 200 {object} dto.Response[dto.ArticleResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/articles/{id} [get]
func (h *ArticleHandler) Get(c *gin.Context) {
	id := c.Param("id")

	article, err := h.articles.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.CodeDatabaseError, "failed to get article"))
		return
	}
	if article == nil {
		respondError(c, errors.ErrArticleNotFound)
		return
	}
	dto.Success(c, dto.ToArticleResponse(article, true))
}
