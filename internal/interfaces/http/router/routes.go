package router

import (
	"github.com/gin-gonic/gin"

	"newsbrief-ai-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	articleHandler *handler.ArticleHandler,
	summaryHandler *handler.SummaryHandler,
	ingestHandler *handler.IngestHandler,
) {
	// 文章
	articles := v1.Group("/articles")
	{
		articles.GET("", articleHandler.List)
		articles.GET("/:id", articleHandler.Get)
	}

	// 摘要
	summaries := v1.Group("/summaries")
	{
		summaries.GET("", summaryHandler.List)
		summaries.POST("", summaryHandler.Generate)
		summaries.GET("/:id", summaryHandler.Get)
	}

	// 语义检索
	search := v1.Group("/search")
	{
		search.POST("/articles", articleHandler.Search)
		search.POST("/summaries", summaryHandler.Search)
	}

	// 采集入库
	ingest := v1.Group("/ingest")
	{
		ingest.POST("/batch", ingestHandler.IngestBatch)
		ingest.POST("/refresh", ingestHandler.Refresh)
	}
}
