//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/google/wire"

	"newsbrief-ai-api/internal/application/embedder"
	"newsbrief-ai-api/internal/application/ingest"
	"newsbrief-ai-api/internal/application/retrieval"
	"newsbrief-ai-api/internal/application/summary"
	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/internal/domain/repository"
	"newsbrief-ai-api/internal/infrastructure/embedding"
	"newsbrief-ai-api/internal/infrastructure/feed"
	"newsbrief-ai-api/internal/infrastructure/llm"
	"newsbrief-ai-api/internal/infrastructure/messaging"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
	"newsbrief-ai-api/internal/infrastructure/persistence/postgres"
	"newsbrief-ai-api/internal/infrastructure/persistence/redis"
	"newsbrief-ai-api/internal/interfaces/http/handler"
	"newsbrief-ai-api/internal/interfaces/http/middleware"
	"newsbrief-ai-api/internal/interfaces/http/router"
	"newsbrief-ai-api/internal/workflow/chain"
	workflowport "newsbrief-ai-api/internal/workflow/port"
)

// DataLayer 数据层依赖容器，采集 worker 在此之上手工装配
type DataLayer struct {
	// PostgreSQL
	PgClient    *postgres.Client
	TxManager   *postgres.TxManager
	ArticleRepo *postgres.ArticleRepository
	SummaryRepo *postgres.SummaryRepository

	// Redis
	RedisClient *redis.Client
	Cache       *redis.Cache
	RateLimiter *redis.RateLimiter

	// Messaging
	Producer *messaging.Producer

	// Milvus
	MilvusClient *milvus.Client
	VectorRepo   *milvus.Repository
}

// InitializeDataLayer 初始化数据层
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	wire.Build(
		PostgresSet,
		RedisSet,
		MessagingSet,
		MilvusSet,
		wire.Struct(new(DataLayer), "*"),
	)
	return nil, nil, nil
}

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		MilvusSet,
		EmbeddingSet,
		FeedSet,
		PipelineSet,
		RouterSet,
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewArticleRepository,
	postgres.NewSummaryRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.ArticleRepository), new(*postgres.ArticleRepository)),
	wire.Bind(new(repository.SummaryRepository), new(*postgres.SummaryRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// MilvusSet Milvus 提供者集合
var MilvusSet = wire.NewSet(
	ProvideMilvusClient,
	ProvideMilvusRepository,
	wire.Bind(new(ingest.VectorStore), new(*milvus.Repository)),
	wire.Bind(new(retrieval.VectorSearcher), new(*milvus.Repository)),
	wire.Bind(new(summary.VectorStore), new(*milvus.Repository)),
)

// EmbeddingSet Embedding 提供者集合
var EmbeddingSet = wire.NewSet(
	ProvideEmbedder,
	ProvideEmbedderService,
)

// FeedSet 新闻源采集提供者集合
var FeedSet = wire.NewSet(
	ProvideFeedSource,
)

// PipelineSet 业务流水线提供者集合
var PipelineSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	chain.NewSummaryChain,
	wire.Bind(new(summary.ChainInvoker), new(*chain.SummaryChain)),
	ProvideRetrievalEngine,
	ProvideIngestor,
	ProvideSummaryGenerator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	ProvideArticleHandler,
	ProvideSummaryHandler,
	handler.NewIngestHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouter,
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideMilvusClient 提供 Milvus 客户端
func ProvideMilvusClient(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMilvusRepository 提供向量仓储
func ProvideMilvusRepository(client *milvus.Client, cfg *config.Config) *milvus.Repository {
	return milvus.NewRepository(client, cfg.Embedding.Dimension)
}

// ProvideEmbedder 提供向量化客户端
func ProvideEmbedder(ctx context.Context, cfg *config.Config) (einoembedding.Embedder, error) {
	return embedding.NewEmbedder(ctx, &cfg.Embedding)
}

// ProvideEmbedderService 提供向量化服务
func ProvideEmbedderService(emb einoembedding.Embedder, cfg *config.Config) *embedder.Service {
	return embedder.NewService(emb, &cfg.Embedding)
}

// ProvideFeedSource 提供新闻源采集器
func ProvideFeedSource(cfg *config.Config) *feed.StrategySource {
	registry := feed.NewRegistry()
	registry.Register(feed.NewRSSScanner(cfg.Ingest.HTTPTimeout))
	return feed.NewStrategySource(registry, cfg.Ingest.Sources)
}

// ProvideRetrievalEngine 提供语义检索引擎
func ProvideRetrievalEngine(
	embedSvc *embedder.Service,
	vectors retrieval.VectorSearcher,
	articles repository.ArticleRepository,
	summaries repository.SummaryRepository,
	cfg *config.Config,
) *retrieval.Engine {
	return retrieval.NewEngine(embedSvc, vectors, articles, summaries, cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK)
}

// ProvideIngestor 提供入库流水线
func ProvideIngestor(
	articles repository.ArticleRepository,
	vectors ingest.VectorStore,
	embedSvc *embedder.Service,
	producer *messaging.Producer,
	cache *redis.Cache,
	feeds *feed.StrategySource,
	cfg *config.Config,
) *ingest.Ingestor {
	return ingest.NewIngestor(articles, vectors, embedSvc, producer, cache, feeds, cfg.Ingest.Concurrency)
}

// ProvideSummaryGenerator 提供摘要生成流水线
func ProvideSummaryGenerator(
	chainInvoker summary.ChainInvoker,
	engine *retrieval.Engine,
	embedSvc *embedder.Service,
	summaries repository.SummaryRepository,
	articles repository.ArticleRepository,
	vectors summary.VectorStore,
	tx repository.Transactor,
	cfg *config.Config,
) *summary.Generator {
	return summary.NewGenerator(chainInvoker, engine, embedSvc, summaries, articles, vectors, tx, &cfg.Summary)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client, cfg *config.Config) *handler.HealthHandler {
	return handler.NewHealthHandler(pg, redisClient, milvusClient, cfg.App.Version)
}

// ProvideArticleHandler 提供文章处理器
func ProvideArticleHandler(engine *retrieval.Engine, articles repository.ArticleRepository, cache *redis.Cache, cfg *config.Config) *handler.ArticleHandler {
	return handler.NewArticleHandler(engine, articles, cache, cfg.Retrieval.CacheTTL)
}

// ProvideSummaryHandler 提供摘要处理器
func ProvideSummaryHandler(
	cfg *config.Config,
	generator *summary.Generator,
	engine *retrieval.Engine,
	summaries repository.SummaryRepository,
	cache *redis.Cache,
) *handler.SummaryHandler {
	return handler.NewSummaryHandler(cfg, generator, engine, summaries, cache, cfg.Retrieval.CacheTTL)
}

// ProvideRouter 提供 HTTP 路由器
func ProvideRouter(cfg *config.Config, handlers router.Handlers, limiter middleware.RateLimiter) *router.Router {
	return router.New(cfg, handlers, limiter)
}
