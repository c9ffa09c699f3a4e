package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsbrief-ai-api/internal/application/embedder"
	"newsbrief-ai-api/internal/application/retrieval"
	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/domain/repository"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
	wfmodel "newsbrief-ai-api/internal/workflow/model"
	"newsbrief-ai-api/pkg/errors"
	"newsbrief-ai-api/pkg/logger"
	"newsbrief-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("summary")

// Generator 摘要生成流水线
// 生成失败不落任何数据：只有解析校验全部通过后才进入持久化
type Generator struct {
	chain     ChainInvoker
	retrieval *retrieval.Engine
	embedder  *embedder.Service
	summaries repository.SummaryRepository
	articles  repository.ArticleRepository
	vectors   VectorStore
	tx        repository.Transactor

	defaultTopK int
	maxArticles int
	tldrCount   int
}

// NewGenerator 创建摘要生成流水线
func NewGenerator(
	chain ChainInvoker,
	retrievalEngine *retrieval.Engine,
	embedSvc *embedder.Service,
	summaries repository.SummaryRepository,
	articles repository.ArticleRepository,
	vectors VectorStore,
	tx repository.Transactor,
	cfg *config.SummaryConfig,
) *Generator {
	defaultTopK := cfg.DefaultTopK
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	maxArticles := cfg.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 20
	}
	tldrCount := cfg.TLDRCount
	if tldrCount <= 0 {
		tldrCount = 4
	}
	return &Generator{
		chain:       chain,
		retrieval:   retrievalEngine,
		embedder:    embedSvc,
		summaries:   summaries,
		articles:    articles,
		vectors:     vectors,
		tx:          tx,
		defaultTopK: defaultTopK,
		maxArticles: maxArticles,
		tldrCount:   tldrCount,
	}
}

// Generate 为一组文章生成结构化摘要并持久化
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error) {
	ctx, span := tracer.Start(ctx, "summary.Generator.Generate",
		trace.WithAttributes(
			attribute.Int("article_ids", len(in.ArticleIDs)),
			attribute.Bool("by_query", strings.TrimSpace(in.Query) != ""),
		))
	defer span.End()

	start := time.Now()

	articles, err := g.resolveArticles(ctx, in)
	if err != nil {
		span.RecordError(err)
		metrics.SummaryGenerationTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	if len(articles) == 0 {
		metrics.SummaryGenerationTotal.WithLabelValues("insufficient_input").Inc()
		return nil, errors.ErrInsufficientInput
	}

	plan, meta, err := g.generatePlan(ctx, articles, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out, err := g.persist(ctx, plan, articles)
	if err != nil {
		span.RecordError(err)
		metrics.SummaryGenerationTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	out.Meta = meta

	metrics.SummaryGenerationTotal.WithLabelValues("success").Inc()
	metrics.SummaryGenerationDuration.Observe(time.Since(start).Seconds())
	metrics.SummaryArticleCount.Observe(float64(len(articles)))
	logger.Info(ctx, "summary generated",
		"summary_id", out.Summary.ID,
		"articles", len(articles),
		"duration", time.Since(start).String())
	return out, nil
}

// resolveArticles 选材：显式 ID 优先，否则按查询语义检索
func (g *Generator) resolveArticles(ctx context.Context, in GenerateInput) ([]*entity.Article, error) {
	query := strings.TrimSpace(in.Query)

	var (
		articles []*entity.Article
		err      error
	)
	switch {
	case len(in.ArticleIDs) > 0:
		articles, err = g.retrieval.RetrieveArticlesByIDs(ctx, in.ArticleIDs)
	case query != "":
		topK := in.TopK
		if topK <= 0 {
			topK = g.defaultTopK
		}
		var hits []retrieval.ArticleHit
		hits, err = g.retrieval.SearchArticles(ctx, query, topK)
		if err == nil {
			articles = make([]*entity.Article, 0, len(hits))
			for _, hit := range hits {
				articles = append(articles, hit.Article)
			}
		}
	default:
		return nil, errors.New(errors.CodeInvalidParam, "either article_ids or query is required")
	}
	if err != nil {
		return nil, err
	}

	if len(articles) > g.maxArticles {
		articles = articles[:g.maxArticles]
	}
	return articles, nil
}

// generatePlan 调用生成链并解析校验，格式错误时带更严格指令重试一次
func (g *Generator) generatePlan(ctx context.Context, articles []*entity.Article, in GenerateInput) (*wfmodel.SummaryPlan, wfmodel.LLMUsageMeta, error) {
	indexed := make([]wfmodel.IndexedArticle, len(articles))
	for i, article := range articles {
		indexed[i] = wfmodel.IndexedArticle{
			Index:   i + 1,
			Source:  article.Source,
			Title:   article.Title,
			Content: article.Content,
		}
	}

	provider := strings.TrimSpace(in.Provider)
	model := strings.TrimSpace(in.Model)

	var meta wfmodel.LLMUsageMeta
	var lastParseErr error
	for attempt := 0; attempt < 2; attempt++ {
		// 每次尝试构造独立输入，避免重试的严格指令串进已记录的首次调用
		chainInput := &wfmodel.SummaryGenerateInput{
			Provider:  provider,
			Model:     model,
			Articles:  indexed,
			TLDRCount: g.tldrCount,
		}
		if attempt > 0 {
			chainInput.StrictBlock = fmt.Sprintf(
				"Your previous response could not be used: %v. "+
					"Respond with only the JSON object, include every required field, "+
					"and cite only article numbers between 1 and %d in each refs entry.",
				lastParseErr, len(articles))
			logger.Warn(ctx, "summary output malformed, retrying with strict instruction",
				"attempt", attempt, "error", lastParseErr.Error())
		}

		callStart := time.Now()
		outMsg, err := g.chain.Invoke(ctx, chainInput)
		metrics.LLMCallDuration.WithLabelValues(provider, model).
			Observe(time.Since(callStart).Seconds())
		if err != nil {
			metrics.LLMCallTotal.WithLabelValues(provider, model, "error").Inc()
			metrics.SummaryGenerationTotal.WithLabelValues("failed").Inc()
			return nil, meta, errors.Wrap(err, errors.CodeGenerationFailed, "llm generation failed")
		}
		metrics.LLMCallTotal.WithLabelValues(provider, model, "success").Inc()

		meta = wfmodel.LLMUsageMeta{
			Provider:    provider,
			Model:       model,
			GeneratedAt: time.Now().UTC(),
		}
		if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
			meta.PromptTokens = outMsg.ResponseMeta.Usage.PromptTokens
			meta.CompletionTokens = outMsg.ResponseMeta.Usage.CompletionTokens
			metrics.LLMTokensUsed.WithLabelValues(provider, model, "prompt").
				Add(float64(meta.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(provider, model, "completion").
				Add(float64(meta.CompletionTokens))
		}

		plan, err := ParseSummaryPlan(outMsg.Content)
		if err == nil {
			err = ValidateSummaryPlan(plan, len(articles))
		}
		if err == nil {
			return plan, meta, nil
		}
		lastParseErr = err
	}

	metrics.SummaryGenerationTotal.WithLabelValues("malformed").Inc()
	// 共享的预定义错误不可变，详情挂在新实例上
	return nil, meta, errors.New(errors.CodeMalformedGeneration, "generation output malformed").
		WithDetail(lastParseErr.Error())
}

// persist 落库：摘要行、文章消费标记和向量写入同一事务内完成
// 向量写入失败会回滚整个事务，不留下半成品
func (g *Generator) persist(ctx context.Context, plan *wfmodel.SummaryPlan, articles []*entity.Article) (*GenerateOutput, error) {
	refs := make([]entity.SentenceRef, len(plan.Refs))
	for i, ref := range plan.Refs {
		refs[i] = entity.SentenceRef{Sentence: ref.Sentence, Sources: ref.Sources}
	}
	articleIDs := make([]string, len(articles))
	for i, article := range articles {
		articleIDs[i] = article.ID
	}

	sum := entity.NewSummary(
		strings.TrimSpace(plan.Title),
		plan.TLDR,
		strings.TrimSpace(plan.Summary),
		refs,
		articleIDs,
	)

	vector, err := g.embedder.Embed(ctx, sum.EmbeddingText())
	if err != nil {
		return nil, err
	}

	err = g.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := g.summaries.Create(txCtx, sum); err != nil {
			return err
		}
		if err := g.articles.MarkSummarized(txCtx, articleIDs); err != nil {
			return err
		}
		record := &milvus.VectorRecord{
			ID:        sum.ID,
			Vector:    vector,
			CreatedAt: sum.CreatedAt.Unix(),
		}
		return g.vectors.Insert(ctx, milvus.CollectionSummaries, []*milvus.VectorRecord{record})
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to persist summary")
	}

	return &GenerateOutput{Summary: sum}, nil
}
