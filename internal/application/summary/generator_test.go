package summary

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbrief-ai-api/internal/application/embedder"
	"newsbrief-ai-api/internal/application/retrieval"
	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/domain/repository"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
	wfmodel "newsbrief-ai-api/internal/workflow/model"
	apperrors "newsbrief-ai-api/pkg/errors"
)

type scriptedChain struct {
	outputs []string
	calls   int
	inputs  []*wfmodel.SummaryGenerateInput
}

func (c *scriptedChain) Invoke(_ context.Context, in *wfmodel.SummaryGenerateInput) (*schema.Message, error) {
	c.inputs = append(c.inputs, in)
	if c.calls >= len(c.outputs) {
		return nil, fmt.Errorf("no scripted output")
	}
	out := c.outputs[c.calls]
	c.calls++
	return &schema.Message{Role: schema.Assistant, Content: out}, nil
}

type failingChain struct{}

func (failingChain) Invoke(context.Context, *wfmodel.SummaryGenerateInput) (*schema.Message, error) {
	return nil, fmt.Errorf("provider unavailable")
}

type recordingSummaryRepo struct {
	created []*entity.Summary
}

func (r *recordingSummaryRepo) Create(_ context.Context, s *entity.Summary) error {
	r.created = append(r.created, s)
	return nil
}
func (r *recordingSummaryRepo) GetByID(context.Context, string) (*entity.Summary, error) {
	return nil, nil
}
func (r *recordingSummaryRepo) GetByIDs(context.Context, []string) ([]*entity.Summary, error) {
	return nil, nil
}
func (r *recordingSummaryRepo) List(context.Context, repository.Pagination) (*repository.PagedResult[*entity.Summary], error) {
	return nil, nil
}
func (r *recordingSummaryRepo) Delete(context.Context, string) error { return nil }

type fixedArticleRepo struct {
	articles   map[string]*entity.Article
	summarized []string
}

func (r *fixedArticleRepo) InsertIfAbsent(context.Context, *entity.Article) (bool, error) {
	return false, nil
}
func (r *fixedArticleRepo) ExistsByLink(context.Context, string) (bool, error) { return false, nil }
func (r *fixedArticleRepo) GetByID(_ context.Context, id string) (*entity.Article, error) {
	return r.articles[id], nil
}
func (r *fixedArticleRepo) GetByIDs(_ context.Context, ids []string) ([]*entity.Article, error) {
	var out []*entity.Article
	for _, id := range ids {
		if a, ok := r.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}
func (r *fixedArticleRepo) List(context.Context, *repository.ArticleFilter, repository.Pagination) (*repository.PagedResult[*entity.Article], error) {
	return nil, nil
}
func (r *fixedArticleRepo) MarkSummarized(_ context.Context, ids []string) error {
	r.summarized = append(r.summarized, ids...)
	return nil
}
func (r *fixedArticleRepo) Delete(context.Context, string) error { return nil }

type recordingVectorStore struct {
	inserts map[string]int
}

func (s *recordingVectorStore) Insert(_ context.Context, collection string, records []*milvus.VectorRecord) error {
	if s.inserts == nil {
		s.inserts = make(map[string]int)
	}
	s.inserts[collection] += len(records)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type emptySearcher struct{}

func (emptySearcher) Search(context.Context, string, []float32, int) ([]*milvus.SearchResult, error) {
	return nil, nil
}

type noopEmbedder struct{}

func (noopEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, 4)
	}
	return out, nil
}

func validOutput() string {
	return `{"title": "brief", "tldr": ["b1", "b2"], "summary": "s1. s2.",
		"refs": [{"sentence": "s1.", "sources": [1]}, {"sentence": "s2.", "sources": [2]}]}`
}

func outOfRangeOutput() string {
	return `{"title": "brief", "tldr": ["b1"], "summary": "s1.",
		"refs": [{"sentence": "s1.", "sources": [9]}]}`
}

type generatorFixture struct {
	gen       *Generator
	summaries *recordingSummaryRepo
	articles  *fixedArticleRepo
	vectors   *recordingVectorStore
}

func newFixture(chain ChainInvoker, articles map[string]*entity.Article) *generatorFixture {
	embedSvc := embedder.NewService(noopEmbedder{}, &config.EmbeddingConfig{
		Dimension:  4,
		MaxRetries: 1,
		RetryFrom:  time.Millisecond,
	})
	articleRepo := &fixedArticleRepo{articles: articles}
	summaryRepo := &recordingSummaryRepo{}
	vectors := &recordingVectorStore{}
	engine := retrieval.NewEngine(embedSvc, emptySearcher{}, articleRepo, summaryRepo, 5, 50)

	gen := NewGenerator(chain, engine, embedSvc, summaryRepo, articleRepo, vectors, passthroughTx{}, &config.SummaryConfig{
		DefaultTopK: 5,
		MaxArticles: 20,
		TLDRCount:   4,
	})
	return &generatorFixture{gen: gen, summaries: summaryRepo, articles: articleRepo, vectors: vectors}
}

func twoArticles() map[string]*entity.Article {
	now := time.Now().UTC()
	return map[string]*entity.Article{
		"a1": {ID: "a1", Source: "s", Title: "t1", Link: "https://example.com/1", Content: "c1", CreatedAt: now},
		"a2": {ID: "a2", Source: "s", Title: "t2", Link: "https://example.com/2", Content: "c2", CreatedAt: now},
	}
}

func TestGenerateSuccess(t *testing.T) {
	chain := &scriptedChain{outputs: []string{validOutput()}}
	fx := newFixture(chain, twoArticles())

	out, err := fx.gen.Generate(context.Background(), GenerateInput{ArticleIDs: []string{"a1", "a2"}})
	require.NoError(t, err)
	require.NotNil(t, out.Summary)

	assert.Equal(t, "brief", out.Summary.Title)
	assert.Equal(t, []string{"b1", "b2"}, out.Summary.TLDR)
	require.Len(t, out.Summary.Refs, 2)
	assert.ElementsMatch(t, []string{"a1", "a2"}, out.Summary.ArticleIDs)

	require.Len(t, fx.summaries.created, 1)
	assert.ElementsMatch(t, []string{"a1", "a2"}, fx.articles.summarized)
	assert.Equal(t, 1, fx.vectors.inserts[milvus.CollectionSummaries])
	assert.Equal(t, 1, chain.calls)
}

func TestGenerateRetriesMalformedOnce(t *testing.T) {
	chain := &scriptedChain{outputs: []string{outOfRangeOutput(), validOutput()}}
	fx := newFixture(chain, twoArticles())

	out, err := fx.gen.Generate(context.Background(), GenerateInput{ArticleIDs: []string{"a1", "a2"}})
	require.NoError(t, err)
	assert.NotNil(t, out.Summary)
	assert.Equal(t, 2, chain.calls)

	// 重试时带上更严格的指令
	require.Len(t, chain.inputs, 2)
	assert.Empty(t, chain.inputs[0].StrictBlock)
	assert.NotEmpty(t, chain.inputs[1].StrictBlock)
}

func TestGenerateMalformedTwiceNothingPersisted(t *testing.T) {
	chain := &scriptedChain{outputs: []string{outOfRangeOutput(), outOfRangeOutput()}}
	fx := newFixture(chain, twoArticles())

	_, err := fx.gen.Generate(context.Background(), GenerateInput{ArticleIDs: []string{"a1", "a2"}})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeMalformedGeneration, appErr.Code)

	assert.Empty(t, fx.summaries.created)
	assert.Empty(t, fx.articles.summarized)
	assert.Empty(t, fx.vectors.inserts)
	assert.Equal(t, 2, chain.calls)
}

// 畸形输出的详情只属于单次请求，预定义错误必须保持干净
func TestGenerateMalformedKeepsSharedErrorClean(t *testing.T) {
	require.Empty(t, apperrors.ErrMalformedGeneration.Detail)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chain := &scriptedChain{outputs: []string{outOfRangeOutput(), outOfRangeOutput()}}
			fx := newFixture(chain, twoArticles())
			_, err := fx.gen.Generate(context.Background(), GenerateInput{ArticleIDs: []string{"a1", "a2"}})
			if err == nil {
				t.Error("expected malformed generation error")
				return
			}
			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeMalformedGeneration {
				t.Errorf("unexpected code %s", appErr.Code)
			}
			if appErr.Detail == "" {
				t.Error("expected detail on the returned error")
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, apperrors.ErrMalformedGeneration.Detail)
}

func TestGenerateProviderFailure(t *testing.T) {
	fx := newFixture(failingChain{}, twoArticles())

	_, err := fx.gen.Generate(context.Background(), GenerateInput{ArticleIDs: []string{"a1"}})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeGenerationFailed, appErr.Code)
	assert.Empty(t, fx.summaries.created)
}

func TestGenerateInsufficientInput(t *testing.T) {
	fx := newFixture(&scriptedChain{}, twoArticles())

	// 查询没有命中任何文章
	_, err := fx.gen.Generate(context.Background(), GenerateInput{Query: "nothing matches"})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeInsufficientInput, appErr.Code)
}

func TestGenerateMissingSelection(t *testing.T) {
	fx := newFixture(&scriptedChain{}, twoArticles())

	_, err := fx.gen.Generate(context.Background(), GenerateInput{})
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeInvalidParam, appErr.Code)
}
