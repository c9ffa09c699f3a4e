package retrieval

import (
	"context"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbrief-ai-api/internal/application/embedder"
	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/domain/repository"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, 4)
	}
	return out, nil
}

type stubSearcher struct {
	results  []*milvus.SearchResult
	lastTopK int
	lastColl string
}

func (s *stubSearcher) Search(_ context.Context, collection string, _ []float32, topK int) ([]*milvus.SearchResult, error) {
	s.lastColl = collection
	s.lastTopK = topK
	if topK < len(s.results) {
		return s.results[:topK], nil
	}
	return s.results, nil
}

type stubArticleRepo struct {
	articles map[string]*entity.Article
}

func (r *stubArticleRepo) InsertIfAbsent(context.Context, *entity.Article) (bool, error) {
	return false, nil
}
func (r *stubArticleRepo) ExistsByLink(context.Context, string) (bool, error) { return false, nil }
func (r *stubArticleRepo) GetByID(_ context.Context, id string) (*entity.Article, error) {
	return r.articles[id], nil
}
func (r *stubArticleRepo) GetByIDs(_ context.Context, ids []string) ([]*entity.Article, error) {
	var out []*entity.Article
	for _, id := range ids {
		if a, ok := r.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}
func (r *stubArticleRepo) List(context.Context, *repository.ArticleFilter, repository.Pagination) (*repository.PagedResult[*entity.Article], error) {
	return nil, nil
}
func (r *stubArticleRepo) MarkSummarized(context.Context, []string) error { return nil }
func (r *stubArticleRepo) Delete(context.Context, string) error           { return nil }

type stubSummaryRepo struct {
	summaries map[string]*entity.Summary
}

func (r *stubSummaryRepo) Create(context.Context, *entity.Summary) error { return nil }
func (r *stubSummaryRepo) GetByID(_ context.Context, id string) (*entity.Summary, error) {
	return r.summaries[id], nil
}
func (r *stubSummaryRepo) GetByIDs(_ context.Context, ids []string) ([]*entity.Summary, error) {
	var out []*entity.Summary
	for _, id := range ids {
		if s, ok := r.summaries[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}
func (r *stubSummaryRepo) List(context.Context, repository.Pagination) (*repository.PagedResult[*entity.Summary], error) {
	return nil, nil
}
func (r *stubSummaryRepo) Delete(context.Context, string) error { return nil }

func newTestEngine(searcher *stubSearcher, articles map[string]*entity.Article, summaries map[string]*entity.Summary) *Engine {
	embedSvc := embedder.NewService(stubEmbedder{}, &config.EmbeddingConfig{
		Dimension:  4,
		MaxRetries: 1,
		RetryFrom:  time.Millisecond,
	})
	return NewEngine(embedSvc, searcher, &stubArticleRepo{articles: articles}, &stubSummaryRepo{summaries: summaries}, 5, 50)
}

func articleAt(id string, createdAt time.Time) *entity.Article {
	return &entity.Article{
		ID:        id,
		Source:    "test",
		Title:     "title " + id,
		Link:      "https://example.com/" + id,
		Content:   "content " + id,
		CreatedAt: createdAt,
	}
}

func TestSearchArticlesOrdering(t *testing.T) {
	now := time.Now().UTC()
	searcher := &stubSearcher{results: []*milvus.SearchResult{
		{ID: "a", Score: 0.5, CreatedAt: now.Add(-2 * time.Hour).Unix()},
		{ID: "b", Score: 0.9, CreatedAt: now.Add(-1 * time.Hour).Unix()},
		{ID: "c", Score: 0.9, CreatedAt: now.Unix()},
	}}
	articles := map[string]*entity.Article{
		"a": articleAt("a", now.Add(-2*time.Hour)),
		"b": articleAt("b", now.Add(-1*time.Hour)),
		"c": articleAt("c", now),
	}

	engine := newTestEngine(searcher, articles, nil)
	hits, err := engine.SearchArticles(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// 分数倒序，同分按创建时间倒序
	assert.Equal(t, "c", hits[0].Article.ID)
	assert.Equal(t, "b", hits[1].Article.ID)
	assert.Equal(t, "a", hits[2].Article.ID)
	assert.Equal(t, milvus.CollectionNewsArticles, searcher.lastColl)
}

func TestSearchArticlesDropsMissingRows(t *testing.T) {
	now := time.Now().UTC()
	searcher := &stubSearcher{results: []*milvus.SearchResult{
		{ID: "a", Score: 0.9},
		{ID: "ghost", Score: 0.8},
	}}
	articles := map[string]*entity.Article{"a": articleAt("a", now)}

	engine := newTestEngine(searcher, articles, nil)
	hits, err := engine.SearchArticles(context.Background(), "query", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].Article.ID)
}

func TestSearchArticlesTopKClamp(t *testing.T) {
	searcher := &stubSearcher{}
	engine := newTestEngine(searcher, nil, nil)

	_, err := engine.SearchArticles(context.Background(), "query", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, searcher.lastTopK)

	_, err = engine.SearchArticles(context.Background(), "query", 500)
	require.NoError(t, err)
	assert.Equal(t, 50, searcher.lastTopK)
}

func TestSearchArticlesEmptyQuery(t *testing.T) {
	engine := newTestEngine(&stubSearcher{}, nil, nil)
	_, err := engine.SearchArticles(context.Background(), "   ", 5)
	assert.Error(t, err)
}

func TestSearchArticlesNoResults(t *testing.T) {
	engine := newTestEngine(&stubSearcher{}, nil, nil)
	hits, err := engine.SearchArticles(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchSummaries(t *testing.T) {
	now := time.Now().UTC()
	searcher := &stubSearcher{results: []*milvus.SearchResult{
		{ID: "s1", Score: 0.7},
	}}
	summaries := map[string]*entity.Summary{
		"s1": {ID: "s1", Title: "daily brief", CreatedAt: now},
	}

	engine := newTestEngine(searcher, nil, summaries)
	hits, err := engine.SearchSummaries(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s1", hits[0].Summary.ID)
	assert.InDelta(t, 0.7, hits[0].Score, 1e-6)
	assert.Equal(t, milvus.CollectionSummaries, searcher.lastColl)
}

func TestRetrieveArticlesByIDs(t *testing.T) {
	now := time.Now().UTC()
	articles := map[string]*entity.Article{"a": articleAt("a", now)}
	engine := newTestEngine(&stubSearcher{}, articles, nil)

	got, err := engine.RetrieveArticlesByIDs(context.Background(), []string{" a ", "", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	empty, err := engine.RetrieveArticlesByIDs(context.Background(), []string{"", "  "})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// textEmbedder 按文本返回固定向量
type textEmbedder struct {
	vectors map[string][]float64
}

func (e textEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, ok := e.vectors[text]
		if !ok {
			v = make([]float64, 4)
		}
		out[i] = v
	}
	return out, nil
}

// cosineSearcher 暴力余弦检索，模拟向量库的排序行为
type cosineSearcher struct {
	vectors map[string][]float32
}

func (s *cosineSearcher) Search(_ context.Context, _ string, query []float32, topK int) ([]*milvus.SearchResult, error) {
	results := make([]*milvus.SearchResult, 0, len(s.vectors))
	for id, v := range s.vectors {
		results = append(results, &milvus.SearchResult{ID: id, Score: cosineSim(query, v)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func cosineSim(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func TestSearchArticlesCosineRanking(t *testing.T) {
	embedSvc := embedder.NewService(textEmbedder{vectors: map[string][]float64{
		"typhoon signal": {1, 0, 0, 0},
	}}, &config.EmbeddingConfig{
		Dimension:  4,
		MaxRetries: 1,
		RetryFrom:  time.Millisecond,
	})

	searcher := &cosineSearcher{vectors: map[string][]float32{
		"weather": {0.9, 0.1, 0, 0},
		"finance": {0, 1, 0, 0},
		"transit": {0.5, 0.5, 0, 0},
	}}

	now := time.Now().UTC()
	articles := map[string]*entity.Article{
		"weather": articleAt("weather", now),
		"finance": articleAt("finance", now),
		"transit": articleAt("transit", now),
	}

	engine := NewEngine(embedSvc, searcher, &stubArticleRepo{articles: articles}, &stubSummaryRepo{}, 5, 50)
	hits, err := engine.SearchArticles(context.Background(), "typhoon signal", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "weather", hits[0].Article.ID)
	assert.Equal(t, "transit", hits[1].Article.ID)
	assert.Equal(t, "finance", hits[2].Article.ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Greater(t, hits[1].Score, hits[2].Score)
}
