package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbrief-ai-api/internal/application/embedder"
	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/internal/domain/entity"
	"newsbrief-ai-api/internal/domain/repository"
	"newsbrief-ai-api/internal/infrastructure/feed"
	"newsbrief-ai-api/internal/infrastructure/messaging"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
)

type memArticleRepo struct {
	mu     sync.Mutex
	byLink map[string]*entity.Article
	byID   map[string]*entity.Article
}

func newMemArticleRepo() *memArticleRepo {
	return &memArticleRepo{
		byLink: make(map[string]*entity.Article),
		byID:   make(map[string]*entity.Article),
	}
}

func (r *memArticleRepo) InsertIfAbsent(_ context.Context, article *entity.Article) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byLink[article.Link]; ok {
		return false, nil
	}
	r.byLink[article.Link] = article
	r.byID[article.ID] = article
	return true, nil
}

func (r *memArticleRepo) ExistsByLink(_ context.Context, link string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byLink[link]
	return ok, nil
}

func (r *memArticleRepo) GetByID(_ context.Context, id string) (*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memArticleRepo) GetByIDs(_ context.Context, ids []string) ([]*entity.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Article
	for _, id := range ids {
		if a, ok := r.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memArticleRepo) List(_ context.Context, _ *repository.ArticleFilter, p repository.Pagination) (*repository.PagedResult[*entity.Article], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Article, 0, len(r.byID))
	for _, a := range r.byID {
		items = append(items, a)
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (r *memArticleRepo) MarkSummarized(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if a, ok := r.byID[id]; ok {
			a.IsSummarized = true
		}
	}
	return nil
}

func (r *memArticleRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		delete(r.byLink, a.Link)
		delete(r.byID, id)
	}
	return nil
}

type fakeVectorStore struct {
	mu      sync.Mutex
	records map[string][]*milvus.VectorRecord
	fail    bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: make(map[string][]*milvus.VectorRecord)}
}

func (s *fakeVectorStore) Insert(_ context.Context, collection string, records []*milvus.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("vector store down")
	}
	s.records[collection] = append(s.records[collection], records...)
	return nil
}

func (s *fakeVectorStore) count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[collection])
}

type stubEmbedder struct {
	fail bool
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if s.fail {
		return nil, fmt.Errorf("embedding down")
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, 4)
	}
	return out, nil
}

func newTestEmbedder(fail bool) *embedder.Service {
	return embedder.NewService(&stubEmbedder{fail: fail}, &config.EmbeddingConfig{
		Dimension:  4,
		MaxRetries: 1,
		RetryFrom:  time.Millisecond,
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*messaging.IngestedEventMessage
}

func (p *recordingPublisher) PublishIngested(_ context.Context, event *messaging.IngestedEventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return "1-0", nil
}

type recordingInvalidator struct {
	mu    sync.Mutex
	kinds []string
}

func (c *recordingInvalidator) InvalidateSearch(_ context.Context, kind string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
	return nil
}

func rawArticle(link, content string) feed.RawArticle {
	return feed.RawArticle{
		Source:  "test",
		Title:   "headline for " + link,
		Link:    link,
		PubDate: time.Now().UTC(),
		Content: content,
	}
}

func TestIngestBatchCounts(t *testing.T) {
	repo := newMemArticleRepo()
	vectors := newFakeVectorStore()
	ing := NewIngestor(repo, vectors, newTestEmbedder(false), nil, nil, nil, 4)

	raws := []feed.RawArticle{
		rawArticle("https://example.com/a", "body a"),
		rawArticle("https://example.com/b", "body b"),
		rawArticle("https://example.com/c", ""),
	}

	report, err := ing.IngestBatch(context.Background(), "test", raws)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Inserted)
	assert.Equal(t, int64(0), report.SkippedDuplicate)
	assert.Equal(t, int64(1), report.SkippedInvalid)
	assert.Equal(t, int64(0), report.Failed)
	assert.Equal(t, int64(len(raws)), report.Inserted+report.SkippedDuplicate+report.SkippedInvalid+report.Failed)
	assert.Equal(t, 2, vectors.count(milvus.CollectionNewsArticles))
}

func TestIngestBatchIdempotent(t *testing.T) {
	repo := newMemArticleRepo()
	vectors := newFakeVectorStore()
	ing := NewIngestor(repo, vectors, newTestEmbedder(false), nil, nil, nil, 4)

	raws := []feed.RawArticle{
		rawArticle("https://example.com/a", "body a"),
		rawArticle("https://example.com/b", "body b"),
	}

	first, err := ing.IngestBatch(context.Background(), "test", raws)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Inserted)

	second, err := ing.IngestBatch(context.Background(), "test", raws)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, int64(2), second.SkippedDuplicate)
	assert.Equal(t, 2, vectors.count(milvus.CollectionNewsArticles))
}

func TestIngestBatchConcurrentDuplicateLinks(t *testing.T) {
	repo := newMemArticleRepo()
	vectors := newFakeVectorStore()
	ing := NewIngestor(repo, vectors, newTestEmbedder(false), nil, nil, nil, 8)

	raws := make([]feed.RawArticle, 8)
	for i := range raws {
		raws[i] = rawArticle("https://example.com/same", "same body")
	}

	report, err := ing.IngestBatch(context.Background(), "test", raws)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Inserted)
	assert.Equal(t, int64(7), report.SkippedDuplicate)
	assert.Equal(t, 1, vectors.count(milvus.CollectionNewsArticles))
}

func TestIngestBatchVectorFailureCompensates(t *testing.T) {
	repo := newMemArticleRepo()
	vectors := newFakeVectorStore()
	vectors.fail = true
	ing := NewIngestor(repo, vectors, newTestEmbedder(false), nil, nil, nil, 2)

	report, err := ing.IngestBatch(context.Background(), "test", []feed.RawArticle{
		rawArticle("https://example.com/a", "body a"),
	})
	require.Error(t, err)
	assert.Equal(t, int64(1), report.Failed)

	// 行记录被补偿删除，后续重试可以重新入库
	exists, _ := repo.ExistsByLink(context.Background(), "https://example.com/a")
	assert.False(t, exists)

	vectors.fail = false
	retry, err := ing.IngestBatch(context.Background(), "test", []feed.RawArticle{
		rawArticle("https://example.com/a", "body a"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), retry.Inserted)
}

func TestIngestBatchEmbeddingDown(t *testing.T) {
	repo := newMemArticleRepo()
	vectors := newFakeVectorStore()
	ing := NewIngestor(repo, vectors, newTestEmbedder(true), nil, nil, nil, 2)

	report, err := ing.IngestBatch(context.Background(), "test", []feed.RawArticle{
		rawArticle("https://example.com/a", "body a"),
		rawArticle("https://example.com/b", "body b"),
	})
	require.Error(t, err)
	assert.Equal(t, int64(2), report.Failed)
	assert.Equal(t, int64(0), report.Inserted)
	assert.Equal(t, 0, vectors.count(milvus.CollectionNewsArticles))
}

func TestIngestEventIncludesFeedSkips(t *testing.T) {
	repo := newMemArticleRepo()
	vectors := newFakeVectorStore()
	publisher := &recordingPublisher{}
	ing := NewIngestor(repo, vectors, newTestEmbedder(false), publisher, nil, nil, 4)

	raws := []feed.RawArticle{
		rawArticle("https://example.com/a", "body a"),
		rawArticle("https://example.com/b", ""),
	}

	// 采集阶段丢弃了两条畸形条目
	report, err := ing.ingestBatch(context.Background(), "test", raws, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Inserted)
	assert.Equal(t, int64(3), report.SkippedInvalid)

	// 发布的事件计数与报告一致，包含采集阶段的丢弃
	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, report.BatchID, event.BatchID)
	assert.Equal(t, 1, event.Inserted)
	assert.Equal(t, 3, event.SkippedInvalid)
}

func TestIngestAllFailedIgnoresFeedSkips(t *testing.T) {
	repo := newMemArticleRepo()
	vectors := newFakeVectorStore()
	ing := NewIngestor(repo, vectors, newTestEmbedder(true), nil, nil, nil, 2)

	// 采集阶段的丢弃不能掩盖批内全部失败
	report, err := ing.ingestBatch(context.Background(), "test", []feed.RawArticle{
		rawArticle("https://example.com/a", "body a"),
	}, 3)
	require.Error(t, err)
	assert.Equal(t, int64(1), report.Failed)
	assert.Equal(t, int64(3), report.SkippedInvalid)
}

func TestIngestBatchInvalidatesSearchCache(t *testing.T) {
	repo := newMemArticleRepo()
	vectors := newFakeVectorStore()
	invalidator := &recordingInvalidator{}
	ing := NewIngestor(repo, vectors, newTestEmbedder(false), nil, invalidator, nil, 4)

	raws := []feed.RawArticle{
		rawArticle("https://example.com/a", "body a"),
	}

	first, err := ing.IngestBatch(context.Background(), "test", raws)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Inserted)
	assert.Equal(t, []string{"articles"}, invalidator.kinds)

	// 没有新文章落库时缓存保持原样
	second, err := ing.IngestBatch(context.Background(), "test", raws)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Inserted)
	assert.Equal(t, []string{"articles"}, invalidator.kinds)
}
