package embedder

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbrief-ai-api/internal/config"
	apperrors "newsbrief-ai-api/pkg/errors"
)

type fakeEmbedder struct {
	dim      int
	calls    int
	failFor  int
	lastSeen []string
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	f.lastSeen = texts
	if f.calls <= f.failFor {
		return nil, fmt.Errorf("provider down")
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, f.dim)
		out[i][0] = float64(i + 1)
	}
	return out, nil
}

func testConfig() *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Dimension:  4,
		MaxChars:   100,
		MaxRetries: 3,
		RetryFrom:  time.Millisecond,
	}
}

func TestEmbedBatch(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	svc := NewService(fake, testConfig())

	vectors, err := svc.EmbedBatch(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 4)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(2), vectors[1][0])
	assert.Equal(t, 1, fake.calls)
}

func TestEmbedRetriesTransientFailure(t *testing.T) {
	fake := &fakeEmbedder{dim: 4, failFor: 2}
	svc := NewService(fake, testConfig())

	vec, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, 3, fake.calls)
}

func TestEmbedExhaustedRetries(t *testing.T) {
	fake := &fakeEmbedder{dim: 4, failFor: 10}
	svc := NewService(fake, testConfig())

	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 3, fake.calls)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeEmbeddingFailed, appErr.Code)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	fake := &fakeEmbedder{dim: 3}
	svc := NewService(fake, testConfig())

	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeEmbeddingFailed, appErr.Code)
}

func TestEmbedEmptyText(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	svc := NewService(fake, testConfig())

	_, err := svc.Embed(context.Background(), "   ")
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeInvalidParam, appErr.Code)
	assert.Equal(t, 0, fake.calls)
}

func TestEmbedTruncatesLongText(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	cfg := testConfig()
	cfg.MaxChars = 10
	svc := NewService(fake, cfg)

	_, err := svc.Embed(context.Background(), strings.Repeat("界", 25))
	require.NoError(t, err)
	require.Len(t, fake.lastSeen, 1)
	assert.Equal(t, 10, len([]rune(fake.lastSeen[0])))
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	svc := NewService(&fakeEmbedder{dim: 4}, testConfig())
	vectors, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}
