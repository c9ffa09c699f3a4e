// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionNewsArticles 文章向量集合
	CollectionNewsArticles = "news_articles"
	// CollectionSummaries 摘要向量集合
	CollectionSummaries = "summaries"

	// DefaultVectorDimension 默认向量维度 (all-MiniLM-L6-v2)
	DefaultVectorDimension = 384
)

// vectorSchema 构建向量集合 Schema，两类集合共用同一字段布局
// created_at 以 Unix 秒存储，检索同分时用于按时间倒序决胜
func vectorSchema(collection, description string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: collection,
		Description:    description,
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     "created_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}
}

// NewsArticlesSchema 文章向量 Collection Schema
func NewsArticlesSchema(dim int) *entity.Schema {
	return vectorSchema(CollectionNewsArticles, "News article embeddings for semantic search", dim)
}

// SummariesSchema 摘要向量 Collection Schema
func SummariesSchema(dim int) *entity.Schema {
	return vectorSchema(CollectionSummaries, "Summary embeddings for semantic search", dim)
}

// VectorRecord 向量记录
type VectorRecord struct {
	ID        string    `json:"id"`
	Vector    []float32 `json:"vector"`
	CreatedAt int64     `json:"created_at"`
}
