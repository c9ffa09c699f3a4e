// Package main 初始化存储层（建表、建集合、建索引）
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
	"newsbrief-ai-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化数据层
	dataLayer, cleanup, err := wire.InitializeDataLayer(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 3. PostgreSQL 表结构
	fmt.Println("Ensuring PostgreSQL schema...")
	if err := dataLayer.PgClient.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure postgres schema: %v", err)
	}

	// 4. Milvus 集合与索引
	fmt.Println("Ensuring Milvus collections...")
	if err := dataLayer.VectorRepo.EnsureNewsArticlesCollection(ctx); err != nil {
		log.Fatalf("failed to ensure news articles collection: %v", err)
	}
	if err := dataLayer.VectorRepo.EnsureSummariesCollection(ctx); err != nil {
		log.Fatalf("failed to ensure summaries collection: %v", err)
	}

	for _, collection := range []string{milvus.CollectionNewsArticles, milvus.CollectionSummaries} {
		if err := dataLayer.VectorRepo.CreateIndex(ctx, collection); err != nil {
			log.Fatalf("failed to create index for %s: %v", collection, err)
		}
	}

	fmt.Println("Bootstrap completed successfully.")
}
