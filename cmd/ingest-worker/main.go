// Package main 新闻采集 worker 入口（ingest-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsbrief-ai-api/internal/application/embedder"
	"newsbrief-ai-api/internal/application/ingest"
	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/internal/infrastructure/embedding"
	"newsbrief-ai-api/internal/infrastructure/feed"
	"newsbrief-ai-api/internal/infrastructure/messaging"
	"newsbrief-ai-api/internal/wire"
	"newsbrief-ai-api/pkg/logger"
	"newsbrief-ai-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "ingest-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	dl, cleanup, err := wire.InitializeDataLayer(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize data layer", err)
	}
	defer cleanup()

	emb, err := embedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Fatal(ctx, "failed to init embedder", err)
	}
	embedSvc := embedder.NewService(emb, &cfg.Embedding)

	registry := feed.NewRegistry()
	registry.Register(feed.NewRSSScanner(cfg.Ingest.HTTPTimeout))
	feeds := feed.NewStrategySource(registry, cfg.Ingest.Sources)

	ingestor := ingest.NewIngestor(dl.ArticleRepo, dl.VectorRepo, embedSvc, dl.Producer, dl.Cache, feeds, cfg.Ingest.Concurrency)

	consumer := messaging.NewConsumer(dl.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamIngestRefresh,
		Group:         messaging.ConsumerGroupIngestWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler("ingest_refresh", func(msgCtx context.Context, msg *messaging.Message) error {
		var payload messaging.RefreshRequestMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		if payload.Source == "" {
			reports := ingestor.RefreshAll(msgCtx)
			for _, report := range reports {
				logReport(msgCtx, payload.RequestID, report)
			}
			return nil
		}

		report, err := ingestor.RefreshSource(msgCtx, payload.Source)
		if report != nil {
			logReport(msgCtx, payload.RequestID, report)
		}
		return err
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	// 周期性全量采集
	tickerCtx, cancelTicker := context.WithCancel(ctx)
	if cfg.Ingest.Interval > 0 {
		go runScheduler(tickerCtx, ingestor, cfg.Ingest.Interval)
	}

	log := logger.FromContext(ctx)
	log.Info("ingest-worker started",
		"sources", len(cfg.Ingest.Sources),
		"interval", cfg.Ingest.Interval.String(),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("ingest-worker shutting down")
	cancelTicker()
	consumer.Stop()
}

// runScheduler 按固定间隔刷新所有新闻源
func runScheduler(ctx context.Context, ingestor *ingest.Ingestor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reports := ingestor.RefreshAll(ctx)
			for _, report := range reports {
				logReport(ctx, "", report)
			}
		}
	}
}

func logReport(ctx context.Context, requestID string, report *ingest.Report) {
	logger.Info(ctx, "source refreshed",
		"request_id", requestID,
		"batch_id", report.BatchID,
		"source", report.Source,
		"inserted", report.Inserted,
		"skipped_duplicate", report.SkippedDuplicate,
		"skipped_invalid", report.SkippedInvalid,
		"failed", report.Failed,
	)
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
