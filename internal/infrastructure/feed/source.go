package feed

import (
	"context"
	"fmt"

	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/pkg/logger"
)

// SourceResult 单个新闻源的采集结果
type SourceResult struct {
	Source   string
	Articles []RawArticle
	Stats    FetchStats
	Err      error
}

// StrategySource 按配置遍历全部新闻源，由注册表分派采集策略
type StrategySource struct {
	registry *Registry
	sources  []config.SourceConfig
}

// NewStrategySource 创建多源采集器
func NewStrategySource(registry *Registry, sources []config.SourceConfig) *StrategySource {
	return &StrategySource{
		registry: registry,
		sources:  sources,
	}
}

// FetchSource 采集单个命名源
func (s *StrategySource) FetchSource(ctx context.Context, name string) (*SourceResult, error) {
	for _, src := range s.sources {
		if src.Name == name {
			result := s.fetchOne(ctx, src)
			return &result, result.Err
		}
	}
	return nil, fmt.Errorf("unknown source: %s", name)
}

// FetchAll 依次采集全部配置源
// 单个源失败记录在其结果里，不影响其它源
func (s *StrategySource) FetchAll(ctx context.Context) []SourceResult {
	results := make([]SourceResult, 0, len(s.sources))
	for _, src := range s.sources {
		if ctx.Err() != nil {
			break
		}
		results = append(results, s.fetchOne(ctx, src))
	}
	return results
}

// Sources 返回配置的源列表
func (s *StrategySource) Sources() []config.SourceConfig {
	return s.sources
}

func (s *StrategySource) fetchOne(ctx context.Context, src config.SourceConfig) SourceResult {
	result := SourceResult{Source: src.Name}

	adapter := src.Adapter
	if adapter == "" {
		adapter = ScannerRSS
	}

	scanner, err := s.registry.Resolve(adapter)
	if err != nil {
		result.Err = err
		logger.Error(ctx, "failed to resolve scanner", err, "source", src.Name, "adapter", adapter)
		return result
	}

	articles, stats, err := scanner.Fetch(ctx, src)
	if err != nil {
		result.Err = err
		logger.Error(ctx, "failed to fetch source", err, "source", src.Name)
		return result
	}

	result.Articles = articles
	if stats != nil {
		result.Stats = *stats
	}
	logger.Info(ctx, "source fetched",
		"source", src.Name,
		"fetched", result.Stats.Fetched,
		"skipped", result.Stats.Skipped)
	return result
}
