package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsbrief-ai-api/internal/config"
	"newsbrief-ai-api/pkg/logger"
	"newsbrief-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("feed")

// ScannerRSS RSS 策略名称
const ScannerRSS = "rss"

// pubDate 的常见格式，按顺序尝试
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// RSSScanner 标准 RSS 2.0 源采集策略
// 条目正文可选地从文章页面按 CSS 选择器抽取
type RSSScanner struct {
	httpClient *http.Client
}

var _ Scanner = (*RSSScanner)(nil)

// NewRSSScanner 创建 RSS 采集策略
func NewRSSScanner(timeout time.Duration) *RSSScanner {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &RSSScanner{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name 策略名称
func (s *RSSScanner) Name() string {
	return ScannerRSS
}

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// Fetch 拉取并解析 RSS 源
// 单个条目解析失败只计入 Skipped，不中断整个源
func (s *RSSScanner) Fetch(ctx context.Context, src config.SourceConfig) ([]RawArticle, *FetchStats, error) {
	ctx, span := tracer.Start(ctx, "feed.RSSScanner.Fetch",
		trace.WithAttributes(attribute.String("source", src.Name)))
	defer span.End()

	doc, err := s.fetchFeed(ctx, src.FeedURL)
	if err != nil {
		span.RecordError(err)
		metrics.FeedFetchTotal.WithLabelValues(src.Name, "error").Inc()
		return nil, nil, fmt.Errorf("failed to fetch feed %s: %w", src.Name, err)
	}

	items := doc.Channel.Items
	if src.MaxItems > 0 && len(items) > src.MaxItems {
		items = items[:src.MaxItems]
	}

	stats := &FetchStats{}
	articles := make([]RawArticle, 0, len(items))

	for _, item := range items {
		link := strings.TrimSpace(item.Link)
		title := strings.TrimSpace(item.Title)
		if link == "" || title == "" {
			stats.Skipped++
			continue
		}

		content := strings.TrimSpace(item.Description)
		if src.FetchBody && src.BodySelector != "" {
			body, err := s.fetchBody(ctx, link, src.BodySelector)
			if err != nil {
				logger.Warn(ctx, "failed to fetch article body, falling back to description",
					"source", src.Name, "link", link, "error", err.Error())
			} else if body != "" {
				content = body
			}
		}

		articles = append(articles, RawArticle{
			Source:  src.Name,
			Title:   title,
			Link:    link,
			PubDate: parsePubDate(item.PubDate),
			Content: content,
		})
		stats.Fetched++
	}

	metrics.FeedFetchTotal.WithLabelValues(src.Name, "success").Inc()
	span.SetAttributes(
		attribute.Int("fetched", stats.Fetched),
		attribute.Int("skipped", stats.Skipped),
	)
	return articles, stats, nil
}

func (s *RSSScanner) fetchFeed(ctx context.Context, feedURL string) (*rssDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed request failed: status=%d", resp.StatusCode)
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return &doc, nil
}

// fetchBody 抓取文章页面并按选择器抽取正文段落
func (s *RSSScanner) fetchBody(ctx context.Context, link, selector string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create article request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("article request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("article request failed: status=%d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse article html: %w", err)
	}

	container := doc.Find(selector)
	var parts []string
	container.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		if text := strings.TrimSpace(container.Text()); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n"), nil
}

// parsePubDate 解析发布时间并统一为 UTC，全部失败时退回当前时间
func parsePubDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		for _, layout := range pubDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Now().UTC()
}
