package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbrief-ai-api/internal/config"
)

func rssXML(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>test</title>` + items + `</channel></rss>`
}

func TestRSSScannerFetch(t *testing.T) {
	feed := rssXML(`
<item>
  <title>First headline</title>
  <link>https://example.com/a</link>
  <description>first body</description>
  <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
</item>
<item>
  <title></title>
  <link>https://example.com/broken</link>
  <description>no title</description>
</item>
<item>
  <title>Second headline</title>
  <link>https://example.com/b</link>
  <description>second body</description>
  <pubDate>not a date</pubDate>
</item>`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	}))
	defer srv.Close()

	scanner := NewRSSScanner(5 * time.Second)
	articles, stats, err := scanner.Fetch(context.Background(), config.SourceConfig{
		Name:    "test-source",
		FeedURL: srv.URL,
	})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 1, stats.Skipped)

	assert.Equal(t, "test-source", articles[0].Source)
	assert.Equal(t, "First headline", articles[0].Title)
	assert.Equal(t, "https://example.com/a", articles[0].Link)
	assert.Equal(t, "first body", articles[0].Content)
	assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), articles[0].PubDate)

	// 无法解析的时间退回当前时间
	assert.WithinDuration(t, time.Now().UTC(), articles[1].PubDate, time.Minute)
}

func TestRSSScannerFetchMaxItems(t *testing.T) {
	var items string
	for i := 0; i < 5; i++ {
		items += fmt.Sprintf(`<item><title>t%d</title><link>https://example.com/%d</link></item>`, i, i)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssXML(items))
	}))
	defer srv.Close()

	scanner := NewRSSScanner(5 * time.Second)
	articles, stats, err := scanner.Fetch(context.Background(), config.SourceConfig{
		Name:     "capped",
		FeedURL:  srv.URL,
		MaxItems: 2,
	})
	require.NoError(t, err)
	assert.Len(t, articles, 2)
	assert.Equal(t, 2, stats.Fetched)
}

func TestRSSScannerFetchBody(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssXML(fmt.Sprintf(`<item>
<title>with body</title>
<link>%s/article</link>
<description>short description</description>
</item>`, srvURL)))
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="article-body"><p>para one</p><p>  </p><p>para two</p></div>
<div class="sidebar"><p>ignored</p></div>
</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	scanner := NewRSSScanner(5 * time.Second)
	articles, _, err := scanner.Fetch(context.Background(), config.SourceConfig{
		Name:         "body-source",
		FeedURL:      srv.URL + "/feed",
		FetchBody:    true,
		BodySelector: "div.article-body",
	})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "para one\npara two", articles[0].Content)
}

func TestRSSScannerFetchBodyFallsBackToDescription(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssXML(fmt.Sprintf(`<item>
<title>with body</title>
<link>%s/article</link>
<description>short description</description>
</item>`, srvURL)))
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	scanner := NewRSSScanner(5 * time.Second)
	articles, _, err := scanner.Fetch(context.Background(), config.SourceConfig{
		Name:         "body-source",
		FeedURL:      srv.URL + "/feed",
		FetchBody:    true,
		BodySelector: "div.article-body",
	})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "short description", articles[0].Content)
}

func TestRSSScannerFetchFeedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	scanner := NewRSSScanner(5 * time.Second)
	_, _, err := scanner.Fetch(context.Background(), config.SourceConfig{
		Name:    "down",
		FeedURL: srv.URL,
	})
	assert.Error(t, err)
}

func TestParsePubDate(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"Mon, 02 Jan 2006 15:04:05 -0700", time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)},
		{"2023-05-10T08:30:00Z", time.Date(2023, 5, 10, 8, 30, 0, 0, time.UTC)},
		{"2023-05-10", time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parsePubDate(tc.raw), "raw=%q", tc.raw)
	}

	assert.WithinDuration(t, time.Now().UTC(), parsePubDate("garbage"), time.Minute)
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewRSSScanner(time.Second))

	s, err := reg.Resolve("rss")
	require.NoError(t, err)
	assert.Equal(t, "rss", s.Name())

	_, err = reg.Resolve("atom")
	assert.Error(t, err)
}
