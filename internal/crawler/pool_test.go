package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/internal/crawler"
	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/iMan-sources/crawl-repo-final/internal/limiter"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
	"github.com/stretchr/testify/require"
)

// stubExtractor sinh một record cho mỗi target thay vì parse payload thật
type stubExtractor struct{}

func (e *stubExtractor) Extract(target fetcher.Target, payload []byte) ([]model.Record, error) {
	return []model.Record{model.RepoMessage{FullName: "repo/" + target.ID, Rank: target.Order}}, nil
}

func newPoolClient(t *testing.T) (*fetcher.Client, *cfg.Config) {
	t.Helper()
	loader, _ := cfg.NewMockLoader()
	config, _ := loader.Load()
	config.Crawler.MaxRetries = 0
	config.Crawler.RequestTimeoutSec = 5

	logger, _ := log.NewCslLogger()
	rl := limiter.NewRateLimiter(100000, 0, 100000)
	return fetcher.NewClient(logger, config, rl), config
}

func pageTarget(serverUrl string, page int) fetcher.Target {
	return fetcher.Target{
		ID:    strconv.Itoa(page),
		URL:   fmt.Sprintf("%s/page/%d", serverUrl, page),
		Order: page,
		Kind:  fetcher.KindApi,
		Page:  page,
	}
}

func collectResults(results <-chan crawler.Result) []crawler.Result {
	var all []crawler.Result
	for result := range results {
		all = append(all, result)
	}
	return all
}

func TestPoolProcessesAllTargets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page/7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	client, _ := newPoolClient(t)
	logger, _ := log.NewCslLogger()

	queue := crawler.NewQueue(16)
	for page := 1; page <= 10; page++ {
		queue.Enqueue(pageTarget(server.URL, page))
	}
	queue.Seal()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := &crawler.Pool{Logger: logger, Fetcher: client, Extractor: &stubExtractor{}, Workers: 4}
	results := collectResults(pool.Run(ctx, cancel, queue))

	require.Len(t, results, 10)

	success, notFound := 0, 0
	for _, result := range results {
		switch {
		case result.Err == nil:
			success++
			require.Len(t, result.Records, 1)
		case fetcher.IsTerminalTarget(result.Err):
			notFound++
		default:
			t.Fatalf("unexpected error for target %s: %v", result.Target.ID, result.Err)
		}
	}
	require.Equal(t, 9, success, "target 404 không được kéo theo target khác")
	require.Equal(t, 1, notFound)
}

func TestPoolStopsOnRunFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, _ := newPoolClient(t)
	logger, _ := log.NewCslLogger()

	queue := crawler.NewQueue(64)
	for page := 1; page <= 50; page++ {
		queue.Enqueue(pageTarget(server.URL, page))
	}
	queue.Seal()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := &crawler.Pool{Logger: logger, Fetcher: client, Extractor: &stubExtractor{}, Workers: 4}
	results := collectResults(pool.Run(ctx, cancel, queue))

	// Mỗi worker dừng ngay sau target đang bay của nó, không cày hết queue
	require.NotEmpty(t, results)
	require.LessOrEqual(t, len(results), 4)

	sawFatal := false
	for _, result := range results {
		if fetcher.IsRunFatal(result.Err) {
			sawFatal = true
		}
	}
	require.True(t, sawFatal, "phải có ít nhất một kết quả mang lỗi fatal")
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestPoolFollowUpPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	client, _ := newPoolClient(t)
	logger, _ := log.NewCslLogger()

	queue := crawler.NewQueue(16)
	queue.Enqueue(pageTarget(server.URL, 1))
	queue.Seal()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Phân trang động: theo đuôi đến trang 3 rồi dừng
	pool := &crawler.Pool{
		Logger:    logger,
		Fetcher:   client,
		Extractor: &stubExtractor{},
		Workers:   2,
		FollowUp: func(target fetcher.Target, records []model.Record) *fetcher.Target {
			if target.Page >= 3 {
				return nil
			}
			next := pageTarget(server.URL, target.Page+1)
			return &next
		},
	}
	results := collectResults(pool.Run(ctx, cancel, queue))

	require.Len(t, results, 3, "follow-up sau seal vẫn phải được xử lý")
	pages := map[int]bool{}
	for _, result := range results {
		require.NoError(t, result.Err)
		pages[result.Target.Page] = true
	}
	require.Equal(t, map[int]bool{1: true, 2: true, 3: true}, pages)
}
