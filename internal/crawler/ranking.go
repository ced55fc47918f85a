package crawler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/internal/extractor"
	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/iMan-sources/crawl-repo-final/internal/limiter"
	"github.com/iMan-sources/crawl-repo-final/internal/locator"
	"github.com/iMan-sources/crawl-repo-final/internal/sink"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

// RankingCrawler crawl metadata repository từ trang ranking HTML: binary
// search tìm trang cuối, rồi cho worker pool crawl toàn bộ các trang.
type RankingCrawler struct {
	Logger     log.Logger
	Config     *cfg.Config
	Fetcher    *fetcher.Client
	Extractor  *extractor.GitstarExtractor
	Sink       sink.Sink
	aggregator *Aggregator
}

func NewRankingCrawler(logger log.Logger, config *cfg.Config, s sink.Sink) (*RankingCrawler, error) {
	// Trang ranking không trả header budget nên limiter chỉ làm nhiệm vụ
	// pacing, budget đặt đủ lớn để không bao giờ chặn
	rl := limiter.NewRateLimiter(1<<30, 0, config.GithubApi.RequestsPerSecond)

	return &RankingCrawler{
		Logger:    logger,
		Config:    config,
		Fetcher:   fetcher.NewClient(logger, config, rl),
		Extractor: extractor.NewGitstarExtractor(config.Gitstar.BaseUrl),
		Sink:      s,
		aggregator: NewAggregator(
			logger, s,
			config.Crawler.BatchSize,
			time.Duration(config.Crawler.FlushIntervalMs)*time.Millisecond,
		),
	}, nil
}

func (c *RankingCrawler) pageTarget(page int) fetcher.Target {
	return fetcher.Target{
		ID:    strconv.Itoa(page),
		URL:   fmt.Sprintf("%s?page=%d", c.Config.Gitstar.BaseUrl, page),
		Order: page,
		Kind:  fetcher.KindHtml,
		Page:  page,
	}
}

// probe thăm dò một trang cho page locator: trang được coi là tồn tại khi
// extract ra được ít nhất một repository, không chỉ dựa vào HTTP status.
func (c *RankingCrawler) probe(ctx context.Context, page int) (locator.ProbeResult, error) {
	outcome := c.Fetcher.Fetch(ctx, c.pageTarget(page))
	if !outcome.Success() {
		if fetcher.IsTerminalTarget(outcome.Err) {
			return locator.PageEmpty, nil
		}
		return locator.PageEmpty, outcome.Err
	}

	records, err := c.Extractor.Extract(outcome.Target, outcome.Payload)
	if err != nil {
		return locator.PageEmpty, err
	}
	if len(records) == 0 {
		return locator.PageEmpty, nil
	}
	return locator.PageExists, nil
}

func (c *RankingCrawler) Crawl(ctx context.Context) error {
	startTime := time.Now()
	c.Logger.Info(ctx, "Bắt đầu crawl trang ranking vào %s", startTime.Format(time.RFC3339))

	crawlCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Tìm trang hợp lệ cuối cùng bằng binary search
	lastPage, err := locator.Locate(crawlCtx, c.probe, c.Config.Gitstar.MaxPages)
	if err != nil {
		return fmt.Errorf("failed to locate last ranking page: %w", err)
	}
	if lastPage == 0 {
		c.Logger.Warn(ctx, "Không tìm thấy trang ranking nào")
		return nil
	}

	// Chỉ crawl đủ số trang để đạt MaxRepos
	pages := lastPage
	if perPage := c.Config.Gitstar.PerPage; perPage > 0 && c.Config.Crawler.MaxRepos > 0 {
		needed := (c.Config.Crawler.MaxRepos + perPage - 1) / perPage
		if needed < pages {
			pages = needed
		}
	}
	c.Logger.Info(ctx, "Trang cuối cùng là %d, sẽ crawl %d trang với %d worker", lastPage, pages, c.Config.Crawler.Workers)

	// Nạp frontier vào queue
	queue := NewQueue(c.Config.Crawler.QueueSize)
	go func() {
		for page := 1; page <= pages; page++ {
			if crawlCtx.Err() != nil {
				break
			}
			queue.Enqueue(c.pageTarget(page))
		}
		queue.Seal()
	}()

	// Fan-out worker, fan-in aggregator
	pool := &Pool{
		Logger:    c.Logger,
		Fetcher:   c.Fetcher,
		Extractor: c.Extractor,
		Workers:   c.Config.Crawler.Workers,
	}
	results := pool.Run(crawlCtx, cancel, queue)
	err = c.aggregator.Run(crawlCtx, cancel, results)

	c.logResults(ctx, startTime)
	return err
}

func (c *RankingCrawler) logResults(ctx context.Context, startTime time.Time) {
	progress := c.aggregator.Progress()
	c.Logger.Info(ctx, "==== KẾT QUẢ CRAWL RANKING ====")
	c.Logger.Info(ctx, "Tổng thời gian thực hiện: %v", time.Since(startTime))
	c.Logger.Info(ctx, "Số trang xử lý thành công: %d", progress.Completed)
	c.Logger.Info(ctx, "Số trang bỏ qua (terminal): %d", progress.Skipped)
	c.Logger.Info(ctx, "Số trang thất bại: %d", progress.Failed)
	c.Logger.Info(ctx, "Số repository đã persist: %d (trùng lặp: %d)", progress.Flushed, progress.Duplicates)
}

func (c *RankingCrawler) Progress() Progress {
	return c.aggregator.Progress()
}
