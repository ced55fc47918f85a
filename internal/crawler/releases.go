package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/internal/extractor"
	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/iMan-sources/crawl-repo-final/internal/limiter"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/iMan-sources/crawl-repo-final/internal/sink"
	"github.com/iMan-sources/crawl-repo-final/pkg/db"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

// ReleasesCrawler crawl release notes qua GitHub API cho các repository đã
// thu thập từ pipeline ranking. Mỗi target là một trang releases của một
// repository; trang kế tiếp được enqueue động khi trang hiện tại đầy.
type ReleasesCrawler struct {
	Logger     log.Logger
	Config     *cfg.Config
	Mysql      *db.Mysql
	RepoMd     *model.Repo
	Fetcher    *fetcher.Client
	Extractor  *extractor.ReleasesExtractor
	Sink       sink.Sink
	aggregator *Aggregator
}

func NewReleasesCrawler(logger log.Logger, config *cfg.Config, mysql *db.Mysql, s sink.Sink) (*ReleasesCrawler, error) {
	repoMd, err := model.NewRepo(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create repo model: %w", err)
	}

	// Budget thật sẽ được refine từ header X-RateLimit-* ngay call đầu tiên
	rl := limiter.NewRateLimiter(
		config.GithubApi.InitialBudget,
		config.GithubApi.ReserveFloor,
		config.GithubApi.RequestsPerSecond,
	)

	return &ReleasesCrawler{
		Logger:    logger,
		Config:    config,
		Mysql:     mysql,
		RepoMd:    repoMd,
		Fetcher:   fetcher.NewClient(logger, config, rl),
		Extractor: extractor.NewReleasesExtractor(),
		Sink:      s,
		aggregator: NewAggregator(
			logger, s,
			config.Crawler.BatchSize,
			time.Duration(config.Crawler.FlushIntervalMs)*time.Millisecond,
		),
	}, nil
}

// releaseTarget tạo target cho một trang releases của một repository
func (c *ReleasesCrawler) releaseTarget(repo model.Repo, page int) fetcher.Target {
	url := strings.ReplaceAll(c.Config.GithubApi.ReleasesApiUrl, "{user}", repo.User)
	url = strings.ReplaceAll(url, "{repo}", repo.Name)
	url = fmt.Sprintf("%s?per_page=%d&page=%d", url, c.Config.GithubApi.PerPage, page)

	return fetcher.Target{
		ID:     fmt.Sprintf("%s#%d", repo.FullName, page),
		URL:    url,
		Order:  repo.Rank,
		Kind:   fetcher.KindApi,
		RepoID: repo.ID,
		Page:   page,
	}
}

func (c *ReleasesCrawler) Crawl(ctx context.Context) error {
	startTime := time.Now()
	c.Logger.Info(ctx, "Bắt đầu crawl releases vào %s", startTime.Format(time.RFC3339))

	// Frontier là danh sách repository đã persist từ pipeline ranking
	repos, err := c.RepoMd.FindAll(c.Config.Crawler.MaxRepos)
	if err != nil {
		return fmt.Errorf("failed to load crawl frontier: %w", err)
	}
	if len(repos) == 0 {
		return fmt.Errorf("no repositories in database, run the ranking crawl first")
	}
	c.Logger.Info(ctx, "Sẽ crawl releases cho %d repository với %d worker", len(repos), c.Config.Crawler.Workers)

	crawlCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reposByID := make(map[int64]model.Repo, len(repos))
	for _, repo := range repos {
		reposByID[repo.ID] = repo
	}

	queue := NewQueue(c.Config.Crawler.QueueSize)
	go func() {
		for _, repo := range repos {
			if crawlCtx.Err() != nil {
				break
			}
			queue.Enqueue(c.releaseTarget(repo, 1))
		}
		queue.Seal()
	}()

	pool := &Pool{
		Logger:    c.Logger,
		Fetcher:   c.Fetcher,
		Extractor: c.Extractor,
		Workers:   c.Config.Crawler.Workers,
		// Trang releases đầy nghĩa là có thể còn trang sau
		FollowUp: func(target fetcher.Target, records []model.Record) *fetcher.Target {
			if len(records) < c.Config.GithubApi.PerPage {
				return nil
			}
			repo, ok := reposByID[target.RepoID]
			if !ok {
				return nil
			}
			next := c.releaseTarget(repo, target.Page+1)
			return &next
		},
	}
	results := pool.Run(crawlCtx, cancel, queue)
	err = c.aggregator.Run(crawlCtx, cancel, results)

	c.logResults(ctx, startTime)
	return err
}

func (c *ReleasesCrawler) logResults(ctx context.Context, startTime time.Time) {
	progress := c.aggregator.Progress()
	c.Logger.Info(ctx, "==== KẾT QUẢ CRAWL RELEASES ====")
	c.Logger.Info(ctx, "Tổng thời gian thực hiện: %v", time.Since(startTime))
	c.Logger.Info(ctx, "Số target xử lý thành công: %d", progress.Completed)
	c.Logger.Info(ctx, "Số target bỏ qua (repo không còn releases/404): %d", progress.Skipped)
	c.Logger.Info(ctx, "Số target thất bại: %d", progress.Failed)
	c.Logger.Info(ctx, "Số release đã persist: %d (trùng lặp: %d)", progress.Flushed, progress.Duplicates)
}

func (c *ReleasesCrawler) Progress() Progress {
	return c.aggregator.Progress()
}
