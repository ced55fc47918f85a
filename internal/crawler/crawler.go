// Package crawler là engine crawl song song, có rate limit và resume được:
// khám phá frontier (binary search trang cuối), phân phối target cho worker
// pool, gom kết quả về một aggregator duy nhất và persist tăng dần.
package crawler

import (
	"context"
	"fmt"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/internal/sink"
	"github.com/iMan-sources/crawl-repo-final/pkg/db"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

// Crawler chạy trọn một pipeline. Lỗi trả về là điều kiện fatal của cả lần
// chạy; target thất bại đơn lẻ chỉ xuất hiện trong Progress.
type Crawler interface {
	Crawl(ctx context.Context) error
	Progress() Progress
}

// FactoryCrawler tạo crawler theo mode: "repos" crawl trang ranking,
// "releases" crawl release notes cho các repository đã có trong database.
func FactoryCrawler(mode string, logger log.Logger, config *cfg.Config, mysql *db.Mysql, s sink.Sink) (Crawler, error) {
	switch mode {
	case "repos":
		return NewRankingCrawler(logger, config, s)
	case "releases":
		return NewReleasesCrawler(logger, config, mysql, s)
	default:
		return nil, fmt.Errorf("unsupported crawl mode: %s", mode)
	}
}
