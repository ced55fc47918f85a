// Package extractor chuyển payload thô của một target thành các record có cấu
// trúc. Extractor là hàm thuần: không I/O, không giữ state giữa các lần gọi.
package extractor

import (
	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
)

type Extractor interface {
	Extract(target fetcher.Target, payload []byte) ([]model.Record, error)
}
