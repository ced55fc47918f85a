package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
)

// releaseResponse map một phần tử trong mảng JSON trả về từ API releases
type releaseResponse struct {
	ID        int64     `json:"id"`
	TagName   string    `json:"tag_name"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ReleasesExtractor decode phản hồi của API releases thành các record.
// RepoID lấy từ target, là id của repository trong database.
type ReleasesExtractor struct{}

func NewReleasesExtractor() *ReleasesExtractor {
	return &ReleasesExtractor{}
}

func (e *ReleasesExtractor) Extract(target fetcher.Target, payload []byte) ([]model.Record, error) {
	var releases []releaseResponse
	if err := json.Unmarshal(payload, &releases); err != nil {
		return nil, fmt.Errorf("decode releases for %s: %w", target.ID, err)
	}

	records := make([]model.Record, 0, len(releases))
	for _, release := range releases {
		if release.ID == 0 {
			continue
		}

		content := release.Body
		if content == "" {
			// Release không có body vẫn giữ lại, content mô tả tối thiểu
			content = fmt.Sprintf("Release %s for %s", release.TagName, repoNameFromTarget(target.ID))
		}

		records = append(records, model.ReleaseMessage{
			ID:      release.ID,
			TagName: release.TagName,
			Content: content,
			RepoID:  target.RepoID,
		})
	}

	return records, nil
}

// repoNameFromTarget tách full_name từ id của target dạng "user/repo#page"
func repoNameFromTarget(id string) string {
	if idx := strings.IndexByte(id, '#'); idx >= 0 {
		return id[:idx]
	}
	return id
}
